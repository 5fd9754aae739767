package resolver

import (
	"errors"
	"fmt"
)

// ErrInvalidPrice marks a source answer that arrives but cannot be a
// price (NaN, zero or negative). Zero is rejected as a price answer but
// remains a valid value inside comparison statistics.
var ErrInvalidPrice = errors.New("invalid price")

// ErrEmptySeries marks a historical answer with no points.
var ErrEmptySeries = errors.New("empty historical series")

// ExhaustedError is the only resolver failure callers see: every source
// and every retry failed for the request. Individual attempt errors are
// logged and folded into Last.
type ExhaustedError struct {
	Op       string
	Asset    string
	Currency string
	Last     error
}

func (e *ExhaustedError) Error() string {
	subject := e.Asset
	if e.Currency != "" {
		subject += "/" + e.Currency
	}
	if subject == "" {
		subject = "request"
	}
	if e.Last == nil {
		return fmt.Sprintf("%s: no source could answer for %s", e.Op, subject)
	}
	return fmt.Sprintf("%s: no source could answer for %s: %v", e.Op, subject, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }
