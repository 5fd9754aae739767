package resolver

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// SourcePrice is one source's answer inside a comparison.
type SourcePrice struct {
	Success   bool      `json:"success"`
	Price     float64   `json:"price,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Comparison is the cross-source view of one pair. The statistics cover
// only the successful subset and stay nil when it is empty; zero is a
// valid price and must not stand in for "no data".
type Comparison struct {
	Asset    string                 `json:"asset"`
	Currency string                 `json:"currency"`
	Sources  map[string]SourcePrice `json:"sources"`
	Average  *float64               `json:"average_price,omitempty"`
	Median   *float64               `json:"median_price,omitempty"`
	Min      *float64               `json:"min_price,omitempty"`
	Max      *float64               `json:"max_price,omitempty"`
	StdDev   *float64               `json:"std_deviation,omitempty"`
}

// CompareAll queries every price-capable source concurrently and waits
// for all of them to settle before returning: the caller wants every
// source's answer, not the fastest one. Partial failure degrades the
// statistics, never the call. Comparisons are diagnostic, so nothing is
// written to the cache.
func (r *Resolver) CompareAll(ctx context.Context, asset, currency string, opts Options) (*Comparison, error) {
	timeout := r.attemptTimeout(opts, 1)
	pricers := r.registry.Pricers()

	out := &Comparison{
		Asset:    asset,
		Currency: currency,
		Sources:  make(map[string]SourcePrice, len(pricers)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name, pricer := range pricers {
		name, pricer := name, pricer
		g.Go(func() error {
			price, err := r.fetchPrice(gctx, pricer, asset, currency, timeout)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.registry.ReportFailure(name)
				r.metrics.ProviderRequest(name, "error")
				out.Sources[name] = SourcePrice{
					Error:     err.Error(),
					Timestamp: time.Now().UTC(),
				}
				// a failed source is part of the result, not an error
				return nil
			}
			r.registry.ReportSuccess(name)
			r.metrics.ProviderRequest(name, "ok")
			out.Sources[name] = SourcePrice{
				Success:   true,
				Price:     price,
				Timestamp: time.Now().UTC(),
			}
			return nil
		})
	}
	_ = g.Wait() // full join barrier; the goroutines never return errors

	prices := make([]float64, 0, len(out.Sources))
	for _, s := range out.Sources {
		if s.Success {
			prices = append(prices, s.Price)
		}
	}
	if len(prices) == 0 {
		r.logger.Warn("comparison had no successful source", "asset", asset, "currency", currency)
		return out, nil
	}

	lo, hi := minMax(prices)
	out.Average = ptr(mean(prices))
	out.Median = ptr(median(prices))
	out.Min = ptr(lo)
	out.Max = ptr(hi)
	out.StdDev = ptr(stdDev(prices))
	return out, nil
}
