package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Gate paces calls to one upstream API: an optional token bucket plus an
// optional minimum interval between consecutive calls. Adapters call
// Wait before every outbound request. A nil Gate never blocks.
type Gate struct {
	tb       *TokenBucket
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewGate builds a gate from a requests-per-minute budget (0 disables
// the bucket) and a minimum spacing between calls (0 disables it).
func NewGate(requestsPerMinute, burst int, minInterval time.Duration) *Gate {
	g := &Gate{interval: minInterval}
	if requestsPerMinute > 0 {
		if burst <= 0 {
			burst = 1
		}
		g.tb = NewTokenBucket(float64(requestsPerMinute)/60.0, burst)
	}
	return g
}

// Wait blocks until the next call is allowed or the context is canceled.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	if g.tb != nil {
		if err := g.tb.Wait(ctx); err != nil {
			return err
		}
	}
	if g.interval > 0 {
		g.mu.Lock()
		wait := time.Until(g.last.Add(g.interval))
		g.mu.Unlock()
		if wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
		g.mu.Lock()
		g.last = time.Now()
		g.mu.Unlock()
	}
	return nil
}
