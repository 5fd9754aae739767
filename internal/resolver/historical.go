package resolver

import (
	"context"
	"fmt"
	"time"

	"ratefeed/internal/cache"
	"ratefeed/internal/provider"
)

// HistoricalData resolves a time series with the same fallback, retry
// and backoff discipline as CurrentPrice. Success means a non-empty
// point sequence. Each attempt gets twice the base timeout because
// series payloads are larger than a single quote.
func (r *Resolver) HistoricalData(ctx context.Context, asset, currency string, rng provider.HistoricalRange, opts Options) ([]provider.PricePoint, error) {
	if rng.Period == "" {
		rng.Period = "1D"
	}
	key := cache.HistoricalKey(asset, currency, rng.Period, rng.Interval)
	if !opts.ForceRefresh {
		if v, ok := r.cache.Get(key); ok {
			if points, ok := v.([]provider.PricePoint); ok {
				r.metrics.CacheHit("historical")
				return points, nil
			}
		}
	}
	r.metrics.CacheMiss("historical")

	timeout := r.attemptTimeout(opts, 2)
	started := time.Now()

	var lastErr error
	for _, name := range r.registry.EffectiveOrder(opts.PreferredSource) {
		adapter, ok := r.registry.Get(name)
		if !ok {
			continue
		}
		historian, ok := adapter.(provider.HistoricalProvider)
		if !ok {
			r.logger.Debug("source cannot answer historical data", "source", name)
			continue
		}
		if r.registry.InCooldown(name, r.cfg.Cooldown) {
			r.logger.Debug("source cooling down, skipping", "source", name)
			continue
		}

		for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
			points, err := r.fetchSeries(ctx, name, historian, asset, currency, rng, timeout)
			if err == nil {
				r.registry.ReportSuccess(name)
				r.metrics.ProviderRequest(name, "ok")
				r.metrics.ObserveResolve("historical", time.Since(started))
				r.cache.Set(key, points, cache.HistoricalTTL(rng.Period))
				r.logger.Info("historical data resolved",
					"asset", asset, "currency", currency, "source", name, "points", len(points))
				return points, nil
			}
			lastErr = err
			r.registry.ReportFailure(name)
			r.metrics.ProviderRequest(name, "error")
			r.logger.Warn("historical attempt failed",
				"asset", asset, "currency", currency, "source", name, "attempt", attempt, "err", err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt < r.cfg.MaxRetries {
				if err := r.sleep(ctx, r.backoff(attempt)); err != nil {
					return nil, err
				}
			}
		}
	}
	return nil, &ExhaustedError{Op: "historical data", Asset: asset, Currency: currency, Last: lastErr}
}

func (r *Resolver) fetchSeries(ctx context.Context, name string, h provider.HistoricalProvider, asset, currency string, rng provider.HistoricalRange, timeout time.Duration) ([]provider.PricePoint, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type answer struct {
		points []provider.PricePoint
		err    error
	}
	ch := make(chan answer, 1)
	go func() {
		points, err := h.HistoricalData(cctx, asset, currency, rng)
		ch <- answer{points, err}
	}()

	select {
	case <-cctx.Done():
		return nil, fmt.Errorf("%s: %w", name, cctx.Err())
	case a := <-ch:
		if a.err != nil {
			return nil, fmt.Errorf("%s: %w", name, a.err)
		}
		if len(a.points) == 0 {
			return nil, fmt.Errorf("%s: %w", name, ErrEmptySeries)
		}
		return a.points, nil
	}
}
