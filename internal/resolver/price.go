package resolver

import (
	"context"
	"fmt"
	"math"
	"time"

	"ratefeed/internal/cache"
	"ratefeed/internal/provider"
)

// CurrentPrice resolves one spot price by walking the fallback chain.
// The first valid answer short-circuits the rest of the chain and is
// written through to the cache with the volatility-adjusted TTL.
func (r *Resolver) CurrentPrice(ctx context.Context, asset, currency string, opts Options) (float64, error) {
	key := cache.PriceKey(asset, currency)
	if !opts.ForceRefresh {
		if v, ok := r.cache.Get(key); ok {
			if price, ok := v.(float64); ok {
				r.metrics.CacheHit("price")
				r.logger.Debug("price served from cache", "asset", asset, "currency", currency)
				return price, nil
			}
		}
	}
	r.metrics.CacheMiss("price")

	timeout := r.attemptTimeout(opts, 1)
	started := time.Now()

	var lastErr error
	for _, name := range r.registry.EffectiveOrder(opts.PreferredSource) {
		adapter, ok := r.registry.Get(name)
		if !ok {
			continue
		}
		pricer, ok := adapter.(provider.CurrentPricer)
		if !ok {
			r.logger.Debug("source cannot answer spot prices", "source", name)
			continue
		}
		if r.registry.InCooldown(name, r.cfg.Cooldown) {
			r.logger.Debug("source cooling down, skipping", "source", name)
			continue
		}

		for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
			price, err := r.fetchPrice(ctx, pricer, asset, currency, timeout)
			if err == nil {
				r.registry.ReportSuccess(name)
				r.metrics.ProviderRequest(name, "ok")
				r.metrics.ObserveResolve("price", time.Since(started))
				r.cache.Set(key, price, cache.PriceTTL(asset))
				r.logger.Info("price resolved",
					"asset", asset, "currency", currency, "source", name, "attempt", attempt)
				return price, nil
			}
			lastErr = err
			r.registry.ReportFailure(name)
			r.metrics.ProviderRequest(name, "error")
			r.logger.Warn("price attempt failed",
				"asset", asset, "currency", currency, "source", name, "attempt", attempt, "err", err)
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			if attempt < r.cfg.MaxRetries {
				if err := r.sleep(ctx, r.backoff(attempt)); err != nil {
					return 0, err
				}
			}
		}
	}
	return 0, &ExhaustedError{Op: "current price", Asset: asset, Currency: currency, Last: lastErr}
}

// fetchPrice races one source call against the per-attempt timeout.
// Cancelling the attempt context aborts conforming clients; a client
// that ignores it keeps running in the background and its late answer
// is dropped on the floor.
func (r *Resolver) fetchPrice(ctx context.Context, p provider.CurrentPricer, asset, currency string, timeout time.Duration) (float64, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type answer struct {
		price float64
		err   error
	}
	ch := make(chan answer, 1)
	go func() {
		price, err := p.CurrentPrice(cctx, asset, currency)
		ch <- answer{price, err}
	}()

	select {
	case <-cctx.Done():
		return 0, fmt.Errorf("%s: %w", p.Name(), cctx.Err())
	case a := <-ch:
		if a.err != nil {
			return 0, fmt.Errorf("%s: %w", p.Name(), a.err)
		}
		if math.IsNaN(a.price) || a.price <= 0 {
			return 0, fmt.Errorf("%s returned %v: %w", p.Name(), a.price, ErrInvalidPrice)
		}
		return a.price, nil
	}
}
