package resolver

import (
	"context"

	"ratefeed/internal/cache"
	"ratefeed/internal/provider"
)

// The listing, detail and market operations share the fallback walk of
// the price resolvers but make a single attempt per source: they are
// slow-changing reads behind long TTLs, so a retry loop buys nothing a
// later call would not.

// AvailableAssets resolves the asset listing from the first capable
// source and caches it for a day.
func (r *Resolver) AvailableAssets(ctx context.Context, opts provider.ListOptions, copts Options) ([]provider.Asset, error) {
	key := cache.ListingKey(opts.Limit, opts.IncludeMetadata)
	if !copts.ForceRefresh {
		if v, ok := r.cache.Get(key); ok {
			if assets, ok := v.([]provider.Asset); ok {
				r.metrics.CacheHit("listing")
				return assets, nil
			}
		}
	}
	r.metrics.CacheMiss("listing")
	timeout := r.attemptTimeout(copts, 2)

	var lastErr error
	for _, name := range r.registry.EffectiveOrder(copts.PreferredSource) {
		adapter, ok := r.registry.Get(name)
		if !ok {
			continue
		}
		lister, ok := adapter.(provider.AssetLister)
		if !ok {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, timeout)
		assets, err := lister.AvailableAssets(cctx, opts)
		cancel()
		if err != nil || len(assets) == 0 {
			lastErr = err
			r.registry.ReportFailure(name)
			r.metrics.ProviderRequest(name, "error")
			r.logger.Warn("listing attempt failed", "source", name, "err", err)
			continue
		}
		r.registry.ReportSuccess(name)
		r.metrics.ProviderRequest(name, "ok")
		r.cache.Set(key, assets, cache.ListingTTL)
		return assets, nil
	}
	return nil, &ExhaustedError{Op: "asset listing", Last: lastErr}
}

// AssetDetails resolves one asset's detail record.
func (r *Resolver) AssetDetails(ctx context.Context, asset, currency string, copts Options) (*provider.AssetDetail, error) {
	key := cache.DetailKey(asset, currency)
	if !copts.ForceRefresh {
		if v, ok := r.cache.Get(key); ok {
			if detail, ok := v.(*provider.AssetDetail); ok {
				r.metrics.CacheHit("details")
				return detail, nil
			}
		}
	}
	r.metrics.CacheMiss("details")
	timeout := r.attemptTimeout(copts, 1)

	var lastErr error
	for _, name := range r.registry.EffectiveOrder(copts.PreferredSource) {
		adapter, ok := r.registry.Get(name)
		if !ok {
			continue
		}
		detailer, ok := adapter.(provider.AssetDetailer)
		if !ok {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, timeout)
		detail, err := detailer.AssetDetails(cctx, asset, currency)
		cancel()
		if err != nil || detail == nil {
			lastErr = err
			r.registry.ReportFailure(name)
			r.metrics.ProviderRequest(name, "error")
			r.logger.Warn("details attempt failed", "asset", asset, "source", name, "err", err)
			continue
		}
		r.registry.ReportSuccess(name)
		r.metrics.ProviderRequest(name, "ok")
		r.cache.Set(key, detail, cache.DetailTTL)
		return detail, nil
	}
	return nil, &ExhaustedError{Op: "asset details", Asset: asset, Currency: currency, Last: lastErr}
}

// MarketInfo resolves the market-wide summary.
func (r *Resolver) MarketInfo(ctx context.Context, opts provider.MarketOptions, copts Options) (*provider.MarketInfo, error) {
	key := cache.MarketInfoKey(opts.Limit, opts.Currency)
	if !copts.ForceRefresh {
		if v, ok := r.cache.Get(key); ok {
			if info, ok := v.(*provider.MarketInfo); ok {
				r.metrics.CacheHit("market")
				return info, nil
			}
		}
	}
	r.metrics.CacheMiss("market")
	timeout := r.attemptTimeout(copts, 1)

	var lastErr error
	for _, name := range r.registry.EffectiveOrder(copts.PreferredSource) {
		adapter, ok := r.registry.Get(name)
		if !ok {
			continue
		}
		informer, ok := adapter.(provider.MarketInformer)
		if !ok {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, timeout)
		info, err := informer.MarketInfo(cctx, opts)
		cancel()
		if err != nil || info == nil {
			lastErr = err
			r.registry.ReportFailure(name)
			r.metrics.ProviderRequest(name, "error")
			r.logger.Warn("market info attempt failed", "source", name, "err", err)
			continue
		}
		r.registry.ReportSuccess(name)
		r.metrics.ProviderRequest(name, "ok")
		r.cache.Set(key, info, cache.MarketInfoTTL)
		return info, nil
	}
	return nil, &ExhaustedError{Op: "market info", Last: lastErr}
}
