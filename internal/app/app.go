package app

import (
	"log/slog"

	"ratefeed/internal/cache"
	"ratefeed/internal/config"
	"ratefeed/internal/httpx"
	"ratefeed/internal/metrics"
	"ratefeed/internal/provider/binance"
	"ratefeed/internal/provider/coinbase"
	"ratefeed/internal/provider/coingecko"
	"ratefeed/internal/provider/ratelimit"
	"ratefeed/internal/registry"
	"ratefeed/internal/resolver"
	"ratefeed/internal/service"
)

// Build wires the registry, cache and resolver from configuration and
// returns the facade. m may be nil when nothing scrapes metrics (the
// one-shot CLI).
func Build(cfg config.Config, log *slog.Logger, m *metrics.Metrics) *service.Service {
	httpClient := httpx.New(cfg.Providers.HTTPTimeout)
	reg := registry.New(log)

	if pc := cfg.Providers.CoinGecko; pc.Enabled {
		opts := []coingecko.ClientOption{coingecko.WithHTTPClient(httpClient.HTTP)}
		if pc.BaseURL != "" {
			opts = append(opts, coingecko.WithBaseURL(pc.BaseURL))
		}
		client, err := coingecko.NewClient(pc.APIKey, opts...)
		if err != nil {
			log.Error("coingecko client init failed", "err", err)
		} else {
			reg.Add("coingecko", coingecko.New(coingecko.Config{}, client, gate(pc)), -1)
		}
	}
	if pc := cfg.Providers.Binance; pc.Enabled {
		reg.Add("binance", binance.New(binance.Config{BaseURL: pc.BaseURL}, httpClient, gate(pc)), -1)
	}
	if pc := cfg.Providers.Coinbase; pc.Enabled {
		reg.Add("coinbase", coinbase.New(coinbase.Config{BaseURL: pc.BaseURL}, httpClient, gate(pc)), -1)
	}
	if len(cfg.Priority) > 0 {
		reg.UpdatePriority(cfg.Priority)
	}

	store := cache.New(cfg.Cache.MaxItems)
	res := resolver.New(reg, store, resolver.Config{
		MaxRetries:  cfg.Resolver.MaxRetries,
		BackoffBase: cfg.Resolver.BackoffBase,
		Timeout:     cfg.Resolver.Timeout,
		Cooldown:    cfg.Resolver.Cooldown,
	}, log, m)

	return service.New(reg, store, res, log)
}

func gate(pc config.ProviderConfig) *ratelimit.Gate {
	if pc.MaxRequestsPerMinute <= 0 && pc.MinRequestInterval <= 0 {
		return nil
	}
	return ratelimit.NewGate(pc.MaxRequestsPerMinute, pc.Burst, pc.MinRequestInterval)
}
