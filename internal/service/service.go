package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ratefeed/internal/cache"
	"ratefeed/internal/provider"
	"ratefeed/internal/registry"
	"ratefeed/internal/resolver"
)

// statusProbeTimeout bounds one availability probe during CheckAPIStatus.
const statusProbeTimeout = 5 * time.Second

// Status is the health report for one source.
type Status struct {
	Available   bool   `json:"available"`
	Reason      string `json:"reason,omitempty"`
	RequiresKey bool   `json:"requires_key"`
	HasValidKey bool   `json:"has_valid_key"`
}

// Service is the aggregation facade: the only thing the rest of the
// application calls. It owns no logic of its own beyond wiring the
// registry, cache and resolver together.
type Service struct {
	registry *registry.Registry
	cache    *cache.Store
	resolver *resolver.Resolver
	logger   *slog.Logger
}

func New(reg *registry.Registry, store *cache.Store, res *resolver.Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{registry: reg, cache: store, resolver: res, logger: logger}
}

// GetCurrentPrice resolves one spot price through the fallback chain.
// It fails only on total exhaustion of every source and retry.
func (s *Service) GetCurrentPrice(ctx context.Context, asset, currency string, opts resolver.Options) (float64, error) {
	return s.resolver.CurrentPrice(ctx, asset, currency, opts)
}

// ComparePrices queries every source in parallel and returns per-source
// answers plus statistics over the successful subset.
func (s *Service) ComparePrices(ctx context.Context, asset, currency string, opts resolver.Options) (*resolver.Comparison, error) {
	return s.resolver.CompareAll(ctx, asset, currency, opts)
}

// GetHistoricalData resolves a time series through the fallback chain.
func (s *Service) GetHistoricalData(ctx context.Context, asset, currency string, rng provider.HistoricalRange, opts resolver.Options) ([]provider.PricePoint, error) {
	return s.resolver.HistoricalData(ctx, asset, currency, rng, opts)
}

// GetAvailableCryptos lists the assets the sources know about.
func (s *Service) GetAvailableCryptos(ctx context.Context, opts provider.ListOptions) ([]provider.Asset, error) {
	return s.resolver.AvailableAssets(ctx, opts, resolver.Options{})
}

// GetCryptoDetails resolves one asset's detail record.
func (s *Service) GetCryptoDetails(ctx context.Context, asset, currency string) (*provider.AssetDetail, error) {
	return s.resolver.AssetDetails(ctx, asset, currency, resolver.Options{})
}

// GetMarketInfo resolves the market-wide summary.
func (s *Service) GetMarketInfo(ctx context.Context, opts provider.MarketOptions) (*provider.MarketInfo, error) {
	return s.resolver.MarketInfo(ctx, opts, resolver.Options{})
}

// CheckAPIStatus probes every registered source concurrently. A source
// without a probe capability counts as available; a source missing a
// required key is reported unavailable without being called.
func (s *Service) CheckAPIStatus(ctx context.Context) map[string]Status {
	adapters := s.registry.Snapshot()
	out := make(map[string]Status, len(adapters))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name, adapter := range adapters {
		name, adapter := name, adapter
		g.Go(func() error {
			st := Status{Available: true, HasValidKey: true}
			if keyed, ok := adapter.(provider.Keyed); ok {
				st.RequiresKey = keyed.RequiresAPIKey()
				st.HasValidKey = keyed.HasValidAPIKey()
			}
			switch {
			case st.RequiresKey && !st.HasValidKey:
				st.Available = false
				st.Reason = "api key required but not configured"
			default:
				checker, ok := adapter.(provider.AvailabilityChecker)
				if !ok {
					st.Reason = "no availability probe"
					break
				}
				cctx, cancel := context.WithTimeout(gctx, statusProbeTimeout)
				err := checker.CheckAvailability(cctx)
				cancel()
				if err != nil {
					st.Available = false
					st.Reason = err.Error()
				}
			}
			mu.Lock()
			out[name] = st
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// AddSource registers an adapter. Negative priority appends.
func (s *Service) AddSource(name string, adapter provider.Provider, priority int) bool {
	return s.registry.Add(name, adapter, priority)
}

// RemoveSource drops an adapter and its place in the fallback order.
func (s *Service) RemoveSource(name string) bool {
	return s.registry.Remove(name)
}

// UpdateKey stores an API key for a source and rotates it into the
// adapter when one is registered.
func (s *Service) UpdateKey(name, key string) bool {
	return s.registry.UpdateKey(name, key)
}

// UpdatePriority replaces the fallback order.
func (s *Service) UpdatePriority(order []string) bool {
	return s.registry.UpdatePriority(order)
}

// Priority returns the stored fallback order.
func (s *Service) Priority() []string {
	return s.registry.Names()
}

// SourceHealth returns the failure record for one source.
func (s *Service) SourceHealth(name string) registry.Health {
	return s.registry.HealthOf(name)
}

// ClearCache drops every cached value.
func (s *Service) ClearCache() {
	s.cache.Clear()
	s.logger.Info("cache cleared")
}
