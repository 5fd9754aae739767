package resolver

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ratefeed/internal/cache"
	"ratefeed/internal/provider"
	"ratefeed/internal/registry"
)

// fakePricer scripts one source's spot-price answers.
type fakePricer struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context, asset, currency string) (float64, error)
}

func (f *fakePricer) Name() string { return f.name }

func (f *fakePricer) CurrentPrice(ctx context.Context, asset, currency string) (float64, error) {
	f.calls.Add(1)
	return f.fn(ctx, asset, currency)
}

func priceOf(v float64) func(context.Context, string, string) (float64, error) {
	return func(context.Context, string, string) (float64, error) { return v, nil }
}

func priceErr(err error) func(context.Context, string, string) (float64, error) {
	return func(context.Context, string, string) (float64, error) { return 0, err }
}

// fakeHistorian scripts one source's series answers.
type fakeHistorian struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context, asset, currency string, r provider.HistoricalRange) ([]provider.PricePoint, error)
}

func (f *fakeHistorian) Name() string { return f.name }

func (f *fakeHistorian) HistoricalData(ctx context.Context, asset, currency string, r provider.HistoricalRange) ([]provider.PricePoint, error) {
	f.calls.Add(1)
	return f.fn(ctx, asset, currency, r)
}

// plainProvider has no capability beyond its name.
type plainProvider struct{ name string }

func (p *plainProvider) Name() string { return p.name }

// sleepRecorder replaces the resolver's backoff sleep so retry tests
// finish instantly and can assert the requested pauses.
type sleepRecorder struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.pauses = append(s.pauses, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.pauses...)
}

// newTestResolver wires a registry with the given adapters in order,
// an unbounded cache and a resolver with recorded, instant sleeps.
func newTestResolver(cfg Config, adapters ...provider.Provider) (*Resolver, *cache.Store, *sleepRecorder) {
	reg := registry.New(nil)
	for _, a := range adapters {
		reg.Add(a.Name(), a, -1)
	}
	store := cache.New(0)
	r := New(reg, store, cfg, nil, nil)
	rec := &sleepRecorder{}
	r.sleep = rec.sleep
	return r, store, rec
}
