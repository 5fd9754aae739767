package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ratefeed/internal/cache"
	"ratefeed/internal/provider"
)

func series(prices ...float64) []provider.PricePoint {
	points := make([]provider.PricePoint, len(prices))
	base := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	for i, p := range prices {
		points[i] = provider.PricePoint{Timestamp: base.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return points
}

func seriesOf(points []provider.PricePoint) func(context.Context, string, string, provider.HistoricalRange) ([]provider.PricePoint, error) {
	return func(context.Context, string, string, provider.HistoricalRange) ([]provider.PricePoint, error) {
		return points, nil
	}
}

func TestHistoricalDataResolves(t *testing.T) {
	want := series(100, 101, 102)
	a := &fakeHistorian{name: "a", fn: seriesOf(want)}
	r, store, _ := newTestResolver(Config{}, a)

	got, err := r.HistoricalData(context.Background(), "BTC", "USD", provider.HistoricalRange{Period: "1W"}, Options{})
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, ok := store.Get(cache.HistoricalKey("BTC", "USD", "1W", ""))
	require.True(t, ok)
}

func TestHistoricalDataEmptySeriesFallsBack(t *testing.T) {
	empty := &fakeHistorian{name: "empty", fn: seriesOf(nil)}
	b := &fakeHistorian{name: "b", fn: seriesOf(series(100))}
	r, _, _ := newTestResolver(Config{}, empty, b)

	got, err := r.HistoricalData(context.Background(), "BTC", "USD", provider.HistoricalRange{}, Options{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.EqualValues(t, 1, empty.calls.Load())
}

func TestHistoricalDataDefaultsPeriod(t *testing.T) {
	var gotPeriod string
	a := &fakeHistorian{name: "a", fn: func(_ context.Context, _, _ string, rng provider.HistoricalRange) ([]provider.PricePoint, error) {
		gotPeriod = rng.Period
		return series(100), nil
	}}
	r, store, _ := newTestResolver(Config{}, a)

	_, err := r.HistoricalData(context.Background(), "BTC", "USD", provider.HistoricalRange{}, Options{})
	require.NoError(t, err)
	require.Equal(t, "1D", gotPeriod)

	_, ok := store.Get(cache.HistoricalKey("BTC", "USD", "1D", ""))
	require.True(t, ok)
}

func TestHistoricalDataServedFromCache(t *testing.T) {
	a := &fakeHistorian{name: "a", fn: seriesOf(series(100, 101))}
	r, _, _ := newTestResolver(Config{}, a)

	rng := provider.HistoricalRange{Period: "1M"}
	_, err := r.HistoricalData(context.Background(), "ETH", "USD", rng, Options{})
	require.NoError(t, err)
	_, err = r.HistoricalData(context.Background(), "ETH", "USD", rng, Options{})
	require.NoError(t, err)
	require.EqualValues(t, 1, a.calls.Load())
}

func TestHistoricalDataExhaustion(t *testing.T) {
	a := &fakeHistorian{name: "a", fn: func(context.Context, string, string, provider.HistoricalRange) ([]provider.PricePoint, error) {
		return nil, errors.New("down")
	}}
	empty := &fakeHistorian{name: "empty", fn: seriesOf(nil)}
	r, store, _ := newTestResolver(Config{MaxRetries: 1}, a, empty)

	_, err := r.HistoricalData(context.Background(), "BTC", "USD", provider.HistoricalRange{}, Options{})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.ErrorIs(t, exhausted.Last, ErrEmptySeries)
	require.Zero(t, store.Len())
}

func TestHistoricalDataSkipsSourcesWithoutCapability(t *testing.T) {
	pricerOnly := &fakePricer{name: "spot-only", fn: priceOf(1)}
	b := &fakeHistorian{name: "b", fn: seriesOf(series(100))}
	r, _, _ := newTestResolver(Config{}, pricerOnly, b)

	got, err := r.HistoricalData(context.Background(), "BTC", "USD", provider.HistoricalRange{}, Options{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Zero(t, pricerOnly.calls.Load())
}
