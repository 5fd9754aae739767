package resolver

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ratefeed/internal/cache"
)

func TestCurrentPriceFirstSourceWins(t *testing.T) {
	a := &fakePricer{name: "a", fn: priceOf(50000)}
	b := &fakePricer{name: "b", fn: priceOf(49000)}
	r, _, _ := newTestResolver(Config{}, a, b)

	price, err := r.CurrentPrice(context.Background(), "BTC", "USD", Options{})
	require.NoError(t, err)
	require.Equal(t, 50000.0, price)
	require.EqualValues(t, 1, a.calls.Load())
	require.Zero(t, b.calls.Load())
}

func TestCurrentPriceFallsBackAndShortCircuits(t *testing.T) {
	a := &fakePricer{name: "a", fn: priceErr(errors.New("down"))}
	b := &fakePricer{name: "b", fn: priceOf(50000)}
	c := &fakePricer{name: "c", fn: priceOf(49000)}
	r, store, _ := newTestResolver(Config{MaxRetries: 1}, a, b, c)

	price, err := r.CurrentPrice(context.Background(), "BTC", "USD", Options{})
	require.NoError(t, err)
	require.Equal(t, 50000.0, price)
	// a exhausted its retries, c was never reached
	require.EqualValues(t, 2, a.calls.Load())
	require.Zero(t, c.calls.Load())

	v, ok := store.Get(cache.PriceKey("BTC", "USD"))
	require.True(t, ok)
	require.Equal(t, 50000.0, v)
}

func TestCurrentPriceRejectsInvalidAnswers(t *testing.T) {
	for name, bad := range map[string]float64{
		"nan":      math.NaN(),
		"zero":     0,
		"negative": -12.5,
	} {
		t.Run(name, func(t *testing.T) {
			a := &fakePricer{name: "a", fn: priceOf(bad)}
			b := &fakePricer{name: "b", fn: priceOf(101)}
			r, _, _ := newTestResolver(Config{}, a, b)

			price, err := r.CurrentPrice(context.Background(), "ETH", "USD", Options{})
			require.NoError(t, err)
			require.Equal(t, 101.0, price)
		})
	}
}

func TestCurrentPriceExhaustion(t *testing.T) {
	a := &fakePricer{name: "a", fn: priceErr(errors.New("a down"))}
	b := &fakePricer{name: "b", fn: priceErr(errors.New("b down"))}
	r, store, _ := newTestResolver(Config{MaxRetries: 2}, a, b)

	_, err := r.CurrentPrice(context.Background(), "XRP", "BRL", Options{})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, "XRP", exhausted.Asset)
	require.Equal(t, "BRL", exhausted.Currency)
	require.ErrorContains(t, exhausted.Last, "b down")

	// every source got its full retry budget
	require.EqualValues(t, 3, a.calls.Load())
	require.EqualValues(t, 3, b.calls.Load())
	// a failed resolution never pollutes the cache
	require.Zero(t, store.Len())
}

func TestCurrentPriceBackoffGrowsPerAttempt(t *testing.T) {
	a := &fakePricer{name: "a", fn: priceErr(errors.New("down"))}
	r, _, rec := newTestResolver(Config{MaxRetries: 2, BackoffBase: 500 * time.Millisecond}, a)

	_, err := r.CurrentPrice(context.Background(), "BTC", "USD", Options{})
	require.Error(t, err)

	// pauses only between attempts, growing linearly with the attempt
	require.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, rec.recorded())
}

func TestCurrentPriceServedFromCache(t *testing.T) {
	a := &fakePricer{name: "a", fn: priceOf(50000)}
	r, _, _ := newTestResolver(Config{}, a)

	for i := 0; i < 3; i++ {
		price, err := r.CurrentPrice(context.Background(), "BTC", "USD", Options{})
		require.NoError(t, err)
		require.Equal(t, 50000.0, price)
	}
	require.EqualValues(t, 1, a.calls.Load())
}

func TestCurrentPriceForceRefreshBypassesCache(t *testing.T) {
	a := &fakePricer{name: "a", fn: priceOf(50000)}
	r, _, _ := newTestResolver(Config{}, a)

	_, err := r.CurrentPrice(context.Background(), "BTC", "USD", Options{})
	require.NoError(t, err)
	_, err = r.CurrentPrice(context.Background(), "BTC", "USD", Options{ForceRefresh: true})
	require.NoError(t, err)
	require.EqualValues(t, 2, a.calls.Load())
}

func TestCurrentPricePreferredSourceGoesFirst(t *testing.T) {
	a := &fakePricer{name: "a", fn: priceOf(50000)}
	b := &fakePricer{name: "b", fn: priceOf(49000)}
	r, _, _ := newTestResolver(Config{}, a, b)

	price, err := r.CurrentPrice(context.Background(), "BTC", "USD", Options{PreferredSource: "b"})
	require.NoError(t, err)
	require.Equal(t, 49000.0, price)
	require.Zero(t, a.calls.Load())
}

func TestCurrentPriceSkipsSourcesWithoutCapability(t *testing.T) {
	plain := &plainProvider{name: "listing-only"}
	b := &fakePricer{name: "b", fn: priceOf(50000)}
	r, _, _ := newTestResolver(Config{}, plain, b)

	price, err := r.CurrentPrice(context.Background(), "BTC", "USD", Options{})
	require.NoError(t, err)
	require.Equal(t, 50000.0, price)
}

func TestCurrentPriceAttemptTimeout(t *testing.T) {
	slow := &fakePricer{name: "slow", fn: func(ctx context.Context, _, _ string) (float64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}}
	r, _, _ := newTestResolver(Config{}, slow)

	_, err := r.CurrentPrice(context.Background(), "BTC", "USD", Options{Timeout: 20 * time.Millisecond})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.ErrorIs(t, exhausted.Last, context.DeadlineExceeded)
}

func TestCurrentPriceStopsOnCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &fakePricer{name: "a", fn: func(context.Context, string, string) (float64, error) {
		cancel()
		return 0, errors.New("down")
	}}
	b := &fakePricer{name: "b", fn: priceOf(50000)}
	r, _, _ := newTestResolver(Config{MaxRetries: 2}, a, b)

	_, err := r.CurrentPrice(ctx, "BTC", "USD", Options{})
	require.ErrorIs(t, err, context.Canceled)
	require.EqualValues(t, 1, a.calls.Load())
	require.Zero(t, b.calls.Load())
}

func TestCurrentPriceCooldownSkipsFailingSource(t *testing.T) {
	a := &fakePricer{name: "a", fn: priceErr(errors.New("down"))}
	b := &fakePricer{name: "b", fn: priceOf(50000)}
	r, _, _ := newTestResolver(Config{MaxRetries: 2, Cooldown: time.Minute}, a, b)

	// first resolution burns a's retry budget, putting it over the streak threshold
	price, err := r.CurrentPrice(context.Background(), "BTC", "USD", Options{})
	require.NoError(t, err)
	require.Equal(t, 50000.0, price)
	require.EqualValues(t, 3, a.calls.Load())

	// within the window a is skipped outright
	_, err = r.CurrentPrice(context.Background(), "BTC", "USD", Options{ForceRefresh: true})
	require.NoError(t, err)
	require.EqualValues(t, 3, a.calls.Load())
}
