package resolver

import (
	"context"
	"log/slog"
	"time"

	"ratefeed/internal/cache"
	"ratefeed/internal/metrics"
	"ratefeed/internal/registry"
)

// Config carries the retry knobs the resolver applies to every source.
type Config struct {
	// MaxRetries is how many times one source is retried after its
	// first failed attempt before falling through to the next source.
	MaxRetries int
	// BackoffBase scales the pause between retries of one source.
	BackoffBase time.Duration
	// Timeout bounds a single current-price attempt. Historical
	// attempts get twice this, since series payloads are larger.
	Timeout time.Duration
	// Cooldown, when positive, skips a source that has been failing
	// consecutively until the window elapses. Zero keeps the original
	// behavior: every call retries every source from a clean slate.
	Cooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// Options are per-call modifiers.
type Options struct {
	// PreferredSource, when registered, is tried first for this call.
	PreferredSource string
	// ForceRefresh bypasses the cache read (the write still happens).
	ForceRefresh bool
	// Timeout overrides the configured per-attempt timeout.
	Timeout time.Duration
}

// Resolver walks the registry's fallback chain for single-value reads
// and fans out across all sources for comparisons. Resolution is
// strictly sequential: one source, one attempt at a time, so a healthy
// first source means nothing else gets hammered.
type Resolver struct {
	registry *registry.Registry
	cache    *cache.Store
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics

	sleep func(ctx context.Context, d time.Duration) error
}

func New(reg *registry.Registry, store *cache.Store, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		registry: reg,
		cache:    store,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		metrics:  m,
		sleep:    sleepCtx,
	}
}

// backoff grows with the attempt number so consecutive retries of the
// same source spread out instead of hammering it.
func (r *Resolver) backoff(attempt int) time.Duration {
	return r.cfg.BackoffBase * time.Duration(attempt+1)
}

// attemptTimeout picks the per-attempt budget for this call.
func (r *Resolver) attemptTimeout(opts Options, scale int) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	return r.cfg.Timeout * time.Duration(scale)
}

// sleepCtx waits without spinning and aborts on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
