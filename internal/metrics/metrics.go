package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the aggregation-layer counters. A nil *Metrics is a
// valid no-op receiver so library tests can skip registration.
type Metrics struct {
	providerRequests *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	resolveDuration  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratefeed",
			Name:      "provider_requests_total",
			Help:      "Provider attempts by outcome",
		}, []string{"provider", "outcome"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratefeed",
			Name:      "cache_hits_total",
			Help:      "Cache hits by operation",
		}, []string{"op"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratefeed",
			Name:      "cache_misses_total",
			Help:      "Cache misses by operation",
		}, []string{"op"}),
		resolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ratefeed",
			Name:      "resolve_duration_seconds",
			Help:      "Time to resolve a value across the fallback chain",
		}, []string{"op"}),
	}
	reg.MustRegister(m.providerRequests, m.cacheHits, m.cacheMisses, m.resolveDuration)
	return m
}

func (m *Metrics) ProviderRequest(provider, outcome string) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) CacheHit(op string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(op).Inc()
}

func (m *Metrics) CacheMiss(op string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveResolve(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.resolveDuration.WithLabelValues(op).Observe(d.Seconds())
}
