package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/ldapauth/pkg/cache"
	"github.com/marmos91/ldapauth/pkg/metrics"
)

// cacheMetrics is the Prometheus implementation of cache.CacheMetrics for a
// single named cache.
type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions *prometheus.CounterVec
	entries   prometheus.Gauge
}

// NewCacheMetrics creates a Prometheus-backed CacheMetrics for the named cache.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewCacheMetrics(name string) cache.CacheMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	requests := register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldapauth_cache_requests_total",
			Help: "Cache lookups by result",
		},
		[]string{"cache", "result"}, // result: "hit", "miss"
	))
	evictions := register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ldapauth_cache_evictions_total",
			Help: "Entries removed from the cache by reason",
		},
		[]string{"cache", "reason"}, // reason: "capacity", "expired", "cleared"
	))
	entries := register(reg, prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ldapauth_cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache"},
	))

	return &cacheMetrics{
		hits:      requests.WithLabelValues(name, "hit"),
		misses:    requests.WithLabelValues(name, "miss"),
		evictions: evictions.MustCurryWith(prometheus.Labels{"cache": name}),
		entries:   entries.WithLabelValues(name),
	}
}

func (m *cacheMetrics) RecordHit() {
	if m == nil {
		return
	}
	m.hits.Inc()
}

func (m *cacheMetrics) RecordMiss() {
	if m == nil {
		return
	}
	m.misses.Inc()
}

func (m *cacheMetrics) RecordEviction(reason string, n int) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(reason).Add(float64(n))
}

func (m *cacheMetrics) RecordSize(n int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(n))
}
