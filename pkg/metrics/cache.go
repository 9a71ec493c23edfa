package metrics

import (
	"github.com/marmos91/ldapauth/pkg/cache"
)

// NewCacheMetrics returns a Prometheus-backed cache.CacheMetrics labelled
// with the cache name.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or the
// prometheus package has not been imported. Passing nil to cache.New results
// in zero overhead.
//
// Example usage:
//
//	metrics.InitRegistry()
//	c, err := cache.New[string, *Profile](cache.Options{
//		Name:     "directory",
//		Capacity: 100,
//		Metrics:  metrics.NewCacheMetrics("directory"),
//	})
func NewCacheMetrics(name string) cache.CacheMetrics {
	if !IsEnabled() || newPrometheusCacheMetrics == nil {
		return nil
	}
	return newPrometheusCacheMetrics(name)
}

// newPrometheusCacheMetrics is set by pkg/metrics/prometheus. The
// indirection keeps this package free of the implementation.
var newPrometheusCacheMetrics func(name string) cache.CacheMetrics

// RegisterCacheMetricsConstructor registers the Prometheus cache metrics
// constructor. Called by pkg/metrics/prometheus during package initialization.
func RegisterCacheMetricsConstructor(constructor func(name string) cache.CacheMetrics) {
	newPrometheusCacheMetrics = constructor
}
