// Package prometheus provides the Prometheus implementations of the metric
// interfaces declared by pkg/cache and pkg/authprovider. Importing it
// registers the constructors with pkg/metrics.
package prometheus

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/ldapauth/pkg/metrics"
)

func init() {
	metrics.RegisterCacheMetricsConstructor(NewCacheMetrics)
	metrics.RegisterAuthMetricsConstructor(NewAuthMetrics)
}

// register adds c to reg, or returns the collector already registered under
// the same descriptor. Several caches share one set of vectors this way.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
