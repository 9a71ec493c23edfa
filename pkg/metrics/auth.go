package metrics

import (
	"github.com/marmos91/ldapauth/pkg/authprovider"
)

// NewAuthMetrics returns a Prometheus-backed authprovider.Metrics.
//
// Returns nil if metrics are not enabled or the prometheus package has not
// been imported.
func NewAuthMetrics() authprovider.Metrics {
	if !IsEnabled() || newPrometheusAuthMetrics == nil {
		return nil
	}
	return newPrometheusAuthMetrics()
}

var newPrometheusAuthMetrics func() authprovider.Metrics

// RegisterAuthMetricsConstructor registers the Prometheus authentication
// metrics constructor. Called by pkg/metrics/prometheus during package
// initialization.
func RegisterAuthMetricsConstructor(constructor func() authprovider.Metrics) {
	newPrometheusAuthMetrics = constructor
}
