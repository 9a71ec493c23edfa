package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/ldapauth/pkg/authprovider"
	"github.com/marmos91/ldapauth/pkg/metrics"
)

// authMetrics is the Prometheus implementation of authprovider.Metrics.
type authMetrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewAuthMetrics creates a Prometheus-backed authprovider.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewAuthMetrics() authprovider.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &authMetrics{
		total: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ldapauth_authentications_total",
				Help: "Authentication attempts by outcome",
			},
			[]string{"outcome"}, // "cached", "success", "rejected", "failed"
		)),
		duration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "ldapauth_authentication_duration_milliseconds",
				Help: "Duration of authentication attempts in milliseconds",
				Buckets: []float64{
					0.05, // 50us - cache hits
					0.1,
					0.5,
					1,
					5,    // 5ms - local directory
					10,
					50,
					100,
					500,  // 500ms - slow or remote directory
					1000,
					5000, // response timeout
				},
			},
			[]string{"outcome"},
		)),
	}
}

func (m *authMetrics) RecordAuthentication(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.total.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(float64(duration.Microseconds()) / 1000)
}
