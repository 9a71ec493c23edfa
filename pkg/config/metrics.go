package config

import (
	"github.com/marmos91/ldapauth/pkg/metrics"
)

// MetricsResult holds what InitializeMetrics set up.
type MetricsResult struct {
	// Server serves /metrics. Nil when metrics are disabled.
	Server *metrics.Server
}

// InitializeMetrics creates the Prometheus registry and the metrics server
// when cfg enables them.
//
// It must run before the provider is built: metric constructors return nil
// until the registry exists.
func InitializeMetrics(cfg *Config) MetricsResult {
	if !cfg.Metrics.Enabled {
		return MetricsResult{}
	}

	metrics.InitRegistry()
	return MetricsResult{Server: metrics.NewServer(cfg.Metrics.Port)}
}
