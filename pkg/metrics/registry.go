// Package metrics owns the Prometheus registry and hands out metric
// implementations to the packages that record them.
//
// Metrics are opt-in. Until InitRegistry is called every constructor in this
// package returns nil, and the cache and provider treat a nil recorder as
// "collection disabled" with no further overhead.
//
// The Prometheus-backed implementations live in pkg/metrics/prometheus and
// register themselves from that package's init. Import it for side effects:
//
//	import _ "github.com/marmos91/ldapauth/pkg/metrics/prometheus"
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registryMu sync.RWMutex
	registry   *prometheus.Registry
)

// InitRegistry enables metrics and returns the registry. The registry carries
// the standard Go runtime and process collectors. Calling InitRegistry again
// returns the existing registry.
func InitRegistry() *prometheus.Registry {
	registryMu.Lock()
	defer registryMu.Unlock()

	if registry != nil {
		return registry
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	registry = reg
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry != nil
}

// GetRegistry returns the registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry
}

// Reset disables metrics and drops the registry. Intended for tests.
func Reset() {
	registryMu.Lock()
	registry = nil
	registryMu.Unlock()
}

// Handler serves the registry in the Prometheus exposition format. It returns
// 404 for every request when metrics are disabled.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
