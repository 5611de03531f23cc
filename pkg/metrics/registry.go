// Package metrics provides optional Prometheus instrumentation.
//
// Metrics are disabled until InitRegistry is called. Every New*Metrics
// constructor in this package returns nil while the registry is absent,
// and consumers treat a nil metrics value as a no-op. This keeps the
// hot paths free of overhead when observability is turned off.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry   *prometheus.Registry
	registryMu sync.RWMutex
)

// InitRegistry creates the process-wide Prometheus registry and installs
// the standard Go runtime and process collectors.
//
// Calling it more than once is safe; subsequent calls are no-ops.
func InitRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()

	if registry != nil {
		return
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry != nil
}

// GetRegistry returns the process-wide registry, or nil when metrics
// are disabled. Implementations in pkg/metrics/prometheus register
// their collectors against it.
func GetRegistry() *prometheus.Registry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry
}

// Handler returns the HTTP handler serving the /metrics endpoint.
//
// Returns nil when metrics are disabled so callers can skip mounting
// the route entirely:
//
//	if h := metrics.Handler(); h != nil {
//		mux.Handle("/metrics", h)
//	}
func Handler() http.Handler {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if registry == nil {
		return nil
	}

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
