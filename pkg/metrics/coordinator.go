package metrics

import (
	"time"

	"github.com/marmos91/statekeep/pkg/coordinator"
)

// NewCoordinatorMetrics creates a new Prometheus-backed CoordinatorMetrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
// When nil is returned, callers should omit the metrics option on the
// coordinator, which results in zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	metrics.InitRegistry()
//	coordMetrics := metrics.NewCoordinatorMetrics()
//	coord, err := coordinator.New(cfg, reg, coordinator.WithMetrics(coordMetrics))
//
//	// Without metrics (zero overhead)
//	coord, err := coordinator.New(cfg, reg)
func NewCoordinatorMetrics() coordinator.CoordinatorMetrics {
	if !IsEnabled() {
		return nil
	}

	// Import prometheus package to access implementation
	// This breaks the import cycle by using interface return type
	return newPrometheusCoordinatorMetrics()
}

// newPrometheusCoordinatorMetrics is implemented in pkg/metrics/prometheus/coordinator.go
// This indirection avoids import cycles while keeping the API clean
var newPrometheusCoordinatorMetrics func() coordinator.CoordinatorMetrics

// RegisterCoordinatorMetricsConstructor registers the Prometheus coordinator
// metrics constructor.
// Called by pkg/metrics/prometheus/coordinator.go during package initialization.
func RegisterCoordinatorMetricsConstructor(constructor func() coordinator.CoordinatorMetrics) {
	newPrometheusCoordinatorMetrics = constructor
}

// ObserveSave records one completed Save call.
func ObserveSave(m coordinator.CoordinatorMetrics, unit string, bytes int64, duration time.Duration) {
	if m != nil {
		m.ObserveSave(unit, bytes, duration)
	}
}

// ObserveLoad records one completed Load call.
func ObserveLoad(m coordinator.CoordinatorMetrics, unit string, bytes int64, duration time.Duration) {
	if m != nil {
		m.ObserveLoad(unit, bytes, duration)
	}
}

// ObserveExclusiveRun records one completed exclusive run.
func ObserveExclusiveRun(m coordinator.CoordinatorMetrics, kind string, duration time.Duration) {
	if m != nil {
		m.ObserveExclusiveRun(kind, duration)
	}
}

// RecordQuiescenceTimeout records an exclusive run that hit its quiescence
// timeout.
func RecordQuiescenceTimeout(m coordinator.CoordinatorMetrics, kind string) {
	if m != nil {
		m.RecordQuiescenceTimeout(kind)
	}
}
