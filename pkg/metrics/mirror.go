package metrics

import (
	"time"

	"github.com/marmos91/statekeep/pkg/mirror"
)

// NewMirrorMetrics creates a new Prometheus-backed MirrorMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
// When nil is returned, callers should omit the metrics option on the
// uploader, which results in zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	metrics.InitRegistry()
//	mirrorMetrics := metrics.NewMirrorMetrics()
//	up := mirror.NewUploader(store, root, cfg, mirror.WithUploaderMetrics(mirrorMetrics))
//
//	// Without metrics (zero overhead)
//	up := mirror.NewUploader(store, root, cfg)
func NewMirrorMetrics() mirror.MirrorMetrics {
	if !IsEnabled() {
		return nil
	}

	// Import prometheus package to access implementation
	// This breaks the import cycle by using interface return type
	return newPrometheusMirrorMetrics()
}

// newPrometheusMirrorMetrics is implemented in pkg/metrics/prometheus/mirror.go
// This indirection avoids import cycles while keeping the API clean
var newPrometheusMirrorMetrics func() mirror.MirrorMetrics

// RegisterMirrorMetricsConstructor registers the Prometheus mirror metrics constructor.
// Called by pkg/metrics/prometheus/mirror.go during package initialization.
func RegisterMirrorMetricsConstructor(constructor func() mirror.MirrorMetrics) {
	newPrometheusMirrorMetrics = constructor
}

// ObserveUpload records one completed mirror upload.
func ObserveUpload(m mirror.MirrorMetrics, unit string, bytes int64, duration time.Duration) {
	if m != nil {
		m.ObserveUpload(unit, bytes, duration)
	}
}

// RecordUploadError records a failed mirror upload.
func RecordUploadError(m mirror.MirrorMetrics, unit string) {
	if m != nil {
		m.RecordUploadError(unit)
	}
}

// RecordQueueDepth records the current number of queued mirror uploads.
func RecordQueueDepth(m mirror.MirrorMetrics, depth int) {
	if m != nil {
		m.RecordQueueDepth(depth)
	}
}
