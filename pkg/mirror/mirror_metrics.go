package mirror

import "time"

// MirrorMetrics provides observability for background mirror uploads.
//
// This is optional - if not provided, metrics collection is skipped.
//
// Example implementations:
//   - Prometheus metrics
//   - In-memory counters for testing
type MirrorMetrics interface {
	// ObserveUpload records one completed mirror upload
	ObserveUpload(unit string, bytes int64, duration time.Duration)

	// RecordUploadError records a failed mirror upload
	RecordUploadError(unit string)

	// RecordQueueDepth records the current number of queued uploads
	RecordQueueDepth(depth int)
}
