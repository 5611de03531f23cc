package cache

import "time"

// CacheMetrics provides observability for artifact cache operations.
//
// This is optional - if not provided, metrics collection is skipped.
//
// Example implementations:
//   - Prometheus metrics
//   - In-memory counters for testing
type CacheMetrics interface {
	// ObserveFlush records one durable artifact write
	ObserveFlush(unit string, bytes int64, duration time.Duration)

	// RecordFlushError records a failed flush attempt
	RecordFlushError(unit string)

	// ObserveRead records a cache read; hit is true when served from memory
	ObserveRead(unit string, bytes int64, duration time.Duration, hit bool)

	// RecordQuarantine records corrupt bytes being set aside
	RecordQuarantine(unit string)

	// RecordDedupSkip records a save skipped because the payload matched
	// the durably written bytes
	RecordDedupSkip(unit string)

	// RecordDirtyArtifacts records the current dirty-artifact count
	RecordDirtyArtifacts(count int)
}
