package coordinator

import "time"

// CoordinatorMetrics provides observability for coordinator operations.
//
// This is optional - if not provided, metrics collection is skipped.
//
// Example implementations:
//   - Prometheus metrics
//   - In-memory counters for testing
type CoordinatorMetrics interface {
	// ObserveSave records one completed Save call
	ObserveSave(unit string, bytes int64, duration time.Duration)

	// ObserveLoad records one completed Load call
	ObserveLoad(unit string, bytes int64, duration time.Duration)

	// ObserveExclusiveRun records one completed exclusive run
	ObserveExclusiveRun(kind string, duration time.Duration)

	// RecordQuiescenceTimeout records an exclusive run that proceeded or
	// aborted with units still busy
	RecordQuiescenceTimeout(kind string)

	// RecordGateState records the current gate state
	RecordGateState(state string)

	// RecordQueuedFlushes records the current number of debounced flushes
	RecordQueuedFlushes(count int)
}
