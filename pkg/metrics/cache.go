package metrics

import (
	"time"

	"github.com/marmos91/statekeep/pkg/cache"
)

// NewCacheMetrics creates a new Prometheus-backed CacheMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
// When nil is returned, callers should pass nil to the artifact cache,
// which results in zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	metrics.InitRegistry()
//	cacheMetrics := metrics.NewCacheMetrics()
//	store := cache.New(config, exec, kinds, cache.WithMetrics(cacheMetrics))
//
//	// Without metrics (zero overhead)
//	store := cache.New(config, exec, kinds)
func NewCacheMetrics() cache.CacheMetrics {
	if !IsEnabled() {
		return nil
	}

	// Import prometheus package to access implementation
	// This breaks the import cycle by using interface return type
	return newPrometheusCacheMetrics()
}

// newPrometheusCacheMetrics is implemented in pkg/metrics/prometheus/cache.go
// This indirection avoids import cycles while keeping the API clean
var newPrometheusCacheMetrics func() cache.CacheMetrics

// RegisterCacheMetricsConstructor registers the Prometheus cache metrics constructor.
// Called by pkg/metrics/prometheus/cache.go during package initialization.
func RegisterCacheMetricsConstructor(constructor func() cache.CacheMetrics) {
	newPrometheusCacheMetrics = constructor
}

// CacheMetricsAdapter adapts the cache.CacheMetrics interface for external use.
// This type is provided for documentation and testing purposes.
type CacheMetricsAdapter interface {
	cache.CacheMetrics
}

// ObserveFlush records one durable artifact write.
//
// Parameters:
//   - unit: Learning unit that owns the artifact
//   - bytes: Envelope size written to disk
//   - duration: Time taken to write
//
// Example usage:
//
//	start := time.Now()
//	err := store.Flush(ctx, id)
//	metrics.ObserveFlush(m, id.Unit, written, time.Since(start))
func ObserveFlush(m cache.CacheMetrics, unit string, bytes int64, duration time.Duration) {
	if m != nil {
		m.ObserveFlush(unit, bytes, duration)
	}
}

// RecordFlushError records a failed flush attempt.
func RecordFlushError(m cache.CacheMetrics, unit string) {
	if m != nil {
		m.RecordFlushError(unit)
	}
}

// ObserveRead records an artifact read; hit is true when the payload was
// served from memory without touching disk.
//
// Example usage:
//
//	start := time.Now()
//	data, err := store.Get(ctx, id)
//	if err == nil {
//		metrics.ObserveRead(m, id.Unit, int64(len(data)), time.Since(start), hit)
//	}
func ObserveRead(m cache.CacheMetrics, unit string, bytes int64, duration time.Duration, hit bool) {
	if m != nil {
		m.ObserveRead(unit, bytes, duration, hit)
	}
}

// RecordQuarantine records corrupt artifact bytes being set aside.
func RecordQuarantine(m cache.CacheMetrics, unit string) {
	if m != nil {
		m.RecordQuarantine(unit)
	}
}

// RecordDedupSkip records a flush skipped because the payload matched the
// durably written bytes.
func RecordDedupSkip(m cache.CacheMetrics, unit string) {
	if m != nil {
		m.RecordDedupSkip(unit)
	}
}

// RecordDirtyArtifacts records the current number of dirty artifacts.
//
// Example usage:
//
//	metrics.RecordDirtyArtifacts(m, store.DirtyCount())
func RecordDirtyArtifacts(m cache.CacheMetrics, count int) {
	if m != nil {
		m.RecordDirtyArtifacts(count)
	}
}
