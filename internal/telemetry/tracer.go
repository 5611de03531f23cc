package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for coordinator operations.
// These follow OpenTelemetry semantic conventions where applicable.
// Artifact-level keys use "artifact." prefix, exclusive runs use "run.".
const (
	// ========================================================================
	// Artifact attributes
	// ========================================================================
	AttrUnit          = "artifact.unit"  // Learning unit id
	AttrKey           = "artifact.key"   // Persisted key within the unit
	AttrArtifactBytes = "artifact.bytes" // Payload size
	AttrCodec         = "artifact.codec" // Codec name (raw, zstd)
	AttrDirty         = "artifact.dirty" // Unflushed state indicator
	AttrSyncSave      = "artifact.sync"  // Synchronous save path

	// ========================================================================
	// Exclusive run attributes
	// ========================================================================
	AttrRunKind            = "run.kind"                 // startup, shutdown, training_stop, game_reset, ui_read, flush
	AttrRunID              = "run.id"                   // Report identifier
	AttrQuiescenceTimedOut = "run.quiescence_timed_out" // Drain wait expired
	AttrBusyUnits          = "run.busy_units"           // Units still busy at drain expiry

	// ========================================================================
	// Cache attributes
	// ========================================================================
	AttrCacheHit    = "cache.hit"
	AttrCacheSource = "cache.source" // memory, disk
	AttrCacheState  = "cache.state"  // clean, dirty

	// ========================================================================
	// Catalog and storage attributes
	// ========================================================================
	AttrCatalogBackend = "catalog.backend" // badger, postgres
	AttrBucket         = "storage.bucket"
	AttrStorageKey     = "storage.key"
	AttrRegion         = "storage.region"

	// ========================================================================
	// Client attributes (ops API)
	// ========================================================================
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"
)

// Span names for operations.
// Format: <component>.<operation>
const (
	// Coordinator entry points
	SpanSave     = "coordinator.save"
	SpanLoad     = "coordinator.load"
	SpanFlushAll = "coordinator.flush_all"

	// Exclusive runs
	SpanRunStartup      = "run.startup"
	SpanRunShutdown     = "run.shutdown"
	SpanRunTrainingStop = "run.training_stop"
	SpanRunGameReset    = "run.game_reset"
	SpanRunUIRead       = "run.ui_read"

	// Internal storage operations
	SpanCachePut   = "cache.put"
	SpanCacheGet   = "cache.get"
	SpanCacheFlush = "cache.flush"
	SpanCacheEvict = "cache.evict"

	// Catalog operations
	SpanCatalogPut  = "catalog.put"
	SpanCatalogGet  = "catalog.get"
	SpanCatalogList = "catalog.list"

	// Mirror and reporting
	SpanMirrorUpload = "mirror.upload"
	SpanReportSave   = "report.save"
)

// Unit returns an attribute for a learning unit id
func Unit(unit string) attribute.KeyValue {
	return attribute.String(AttrUnit, unit)
}

// Key returns an attribute for a persisted key
func Key(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// ArtifactBytes returns an attribute for payload size
func ArtifactBytes(n int64) attribute.KeyValue {
	return attribute.Int64(AttrArtifactBytes, n)
}

// Codec returns an attribute for the artifact codec name
func Codec(name string) attribute.KeyValue {
	return attribute.String(AttrCodec, name)
}

// Dirty returns an attribute for the unflushed-state indicator
func Dirty(dirty bool) attribute.KeyValue {
	return attribute.Bool(AttrDirty, dirty)
}

// SyncSave returns an attribute marking the synchronous save path
func SyncSave(sync bool) attribute.KeyValue {
	return attribute.Bool(AttrSyncSave, sync)
}

// RunKind returns an attribute for the exclusive run kind
func RunKind(kind string) attribute.KeyValue {
	return attribute.String(AttrRunKind, kind)
}

// RunID returns an attribute for the run report identifier
func RunID(id string) attribute.KeyValue {
	return attribute.String(AttrRunID, id)
}

// QuiescenceTimedOut returns an attribute for drain-wait expiry
func QuiescenceTimedOut(timedOut bool) attribute.KeyValue {
	return attribute.Bool(AttrQuiescenceTimedOut, timedOut)
}

// BusyUnits returns an attribute for the number of units busy at drain expiry
func BusyUnits(count int) attribute.KeyValue {
	return attribute.Int(AttrBusyUnits, count)
}

// CacheHit returns an attribute for cache hit indicator
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// CacheSource returns an attribute for cache source
func CacheSource(source string) attribute.KeyValue {
	return attribute.String(AttrCacheSource, source)
}

// CacheState returns an attribute for cache state
func CacheState(state string) attribute.KeyValue {
	return attribute.String(AttrCacheState, state)
}

// CatalogBackend returns an attribute for the catalog backend name
func CatalogBackend(backend string) attribute.KeyValue {
	return attribute.String(AttrCatalogBackend, backend)
}

// Bucket returns an attribute for S3 bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for S3 object key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrStorageKey, key)
}

// Region returns an attribute for cloud region
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr returns an attribute for full client address
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// StartArtifactSpan starts a span for an operation on one artifact.
// This is a convenience function that sets the unit and key attributes.
func StartArtifactSpan(ctx context.Context, name, unit, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Unit(unit),
		Key(key),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartRunSpan starts a span for an exclusive run.
func StartRunSpan(ctx context.Context, kind string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		RunKind(kind),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "run."+kind, trace.WithAttributes(allAttrs...))
}

// StartCacheSpan starts a span for a cache operation.
func StartCacheSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "cache."+operation, trace.WithAttributes(attrs...))
}

// StartCatalogSpan starts a span for a catalog store operation.
func StartCatalogSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "catalog."+operation, trace.WithAttributes(attrs...))
}

// StartMirrorSpan starts a span for a mirror upload.
func StartMirrorSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "mirror."+operation, trace.WithAttributes(attrs...))
}
