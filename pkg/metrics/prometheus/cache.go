package prometheus

import (
	"time"

	"github.com/marmos91/statekeep/pkg/cache"
	"github.com/marmos91/statekeep/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterCacheMetricsConstructor(NewCacheMetrics)
}

// cacheMetrics is the Prometheus implementation of cache.CacheMetrics.
type cacheMetrics struct {
	flushTotal      *prometheus.CounterVec
	flushErrors     *prometheus.CounterVec
	flushDuration   *prometheus.HistogramVec
	flushBytes      *prometheus.HistogramVec
	readTotal       *prometheus.CounterVec
	readDuration    *prometheus.HistogramVec
	readBytes       *prometheus.HistogramVec
	quarantineTotal *prometheus.CounterVec
	dedupSkips      *prometheus.CounterVec
	dirtyArtifacts  prometheus.Gauge
}

// NewCacheMetrics creates a new Prometheus-backed CacheMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewCacheMetrics() cache.CacheMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &cacheMetrics{
		flushTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "statekeep_artifact_flush_total",
				Help: "Total number of durable artifact writes by learning unit",
			},
			[]string{"unit"},
		),
		flushErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "statekeep_artifact_flush_errors_total",
				Help: "Total number of failed artifact flushes by learning unit",
			},
			[]string{"unit"},
		),
		flushDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "statekeep_artifact_flush_duration_milliseconds",
				Help: "Duration of durable artifact writes in milliseconds",
				Buckets: []float64{
					1,    // 1ms - small artifacts
					5,    // 5ms
					10,   // 10ms
					50,   // 50ms
					100,  // 100ms
					500,  // 500ms - large tables
					1000, // 1s
					5000, // 5s - slow disks
				},
			},
			[]string{"unit"},
		),
		flushBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "statekeep_artifact_flush_bytes",
				Help: "Distribution of envelope bytes written per flush",
				Buckets: []float64{
					1024,     // 1KB - hyperparameters
					16384,    // 16KB
					65536,    // 64KB - populations
					262144,   // 256KB
					1048576,  // 1MB - typical value tables
					4194304,  // 4MB
					16777216, // 16MB
				},
			},
			[]string{"unit"},
		),
		readTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "statekeep_artifact_read_total",
				Help: "Total number of artifact reads by learning unit and status",
			},
			[]string{"unit", "status"}, // status: "hit", "miss"
		),
		readDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "statekeep_artifact_read_duration_milliseconds",
				Help: "Duration of artifact reads in milliseconds",
				Buckets: []float64{
					0.1,  // 100us - memory hits
					0.5,  // 500us
					1,    // 1ms
					5,    // 5ms
					10,   // 10ms - disk misses
					50,   // 50ms
					100,  // 100ms
					500,  // 500ms
					1000, // 1s
				},
			},
			[]string{"unit"},
		),
		readBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "statekeep_artifact_read_bytes",
				Help: "Distribution of payload bytes returned per read",
				Buckets: []float64{
					1024,     // 1KB
					16384,    // 16KB
					65536,    // 64KB
					262144,   // 256KB
					1048576,  // 1MB
					4194304,  // 4MB
					16777216, // 16MB
				},
			},
			[]string{"unit"},
		),
		quarantineTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "statekeep_artifact_quarantine_total",
				Help: "Total number of corrupt artifacts set aside by learning unit",
			},
			[]string{"unit"},
		),
		dedupSkips: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "statekeep_artifact_dedup_skips_total",
				Help: "Total number of saves skipped because the payload matched the durable bytes",
			},
			[]string{"unit"},
		),
		dirtyArtifacts: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "statekeep_artifact_dirty",
				Help: "Current number of artifacts with unflushed changes",
			},
		),
	}
}

func (m *cacheMetrics) ObserveFlush(unit string, bytes int64, duration time.Duration) {
	if m == nil {
		return
	}

	m.flushTotal.WithLabelValues(unit).Inc()
	m.flushDuration.WithLabelValues(unit).Observe(duration.Seconds() * 1000)

	if bytes > 0 {
		m.flushBytes.WithLabelValues(unit).Observe(float64(bytes))
	}
}

func (m *cacheMetrics) RecordFlushError(unit string) {
	if m == nil {
		return
	}

	m.flushErrors.WithLabelValues(unit).Inc()
}

func (m *cacheMetrics) ObserveRead(unit string, bytes int64, duration time.Duration, hit bool) {
	if m == nil {
		return
	}

	status := "miss"
	if hit {
		status = "hit"
	}

	m.readTotal.WithLabelValues(unit, status).Inc()
	m.readDuration.WithLabelValues(unit).Observe(duration.Seconds() * 1000)

	if bytes > 0 {
		m.readBytes.WithLabelValues(unit).Observe(float64(bytes))
	}
}

func (m *cacheMetrics) RecordQuarantine(unit string) {
	if m == nil {
		return
	}

	m.quarantineTotal.WithLabelValues(unit).Inc()
}

func (m *cacheMetrics) RecordDedupSkip(unit string) {
	if m == nil {
		return
	}

	m.dedupSkips.WithLabelValues(unit).Inc()
}

func (m *cacheMetrics) RecordDirtyArtifacts(count int) {
	if m == nil {
		return
	}

	m.dirtyArtifacts.Set(float64(count))
}
