package prometheus

import (
	"time"

	"github.com/marmos91/statekeep/pkg/metrics"
	"github.com/marmos91/statekeep/pkg/mirror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterMirrorMetricsConstructor(NewMirrorMetrics)
}

// mirrorMetrics is the Prometheus implementation of mirror.MirrorMetrics.
type mirrorMetrics struct {
	uploadsTotal   *prometheus.CounterVec
	uploadErrors   *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
	uploadBytes    *prometheus.HistogramVec
	queueDepth     prometheus.Gauge
}

// NewMirrorMetrics creates a new Prometheus-backed MirrorMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewMirrorMetrics() mirror.MirrorMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &mirrorMetrics{
		uploadsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "statekeep_mirror_uploads_total",
				Help: "Total number of completed mirror uploads by learning unit",
			},
			[]string{"unit"},
		),
		uploadErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "statekeep_mirror_upload_errors_total",
				Help: "Total number of failed mirror uploads by learning unit",
			},
			[]string{"unit"},
		),
		uploadDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "statekeep_mirror_upload_duration_milliseconds",
				Help: "Duration of mirror uploads in milliseconds",
				Buckets: []float64{
					10,    // 10ms - local endpoints
					50,    // 50ms
					100,   // 100ms
					500,   // 500ms
					1000,  // 1s - small objects over WAN
					5000,  // 5s
					10000, // 10s - large tables
					30000, // 30s
				},
			},
			[]string{"unit"},
		),
		uploadBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "statekeep_mirror_upload_bytes",
				Help: "Distribution of envelope bytes uploaded per mirror write",
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
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "statekeep_mirror_queue_depth",
				Help: "Current number of artifacts queued for mirror upload",
			},
		),
	}
}

func (m *mirrorMetrics) ObserveUpload(unit string, bytes int64, duration time.Duration) {
	if m == nil {
		return
	}

	m.uploadsTotal.WithLabelValues(unit).Inc()
	m.uploadDuration.WithLabelValues(unit).Observe(duration.Seconds() * 1000)

	if bytes > 0 {
		m.uploadBytes.WithLabelValues(unit).Observe(float64(bytes))
	}
}

func (m *mirrorMetrics) RecordUploadError(unit string) {
	if m == nil {
		return
	}

	m.uploadErrors.WithLabelValues(unit).Inc()
}

func (m *mirrorMetrics) RecordQueueDepth(depth int) {
	if m == nil {
		return
	}

	m.queueDepth.Set(float64(depth))
}
