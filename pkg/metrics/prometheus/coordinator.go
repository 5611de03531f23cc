package prometheus

import (
	"time"

	"github.com/marmos91/statekeep/pkg/coordinator"
	"github.com/marmos91/statekeep/pkg/gate"
	"github.com/marmos91/statekeep/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterCoordinatorMetricsConstructor(NewCoordinatorMetrics)
}

// gateStates enumerates every gate state so RecordGateState can keep the
// one-hot gauge consistent.
var gateStates = []string{
	gate.StateIdle.String(),
	gate.StateDraining.String(),
	gate.StateExclusiveActive.String(),
}

// coordinatorMetrics is the Prometheus implementation of
// coordinator.CoordinatorMetrics.
type coordinatorMetrics struct {
	saveTotal          *prometheus.CounterVec
	saveDuration       *prometheus.HistogramVec
	saveBytes          *prometheus.HistogramVec
	loadTotal          *prometheus.CounterVec
	loadDuration       *prometheus.HistogramVec
	exclusiveRuns      *prometheus.CounterVec
	exclusiveDuration  *prometheus.HistogramVec
	quiescenceTimeouts *prometheus.CounterVec
	gateState          *prometheus.GaugeVec
	queuedFlushes      prometheus.Gauge
}

// NewCoordinatorMetrics creates a new Prometheus-backed CoordinatorMetrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewCoordinatorMetrics() coordinator.CoordinatorMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &coordinatorMetrics{
		saveTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "statekeep_save_total",
				Help: "Total number of Save calls by learning unit",
			},
			[]string{"unit"},
		),
		saveDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "statekeep_save_duration_milliseconds",
				Help: "Duration of Save calls in milliseconds",
				Buckets: []float64{
					0.1,  // 100us - cache put only
					0.5,  // 500us
					1,    // 1ms
					5,    // 5ms
					10,   // 10ms
					50,   // 50ms - synchronous flush
					100,  // 100ms
					500,  // 500ms
					1000, // 1s
				},
			},
			[]string{"unit"},
		),
		saveBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "statekeep_save_bytes",
				Help: "Distribution of payload bytes per Save call",
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
		loadTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "statekeep_load_total",
				Help: "Total number of Load calls by learning unit",
			},
			[]string{"unit"},
		),
		loadDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "statekeep_load_duration_milliseconds",
				Help: "Duration of Load calls in milliseconds",
				Buckets: []float64{
					0.1,  // 100us - memory hits
					0.5,  // 500us
					1,    // 1ms
					5,    // 5ms
					10,   // 10ms - disk reads
					50,   // 50ms
					100,  // 100ms
					500,  // 500ms
					1000, // 1s
				},
			},
			[]string{"unit"},
		),
		exclusiveRuns: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "statekeep_exclusive_runs_total",
				Help: "Total number of exclusive runs by kind",
			},
			[]string{"kind"}, // "startup", "shutdown", "training_stop_save", "game_reset_save", "ui_read", "manual_flush"
		),
		exclusiveDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "statekeep_exclusive_run_duration_milliseconds",
				Help: "Duration of exclusive runs in milliseconds, drain wait included",
				Buckets: []float64{
					1,     // 1ms - idle gate
					10,    // 10ms
					50,    // 50ms
					100,   // 100ms
					500,   // 500ms
					1000,  // 1s - drain under load
					5000,  // 5s
					10000, // 10s - full shutdown flush
					30000, // 30s
				},
			},
			[]string{"kind"},
		),
		quiescenceTimeouts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "statekeep_quiescence_timeouts_total",
				Help: "Total number of exclusive runs whose quiescence wait timed out",
			},
			[]string{"kind"},
		),
		gateState: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "statekeep_gate_state",
				Help: "Current gate state as a one-hot gauge",
			},
			[]string{"state"},
		),
		queuedFlushes: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "statekeep_queued_flushes",
				Help: "Current number of artifacts with a pending debounced flush",
			},
		),
	}
}

func (m *coordinatorMetrics) ObserveSave(unit string, bytes int64, duration time.Duration) {
	if m == nil {
		return
	}

	m.saveTotal.WithLabelValues(unit).Inc()
	m.saveDuration.WithLabelValues(unit).Observe(duration.Seconds() * 1000)

	if bytes > 0 {
		m.saveBytes.WithLabelValues(unit).Observe(float64(bytes))
	}
}

func (m *coordinatorMetrics) ObserveLoad(unit string, bytes int64, duration time.Duration) {
	if m == nil {
		return
	}

	m.loadTotal.WithLabelValues(unit).Inc()
	m.loadDuration.WithLabelValues(unit).Observe(duration.Seconds() * 1000)
}

func (m *coordinatorMetrics) ObserveExclusiveRun(kind string, duration time.Duration) {
	if m == nil {
		return
	}

	m.exclusiveRuns.WithLabelValues(kind).Inc()
	m.exclusiveDuration.WithLabelValues(kind).Observe(duration.Seconds() * 1000)
}

func (m *coordinatorMetrics) RecordQuiescenceTimeout(kind string) {
	if m == nil {
		return
	}

	m.quiescenceTimeouts.WithLabelValues(kind).Inc()
}

func (m *coordinatorMetrics) RecordGateState(state string) {
	if m == nil {
		return
	}

	for _, s := range gateStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		m.gateState.WithLabelValues(s).Set(value)
	}
}

func (m *coordinatorMetrics) RecordQueuedFlushes(count int) {
	if m == nil {
		return
	}

	m.queuedFlushes.Set(float64(count))
}
