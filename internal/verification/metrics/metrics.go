package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification pipeline. All methods
// are nil-safe so wiring metrics stays optional in tests.
type Metrics struct {
	// Provider stage latencies by stage name
	StageLatency *prometheus.HistogramVec

	// Pipeline outcomes by resulting status
	PipelineOutcome *prometheus.CounterVec

	// Overall submission latency including provider calls and persistence
	SubmitLatency prometheus.Histogram

	// Dual-write results by store and result
	DualWrite *prometheus.CounterVec

	// Fallback reads by source that ultimately served the projection
	FallbackRead *prometheus.CounterVec
}

// New creates a Metrics instance with all pipeline metrics registered.
func New() *Metrics {
	return &Metrics{
		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verigate_pipeline_stage_duration_seconds",
			Help:    "Duration of provider stage calls by stage",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}), // stage: "ocr", "face", "liveness", "background"

		PipelineOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_pipeline_outcomes_total",
			Help: "Total pipeline outcomes by resulting status",
		}, []string{"status"}),

		SubmitLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "verigate_pipeline_submit_duration_seconds",
			Help:    "Duration of full submission processing",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),

		DualWrite: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_dualwrite_total",
			Help: "Dual-write operations by store and result",
		}, []string{"store", "result"}), // store: "new", "legacy"; result: "ok", "error"

		FallbackRead: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_fallback_reads_total",
			Help: "Status reads by the source that served them",
		}, []string{"source"}), // source: "new", "legacy", "legacy_generic", "none"
	}
}

// ObserveStageLatency records the duration of one provider stage call.
func (m *Metrics) ObserveStageLatency(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// IncrementOutcome records a pipeline outcome.
func (m *Metrics) IncrementOutcome(status string) {
	if m != nil {
		m.PipelineOutcome.WithLabelValues(status).Inc()
	}
}

// ObserveSubmitLatency records the total submission duration.
func (m *Metrics) ObserveSubmitLatency(d time.Duration) {
	if m != nil {
		m.SubmitLatency.Observe(d.Seconds())
	}
}

// IncrementDualWrite records one side of a dual write.
func (m *Metrics) IncrementDualWrite(store, result string) {
	if m != nil {
		m.DualWrite.WithLabelValues(store, result).Inc()
	}
}

// IncrementFallbackRead records which source served a status read.
func (m *Metrics) IncrementFallbackRead(source string) {
	if m != nil {
		m.FallbackRead.WithLabelValues(source).Inc()
	}
}
