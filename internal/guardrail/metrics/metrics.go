package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for guardrail evaluation.
type Metrics struct {
	// Evaluation latency by guardrail name
	EvaluationLatency *prometheus.HistogramVec

	// Outcomes by guardrail name and verdict
	Outcomes *prometheus.CounterVec

	// Oracle and telemetry failures by guardrail name
	Failures *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		EvaluationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "concord_guardrail_evaluation_duration_seconds",
			Help:    "Duration of a single guardrail evaluation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"guardrail"}),

		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_guardrail_outcomes_total",
			Help: "Guardrail verdicts by guardrail and outcome",
		}, []string{"guardrail", "outcome"}), // outcome: "pass", "scale", "veto"

		Failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_guardrail_failures_total",
			Help: "Guardrail evaluations that failed to produce a verdict",
		}, []string{"guardrail"}),
	}
}

func (m *Metrics) ObserveLatency(guardrail string, d time.Duration) {
	if m != nil {
		m.EvaluationLatency.WithLabelValues(guardrail).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementOutcome(guardrail, outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(guardrail, outcome).Inc()
	}
}

func (m *Metrics) IncrementFailure(guardrail string) {
	if m != nil {
		m.Failures.WithLabelValues(guardrail).Inc()
	}
}
