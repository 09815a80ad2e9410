package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the coordinator.
type Metrics struct {
	// Full review latency, guardrails plus peer routing
	ReviewLatency prometheus.Histogram

	// Review results by origin domain and resulting status
	Reviews *prometheus.CounterVec

	// Automatic peer votes by signer and vote
	AutoAttestations *prometheus.CounterVec

	// Escalations raised by the global sweep by kind
	Escalations *prometheus.CounterVec

	// Change applications by kind and result
	ChangesApplied *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		ReviewLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "concord_coordinator_review_duration_seconds",
			Help:    "Duration of proposal review including guardrails and peer attestation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		Reviews: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_coordinator_reviews_total",
			Help: "Proposal reviews by origin domain and resulting status",
		}, []string{"domain", "status"}),

		AutoAttestations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_coordinator_auto_attestations_total",
			Help: "Peer votes cast automatically by signer domain and vote",
		}, []string{"signer", "vote"}),

		Escalations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_coordinator_escalations_total",
			Help: "Global guardrail escalations by kind",
		}, []string{"kind"}), // kind: "equity", "ecology"

		ChangesApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_coordinator_changes_total",
			Help: "Proposal changes applied or compensated by kind and result",
		}, []string{"kind", "result"}),
	}
}

func (m *Metrics) ObserveReviewLatency(d time.Duration) {
	if m != nil {
		m.ReviewLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementReview(domain, status string) {
	if m != nil {
		m.Reviews.WithLabelValues(domain, status).Inc()
	}
}

func (m *Metrics) IncrementAutoAttestation(signer, vote string) {
	if m != nil {
		m.AutoAttestations.WithLabelValues(signer, vote).Inc()
	}
}

func (m *Metrics) IncrementEscalation(kind string) {
	if m != nil {
		m.Escalations.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncrementChange(kind, result string) {
	if m != nil {
		m.ChangesApplied.WithLabelValues(kind, result).Inc()
	}
}
