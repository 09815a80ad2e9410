package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the proposal engine.
type Metrics struct {
	Created      *prometheus.CounterVec
	Transitions  *prometheus.CounterVec
	Attestations *prometheus.CounterVec
	EnactRefused *prometheus.CounterVec
	Retries      prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_proposals_created_total",
			Help: "Proposals created by origin domain",
		}, []string{"domain"}),

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_proposal_transitions_total",
			Help: "Proposal status transitions by origin domain and target status",
		}, []string{"domain", "status"}),

		Attestations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_attestations_total",
			Help: "Attestations recorded by signer domain and vote",
		}, []string{"signer", "vote"}),

		EnactRefused: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_enact_refused_total",
			Help: "Enact calls refused by reason code",
		}, []string{"reason"}),

		Retries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concord_proposal_write_retries_total",
			Help: "Optimistic write conflicts retried",
		}),
	}
}

func (m *Metrics) IncrementCreated(domain string) {
	if m != nil {
		m.Created.WithLabelValues(domain).Inc()
	}
}

func (m *Metrics) IncrementTransition(domain, status string) {
	if m != nil {
		m.Transitions.WithLabelValues(domain, status).Inc()
	}
}

func (m *Metrics) IncrementAttestation(signer, vote string) {
	if m != nil {
		m.Attestations.WithLabelValues(signer, vote).Inc()
	}
}

func (m *Metrics) IncrementEnactRefused(reason string) {
	if m != nil {
		m.EnactRefused.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncrementRetry() {
	if m != nil {
		m.Retries.Inc()
	}
}
