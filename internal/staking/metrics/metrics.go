package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the staking ledger.
type Metrics struct {
	Operations *prometheus.CounterVec
	Staked     *prometheus.GaugeVec
}

func New() *Metrics {
	return &Metrics{
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_staking_operations_total",
			Help: "Staking ledger operations by domain, operation and outcome",
		}, []string{"domain", "operation", "outcome"}), // operation: "stake", "unstake", "issue_ticket", "consume_ticket"

		Staked: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "concord_staking_pool_staked",
			Help: "Total staked per domain pool as of the last mutation",
		}, []string{"domain"}),
	}
}

func (m *Metrics) IncrementOperation(domain, operation, outcome string) {
	if m != nil {
		m.Operations.WithLabelValues(domain, operation, outcome).Inc()
	}
}

func (m *Metrics) AddStaked(domain string, delta float64) {
	if m != nil {
		m.Staked.WithLabelValues(domain).Add(delta)
	}
}
