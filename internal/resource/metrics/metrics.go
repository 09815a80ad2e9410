package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the resource ledger.
type Metrics struct {
	Reservations *prometheus.CounterVec
	Available    *prometheus.GaugeVec
	Scarcity     *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Reservations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_resource_reservations_total",
			Help: "Stock reservation attempts by domain, resource type and outcome",
		}, []string{"domain", "resource_type", "outcome"}), // outcome: "reserved", "insufficient", "error"

		Available: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "concord_resource_available",
			Help: "Last observed available stock by domain and resource type",
		}, []string{"domain", "resource_type"}),

		Scarcity: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_resource_scarcity_flags_total",
			Help: "Artificial scarcity claims detected by domain",
		}, []string{"domain"}),
	}
}

func (m *Metrics) IncrementReservation(domain, resourceType, outcome string) {
	if m != nil {
		m.Reservations.WithLabelValues(domain, resourceType, outcome).Inc()
	}
}

func (m *Metrics) SetAvailable(domain, resourceType string, v float64) {
	if m != nil {
		m.Available.WithLabelValues(domain, resourceType).Set(v)
	}
}

func (m *Metrics) IncrementScarcity(domain string) {
	if m != nil {
		m.Scarcity.WithLabelValues(domain).Inc()
	}
}
