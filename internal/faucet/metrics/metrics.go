package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the faucet manager.
type Metrics struct {
	Opened  *prometheus.CounterVec
	Refused *prometheus.CounterVec
	Closed  *prometheus.CounterVec
	Drawn   *prometheus.CounterVec
	Active  prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Opened: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_faucets_opened_total",
			Help: "Faucets opened by source domain and resource type",
		}, []string{"domain", "resource_type"}),

		Refused: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_faucets_refused_total",
			Help: "Faucet open requests refused by reason",
		}, []string{"domain", "reason"}), // reason: "validation", "resource_unavailable", "artificial_scarcity", "error"

		Closed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_faucets_closed_total",
			Help: "Faucets closed by reason",
		}, []string{"reason"}),

		Drawn: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_faucet_drawn_units_total",
			Help: "Units drawn through faucets by source domain and resource type",
		}, []string{"domain", "resource_type"}),

		Active: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "concord_faucets_active",
			Help: "Faucets currently open (active or paused)",
		}),
	}
}

func (m *Metrics) IncrementOpened(domain, resourceType string) {
	if m != nil {
		m.Opened.WithLabelValues(domain, resourceType).Inc()
		m.Active.Inc()
	}
}

func (m *Metrics) IncrementRefused(domain, reason string) {
	if m != nil {
		m.Refused.WithLabelValues(domain, reason).Inc()
	}
}

func (m *Metrics) IncrementClosed(reason string) {
	if m != nil {
		m.Closed.WithLabelValues(reason).Inc()
		m.Active.Dec()
	}
}

func (m *Metrics) AddDrawn(domain, resourceType string, qty float64) {
	if m != nil {
		m.Drawn.WithLabelValues(domain, resourceType).Add(qty)
	}
}
