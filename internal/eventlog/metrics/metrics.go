package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the event log.
type Metrics struct {
	Appended        *prometheus.CounterVec
	SubscriberDrops prometheus.Counter
	Published       *prometheus.CounterVec
}

// New creates and registers event log metrics.
func New() *Metrics {
	return &Metrics{
		Appended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_events_appended_total",
			Help: "Contract events appended to the log by domain and type",
		}, []string{"domain", "type"}),

		SubscriberDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "concord_event_subscriber_drops_total",
			Help: "Events dropped because a live subscriber was not keeping up",
		}),

		Published: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_events_published_total",
			Help: "Events forwarded to the external broker by outcome",
		}, []string{"outcome"}), // outcome: "ok", "error", "dropped", "circuit_open"
	}
}

func (m *Metrics) IncrementAppended(domain, eventType string) {
	if m != nil {
		m.Appended.WithLabelValues(domain, eventType).Inc()
	}
}

func (m *Metrics) IncrementSubscriberDrops() {
	if m != nil {
		m.SubscriberDrops.Inc()
	}
}

func (m *Metrics) IncrementPublished(outcome string) {
	if m != nil {
		m.Published.WithLabelValues(outcome).Inc()
	}
}
