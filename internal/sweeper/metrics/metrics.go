package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for background sweeps.
type Metrics struct {
	Runs     *prometheus.CounterVec
	Affected *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		Runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_sweeper_runs_total",
			Help: "Sweep runs by job and result",
		}, []string{"job", "result"}), // result: "ok", "error"

		Affected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_sweeper_affected_total",
			Help: "Records changed by sweeps",
		}, []string{"job"}),

		Duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "concord_sweeper_duration_seconds",
			Help:    "Time spent in one sweep run",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
}

func (m *Metrics) ObserveRun(job string, d time.Duration, affected int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Runs.WithLabelValues(job, result).Inc()
	m.Duration.WithLabelValues(job).Observe(d.Seconds())
	if affected > 0 {
		m.Affected.WithLabelValues(job).Add(float64(affected))
	}
}
