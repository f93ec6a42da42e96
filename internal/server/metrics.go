package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the service's capture counters.
type Metrics struct {
	tasksTotal *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetrics registers the capture metrics on the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shooter_capture_tasks_total",
			Help: "Finished capture tasks by terminal status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shooter_capture_duration_seconds",
			Help:    "Wall time of finished capture tasks.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	reg.MustRegister(m.tasksTotal, m.duration)
	return m
}

// ObserveTask records one finished capture task.
func (m *Metrics) ObserveTask(status string, d time.Duration) {
	m.tasksTotal.WithLabelValues(status).Inc()
	m.duration.Observe(d.Seconds())
}
