package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WatcherMetrics holds Prometheus metrics for the polling watchers.
type WatcherMetrics struct {
	Cycles        *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
}

// NewWatcherMetrics creates and registers watcher metrics on the given registry.
func NewWatcherMetrics(reg prometheus.Registerer) *WatcherMetrics {
	m := &WatcherMetrics{
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "cycles_total",
			Help:      "Total number of watcher cycles, by service and outcome.",
		}, []string{"service", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of upstream fetches in seconds, by service.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"service"}),
	}

	reg.MustRegister(m.Cycles, m.FetchDuration)
	return m
}

// ObserveCycle records one finished cycle.
func (m *WatcherMetrics) ObserveCycle(service, outcome string, fetchDuration time.Duration) {
	m.Cycles.WithLabelValues(service, outcome).Inc()
	if fetchDuration > 0 {
		m.FetchDuration.WithLabelValues(service).Observe(fetchDuration.Seconds())
	}
}
