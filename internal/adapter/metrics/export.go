package metrics

import "github.com/prometheus/client_golang/prometheus"

// ExportMetrics holds Prometheus metrics for the optional change-event exporter.
type ExportMetrics struct {
	Exported *prometheus.CounterVec
}

// NewExportMetrics creates and registers exporter metrics on the given registry.
func NewExportMetrics(reg prometheus.Registerer) *ExportMetrics {
	m := &ExportMetrics{
		Exported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "events_total",
			Help:      "Total number of change events handed to the exporter, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.Exported)
	return m
}
