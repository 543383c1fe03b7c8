// Package metrics describes the runtime's own operational metrics: how many
// scripts ran, how long they took, how many VMs are active.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "assay"

// Metrics holds the runtime's own collectors. The VM factory and the script
// check receive a *Metrics, but no code path increments, sets or observes
// these collectors, so they stay at their zero values.
type Metrics struct {
	Registry *prometheus.Registry

	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	ActiveExecutions  prometheus.Gauge
	ScriptSizeBytes   prometheus.Histogram
}

// New builds and registers a fresh Metrics instance on its own registry, so
// callers don't fight over prometheus.DefaultRegisterer across VMs.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		ExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Total number of script check executions.",
			},
			[]string{"status"},
		),
		ExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Script check execution duration in seconds.",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		ActiveExecutions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_executions",
				Help:      "Number of currently executing scripts.",
			},
		),
		ScriptSizeBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "script_size_bytes",
				Help:      "Size of executed script source in bytes.",
				Buckets:   []float64{100, 500, 1000, 5000, 10000, 50000, 100000},
			},
		),
	}

	reg.MustRegister(m.ExecutionsTotal, m.ExecutionDuration, m.ActiveExecutions, m.ScriptSizeBytes)
	return m
}
