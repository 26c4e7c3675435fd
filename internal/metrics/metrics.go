// Package metrics counts the commands of a local run and writes them as a
// node-exporter textfile.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dkoosis/sweep/internal/executor"
)

const namespace = "sweep"

// Status label values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Metrics holds one run's collectors in a private registry.
type Metrics struct {
	registry *prometheus.Registry

	commands   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	jobsFailed prometheus.Counter
	jobsDone   prometheus.Counter
	workers    prometheus.Gauge
}

// New registers the run collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		commands: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Benchmark commands finished, by execution mode and status.",
			},
			[]string{"mode", "status"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Wall-clock time of benchmark commands.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"mode"},
		),
		jobsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failed_total",
			Help:      "Jobs with at least one failed command.",
		}),
		jobsDone: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Jobs finished.",
		}),
		workers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Concurrent jobs of the run.",
		}),
	}
}

// Observe records an executor event.
func (m *Metrics) Observe(e executor.Event) {
	switch e.Type {
	case executor.EventCommandFinished:
		if e.Command == nil {
			return
		}
		mode := e.Command.Mode.String()
		status := StatusOK
		if e.Command.Err != nil {
			status = StatusFailed
		}
		m.commands.WithLabelValues(mode, status).Inc()
		m.duration.WithLabelValues(mode).Observe(e.Command.Duration.Seconds())
	case executor.EventJobFinished:
		m.jobsDone.Inc()
		if e.Err != nil {
			m.jobsFailed.Inc()
		}
	}
}

// SetWorkers records the worker count.
func (m *Metrics) SetWorkers(n int) { m.workers.Set(float64(n)) }

// Registry exposes the collectors, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes the metrics in the text exposition format. The file
// is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
