// Package metrics exposes Prometheus metrics for health check runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values for the assignments counter.
const (
	OutcomeFreed      = "freed"
	OutcomeReassigned = "reassigned"
	OutcomeEscalated  = "escalated"
	OutcomeWarned     = "warned"
	OutcomeOverridden = "overridden"
	OutcomeSkipped    = "skipped"
)

// Manager owns the health check metrics and the registry they live in.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	assignments *prometheus.CounterVec
	checked     prometheus.Gauge
	lastRun     prometheus.Gauge
	runs        *prometheus.CounterVec
}

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace sets the metric namespace. Empty values are ignored.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithRegistry registers the metrics on registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "sentinel",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)
	m.assignments = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "health",
		Name:      "assignments_total",
		Help:      "Assignments handled by health checks, by outcome",
	}, []string{"outcome"})
	m.checked = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "health",
		Name:      "contributors_checked",
		Help:      "Contributors with auto-assignments checked in the last run",
	})
	m.lastRun = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "health",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last completed health check",
	})
	m.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "health",
		Name:      "runs_total",
		Help:      "Health check runs, by result",
	}, []string{"result"})

	// Pre-create every outcome so the series exist before the first run.
	for _, outcome := range []string{OutcomeFreed, OutcomeReassigned, OutcomeEscalated, OutcomeWarned, OutcomeOverridden, OutcomeSkipped} {
		m.assignments.WithLabelValues(outcome)
	}
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHealthRun records one completed run.
func (m *Manager) ObserveHealthRun(report *models.HealthReport, at time.Time) {
	m.assignments.WithLabelValues(OutcomeFreed).Add(float64(report.Freed))
	m.assignments.WithLabelValues(OutcomeReassigned).Add(float64(report.Reassigned))
	m.assignments.WithLabelValues(OutcomeEscalated).Add(float64(report.Escalated))
	m.assignments.WithLabelValues(OutcomeWarned).Add(float64(report.Warned))
	m.assignments.WithLabelValues(OutcomeOverridden).Add(float64(report.Overridden))
	m.assignments.WithLabelValues(OutcomeSkipped).Add(float64(report.Skipped))
	m.checked.Set(float64(report.TotalChecked))
	m.lastRun.Set(float64(at.Unix()))
	m.runs.WithLabelValues("success").Inc()
}

// ObserveFailedRun counts a run that ended in an error.
func (m *Manager) ObserveFailedRun() {
	m.runs.WithLabelValues("error").Inc()
}

// WriteTextfile writes the current values in the node exporter textfile format.
func (m *Manager) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Handler serves the registry over HTTP.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
