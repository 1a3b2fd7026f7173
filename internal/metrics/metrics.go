// Package metrics exposes Prometheus counters for the record store, the
// autosave cache, the phase tracker and backups.
//
// Every method is safe to call on a nil *Metrics, so components can run
// without instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "obras"

// Metrics owns a private registry and the counters registered on it.
type Metrics struct {
	Registry      *prometheus.Registry
	Resolutions   *prometheus.CounterVec
	Persists      *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	Flushes       *prometheus.CounterVec
	PhaseEvents   *prometheus.CounterVec
	Backups       *prometheus.CounterVec
}

// New builds and registers the counters.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Identifier resolutions by match kind (none when nothing matched).",
		}, []string{"kind"}),
		Persists: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_writes_total",
			Help:      "Full-document writes by result.",
		}, []string{"result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autosave_notifications_total",
			Help:      "Field change notifications by outcome.",
		}, []string{"outcome"}),
		Flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autosave_flushes_total",
			Help:      "Autosave flushes by trigger and result.",
		}, []string{"trigger", "result"}),
		PhaseEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_events_total",
			Help:      "Phase lifecycle writes by kind.",
		}, []string{"kind"}),
		Backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_total",
			Help:      "Document snapshots by sink and result.",
		}, []string{"sink", "result"}),
	}
	m.Registry.MustRegister(
		m.Resolutions, m.Persists, m.Notifications, m.Flushes, m.PhaseEvents, m.Backups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Resolved counts one resolution.
func (m *Metrics) Resolved(kind string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(kind).Inc()
}

// Persisted counts one document write.
func (m *Metrics) Persisted(err error) {
	if m == nil {
		return
	}
	m.Persists.WithLabelValues(result(err)).Inc()
}

// Notified counts one change notification.
func (m *Metrics) Notified(outcome string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(outcome).Inc()
}

// Flushed counts one flush attempt.
func (m *Metrics) Flushed(trigger, res string) {
	if m == nil {
		return
	}
	m.Flushes.WithLabelValues(trigger, res).Inc()
}

// PhaseEvent counts one phase write.
func (m *Metrics) PhaseEvent(kind string) {
	if m == nil {
		return
	}
	m.PhaseEvents.WithLabelValues(kind).Inc()
}

// BackedUp counts one snapshot upload.
func (m *Metrics) BackedUp(sink string, err error) {
	if m == nil {
		return
	}
	m.Backups.WithLabelValues(sink, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
