package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Command outcomes used as the "outcome" label of kvwait_commands_total.
const (
	OutcomeOK       = "ok"
	OutcomeNegative = "negative"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	sessionsActive   prometheus.Gauge
	admissionWaiting prometheus.Gauge
	sessionsAdmitted prometheus.Counter

	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	protocolErrors  prometheus.Counter

	watchersActive prometheus.Gauge
	watchWakeups   prometheus.Counter
}

// NewRegistry creates a private Prometheus registry with every kvwait series
// and the Go runtime collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		registry: reg,
		sessionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "kvwait_sessions_active",
			Help: "Number of connections currently holding an admission slot",
		}),
		admissionWaiting: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "kvwait_admission_waiting",
			Help: "Number of connections blocked waiting for an admission slot",
		}),
		sessionsAdmitted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "kvwait_sessions_admitted_total",
			Help: "Total number of connections admitted",
		}),
		commandsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kvwait_commands_total",
				Help: "Total number of commands handled by command and outcome",
			},
			[]string{"command", "outcome"},
		),
		commandDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "kvwait_command_duration_seconds",
				Help: "Command handling latency, including time blocked in GETWHEN",
				Buckets: []float64{
					0.0001, // 100us
					0.001,  // 1ms
					0.01,   // 10ms
					0.1,    // 100ms
					1,      // 1s
					10,     // 10s
					60,     // 1m
				},
			},
			[]string{"command"},
		),
		protocolErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "kvwait_protocol_errors_total",
			Help: "Total number of connections closed for malformed or oversized frames",
		}),
		watchersActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "kvwait_watchers_active",
			Help: "Number of GETWHEN requests currently blocked on their condition",
		}),
		watchWakeups: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "kvwait_watch_wakeups_total",
			Help: "Total number of watcher wakeups issued by writes",
		}),
	}
}

// MustRegister adds extra collectors to the registry.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	if r == nil {
		return
	}
	r.registry.MustRegister(cs...)
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{})
}

// SetSessionsActive records the number of held admission slots.
func (r *Registry) SetSessionsActive(n int) {
	if r == nil {
		return
	}
	r.sessionsActive.Set(float64(n))
}

// SetAdmissionWaiting records the number of connections queued for a slot.
func (r *Registry) SetAdmissionWaiting(n int) {
	if r == nil {
		return
	}
	r.admissionWaiting.Set(float64(n))
}

// SessionAdmitted counts one admission.
func (r *Registry) SessionAdmitted() {
	if r == nil {
		return
	}
	r.sessionsAdmitted.Inc()
}

// RecordCommand counts one handled command and observes its latency.
func (r *Registry) RecordCommand(command, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.commandsTotal.WithLabelValues(command, outcome).Inc()
	r.commandDuration.WithLabelValues(command).Observe(d.Seconds())
}

// ProtocolError counts one connection closed for a bad frame.
func (r *Registry) ProtocolError() {
	if r == nil {
		return
	}
	r.protocolErrors.Inc()
}

// WatchStarted counts a GETWHEN that began blocking.
func (r *Registry) WatchStarted() {
	if r == nil {
		return
	}
	r.watchersActive.Inc()
}

// WatchFinished counts a blocked GETWHEN that returned.
func (r *Registry) WatchFinished() {
	if r == nil {
		return
	}
	r.watchersActive.Dec()
}

// WakeupsSent counts watchers woken by one write.
func (r *Registry) WakeupsSent(n int) {
	if r == nil {
		return
	}
	r.watchWakeups.Add(float64(n))
}
