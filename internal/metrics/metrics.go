// Package metrics exposes Prometheus instrumentation for the recognizer front-end.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry
	start    time.Time

	uptime            prometheus.GaugeFunc
	lifecycleState    *prometheus.GaugeVec
	processStarts     *prometheus.CounterVec
	connectAttempts   *prometheus.CounterVec
	connectionsLost   prometheus.Counter
	messagesReceived  *prometheus.CounterVec
	commandsSent      *prometheus.CounterVec
	gesturesDetected  *prometheus.CounterVec
	unrecognizedLines prometheus.Counter
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		start:    time.Now(),
	}

	m.uptime = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "mudra_uptime_seconds",
		Help: "Time since the application started",
	}, func() float64 { return time.Since(m.start).Seconds() })

	m.lifecycleState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mudra_lifecycle_state",
		Help: "Current lifecycle state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	m.processStarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mudra_process_starts_total",
		Help: "Recognizer process launches by result",
	}, []string{"result"})

	m.connectAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mudra_connect_attempts_total",
		Help: "Connection attempts to the recognizer by result",
	}, []string{"result"})

	m.connectionsLost = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mudra_connections_lost_total",
		Help: "Established connections that failed unexpectedly",
	})

	m.messagesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mudra_messages_received_total",
		Help: "Messages received from the recognizer by kind",
	}, []string{"kind"})

	m.commandsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mudra_commands_sent_total",
		Help: "Commands sent to the recognizer by result",
	}, []string{"result"})

	m.gesturesDetected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mudra_gestures_detected_total",
		Help: "Gestures reported by the recognizer",
	}, []string{"gesture"})

	m.unrecognizedLines = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mudra_unrecognized_messages_total",
		Help: "Lines from the recognizer that matched no known message",
	})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.uptime,
		m.lifecycleState,
		m.processStarts,
		m.connectAttempts,
		m.connectionsLost,
		m.messagesReceived,
		m.commandsSent,
		m.gesturesDetected,
		m.unrecognizedLines,
	)

	return m
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SetState marks state as the active lifecycle state among all.
func (m *Metrics) SetState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.lifecycleState.WithLabelValues(s).Set(v)
	}
}

// ProcessStarted records a launch attempt.
func (m *Metrics) ProcessStarted(err error) {
	if m == nil {
		return
	}
	m.processStarts.WithLabelValues(result(err)).Inc()
}

// ConnectAttempt records one dial attempt.
func (m *Metrics) ConnectAttempt(err error) {
	if m == nil {
		return
	}
	m.connectAttempts.WithLabelValues(result(err)).Inc()
}

// ConnectionLost records an unexpected disconnect.
func (m *Metrics) ConnectionLost() {
	if m == nil {
		return
	}
	m.connectionsLost.Inc()
}

// MessageReceived records an inbound message of kind.
func (m *Metrics) MessageReceived(kind string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(kind).Inc()
}

// CommandSent records an outbound command.
func (m *Metrics) CommandSent(err error) {
	if m == nil {
		return
	}
	m.commandsSent.WithLabelValues(result(err)).Inc()
}

// GestureDetected records a detected gesture.
func (m *Metrics) GestureDetected(name string) {
	if m == nil {
		return
	}
	m.gesturesDetected.WithLabelValues(name).Inc()
}

// UnrecognizedMessage records a line that could not be decoded.
func (m *Metrics) UnrecognizedMessage() {
	if m == nil {
		return
	}
	m.unrecognizedLines.Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
