// Package prom exports the agent engine's observer metrics to Prometheus.
package prom

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zentinelproxy/zentinel-agent-go/observability"
)

// NewRegistry returns a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns a Prometheus HTTP handler bound to the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// SessionObserver exports session and dispatch metrics to Prometheus.
type SessionObserver struct {
	sessionGauge   prometheus.Gauge
	handshakeTotal *prometheus.CounterVec
	eventTotal     *prometheus.CounterVec
	eventLatency   prometheus.Histogram
	decisionTotal  *prometheus.CounterVec
	configTotal    *prometheus.CounterVec
	frameErrors    *prometheus.CounterVec
	closeTotal     *prometheus.CounterVec
}

// NewSessionObserver registers session metrics on the registry.
func NewSessionObserver(reg *prometheus.Registry) *SessionObserver {
	o := &SessionObserver{
		sessionGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zentinel_agent_sessions",
			Help: "Current open session count.",
		}),
		handshakeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zentinel_agent_handshake_total",
			Help: "Capability handshake outcomes.",
		}, []string{"result"}),
		eventTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zentinel_agent_events_total",
			Help: "Dispatched events by type and result.",
		}, []string{"type", "result"}),
		eventLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zentinel_agent_event_latency_seconds",
			Help:    "Dispatch latency per event, user callback included.",
			Buckets: prometheus.DefBuckets,
		}),
		decisionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zentinel_agent_decisions_total",
			Help: "Decisions returned by action.",
		}, []string{"action"}),
		configTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zentinel_agent_config_applies_total",
			Help: "Configuration apply outcomes.",
		}, []string{"result"}),
		frameErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zentinel_agent_frame_errors_total",
			Help: "Frame read/write errors.",
		}, []string{"direction"}),
		closeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zentinel_agent_session_close_total",
			Help: "Session close reasons.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		o.sessionGauge,
		o.handshakeTotal,
		o.eventTotal,
		o.eventLatency,
		o.decisionTotal,
		o.configTotal,
		o.frameErrors,
		o.closeTotal,
	)
	return o
}

func (o *SessionObserver) SessionCount(n int64) {
	o.sessionGauge.Set(float64(n))
}

func (o *SessionObserver) Handshake(result observability.HandshakeResult) {
	o.handshakeTotal.WithLabelValues(string(result)).Inc()
}

func (o *SessionObserver) Event(eventType string, result observability.EventResult, d time.Duration) {
	o.eventTotal.WithLabelValues(eventType, string(result)).Inc()
	o.eventLatency.Observe(d.Seconds())
}

func (o *SessionObserver) Decision(action string) {
	o.decisionTotal.WithLabelValues(action).Inc()
}

func (o *SessionObserver) ConfigApply(result observability.ConfigResult) {
	o.configTotal.WithLabelValues(string(result)).Inc()
}

func (o *SessionObserver) FrameError(direction observability.FrameDirection) {
	o.frameErrors.WithLabelValues(string(direction)).Inc()
}

func (o *SessionObserver) SessionClosed(reason observability.CloseReason) {
	o.closeTotal.WithLabelValues(string(reason)).Inc()
}
