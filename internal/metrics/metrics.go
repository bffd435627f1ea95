// Package metrics exposes hub and agent Prometheus metrics.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "vhub_"

// Label values.
const (
	RoleVehicle = "vehicle"
	RoleMonitor = "monitor"

	ResultOK        = "ok"
	ResultInvalid   = "invalid"
	ResultInference = "inference_error"
	ResultSendError = "send_error"

	DeliveryQueued  = "queued"
	DeliveryDropped = "dropped"

	DropQueueFull    = "queue_full"
	DropWriteFailed  = "write_failed"
	DropKeepalive    = "keepalive"
	DropDisconnected = "disconnected"
	DropShutdown     = "shutdown"
)

// Metrics bundles the hub and agent collectors.
type Metrics struct {
	ActiveSessions  *prometheus.GaugeVec
	Messages        *prometheus.CounterVec
	Deliveries      *prometheus.CounterVec
	SubscriberDrops *prometheus.CounterVec
	PredictLatency  *prometheus.HistogramVec
	KnownVehicles   prometheus.Gauge
	AgentReconnects prometheus.Counter
	AgentSent       *prometheus.CounterVec
}

// New constructs the collectors and registers them with reg.
// A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveSessions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_sessions",
				Help: "Open WebSocket sessions by role",
			},
			[]string{"role"},
		),
		Messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "telemetry_messages_total",
				Help: "Producer telemetry messages by result",
			},
			[]string{"result"},
		),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "broadcast_deliveries_total",
				Help: "Broadcast enqueue attempts by result",
			},
			[]string{"result"},
		),
		SubscriberDrops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "subscriber_drops_total",
				Help: "Monitor subscribers removed by reason",
			},
			[]string{"reason"},
		),
		PredictLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "predict_latency_seconds",
				Help:    "Predictor latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		KnownVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "known_vehicles",
			Help: "Vehicles with a stored state",
		}),
		AgentReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "agent_reconnects_total",
			Help: "Agent connection attempts after a failure",
		}),
		AgentSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "agent_messages_total",
				Help: "Agent telemetry sends by result",
			},
			[]string{"result"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.ActiveSessions,
			m.Messages,
			m.Deliveries,
			m.SubscriberDrops,
			m.PredictLatency,
			m.KnownVehicles,
			m.AgentReconnects,
			m.AgentSent,
		)
	}
	return m
}

// SessionOpened increments the active session gauge for role.
func (m *Metrics) SessionOpened(role string) {
	if m == nil {
		return
	}
	m.ActiveSessions.WithLabelValues(role).Inc()
}

// SessionClosed decrements the active session gauge for role.
func (m *Metrics) SessionClosed(role string) {
	if m == nil {
		return
	}
	m.ActiveSessions.WithLabelValues(role).Dec()
}

// Message counts one producer message.
func (m *Metrics) Message(result string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(result).Inc()
}

// Delivery counts one broadcast enqueue attempt.
func (m *Metrics) Delivery(result string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(result).Inc()
}

// SubscriberDropped counts a removed subscriber.
func (m *Metrics) SubscriberDropped(reason string) {
	if m == nil {
		return
	}
	m.SubscriberDrops.WithLabelValues(reason).Inc()
}

// ObservePredict records one predictor call.
func (m *Metrics) ObservePredict(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.PredictLatency.WithLabelValues(result).Observe(d.Seconds())
}

// SetKnownVehicles sets the known vehicle gauge.
func (m *Metrics) SetKnownVehicles(n int) {
	if m == nil {
		return
	}
	m.KnownVehicles.Set(float64(n))
}

// AgentReconnect counts one reconnect attempt.
func (m *Metrics) AgentReconnect() {
	if m == nil {
		return
	}
	m.AgentReconnects.Inc()
}

// AgentSend counts one agent send.
func (m *Metrics) AgentSend(result string) {
	if m == nil {
		return
	}
	m.AgentSent.WithLabelValues(result).Inc()
}
