package chat

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the chat engine. All methods are nil-safe so the core
// stays usable in tests that do not care about instrumentation.
type Metrics struct {
	connectionsOpen prometheus.Gauge
	usersNamed      prometheus.Gauge
	inboundEvents   *prometheus.CounterVec
	messagesTotal   prometheus.Counter
	droppedTotal    *prometheus.CounterVec
}

// NewMetrics constructs and registers the engine's collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "palaver",
			Subsystem: "chat",
			Name:      "connections_open",
			Help:      "Live websocket connections.",
		}),
		usersNamed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "palaver",
			Subsystem: "chat",
			Name:      "users_named",
			Help:      "Connections that have completed identity registration.",
		}),
		inboundEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "palaver",
			Subsystem: "chat",
			Name:      "inbound_events_total",
			Help:      "Inbound events dispatched, by event name.",
		}, []string{"event"}),
		messagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "palaver",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Chat messages broadcast.",
		}),
		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "palaver",
			Subsystem: "chat",
			Name:      "deliveries_dropped_total",
			Help:      "Outbound deliveries dropped under backpressure, by event name.",
		}, []string{"event"}),
	}

	reg.MustRegister(
		m.connectionsOpen,
		m.usersNamed,
		m.inboundEvents,
		m.messagesTotal,
		m.droppedTotal,
	)
	return m
}

// ConnectionOpened records an accepted websocket connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsOpen.Inc()
}

// ConnectionClosed records a torn-down websocket connection.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsOpen.Dec()
}

// UsersNamed mirrors the presence counter.
func (m *Metrics) UsersNamed(n int64) {
	if m == nil {
		return
	}
	m.usersNamed.Set(float64(n))
}

// InboundEvent records one dispatched inbound event.
func (m *Metrics) InboundEvent(event string) {
	if m == nil {
		return
	}
	m.inboundEvents.WithLabelValues(event).Inc()
}

// MessageBroadcast records one chat message fanout.
func (m *Metrics) MessageBroadcast() {
	if m == nil {
		return
	}
	m.messagesTotal.Inc()
}

// DeliveryDropped records one delivery skipped under backpressure.
func (m *Metrics) DeliveryDropped(event string) {
	if m == nil {
		return
	}
	m.droppedTotal.WithLabelValues(event).Inc()
}
