package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for event fan-out and unread polling.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// BroadcastsTotal counts local dispatches by event type and source (local or remote).
	BroadcastsTotal *prometheus.CounterVec

	// DeliveryFailuresTotal counts listeners that panicked during dispatch.
	DeliveryFailuresTotal *prometheus.CounterVec

	// ChannelSendFailuresTotal counts envelopes the transport failed to send.
	ChannelSendFailuresTotal prometheus.Counter

	// InvalidPayloadsTotal counts broadcasts whose payload could not be serialized.
	InvalidPayloadsTotal prometheus.Counter

	UnreadFetchesTotal *prometheus.CounterVec

	ActivePollers prometheus.Gauge

	WebSocketConnections prometheus.Gauge
}

func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BroadcastsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_dispatched_total",
				Help:      "Total number of events dispatched to local listeners",
			},
			[]string{"event_type", "source"},
		),

		DeliveryFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_delivery_failures_total",
				Help:      "Total number of listener invocations that failed",
			},
			[]string{"event_type"},
		),

		ChannelSendFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "channel_send_failures_total",
				Help:      "Total number of envelopes that could not be sent to other instances",
			},
		),

		InvalidPayloadsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invalid_payloads_total",
				Help:      "Total number of broadcasts with a payload that could not be serialized",
			},
		),

		UnreadFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unread_fetches_total",
				Help:      "Total number of unread notification fetches",
			},
			[]string{"status"},
		),

		ActivePollers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "unread_pollers_active",
				Help:      "Current number of pollers in the polling state",
			},
		),

		WebSocketConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_connections",
				Help:      "Current number of registered websocket connections",
			},
		),
	}
}

func (m *Metrics) IncDispatched(eventType string, remote bool) {
	if m == nil {
		return
	}
	source := "local"
	if remote {
		source = "remote"
	}
	m.BroadcastsTotal.WithLabelValues(eventType, source).Inc()
}

func (m *Metrics) IncDeliveryFailure(eventType string) {
	if m == nil {
		return
	}
	m.DeliveryFailuresTotal.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncChannelSendFailure() {
	if m == nil {
		return
	}
	m.ChannelSendFailuresTotal.Inc()
}

func (m *Metrics) IncInvalidPayload() {
	if m == nil {
		return
	}
	m.InvalidPayloadsTotal.Inc()
}

func (m *Metrics) IncFetch(ok bool) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failure"
	}
	m.UnreadFetchesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) PollerStarted() {
	if m == nil {
		return
	}
	m.ActivePollers.Inc()
}

func (m *Metrics) PollerStopped() {
	if m == nil {
		return
	}
	m.ActivePollers.Dec()
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.WebSocketConnections.Set(float64(n))
}
