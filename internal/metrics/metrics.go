// Package metrics defines the Prometheus metrics exported by the chat server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "jobchat"

// Metrics groups every metric family of the server.
type Metrics struct {
	WebSocket *WebSocketMetrics
	Chat      *ChatMetrics
	Notify    *NotifyMetrics
	HTTP      *HTTPMetrics
}

// New creates all metric families and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		WebSocket: NewWebSocketMetrics(reg),
		Chat:      NewChatMetrics(reg),
		Notify:    NewNotifyMetrics(reg),
		HTTP:      NewHTTPMetrics(reg),
	}
}

// ChatMetrics tracks history mutations.
type ChatMetrics struct {
	MessagesAccepted *prometheus.CounterVec
	MessagesRejected *prometheus.CounterVec
	HistoryLength    prometheus.Gauge
}

// NewChatMetrics creates and registers chat metrics on the given registry.
func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		MessagesAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "messages_accepted_total",
			Help:      "Total number of messages appended to the history.",
		}, []string{"transport"}),
		MessagesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "messages_rejected_total",
			Help:      "Total number of submissions that were not appended.",
		}, []string{"transport", "reason"}),
		HistoryLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "history_length",
			Help:      "Number of messages currently retained.",
		}),
	}

	reg.MustRegister(m.MessagesAccepted, m.MessagesRejected, m.HistoryLength)
	return m
}

// NotifyMetrics tracks push notification fan-out.
type NotifyMetrics struct {
	Deliveries *prometheus.CounterVec
}

// NewNotifyMetrics creates and registers notification metrics on the given registry.
func NewNotifyMetrics(reg prometheus.Registerer) *NotifyMetrics {
	m := &NotifyMetrics{
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification deliveries by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.Deliveries)
	return m
}
