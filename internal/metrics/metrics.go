// Package metrics exposes Prometheus instruments for the messaging and
// moderation engine. Every method is safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	MessagesSent       prometheus.Counter
	ScreenBlocked      *prometheus.CounterVec
	GateDenied         *prometheus.CounterVec
	Notifications      *prometheus.CounterVec
	NotifierQueueDepth prometheus.Gauge
	ModerationActions  *prometheus.CounterVec
	CascadeStepFailure *prometheus.CounterVec
	SendLatency        prometheus.Histogram
	LiveSessions       prometheus.Gauge
}

// New registers all instruments with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		MessagesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "mithaq_messages_sent_total",
			Help: "Messages persisted after passing the gate and screening",
		}),

		ScreenBlocked: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mithaq_messages_screen_blocked_total",
			Help: "Messages rejected by screening, by matched category",
		}, []string{"category"}),

		GateDenied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mithaq_gate_denied_total",
			Help: "Messaging attempts denied by the guardian gate",
		}, []string{"code"}),

		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mithaq_notifications_total",
			Help: "Notification jobs by kind and outcome",
		}, []string{"kind", "outcome"}), // outcome: sent, failed, dropped, skipped

		NotifierQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "mithaq_notifier_queue_depth",
			Help: "Jobs waiting in the notification queue",
		}),

		ModerationActions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mithaq_moderation_actions_total",
			Help: "Moderation actions applied, by action",
		}, []string{"action"}),

		CascadeStepFailure: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mithaq_ban_cascade_step_failures_total",
			Help: "Ban cascade steps that failed",
		}, []string{"step"}),

		SendLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mithaq_message_send_duration_seconds",
			Help:    "Duration of the send-message path up to persistence",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		LiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "mithaq_live_sessions",
			Help: "Open live-delivery WebSocket sessions",
		}),
	}
}

func (m *Metrics) IncMessagesSent() {
	if m != nil {
		m.MessagesSent.Inc()
	}
}

// IncScreenBlocked counts one rejection per matched category.
func (m *Metrics) IncScreenBlocked(categories []string) {
	if m == nil {
		return
	}
	for _, c := range categories {
		m.ScreenBlocked.WithLabelValues(c).Inc()
	}
}

func (m *Metrics) IncGateDenied(code string) {
	if m != nil {
		m.GateDenied.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) IncNotification(kind, outcome string) {
	if m != nil {
		m.Notifications.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.NotifierQueueDepth.Set(float64(n))
	}
}

func (m *Metrics) IncModerationAction(action string) {
	if m != nil {
		m.ModerationActions.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) IncCascadeStepFailure(step string) {
	if m != nil {
		m.CascadeStepFailure.WithLabelValues(step).Inc()
	}
}

func (m *Metrics) ObserveSendLatency(d time.Duration) {
	if m != nil {
		m.SendLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) LiveSessionOpened() {
	if m != nil {
		m.LiveSessions.Inc()
	}
}

func (m *Metrics) LiveSessionClosed() {
	if m != nil {
		m.LiveSessions.Dec()
	}
}
