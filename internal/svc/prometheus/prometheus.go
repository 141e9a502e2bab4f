package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/seventv/chatsync/internal/instance"
)

type Options struct {
	Labels prometheus.Labels
}

func New(o Options) instance.Prometheus {
	return &Instance{
		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "chatsync_subscriptions_active",
			Help:        "Live subscriptions by kind",
			ConstLabels: o.Labels,
		}, []string{"kind"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "chatsync_messages_sent_total",
			Help:        "Messages written to both mailboxes",
			ConstLabels: o.Labels,
		}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "chatsync_message_send_failures_total",
			Help:        "Failed sends by the mailbox write that failed",
			ConstLabels: o.Labels,
		}, []string{"stage"}),
		summaryEmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "chatsync_summary_emits_total",
			Help:        "Summary lists emitted",
			ConstLabels: o.Labels,
		}),
		summaryRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "chatsync_summary_rows",
			Help:        "Rows per emitted summary list",
			ConstLabels: o.Labels,
			Buckets:     []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
	}
}

type Instance struct {
	subscriptions *prometheus.GaugeVec
	messagesSent  prometheus.Counter
	sendFailures  *prometheus.CounterVec
	summaryEmits  prometheus.Counter
	summaryRows   prometheus.Histogram
}

func (m *Instance) Register(r prometheus.Registerer) {
	r.MustRegister(
		m.subscriptions,
		m.messagesSent,
		m.sendFailures,
		m.summaryEmits,
		m.summaryRows,
	)
}

func (m *Instance) SubscriptionOpened(kind string) {
	m.subscriptions.WithLabelValues(kind).Inc()
}

func (m *Instance) SubscriptionClosed(kind string) {
	m.subscriptions.WithLabelValues(kind).Dec()
}

func (m *Instance) MessageSent() {
	m.messagesSent.Inc()
}

func (m *Instance) MessageSendFailed(stage string) {
	m.sendFailures.WithLabelValues(stage).Inc()
}

func (m *Instance) SummaryEmitted(rows int) {
	m.summaryEmits.Inc()
	m.summaryRows.Observe(float64(rows))
}
