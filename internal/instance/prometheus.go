package instance

import "github.com/prometheus/client_golang/prometheus"

type Prometheus interface {
	Register(r prometheus.Registerer)

	SubscriptionOpened(kind string)
	SubscriptionClosed(kind string)
	MessageSent()
	MessageSendFailed(stage string)
	SummaryEmitted(rows int)
}
