package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	MessagesPushed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duraq_messages_pushed_total",
		Help: "Total number of messages accepted by PUSH",
	})

	MessagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duraq_messages_delivered_total",
		Help: "Total number of messages delivered by PULL",
	})

	PullsEmpty = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duraq_pulls_empty_total",
		Help: "Total number of PULL requests that found no new message",
	})

	CommandErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duraq_command_errors_total",
		Help: "Total number of commands that failed",
	})

	PushLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "duraq_push_latency_seconds",
		Help:    "Histogram of durable push latency",
		Buckets: prometheus.DefBuckets,
	})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "duraq_queue_messages",
		Help: "Total number of messages in the queue log",
	})

	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "duraq_connected_clients",
		Help: "Number of currently connected clients",
	})
)
