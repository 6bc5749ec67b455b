package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_http_requests_total",
			Help: "Total number of control API requests processed by the chat client.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_client_http_request_duration_seconds",
			Help:    "Control API request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	transportEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_transport_events_total",
			Help: "Total number of transport lifecycle events.",
		},
		[]string{"event"},
	)
	inboundEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_events_total",
			Help: "Total number of inbound events handled by the dispatcher.",
		},
		[]string{"event", "result"},
	)
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_commands_total",
			Help: "Total number of outbound commands.",
		},
		[]string{"command", "result"},
	)
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_notifications_total",
			Help: "Total number of surfaced notifications.",
		},
		[]string{"kind"},
	)
	connectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_client_connection_state",
			Help: "Current connection state (0 disconnected, 1 connecting, 2 connected, 3 reconnecting).",
		},
	)
	unreadMessages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_client_unread_messages",
			Help: "Messages received for rooms other than the active one since the last join.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		transportEventsTotal,
		inboundEventsTotal,
		commandsTotal,
		notificationsTotal,
		connectionState,
		unreadMessages,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncTransportEvent(event string) {
	transportEventsTotal.WithLabelValues(event).Inc()
}

func IncInboundEvent(event, result string) {
	inboundEventsTotal.WithLabelValues(event, result).Inc()
}

func IncCommand(command, result string) {
	commandsTotal.WithLabelValues(command, result).Inc()
}

func IncNotification(kind string) {
	notificationsTotal.WithLabelValues(kind).Inc()
}

func SetConnectionState(state int) {
	connectionState.Set(float64(state))
}

func SetUnread(n int) {
	unreadMessages.Set(float64(n))
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
