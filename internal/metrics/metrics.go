package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Sessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_sessions",
		Help: "Current number of registered sessions",
	})
	AuthenticatedSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_authenticated_sessions",
		Help: "Current number of sessions that passed login or registration",
	})
	RejectedConnections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_rejected_connections_total",
		Help: "Connections refused because the session table was full",
	})
	Broadcasts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_broadcasts_total",
		Help: "Total number of room broadcasts",
	})
	Deliveries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_deliveries_total",
		Help: "Total number of lines delivered to sessions by broadcasts",
	})
	PrivateMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_private_messages_total",
		Help: "Total number of direct messages delivered",
	})
	Commands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_commands_total",
		Help: "Inbound lines by command",
	}, []string{"command"})
	StorageErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_storage_errors_total",
		Help: "Failed durable storage operations",
	}, []string{"op"})
	Groups = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_groups",
		Help: "Current number of live custom groups",
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		Sessions,
		AuthenticatedSessions,
		RejectedConnections,
		Broadcasts,
		Deliveries,
		PrivateMessages,
		Commands,
		StorageErrors,
		Groups,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// GinMiddleware records request counts and latencies.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HTTPRequestsTotal.With(labels).Inc()
		HTTPRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
