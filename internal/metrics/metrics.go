package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// GateDecisions counts admission decisions by outcome. Outcome is
	// "admitted" or the rejection kind (TENANT_NOT_FOUND, TRIAL_EXPIRED, ...).
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_gate_decisions_total",
			Help: "Tenant gate admission decisions by outcome",
		},
		[]string{"outcome"},
	)

	// QuotaRejections counts requests denied by the usage limiter
	QuotaRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_quota_rejections_total",
			Help: "Requests rejected for exceeding a usage limit, by metric",
		},
		[]string{"metric"},
	)

	// UsageRecorded counts usage increments accepted by the recorder
	UsageRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_usage_recorded_total",
			Help: "Usage increments written, by metric",
		},
		[]string{"metric"},
	)

	// UsageDropped counts usage increments discarded because the
	// recorder queue was full
	UsageDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tenancy_usage_dropped_total",
			Help: "Usage increments dropped due to a full recorder queue",
		},
	)

	// RequestDuration observes HTTP request latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenancy_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Handler returns the Prometheus scrape endpoint
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Middleware records request duration per route
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		RequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}
