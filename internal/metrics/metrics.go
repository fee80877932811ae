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
	// HTTPRequestsTotal counts handled requests by route template and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks request latency by route template.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// PlayLogsTotal counts play logs reported by devices.
	PlayLogsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signage_play_logs_total",
			Help: "Total number of play logs recorded",
		},
	)

	// SessionsReconciledTotal counts stale sessions closed by reconciliation.
	SessionsReconciledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signage_sessions_reconciled_total",
			Help: "Total number of stale player sessions closed",
		},
	)

	// PlayersOnline is the number of players seen online at the last count.
	PlayersOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "signage_players_online",
			Help: "Players online at the last summary or sweep",
		},
	)

	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signage_rate_limited_total",
			Help: "Requests rejected for exceeding the rate limit",
		},
	)
)

// Middleware records request count and latency per route template
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
