// Package metrics provides Prometheus instrumentation for the loyalty platform.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "loyalty",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// TransactionsTotal counts committed points transactions by type.
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "transactions_total",
			Help:      "Total points transactions recorded by type.",
		},
		[]string{"type"},
	)

	// AntifraudVelocityBlockTotal counts velocity/cap breaches by scope and operation.
	// Incremented for hard blocks and notify-only breaches alike.
	AntifraudVelocityBlockTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "antifraud_velocity_block_total",
			Help:      "Velocity or cap limit breaches by scope and operation kind.",
		},
		[]string{"scope", "operation"},
	)

	// AntifraudCheckTotal counts deep risk checks performed.
	AntifraudCheckTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "antifraud_check_total",
			Help:      "Total deep antifraud checks by operation kind.",
		},
		[]string{"operation"},
	)

	// AntifraudRiskLevelTotal counts risk verdicts by level.
	AntifraudRiskLevelTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "antifraud_risk_level_total",
			Help:      "Risk scorer verdicts by level.",
		},
		[]string{"level"},
	)

	// AntifraudBlockedTotal counts risk/limit policy hits by level and reason.
	AntifraudBlockedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "antifraud_blocked_total",
			Help:      "Antifraud policy hits by level and reason.",
		},
		[]string{"level", "reason"},
	)

	// AntifraudBlockFactorTotal counts matched block factors.
	AntifraudBlockFactorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "antifraud_block_factor_total",
			Help:      "Matched antifraud block factors.",
		},
		[]string{"factor"},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "loyalty",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loyalty", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loyalty", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loyalty", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "loyalty", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TransactionsTotal,
		AntifraudVelocityBlockTotal,
		AntifraudCheckTotal,
		AntifraudRiskLevelTotal,
		AntifraudBlockedTotal,
		AntifraudBlockFactorTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
