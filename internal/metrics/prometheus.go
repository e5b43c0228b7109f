// Package metrics provides Prometheus metrics collection for Attendly services
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attendly",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "attendly",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	httpRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "attendly",
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
		[]string{"service"},
	)
)

// Decision engine metrics
var (
	analyzerInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attendly",
			Name:      "analyzer_invocations_total",
			Help:      "Total number of analyzer invocations",
		},
		[]string{"analyzer", "outcome"}, // analyzer: checkin, payment, capacity, pricing; outcome: success, failure
	)

	analyzerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "attendly",
			Name:      "analyzer_duration_seconds",
			Help:      "Analyzer invocation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"analyzer"},
	)

	riskScoreHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "attendly",
			Name:      "risk_score",
			Help:      "Risk score distribution for analyzed attempts",
			Buckets:   []float64{0, 10, 25, 50, 60, 70, 85, 90, 100}, // 0-100 scale
		},
		[]string{"analyzer", "decision"}, // decision: allow, review, block
	)

	flaggedActivitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attendly",
			Name:      "flagged_activities_total",
			Help:      "Total number of suspicious activities flagged",
		},
		[]string{"activity_type", "level"},
	)

	criticalAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attendly",
			Name:      "critical_alerts_total",
			Help:      "Total number of critical fraud alerts raised",
		},
		[]string{"activity_type"},
	)
)

// Signal cache metrics
var (
	cacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attendly",
			Name:      "signal_cache_operations_total",
			Help:      "Total number of signal cache operations",
		},
		[]string{"operation", "outcome"}, // operation: get, set, compute; outcome: hit, miss, coalesced, error
	)

	cacheComputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "attendly",
			Name:      "signal_cache_compute_duration_seconds",
			Help:      "Duration of cache-miss factory computations",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"key_prefix"},
	)
)

// Middleware returns a Gin middleware that records HTTP metrics.
// serviceName is used as the "service" label on all metrics.
func Middleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		// Skip metrics endpoint itself to avoid recursion
		if path == "/metrics" {
			c.Next()
			return
		}

		httpRequestsInFlight.WithLabelValues(serviceName).Inc()
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		httpRequestsTotal.WithLabelValues(serviceName, method, path, status).Inc()
		httpRequestDuration.WithLabelValues(serviceName, method, path).Observe(duration)
		httpRequestsInFlight.WithLabelValues(serviceName).Dec()
	}
}

// Handler returns a gin.HandlerFunc that serves Prometheus metrics.
// Register this on the "/metrics" route.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordAnalyzerInvocation records one analyzer call with its outcome and duration
func RecordAnalyzerInvocation(analyzer, outcome string, duration time.Duration) {
	analyzerInvocationsTotal.WithLabelValues(analyzer, outcome).Inc()
	analyzerDuration.WithLabelValues(analyzer).Observe(duration.Seconds())
}

// RecordRiskScore records a risk score with the resulting decision
func RecordRiskScore(analyzer, decision string, score float64) {
	riskScoreHistogram.WithLabelValues(analyzer, decision).Observe(score)
}

// RecordFlaggedActivity records a flagged suspicious activity
func RecordFlaggedActivity(activityType, level string) {
	flaggedActivitiesTotal.WithLabelValues(activityType, level).Inc()
}

// RecordCriticalAlert records a raised critical alert
func RecordCriticalAlert(activityType string) {
	criticalAlertsTotal.WithLabelValues(activityType).Inc()
}

// RecordCacheOperation records a signal cache operation
func RecordCacheOperation(operation, outcome string) {
	cacheOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordCacheCompute records the duration of a cache-miss computation
func RecordCacheCompute(keyPrefix string, duration time.Duration) {
	cacheComputeDuration.WithLabelValues(keyPrefix).Observe(duration.Seconds())
}
