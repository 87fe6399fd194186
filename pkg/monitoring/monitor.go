package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AttemptsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_attempts_started_total",
			Help: "Attempts started, by exam type",
		},
		[]string{"exam_type"},
	)

	AttemptsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_attempts_submitted_total",
			Help: "Attempts submitted, by exam type",
		},
		[]string{"exam_type"},
	)

	AttemptScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exam_attempt_score_percent",
			Help:    "Distribution of submitted attempt scores",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
	)

	PoolConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "question_pool_too_small_total",
			Help: "Materialisations rejected because the filtered pool was smaller than requested",
		},
	)

	HeartbeatsCapped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_heartbeats_capped_total",
			Help: "Heartbeats whose time delta was clamped",
		},
		[]string{"cap"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(AttemptsStarted)
		prometheus.MustRegister(AttemptsSubmitted)
		prometheus.MustRegister(AttemptScore)
		prometheus.MustRegister(PoolConflicts)
		prometheus.MustRegister(HeartbeatsCapped)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
