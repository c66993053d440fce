package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the feedback pipeline
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	ReportsReceivedTotal  *prometheus.CounterVec
	ReportsPersistedTotal prometheus.Counter
	ReportsFailedTotal    *prometheus.CounterVec
	RetryAttemptsTotal    *prometheus.CounterVec
	RetryExhaustionsTotal *prometheus.CounterVec
	ToastsShownTotal      *prometheus.CounterVec
	OfflineQueueDepth     prometheus.Gauge

	// Probe metrics
	ProbeLatency       *prometheus.HistogramVec
	ProbeFailuresTotal *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	Namespace string `json:"namespace"`
	Enabled   bool   `json:"enabled"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace: "dominica_feedback",
		Enabled:   true,
	}
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(config *Config) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}
	if !config.Enabled {
		return &Metrics{}
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ReportsReceivedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "reports_received_total",
				Help:      "Total number of error reports received",
			},
			[]string{"category"},
		),
		ReportsPersistedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "reports_persisted_total",
				Help:      "Total number of error reports persisted",
			},
		),
		ReportsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "reports_failed_total",
				Help:      "Total number of error reports that could not be handled",
			},
			[]string{"reason"},
		),
		RetryAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "retry_attempts_total",
				Help:      "Total number of retry attempts",
			},
			[]string{"operation"},
		),
		RetryExhaustionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "retry_exhaustions_total",
				Help:      "Total number of operations that exhausted their retry budget",
			},
			[]string{"category"},
		),
		ToastsShownTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "toasts_shown_total",
				Help:      "Total number of notifications shown",
			},
			[]string{"level", "severity"},
		),
		OfflineQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Name:      "offline_queue_depth",
				Help:      "Number of error reports waiting for connectivity",
			},
		),
		ProbeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Name:      "probe_latency_seconds",
				Help:      "Health probe latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
			},
			[]string{"endpoint"},
		),
		ProbeFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "probe_failures_total",
				Help:      "Total number of failed health probes",
			},
			[]string{"endpoint"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReportsReceivedTotal,
		m.ReportsPersistedTotal,
		m.ReportsFailedTotal,
		m.RetryAttemptsTotal,
		m.RetryExhaustionsTotal,
		m.ToastsShownTotal,
		m.OfflineQueueDepth,
		m.ProbeLatency,
		m.ProbeFailuresTotal,
	)

	return m
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// GinMiddleware records HTTP request metrics
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.HTTPRequestsTotal == nil {
			c.Next()
			return
		}

		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		m.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
		).Observe(time.Since(start).Seconds())
	}
}

// ObserveProbe records a single probe outcome
func (m *Metrics) ObserveProbe(endpoint string, latency time.Duration, healthy bool) {
	if m.ProbeLatency == nil {
		return
	}
	m.ProbeLatency.WithLabelValues(endpoint).Observe(latency.Seconds())
	if !healthy {
		m.ProbeFailuresTotal.WithLabelValues(endpoint).Inc()
	}
}
