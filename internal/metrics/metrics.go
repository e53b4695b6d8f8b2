// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector is the interface used by the service and middleware layers.
type MetricsCollector interface {
	RecordAuthOperation(operation, outcome string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordRefreshTokensSwept(count int64)
}

// Collector is the Prometheus-backed MetricsCollector.
type Collector struct {
	authOps     *prometheus.CounterVec
	authLatency *prometheus.HistogramVec
	httpStatus  *prometheus.CounterVec
	tokensSwept prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "amp_auth_operations_total",
			Help: "Auth operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		authLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "amp_auth_operation_duration_seconds",
			Help:    "Auth operation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "amp_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		tokensSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amp_refresh_tokens_swept_total",
			Help: "Expired refresh-token hashes cleared by the worker.",
		}),
	}

	reg.MustRegister(
		c.authOps,
		c.authLatency,
		c.httpStatus,
		c.tokensSwept,
	)

	return c
}

// RecordAuthOperation counts one auth operation and observes its latency.
func (c *Collector) RecordAuthOperation(operation, outcome string, duration time.Duration) {
	c.authOps.WithLabelValues(operation, outcome).Inc()
	c.authLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPStatus counts one HTTP response.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRefreshTokensSwept adds the number of expired hashes cleared by a sweep.
func (c *Collector) RecordRefreshTokensSwept(count int64) {
	c.tokensSwept.Add(float64(count))
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute returns a mux serving /metrics.
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
