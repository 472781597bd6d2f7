package middleware

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricRateLimitDecisions   = "rate_limit_decisions_total"
	MetricRateLimitStoreErrors = "rate_limit_store_errors_total"
	MetricHTTPRequestDuration  = "http_request_duration_seconds"
	MetricHTTPRequestsTotal    = "http_requests_total"
	MetricHTTPResponseSize     = "http_response_size_bytes"
)

// Rate limit decision label values.
const (
	DecisionAllowed = "allowed"
	DecisionBlocked = "blocked"
)

// Metrics holds the collectors recorded by HTTPMetrics and RateLimiter.
// Every method is safe on a nil receiver so the middleware can run unmetered.
type Metrics struct {
	rateLimitDecisions   *prometheus.CounterVec
	rateLimitStoreErrors prometheus.Counter
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	httpResponseSize     *prometheus.HistogramVec
}

// NewMetrics creates unregistered collectors; call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		rateLimitDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRateLimitDecisions,
				Help: "Rate limit checks by route, key type and decision",
			},
			[]string{"route", "key_type", "decision"},
		),
		rateLimitStoreErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricRateLimitStoreErrors,
				Help: "Rate limit store failures that let the request through",
			},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: MetricHTTPRequestDuration,
				Help: "HTTP request duration in seconds",
				// Ranking requests are a few queries plus in-memory scoring.
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "route", "status"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPResponseSize,
				Help:    "HTTP response body size in bytes",
				Buckets: prometheus.ExponentialBuckets(256, 4, 7), // 256 B to 1 MiB
			},
			[]string{"route"},
		),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns the collectors in registration order.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rateLimitDecisions,
		m.rateLimitStoreErrors,
		m.httpRequestDuration,
		m.httpRequestsTotal,
		m.httpResponseSize,
	}
}

func (m *Metrics) observeRateLimit(route, keyType string, allowed bool) {
	if m == nil {
		return
	}
	decision := DecisionAllowed
	if !allowed {
		decision = DecisionBlocked
	}
	m.rateLimitDecisions.WithLabelValues(route, keyType, decision).Inc()
}

func (m *Metrics) observeStoreError() {
	if m == nil {
		return
	}
	m.rateLimitStoreErrors.Inc()
}

func (m *Metrics) observeHTTP(method, route string, status int, d time.Duration, size int) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpRequestDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
	m.httpRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.httpResponseSize.WithLabelValues(route).Observe(float64(size))
}
