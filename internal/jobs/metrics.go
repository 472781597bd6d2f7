// Package jobs runs periodic background work and records its metrics.
package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// JobTypeRateLimitCleanup evicts expired in-memory rate limit windows.
const JobTypeRateLimitCleanup = "ratelimit_cleanup"

// Run outcomes.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics counts job runs. A nil *Metrics records nothing.
type Metrics struct {
	jobsTotal    *prometheus.CounterVec   // job_type, status
	jobsDuration *prometheus.HistogramVec // job_type
	jobErrors    *prometheus.CounterVec   // job_type, error_type
}

// NewMetrics returns unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "background_jobs_total",
			Help: "Background job runs by job type and status",
		}, []string{"job_type", "status"}),
		jobsDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "background_jobs_duration_seconds",
			Help:    "Background job run time",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 7),
		}, []string{"job_type"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "background_job_errors_total",
			Help: "Failed background job runs by job type and cause",
		}, []string{"job_type", "error_type"}),
	}
}

// Register adds the collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors lists the collectors in registration order.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.jobsTotal, m.jobsDuration, m.jobErrors}
}

func (m *Metrics) observe(jobType string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.jobsDuration.WithLabelValues(jobType).Observe(seconds)
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
		m.jobErrors.WithLabelValues(jobType, errorType(err)).Inc()
	}
	m.jobsTotal.WithLabelValues(jobType, status).Inc()
}
