package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Scoring metric names.
const (
	MetricScoringDuration   = "scoring_duration_seconds"
	MetricScoringCandidates = "scoring_candidates"
)

// Scoring kinds, used as the "kind" label and the span name suffix.
const (
	KindRecommendations = "recommendations"
	KindTimeline        = "timeline"
	KindAnalytics       = "analytics"
)

// Metrics records how long in-memory scoring passes take and how many
// candidates they see.
type Metrics struct {
	scoringDuration   *prometheus.HistogramVec
	scoringCandidates *prometheus.HistogramVec
}

// NewMetrics creates unregistered scoring metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		scoringDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricScoringDuration,
				Help:    "Duration of a scoring pass in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"kind"},
		),
		scoringCandidates: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricScoringCandidates,
				Help:    "Number of candidates scored per request",
				Buckets: []float64{0, 10, 25, 50, 100, 200, 500, 1000},
			},
			[]string{"kind"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.scoringDuration, m.scoringCandidates} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveScoring records one scoring pass. Safe to call on a nil receiver.
func (m *Metrics) ObserveScoring(kind string, candidates int, d time.Duration) {
	if m == nil {
		return
	}
	m.scoringDuration.WithLabelValues(kind).Observe(d.Seconds())
	m.scoringCandidates.WithLabelValues(kind).Observe(float64(candidates))
}
