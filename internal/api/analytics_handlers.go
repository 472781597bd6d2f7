package api

import (
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/rendezvous/internal/analytics"
	"github.com/onnwee/rendezvous/internal/interaction"
	"github.com/onnwee/rendezvous/internal/profile"
	"github.com/onnwee/rendezvous/internal/tracing"
)

// AnalyticsHandlers serves the viewer's profile analytics report.
type AnalyticsHandlers struct {
	profiles     profile.Repository
	interactions interaction.Repository
	aggregator   *analytics.Aggregator
	metrics      *Metrics
	now          func() time.Time
}

// NewAnalyticsHandlers creates analytics handlers. metrics may be nil.
func NewAnalyticsHandlers(profiles profile.Repository, interactions interaction.Repository, aggregator *analytics.Aggregator, metrics *Metrics) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		profiles:     profiles,
		interactions: interactions,
		aggregator:   aggregator,
		metrics:      metrics,
		now:          time.Now,
	}
}

// GetAnalytics handles GET /analytics?period=30d.
func (h *AnalyticsHandlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}
	periodDays, err := parsePeriod(r.URL.Query())
	if err != nil {
		WriteError(w, r.Context(), ErrCodeValidation, err.Error())
		return
	}

	now := h.now()
	since := now.AddDate(0, 0, -periodDays)
	var (
		viewer   *profile.Profile
		received []interaction.Record
		sent     []interaction.Record
	)
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		viewer, err = h.profiles.GetByID(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		received, err = h.interactions.Received(gctx, userID, since)
		return err
	})
	g.Go(func() error {
		var err error
		sent, err = h.interactions.Sent(gctx, userID, since)
		return err
	})
	if err := g.Wait(); err != nil {
		writeFetchError(w, r.Context(), KindAnalytics, err)
		return
	}

	n := len(received) + len(sent)
	_, endSpan := tracing.StartScoringSpan(r.Context(), KindAnalytics, n)
	start := time.Now()
	report := h.aggregator.Aggregate(viewer, received, sent, periodDays, now)
	h.metrics.ObserveScoring(KindAnalytics, n, time.Since(start))
	endSpan(nil)

	writeJSON(w, r.Context(), report)
}
