package api

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/rendezvous/internal/interaction"
	"github.com/onnwee/rendezvous/internal/profile"
	"github.com/onnwee/rendezvous/internal/recommend"
	"github.com/onnwee/rendezvous/internal/tracing"
)

// RecommendationHandlers serves profile recommendations.
type RecommendationHandlers struct {
	profiles       profile.Repository
	interactions   interaction.Repository
	engine         *recommend.Engine
	candidateLimit int
	metrics        *Metrics
	now            func() time.Time
}

// NewRecommendationHandlers creates recommendation handlers. candidateLimit
// bounds how many profiles are scored per request; metrics may be nil.
func NewRecommendationHandlers(profiles profile.Repository, interactions interaction.Repository, engine *recommend.Engine, candidateLimit int, metrics *Metrics) *RecommendationHandlers {
	return &RecommendationHandlers{
		profiles:       profiles,
		interactions:   interactions,
		engine:         engine,
		candidateLimit: candidateLimit,
		metrics:        metrics,
		now:            time.Now,
	}
}

// RecommendationsResponse is the body of GET /recommendations.
type RecommendationsResponse struct {
	Recommendations []recommend.Recommendation `json:"recommendations"`
	Count           int                        `json:"count"`
	Algorithm       string                     `json:"algorithm"`
}

// GetRecommendations handles GET /recommendations?limit=N.
func (h *RecommendationHandlers) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r.URL.Query(), DefaultRecommendationLimit, MaxRecommendationLimit)
	if err != nil {
		WriteError(w, r.Context(), ErrCodeValidation, err.Error())
		return
	}

	var (
		viewer     *profile.Profile
		candidates []*profile.Profile
		interacted map[string]struct{}
	)
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		viewer, err = h.profiles.GetByID(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		candidates, err = h.profiles.ListCandidates(gctx, userID, h.candidateLimit)
		return err
	})
	g.Go(func() error {
		var err error
		interacted, err = h.interactions.Counterparts(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		writeFetchError(w, r.Context(), KindRecommendations, err)
		return
	}

	scoreCtx, endSpan := tracing.StartScoringSpan(r.Context(), KindRecommendations, len(candidates))
	start := time.Now()
	recs := h.engine.Recommend(viewer, candidates, interacted, limit, h.now())
	h.metrics.ObserveScoring(KindRecommendations, len(candidates), time.Since(start))
	tracing.AddEvent(scoreCtx, "ranked", attribute.Int("ranking.returned", len(recs)))
	endSpan(nil)

	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	writeJSON(w, r.Context(), RecommendationsResponse{
		Recommendations: recs,
		Count:           len(recs),
		Algorithm:       recommend.Algorithm,
	})
}
