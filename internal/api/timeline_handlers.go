package api

import (
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/rendezvous/internal/interaction"
	"github.com/onnwee/rendezvous/internal/post"
	"github.com/onnwee/rendezvous/internal/profile"
	"github.com/onnwee/rendezvous/internal/timeline"
	"github.com/onnwee/rendezvous/internal/tracing"
)

// TimelineWindow is how far back the for-you timeline looks for candidates.
const TimelineWindow = 7 * 24 * time.Hour

// TimelineHandlers serves the for-you timeline.
type TimelineHandlers struct {
	profiles       profile.Repository
	posts          post.Repository
	interactions   interaction.Repository
	ranker         *timeline.Ranker
	candidateLimit int
	metrics        *Metrics
	now            func() time.Time
}

// NewTimelineHandlers creates timeline handlers. metrics may be nil.
func NewTimelineHandlers(profiles profile.Repository, posts post.Repository, interactions interaction.Repository, ranker *timeline.Ranker, candidateLimit int, metrics *Metrics) *TimelineHandlers {
	return &TimelineHandlers{
		profiles:       profiles,
		posts:          posts,
		interactions:   interactions,
		ranker:         ranker,
		candidateLimit: candidateLimit,
		metrics:        metrics,
		now:            time.Now,
	}
}

// TimelineResponse is the body of GET /timeline/for-you.
type TimelineResponse struct {
	Posts     []timeline.RankedPost `json:"posts"`
	Count     int                   `json:"count"`
	Offset    int                   `json:"offset"`
	Limit     int                   `json:"limit"`
	Algorithm timeline.Algorithm    `json:"algorithm"`
}

// GetForYou handles GET /timeline/for-you?limit=N&offset=M&algorithm=A.
// NSFW posts are included only with nsfw=true.
func (h *TimelineHandlers) GetForYou(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, err := parseLimit(q, DefaultTimelineLimit, MaxTimelineLimit)
	if err != nil {
		WriteError(w, r.Context(), ErrCodeValidation, err.Error())
		return
	}
	offset, err := parseOffset(q)
	if err != nil {
		WriteError(w, r.Context(), ErrCodeValidation, err.Error())
		return
	}
	algorithm, err := timeline.ParseAlgorithm(q.Get("algorithm"))
	if errors.Is(err, timeline.ErrUnknownAlgorithm) {
		WriteError(w, r.Context(), ErrCodeValidation, "algorithm must be for_you or chronological")
		return
	}
	prefs := &post.ViewerPreferences{ShowNSFW: parseBool(q, "nsfw")}

	now := h.now()
	var (
		viewer     *profile.Profile
		candidates []*post.Post
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
		candidates, err = h.posts.ListRecent(gctx, now.Add(-TimelineWindow), h.candidateLimit)
		return err
	})
	g.Go(func() error {
		var err error
		interacted, err = h.interactions.Counterparts(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		writeFetchError(w, r.Context(), KindTimeline, err)
		return
	}

	visible := post.FilterForViewer(candidates, prefs, userID)

	scoreCtx, endSpan := tracing.StartScoringSpan(r.Context(), KindTimeline, len(visible))
	start := time.Now()
	ranked := h.ranker.Rank(viewer, visible, interacted, timeline.Page{
		Offset:    offset,
		Limit:     limit,
		Algorithm: algorithm,
	}, now)
	h.metrics.ObserveScoring(KindTimeline, len(visible), time.Since(start))
	tracing.AddEvent(scoreCtx, "ranked", attribute.Int("ranking.returned", len(ranked)))
	endSpan(nil)

	if ranked == nil {
		ranked = []timeline.RankedPost{}
	}
	writeJSON(w, r.Context(), TimelineResponse{
		Posts:     ranked,
		Count:     len(ranked),
		Offset:    offset,
		Limit:     limit,
		Algorithm: algorithm,
	})
}
