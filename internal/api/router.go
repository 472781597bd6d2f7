package api

import (
	"net/http"

	"github.com/onnwee/rendezvous/internal/middleware"
)

// RouterConfig wires handlers and the per-viewer middleware into a mux.
type RouterConfig struct {
	Recommendations *RecommendationHandlers
	Timeline        *TimelineHandlers
	Analytics       *AnalyticsHandlers
	Health          *HealthHandlers

	// Validator authenticates viewers on the ranking endpoints.
	Validator middleware.TokenValidator
	// RateLimitStore and RateLimit apply per-viewer limits after auth.
	RateLimitStore middleware.RateLimitStore
	RateLimit      middleware.RateLimitConfig
	// Metrics records rate limit decisions. Optional.
	Metrics *middleware.Metrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

// NewRouter builds the API mux. Ranking endpoints require a bearer token
// and are rate limited per viewer; health checks and /metrics are public.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	protect := func(h http.HandlerFunc) http.Handler {
		limited := middleware.RateLimiter(cfg.RateLimitStore, cfg.RateLimit, middleware.UserKeyFunc(), cfg.Metrics)(h)
		return middleware.RequireAuth(cfg.Validator)(limited)
	}

	mux.Handle("/recommendations", protect(cfg.Recommendations.GetRecommendations))
	mux.Handle("/timeline/for-you", protect(cfg.Timeline.GetForYou))
	mux.Handle("/analytics", protect(cfg.Analytics.GetAnalytics))

	mux.HandleFunc("/health", cfg.Health.Health)
	mux.HandleFunc("/ready", cfg.Health.Ready)
	if cfg.MetricsHandler != nil {
		mux.Handle("/metrics", cfg.MetricsHandler)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r.Context(), ErrCodeNotFound, "The requested resource was not found")
	})
	return mux
}
