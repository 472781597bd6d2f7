package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/rendezvous/internal/analytics"
	"github.com/onnwee/rendezvous/internal/api"
	"github.com/onnwee/rendezvous/internal/auth"
	"github.com/onnwee/rendezvous/internal/config"
	"github.com/onnwee/rendezvous/internal/db"
	"github.com/onnwee/rendezvous/internal/health"
	"github.com/onnwee/rendezvous/internal/interaction"
	"github.com/onnwee/rendezvous/internal/jobs"
	"github.com/onnwee/rendezvous/internal/middleware"
	"github.com/onnwee/rendezvous/internal/post"
	"github.com/onnwee/rendezvous/internal/profile"
	"github.com/onnwee/rendezvous/internal/ranking"
	"github.com/onnwee/rendezvous/internal/recommend"
	"github.com/onnwee/rendezvous/internal/timeline"
)

const serviceName = "rendezvous-api"

// rateLimitCleanupInterval is how often expired in-memory buckets are dropped.
const rateLimitCleanupInterval = 5 * time.Minute

// stores are the data sources behind the handlers.
type stores struct {
	profiles     profile.Repository
	posts        post.Repository
	interactions interaction.Repository
	redis        *redis.Client // nil without REDIS_URL
	checkers     map[string]health.Checker
	closers      []func() error
}

func (s *stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// openStores connects to Postgres and, when configured, Redis. Profiles are
// read through the Redis cache when it is available.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	s := &stores{
		profiles:     profile.NewPostgresRepository(database),
		posts:        post.NewPostgresRepository(database),
		interactions: interaction.NewPostgresRepository(database),
		checkers:     map[string]health.Checker{"database": health.NewDBChecker(database)},
		closers:      []func() error{database.Close},
	}

	if cfg.RedisURL == "" {
		logger.Info("redis not configured, profile cache and shared rate limits disabled")
		return s, nil
	}

	client, err := db.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.redis = client
	s.profiles = profile.NewRedisCache(s.profiles, client, cfg.ProfileCacheTTL(), logger)
	s.checkers["redis"] = health.NewRedisChecker(client)
	s.closers = append(s.closers, client.Close)
	return s, nil
}

// app is the assembled HTTP handler plus anything that must run alongside it.
type app struct {
	handler    http.Handler
	rateStore  *middleware.InMemoryRateLimitStore // nil when Redis backs rate limits
	jobMetrics *jobs.Metrics
}

// newApp builds ranking components and the middleware chain around the router.
func newApp(cfg *config.Config, s *stores, logger *slog.Logger) (*app, error) {
	weights, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		logger.Warn("ranking calibration not applied", "error", err)
	}

	rules, err := insightRules(cfg.InsightRules)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mwMetrics := middleware.NewMetrics()
	if err := mwMetrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register middleware metrics: %w", err)
	}
	apiMetrics := api.NewMetrics()
	if err := apiMetrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register scoring metrics: %w", err)
	}

	a := &app{jobMetrics: jobs.NewMetrics()}
	if err := a.jobMetrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register job metrics: %w", err)
	}
	limit := middleware.PerMinute(cfg.RateLimitRequestsPerMinute)
	if err := limit.Validate(); err != nil {
		return nil, err
	}
	var rateStore middleware.RateLimitStore
	if s.redis != nil {
		rateStore = middleware.NewRedisRateLimitStore(s.redis).WithMetrics(mwMetrics)
	} else {
		a.rateStore = middleware.NewInMemoryRateLimitStore()
		rateStore = a.rateStore
	}

	mux := api.NewRouter(api.RouterConfig{
		Recommendations: api.NewRecommendationHandlers(s.profiles, s.interactions, recommend.NewEngine(weights), cfg.CandidateLimit, apiMetrics),
		Timeline:        api.NewTimelineHandlers(s.profiles, s.posts, s.interactions, timeline.NewRanker(weights), cfg.CandidateLimit, apiMetrics),
		Analytics:       api.NewAnalyticsHandlers(s.profiles, s.interactions, analytics.NewAggregator(rules), apiMetrics),
		Health:          api.NewHealthHandlers(s.checkers),
		Validator:       auth.NewJWTService(cfg.JWTSecret, auth.WithPreviousSecret(cfg.JWTPreviousSecret)),
		RateLimitStore:  rateStore,
		RateLimit:       limit,
		Metrics:         mwMetrics,
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	// RequestID -> Logging -> Tracing -> CORS -> HTTPMetrics -> mux
	var handler http.Handler = mux
	handler = middleware.HTTPMetrics(mwMetrics)(handler)
	handler = middleware.CORS(middleware.NewCORSConfig(cfg.CORSAllowedOrigins))(handler)
	handler = middleware.Tracing(serviceName)(handler)
	handler = middleware.Logging(logger)(handler)
	a.handler = middleware.RequestID(handler)
	return a, nil
}

// runCleanup drops expired in-memory rate limit buckets until ctx is done.
func (a *app) runCleanup(ctx context.Context) {
	if a.rateStore == nil {
		return
	}
	jobs.Every(ctx, rateLimitCleanupInterval, jobs.JobTypeRateLimitCleanup, a.jobMetrics, func(ctx context.Context) error {
		if n := a.rateStore.Cleanup(); n > 0 {
			slog.DebugContext(ctx, "dropped expired rate limit windows", "count", n)
		}
		return nil
	})
}

// insightRules compiles configured rules, falling back to the built-in set.
func insightRules(configured []config.InsightRule) (*analytics.RuleSet, error) {
	if len(configured) == 0 {
		return analytics.DefaultRuleSet()
	}
	rules := make([]analytics.Rule, len(configured))
	for i, r := range configured {
		rules[i] = analytics.Rule{
			Name:       r.Name,
			Kind:       r.Kind,
			Expression: r.Expression,
			Message:    r.Message,
		}
	}
	rs, err := analytics.NewRuleSet(rules)
	if err != nil {
		return nil, fmt.Errorf("insight rules: %w", err)
	}
	return rs, nil
}
