package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/onnwee/rendezvous/internal/health"
)

// ReadyTimeout bounds all dependency checks of one readiness request.
const ReadyTimeout = 5 * time.Second

// HealthHandlers provides health and readiness check endpoints for Kubernetes liveness and readiness checks.
type HealthHandlers struct {
	checkers map[string]health.Checker
}

// NewHealthHandlers creates health handlers. checkers maps a dependency
// name (database, redis) to its checker; nil checkers are skipped.
func NewHealthHandlers(checkers map[string]health.Checker) *HealthHandlers {
	h := &HealthHandlers{checkers: make(map[string]health.Checker, len(checkers))}
	for name, c := range checkers {
		if c != nil {
			h.checkers[name] = c
		}
	}
	return h
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health (liveness).
// Returns 200 if the process can serve requests.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	writeHealth(w, r.Context(), http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready (readiness).
// Returns 503 if any configured dependency fails its check.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), ReadyTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := map[string]string{"metrics": "ok"}
	healthy := true
	for _, name := range names {
		if err := h.checkers[name].HealthCheck(ctx); err != nil {
			checks[name] = "error"
			healthy = false
			slog.WarnContext(ctx, "dependency health check failed", "dependency", name, "error", err)
			continue
		}
		checks[name] = "ok"
	}

	resp := HealthResponse{
		Status:    "healthy",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeHealth(w, r.Context(), status, resp)
}

func writeHealth(w http.ResponseWriter, ctx context.Context, status int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode health response", "error", err)
	}
}
