package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/rendezvous/internal/middleware"
	"github.com/onnwee/rendezvous/internal/profile"
)

// writeJSON writes v with a 200 status.
func writeJSON(w http.ResponseWriter, ctx context.Context, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// viewerID returns the authenticated viewer, writing a 401 when the route
// was mounted without RequireAuth.
func viewerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := middleware.GetUserID(r.Context())
	if id == "" {
		WriteError(w, r.Context(), ErrCodeAuthFailed, "Authentication required")
		return "", false
	}
	return id, true
}

// writeFetchError maps repository errors from the input fetch to responses.
func writeFetchError(w http.ResponseWriter, ctx context.Context, kind string, err error) {
	switch {
	case errors.Is(err, profile.ErrProfileNotFound):
		WriteError(w, ctx, ErrCodeProfileNotFound, "Profile not found")
	case errors.Is(err, context.Canceled):
		slog.WarnContext(ctx, "request cancelled while loading inputs", "kind", kind)
		WriteError(w, ctx, ErrCodeUnavailable, "Request cancelled")
	default:
		slog.ErrorContext(ctx, "failed to load ranking inputs", "kind", kind, "error", err)
		WriteError(w, ctx, ErrCodeInternal, "Failed to load data")
	}
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		WriteError(w, r.Context(), ErrCodeMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

