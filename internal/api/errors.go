// Package api serves the ranking endpoints: recommendations, the for-you
// timeline and profile analytics, plus health checks.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/onnwee/rendezvous/internal/middleware"
)

// Error codes returned in the error envelope.
const (
	ErrCodeValidation       = "validation_error"
	ErrCodeAuthFailed       = middleware.ErrorCodeAuthFailed
	ErrCodeProfileNotFound  = "profile_not_found"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = middleware.ErrorCodeRateLimited
	ErrCodeUnavailable      = "service_unavailable"
	ErrCodeInternal         = "internal_error"
)

// statusByCode fixes the HTTP status for each code. Unknown codes are 500.
var statusByCode = map[string]int{
	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeAuthFailed:       http.StatusUnauthorized,
	ErrCodeProfileNotFound:  http.StatusNotFound,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeMethodNotAllowed: http.StatusMethodNotAllowed,
	ErrCodeRateLimited:      http.StatusTooManyRequests,
	ErrCodeUnavailable:      http.StatusServiceUnavailable,
	ErrCodeInternal:         http.StatusInternalServerError,
}

// StatusFor returns the HTTP status sent with code.
func StatusFor(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorResponse is the body of every error: {"error":{"code":..., "message":...}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code and a message for people.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes the error envelope with the status for code and records
// code for the request log.
func WriteError(w http.ResponseWriter, ctx context.Context, code, message string) {
	ctx = middleware.SetErrorCode(ctx, code)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(StatusFor(code))
	err := json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
	if err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "code", code, "error", err)
	}
}
