// Package middleware provides HTTP middleware components for the ranking API.
package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

type (
	userIDKey      struct{}
	errorCodeKey   struct{}
	requestInfoKey struct{}
)

// requestInfo is installed by Logging and filled in by inner middleware and
// handlers. Their derived contexts never reach the outer request, so the
// values travel through this shared pointer instead.
type requestInfo struct {
	mu        sync.Mutex
	userID    string
	errorCode string
	traceID   string
}

// update applies fn to the request's info, if Logging installed one.
func update(ctx context.Context, fn func(*requestInfo)) {
	info, _ := ctx.Value(requestInfoKey{}).(*requestInfo)
	if info == nil {
		return
	}
	info.mu.Lock()
	fn(info)
	info.mu.Unlock()
}

func (i *requestInfo) attrs(status int) []slog.Attr {
	i.mu.Lock()
	defer i.mu.Unlock()

	var out []slog.Attr
	if i.traceID != "" {
		out = append(out, slog.String("trace_id", i.traceID))
	}
	if i.userID != "" {
		out = append(out, slog.String("user_id", i.userID))
	}
	if status >= 400 && i.errorCode != "" {
		out = append(out, slog.String("error_code", i.errorCode))
	}
	return out
}

// SetUserID records the authenticated viewer on ctx and in the request log.
func SetUserID(ctx context.Context, userID string) context.Context {
	update(ctx, func(i *requestInfo) { i.userID = userID })
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetUserID returns the viewer set by SetUserID, or "".
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// SetErrorCode records the error code of a failed response.
func SetErrorCode(ctx context.Context, code string) context.Context {
	update(ctx, func(i *requestInfo) { i.errorCode = code })
	return context.WithValue(ctx, errorCodeKey{}, code)
}

// GetErrorCode returns the code set by SetErrorCode, or "".
func GetErrorCode(ctx context.Context) string {
	code, _ := ctx.Value(errorCodeKey{}).(string)
	return code
}

// responseWriter remembers the first status written and counts body bytes.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int
	wroteHeader bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode, rw.wroteHeader = code, true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// NewLogger returns the process logger on stdout: JSON at info in
// production, text at debug elsewhere.
func NewLogger(env string) *slog.Logger {
	return newLogger(os.Stdout, env)
}

func newLogger(w io.Writer, env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// Logging writes one "request completed" entry per request, levelled by
// status. Besides method, path, route, status, latency and size it adds the
// request ID, trace ID and viewer when known, and error_code on failures.
// Nothing is logged for a request whose handler panics.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &requestInfo{}
			r = r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info))
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", normalizePath(r.URL.Path)),
				slog.Int("status", rw.statusCode),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
				slog.Int("size", rw.size),
			}
			if id := GetRequestID(r.Context()); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			attrs = append(attrs, info.attrs(rw.statusCode)...)

			logger.LogAttrs(r.Context(), levelFor(rw.statusCode), "request completed", attrs...)
		})
	}
}
