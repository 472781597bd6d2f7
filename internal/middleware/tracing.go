package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// Tracing wraps each request in a server span named "METHOD route", where
// route is the normalized path, and continues any W3C trace context sent
// by the caller. The trace ID is handed to Logging so request logs can be
// joined with traces; place Tracing inside Logging.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		record := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := GetTraceID(r); id != "" {
				update(r.Context(), func(i *requestInfo) { i.traceID = id })
			}
			next.ServeHTTP(w, r)
		})
		return otelhttp.NewHandler(record, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + normalizePath(r.URL.Path)
			}),
		)
	}
}

// GetTraceID returns the active trace ID for r, or "".
func GetTraceID(r *http.Request) string {
	sc := trace.SpanContextFromContext(r.Context())
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
