package middleware

import (
	"net/http"
	"strings"
	"time"
)

// knownRoutes lists the routes served by the API. The ranking routes carry
// no path parameters, so normalization is an exact lookup.
var knownRoutes = map[string]bool{
	"/recommendations":  true,
	"/timeline/for-you": true,
	"/analytics":        true,
	"/health":           true,
	"/ready":            true,
	"/metrics":          true,
}

// healthRoutes are polled by orchestrators and kept out of request metrics.
var healthRoutes = map[string]bool{
	"/health": true,
	"/ready":  true,
}

// UnmatchedRoute is the route label recorded for requests outside knownRoutes.
const UnmatchedRoute = "unmatched"

// normalizePath maps a request path to a bounded route label. Trailing
// slashes are ignored.
func normalizePath(path string) string {
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if knownRoutes[path] {
		return path
	}
	return UnmatchedRoute
}

// HTTPMetrics records duration, count and response size per route.
// Liveness and readiness checks are not recorded.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := normalizePath(r.URL.Path)
			if healthRoutes[route] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			metrics.observeHTTP(r.Method, route, rw.statusCode, time.Since(start), rw.size)
		})
	}
}
