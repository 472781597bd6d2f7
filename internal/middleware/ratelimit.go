package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrorCodeRateLimited is set on the request when it is rejected by RateLimiter.
const ErrorCodeRateLimited = "rate_limited"

// ErrInvalidRateLimit is returned by RateLimitConfig.Validate.
var ErrInvalidRateLimit = errors.New("invalid rate limit")

// Rate limit key prefixes. The prefix doubles as the key_type metric label.
const (
	keyPrefixUser = "user:"
	keyPrefixIP   = "ip:"
)

// RateLimitConfig is a fixed window: RequestsPerWindow per WindowDuration.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Validate requires a positive request count and window.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("%w: %d requests per window", ErrInvalidRateLimit, c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("%w: window %s", ErrInvalidRateLimit, c.WindowDuration)
	}
	return nil
}

// PerMinute returns a config allowing n requests per minute.
func PerMinute(n int) RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: n, WindowDuration: time.Minute}
}

// RateLimitStore holds window counters. Allow records one request for key
// and reports whether it fits, how many requests remain, and when blocked
// the seconds until the window resets.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, remaining int, retryAfter int)
}

type window struct {
	count int
	end   time.Time
}

// InMemoryRateLimitStore keeps fixed windows in process. Use it for a
// single instance; RedisRateLimitStore shares windows across instances.
// Expired windows are dropped by Cleanup.
type InMemoryRateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewInMemoryRateLimitStore creates an empty in-memory store.
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{windows: make(map[string]*window), now: time.Now}
}

// Allow implements RateLimitStore.
func (s *InMemoryRateLimitStore) Allow(_ context.Context, key string, config RateLimitConfig) (bool, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.end) {
		s.windows[key] = &window{count: 1, end: now.Add(config.WindowDuration)}
		return true, config.RequestsPerWindow - 1, 0
	}
	if w.count < config.RequestsPerWindow {
		w.count++
		return true, config.RequestsPerWindow - w.count, 0
	}
	return false, 0, retryAfterSeconds(w.end.Sub(now))
}

// Cleanup drops expired windows and returns how many were removed.
func (s *InMemoryRateLimitStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.end) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// retryAfterSeconds rounds a remaining window up to whole seconds, minimum 1.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs <= 0 {
		return 1
	}
	return secs
}

// KeyFunc extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request) string

// UserKeyFunc keys requests by the authenticated viewer, so each viewer has
// their own window. Requests without a viewer fall back to the peer
// address. Forwarding headers are ignored since clients can set them.
func UserKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		if id := GetUserID(r.Context()); id != "" {
			return keyPrefixUser + id
		}
		return keyPrefixIP + peerAddr(r)
	}
}

func peerAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// keyType returns the metrics label for a key produced by UserKeyFunc.
func keyType(key string) string {
	if strings.HasPrefix(key, keyPrefixUser) {
		return "user"
	}
	return "ip"
}

// RateLimiter rejects requests over config with 429 and the API error
// envelope. Every response carries X-RateLimit-Limit and
// X-RateLimit-Remaining. metrics may be nil.
func RateLimiter(store RateLimitStore, config RateLimitConfig, keyFunc KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	limit := strconv.Itoa(config.RequestsPerWindow)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			allowed, remaining, retryAfter := store.Allow(r.Context(), key, config)
			metrics.observeRateLimit(normalizePath(r.URL.Path), keyType(key), allowed)

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			SetErrorCode(r.Context(), ErrorCodeRateLimited)
			reset := time.Now().Add(time.Duration(retryAfter) * time.Second).Unix()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]map[string]string{
				"error": {"code": ErrorCodeRateLimited, "message": "Too many requests"},
			})
		})
	}
}
