package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

var limiterEpoch = time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

// clockStore returns an in-memory store whose clock the test advances.
func clockStore() (*InMemoryRateLimitStore, func(time.Duration)) {
	now := limiterEpoch
	s := NewInMemoryRateLimitStore()
	s.now = func() time.Time { return now }
	return s, func(d time.Duration) { now = now.Add(d) }
}

func TestInMemoryRateLimitStore_Window(t *testing.T) {
	tests := []struct {
		name          string
		limit         int
		steps         []time.Duration // clock advance before each request
		wantAllowed   []bool
		wantRemaining []int
	}{
		{
			name:          "under limit",
			limit:         3,
			steps:         []time.Duration{0, 0},
			wantAllowed:   []bool{true, true},
			wantRemaining: []int{2, 1},
		},
		{
			name:          "blocks past limit",
			limit:         2,
			steps:         []time.Duration{0, 0, 0},
			wantAllowed:   []bool{true, true, false},
			wantRemaining: []int{1, 0, 0},
		},
		{
			name:          "new window after expiry",
			limit:         1,
			steps:         []time.Duration{0, 30 * time.Second, 30 * time.Second},
			wantAllowed:   []bool{true, false, true},
			wantRemaining: []int{0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, advance := clockStore()
			for i, step := range tt.steps {
				advance(step)
				allowed, remaining, _ := store.Allow(context.Background(), "user:viewer", PerMinute(tt.limit))
				if allowed != tt.wantAllowed[i] || remaining != tt.wantRemaining[i] {
					t.Errorf("request %d: got (%v, %d), want (%v, %d)",
						i+1, allowed, remaining, tt.wantAllowed[i], tt.wantRemaining[i])
				}
			}
		})
	}
}

func TestInMemoryRateLimitStore_RetryAfter(t *testing.T) {
	store, advance := clockStore()
	limit := PerMinute(1)

	store.Allow(context.Background(), "user:viewer", limit)
	advance(20*time.Second + 500*time.Millisecond)

	allowed, _, retryAfter := store.Allow(context.Background(), "user:viewer", limit)
	if allowed {
		t.Fatal("expected second request to be blocked")
	}
	if retryAfter != 40 {
		t.Errorf("retryAfter = %d, want 40 (rounded up)", retryAfter)
	}
}

func TestInMemoryRateLimitStore_Cleanup(t *testing.T) {
	store, advance := clockStore()

	store.Allow(context.Background(), "user:old", RateLimitConfig{RequestsPerWindow: 5, WindowDuration: 10 * time.Second})
	store.Allow(context.Background(), "user:new", PerMinute(5))
	advance(15 * time.Second)

	if n := store.Cleanup(); n != 1 {
		t.Errorf("Cleanup() removed %d, want 1", n)
	}
	if _, ok := store.windows["user:new"]; !ok {
		t.Error("live window was removed")
	}
	if n := store.Cleanup(); n != 0 {
		t.Errorf("second Cleanup() removed %d, want 0", n)
	}
}

func TestInMemoryRateLimitStore_Concurrent(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	limit := PerMinute(50)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _, _ := store.Allow(context.Background(), "user:viewer", limit); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 50 {
		t.Errorf("allowed %d concurrent requests, want 50", got)
	}
}

func TestUserKeyFunc(t *testing.T) {
	tests := []struct {
		name    string
		viewer  string
		remote  string
		headers map[string]string
		want    string
	}{
		{"authenticated viewer", "viewer", "10.0.0.1:5000", nil, "user:viewer"},
		{"viewer wins over address", "alice", "10.0.0.1:5000", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "user:alice"},
		{"peer address fallback", "", "10.0.0.1:5000", nil, "ip:10.0.0.1"},
		{"ipv6 peer", "", "[::1]:5000", nil, "ip:::1"},
		{"forwarding headers ignored", "", "10.0.0.1:5000", map[string]string{"X-Forwarded-For": "1.2.3.4", "X-Real-IP": "5.6.7.8"}, "ip:10.0.0.1"},
	}

	keyFunc := UserKeyFunc()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/recommendations", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if tt.viewer != "" {
				req = req.WithContext(SetUserID(req.Context(), tt.viewer))
			}

			if got := keyFunc(req); got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RateLimitConfig
		wantErr bool
	}{
		{"per minute", PerMinute(120), false},
		{"zero requests", PerMinute(0), true},
		{"negative requests", PerMinute(-1), true},
		{"zero window", RateLimitConfig{RequestsPerWindow: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRateLimit) {
				t.Errorf("error %v does not wrap ErrInvalidRateLimit", err)
			}
		})
	}
}

// Both stores behave the same behind RateLimiter: each viewer has an
// independent window and the third request in a limit of two is rejected.
func TestRateLimiter_PerViewer(t *testing.T) {
	stores := map[string]func(t *testing.T) RateLimitStore{
		"memory": func(*testing.T) RateLimitStore { return NewInMemoryRateLimitStore() },
		"redis": func(t *testing.T) RateLimitStore {
			_, store := newRedisStore(t)
			return store
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			m, _ := newRegisteredMetrics(t)
			handler := RateLimiter(newStore(t), PerMinute(2), UserKeyFunc(), m)(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				}))

			serve := func(viewer string) *httptest.ResponseRecorder {
				req := httptest.NewRequest(http.MethodGet, "/timeline/for-you?limit=5", nil)
				req = req.WithContext(SetUserID(req.Context(), viewer))
				rr := httptest.NewRecorder()
				handler.ServeHTTP(rr, req)
				return rr
			}

			for i := 0; i < 2; i++ {
				rr := serve("alice")
				if rr.Code != http.StatusOK {
					t.Fatalf("alice request %d: status %d", i+1, rr.Code)
				}
				if got, want := rr.Header().Get("X-RateLimit-Remaining"), strconv.Itoa(1-i); got != want {
					t.Errorf("alice request %d: X-RateLimit-Remaining = %q, want %q", i+1, got, want)
				}
			}

			blocked := serve("alice")
			if blocked.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", blocked.Code)
			}
			if got := blocked.Header().Get("X-RateLimit-Limit"); got != "2" {
				t.Errorf("X-RateLimit-Limit = %q, want 2", got)
			}
			if retry, err := strconv.Atoi(blocked.Header().Get("Retry-After")); err != nil || retry < 1 || retry > 60 {
				t.Errorf("Retry-After = %q", blocked.Header().Get("Retry-After"))
			}
			if blocked.Header().Get("X-RateLimit-Reset") == "" {
				t.Error("expected X-RateLimit-Reset")
			}
			if !strings.Contains(blocked.Body.String(), `"code":"rate_limited"`) {
				t.Errorf("expected rate_limited envelope, got %s", blocked.Body.String())
			}

			if rr := serve("bob"); rr.Code != http.StatusOK {
				t.Errorf("bob should have his own window, got %d", rr.Code)
			}

			allowed := testutil.ToFloat64(m.rateLimitDecisions.WithLabelValues("/timeline/for-you", "user", DecisionAllowed))
			rejected := testutil.ToFloat64(m.rateLimitDecisions.WithLabelValues("/timeline/for-you", "user", DecisionBlocked))
			if allowed != 3 || rejected != 1 {
				t.Errorf("decisions allowed=%v blocked=%v, want 3 and 1", allowed, rejected)
			}
		})
	}
}

func TestRateLimiter_SetsErrorCodeForLogs(t *testing.T) {
	store, _ := clockStore()
	handler := RateLimiter(store, PerMinute(1), UserKeyFunc(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	var codes []string
	for i := 0; i < 2; i++ {
		info := &requestInfo{}
		req := httptest.NewRequest(http.MethodGet, "/analytics", nil)
		ctx := context.WithValue(req.Context(), requestInfoKey{}, info)
		req = req.WithContext(SetUserID(ctx, "viewer"))
		handler.ServeHTTP(httptest.NewRecorder(), req)
		codes = append(codes, info.errorCode)
	}

	if codes[0] != "" || codes[1] != ErrorCodeRateLimited {
		t.Errorf("error codes = %q, want [\"\" %q]", codes, ErrorCodeRateLimited)
	}
}
