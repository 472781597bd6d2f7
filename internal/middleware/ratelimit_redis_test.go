package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

var _ RateLimitStore = (*RedisRateLimitStore)(nil)

func newRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisRateLimitStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisRateLimitStore(client)
}

type decision struct {
	allowed   bool
	remaining int
}

func TestRedisRateLimitStore_Allow(t *testing.T) {
	tests := []struct {
		name   string
		limit  int
		keys   []string
		expect []decision
	}{
		{
			name:   "counts down then blocks",
			limit:  3,
			keys:   []string{"viewer:a", "viewer:a", "viewer:a", "viewer:a"},
			expect: []decision{{true, 2}, {true, 1}, {true, 0}, {false, 0}},
		},
		{
			name:   "keys have separate windows",
			limit:  1,
			keys:   []string{"viewer:a", "viewer:b", "viewer:a", "viewer:b"},
			expect: []decision{{true, 0}, {true, 0}, {false, 0}, {false, 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, store := newRedisStore(t)
			config := RateLimitConfig{RequestsPerWindow: tt.limit, WindowDuration: time.Minute}

			for i, key := range tt.keys {
				allowed, remaining, retryAfter := store.Allow(context.Background(), key, config)
				if got := (decision{allowed, remaining}); got != tt.expect[i] {
					t.Errorf("request %d (%s) = %+v, want %+v", i+1, key, got, tt.expect[i])
				}
				if !allowed && (retryAfter < 1 || retryAfter > 60) {
					t.Errorf("request %d: retryAfter = %d, want 1..60", i+1, retryAfter)
				}
			}
		})
	}
}

func TestRedisRateLimitStore_Window(t *testing.T) {
	mr, store := newRedisStore(t)
	ctx := context.Background()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 100 * time.Millisecond}

	store.Allow(ctx, "ip:10.0.0.1", config)
	if ttl := mr.TTL("ratelimit:ip:10.0.0.1"); ttl <= 0 || ttl > config.WindowDuration {
		t.Fatalf("counter TTL = %v, keys %v", ttl, mr.Keys())
	}
	if allowed, _, _ := store.Allow(ctx, "ip:10.0.0.1", config); allowed {
		t.Fatal("second request inside the window was allowed")
	}

	mr.FastForward(150 * time.Millisecond)
	if allowed, _, _ := store.Allow(ctx, "ip:10.0.0.1", config); !allowed {
		t.Error("request after the window was blocked")
	}
}

func TestRedisRateLimitStore_FailsOpen(t *testing.T) {
	mr, store := newRedisStore(t)
	mr.Close()

	m := NewMetrics()
	if err := m.Register(prometheus.NewRegistry()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	store.WithMetrics(m)

	allowed, remaining, _ := store.Allow(context.Background(), "viewer:a", PerMinute(5))
	if !allowed || remaining != 5 {
		t.Errorf("Allow() with redis down = %v, %d; want true, 5", allowed, remaining)
	}
	if got := testutil.ToFloat64(m.rateLimitStoreErrors); got != 1 {
		t.Errorf("store errors = %v, want 1", got)
	}
}
