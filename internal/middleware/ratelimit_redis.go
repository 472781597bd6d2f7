package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the counter for KEYS[1], starting a window of
// ARGV[1] milliseconds on the first hit, and returns {count, pttl}.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {count, ttl}
`)

// RedisRateLimitStore implements RateLimitStore with a fixed window counter
// shared by every API instance. It fails open when Redis is unavailable.
type RedisRateLimitStore struct {
	client  redis.Scripter
	prefix  string
	metrics *Metrics
}

// NewRedisRateLimitStore creates a Redis-backed rate limit store.
func NewRedisRateLimitStore(client redis.Scripter) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, prefix: "ratelimit:"}
}

// WithMetrics records fail-open events on m.
func (s *RedisRateLimitStore) WithMetrics(m *Metrics) *RedisRateLimitStore {
	s.metrics = m
	return s
}

// Allow implements RateLimitStore.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	count, ttl, err := s.incr(ctx, s.prefix+key, config.WindowDuration)
	if err != nil {
		s.metrics.observeStoreError()
		slog.WarnContext(ctx, "rate limit store unavailable, allowing request", "error", err)
		return true, config.RequestsPerWindow, 0
	}

	if count <= int64(config.RequestsPerWindow) {
		return true, config.RequestsPerWindow - int(count), 0
	}
	return false, 0, retryAfterSeconds(ttl)
}

func (s *RedisRateLimitStore) incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := fixedWindowScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("rate limit increment: %w", err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("rate limit increment: unexpected reply length %d", len(res))
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}
