package profile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is used when NewRedisCache is given a non-positive TTL.
const DefaultCacheTTL = 5 * time.Minute

const cacheKeyPrefix = "profile:v1:"

// RedisCache is a read-through cache in front of another Repository.
// Single profiles are cached; candidate lists always go to the backing store.
// Redis failures are logged and the backing store is used instead.
type RedisCache struct {
	next   Repository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache wraps next with a Redis cache.
func NewRedisCache(next Repository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(id string) string {
	return cacheKeyPrefix + id
}

// GetByID returns the cached profile or loads and caches it.
func (c *RedisCache) GetByID(ctx context.Context, id string) (*Profile, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case err == nil:
		var p Profile
		jsonErr := json.Unmarshal(data, &p)
		if jsonErr == nil {
			return &p, nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable cached profile",
			slog.String("profile_id", id),
			slog.String("error", jsonErr.Error()))
	case errors.Is(err, redis.Nil):
		// miss
	default:
		c.logger.WarnContext(ctx, "profile cache read failed",
			slog.String("profile_id", id),
			slog.String("error", err.Error()))
	}

	p, err := c.next.GetByID(ctx, id)
	if errors.Is(err, ErrProfileNotFound) {
		// An undecodable entry must not outlive the profile it described.
		c.invalidate(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	c.store(ctx, p)
	return p, nil
}

// ListCandidates delegates to the backing repository.
func (c *RedisCache) ListCandidates(ctx context.Context, excludeID string, limit int) ([]*Profile, error) {
	return c.next.ListCandidates(ctx, excludeID, limit)
}

func (c *RedisCache) invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		c.logger.WarnContext(ctx, "profile cache delete failed",
			slog.String("profile_id", id),
			slog.String("error", err.Error()))
	}
}

func (c *RedisCache) store(ctx context.Context, p *Profile) {
	data, err := json.Marshal(p)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to encode profile for cache",
			slog.String("profile_id", p.ID),
			slog.String("error", err.Error()))
		return
	}
	if err := c.client.Set(ctx, cacheKey(p.ID), data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "profile cache write failed",
			slog.String("profile_id", p.ID),
			slog.String("error", err.Error()))
	}
}
