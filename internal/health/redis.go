// Package health provides readiness checks for the stores the ranking API depends on.
package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Checker is implemented by every dependency check.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// RedisChecker implements health checking for Redis.
type RedisChecker struct {
	client redis.Cmdable
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client redis.Cmdable) *RedisChecker {
	return &RedisChecker{client: client}
}

// HealthCheck sends a PING command.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
