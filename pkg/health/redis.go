package health

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisChecker checks Redis connectivity
type RedisChecker struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// NewRedisChecker creates a new Redis health checker
func NewRedisChecker(client redis.UniversalClient, timeout time.Duration) *RedisChecker {
	if timeout == 0 {
		timeout = 3 * time.Second
	}

	return &RedisChecker{
		client:  client,
		timeout: timeout,
	}
}

// Check performs the Redis health check
func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pong, err := c.client.Ping(ctx).Result()
	if err != nil {
		return newResult("redis", StatusUnhealthy, "", err, start)
	}
	if pong != "PONG" {
		return newResult("redis", StatusDegraded, "unexpected ping response", nil, start)
	}

	return newResult("redis", StatusHealthy, "connected", nil, start)
}

// Name returns the checker name
func (c *RedisChecker) Name() string {
	return "redis"
}
