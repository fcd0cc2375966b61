package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter counts requests per key in fixed one-minute windows
type RateLimiter struct {
	client            *Client
	requestsPerMinute int
	burst             int
	now               func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		client:            client,
		requestsPerMinute: requestsPerMinute,
		burst:             burst,
		now:               time.Now,
	}
}

// Allow records one request for key and reports whether it fits the window
func (r *RateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	windowStart := r.now().Truncate(time.Minute)
	fullKey := fmt.Sprintf("%s%s:%d", rateLimitPrefix, key, windowStart.Unix())

	pipe := r.client.rdb.Pipeline()
	incrCmd := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, time.Minute)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Decision{}, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	limit := r.requestsPerMinute + r.burst
	count := int(incrCmd.Val())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   windowStart.Add(time.Minute),
	}, nil
}

// Reset clears the current window for key
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	windowStart := r.now().Truncate(time.Minute)
	return r.client.rdb.Del(ctx, fmt.Sprintf("%s%s:%d", rateLimitPrefix, key, windowStart.Unix())).Err()
}
