package rateLimit

import (
	"context"
	"time"

	redisadapter "github.com/robertarktes/bus-booking-gateway/internal/adapters/redis"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

// RateLimiter is a fixed-window counter per key, shared by every replica.
type RateLimiter struct {
	redis  *redisadapter.Cache
	rate   int
	period time.Duration
}

func NewRateLimiter(redis *redisadapter.Cache, rate int, period time.Duration) *RateLimiter {
	return &RateLimiter{redis: redis, rate: rate, period: period}
}

// Allow counts one request for key. A Redis failure is returned with
// allowed=true; the caller decides whether to fail open.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	fullKey := "rl:" + key

	pipe := rl.redis.Client().Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, rl.period)

	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}

	if incr.Val() > int64(rl.rate) {
		observability.RateLimitExceeded.Inc()
		return false, nil
	}
	return true, nil
}
