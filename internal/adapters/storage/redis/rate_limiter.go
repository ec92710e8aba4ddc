package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// RateLimiterAdapter is a Redis implementation of the RateLimiterRepository port.
type RateLimiterAdapter struct {
	rdb *redis.Client
}

func NewRateLimiterAdapter(rdb *redis.Client) *RateLimiterAdapter {
	return &RateLimiterAdapter{rdb: rdb}
}

// IsAllowed implements a fixed-window counter. INCR and the first EXPIRE run
// in one transaction so a crash cannot leave a key without a TTL.
func (a *RateLimiterAdapter) IsAllowed(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	key = rateLimitPrefix + key

	var incr *redis.IntCmd
	_, err := a.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis rate limit failed: %w", err)
	}

	return incr.Val() <= int64(limit), nil
}
