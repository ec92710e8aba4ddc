package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockPrefix = "checkout:lock:"

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockLost is returned by unlock when the lock expired before release.
var ErrLockLost = errors.New("order lock expired before release")

// Locker implements the OrderLocker port across service replicas.
type Locker struct {
	rdb   *redis.Client
	ttl   time.Duration
	retry time.Duration
}

func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, ttl: ttl, retry: 50 * time.Millisecond}
}

// Lock polls SET NX until the order is free or ctx is done. The TTL bounds
// how long a crashed holder can block the order.
func (l *Locker) Lock(ctx context.Context, orderID string) (func(context.Context) error, error) {
	key := lockPrefix + orderID
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Int()
		if err != nil {
			return fmt.Errorf("redis unlock %s: %w", key, err)
		}
		if n == 0 {
			return ErrLockLost
		}
		return nil
	}, nil
}
