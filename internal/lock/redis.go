package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the key's expiry only while it still carries our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker is a Locker shared by every instance pointing at the same Redis.
type RedisLocker struct {
	client redis.UniversalClient
}

// NewRedisLocker wraps a go-redis client.
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

// TryAcquire implements Locker using SET NX PX.
func (r *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lease, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquiring %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lease{
		key: key,
		release: func(ctx context.Context) error {
			if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
				return fmt.Errorf("releasing %s: %w", key, err)
			}
			return nil
		},
		refresh: func(ctx context.Context, ttl time.Duration) (bool, error) {
			n, err := refreshScript.Run(ctx, r.client, []string{key}, token, ttl.Milliseconds()).Int()
			if err != nil {
				return false, fmt.Errorf("refreshing %s: %w", key, err)
			}
			return n == 1, nil
		},
	}, true, nil
}

// Acquire implements Locker.
func (r *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	return acquireLoop(ctx, func() (*Lease, bool, error) {
		return r.TryAcquire(ctx, key, ttl)
	})
}
