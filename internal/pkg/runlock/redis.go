package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Deletes the key only while it still carries our token, so an expired
// lease never frees a lock taken over by someone else.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Extends the key only while it still carries our token.
const extendScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`

// RedisLocker shares locks between processes through Redis. A held lease
// is renewed every third of its TTL until released.
type RedisLocker struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	token  func() string
}

// NewRedisLocker creates a RedisLocker. ttl bounds how long a crashed
// holder blocks the lock; it defaults to one minute.
func NewRedisLocker(client redis.Cmdable, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, token: uuid.NewString}
}

func (r *RedisLocker) key(name string) string {
	return r.prefix + "lock:" + name
}

// TryAcquire takes the lock or returns ErrLocked without waiting.
func (r *RedisLocker) TryAcquire(ctx context.Context, name string) (*Lease, error) {
	key := r.key(name)
	token := r.token()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, name)
	}

	lease := newLease(name, func(ctx context.Context) error {
		if err := r.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lock %s: %w", name, err)
		}
		return nil
	})
	lease.keepAlive(r.ttl/3, r.ttl, func(ctx context.Context) (bool, error) {
		n, err := r.client.Eval(ctx, extendScript, []string{key}, token, r.ttl.Milliseconds()).Int64()
		if err != nil {
			return false, err
		}
		return n == 1, nil
	})
	return lease, nil
}
