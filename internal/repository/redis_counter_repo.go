package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript increments a counter and starts its expiry on the first hit.
// Running both commands in one script keeps increment-and-expire atomic.
var incrScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// decrScript gives back one unit of a live counter. It never creates a key,
// so an expired window cannot come back without a TTL.
var decrScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n > 0 then
	return redis.call('DECR', KEYS[1])
end
return 0
`)

// RedisCounterRepo implements domain.CounterRepository using Redis.
// It backs login attempt counters and API rate-limit windows.
type RedisCounterRepo struct {
	client *redis.Client
}

// NewRedisCounterRepo creates a new repository instance.
func NewRedisCounterRepo(client *redis.Client) *RedisCounterRepo {
	return &RedisCounterRepo{client: client}
}

// Incr atomically increments key, setting ttl only when the key is created.
func (r *RedisCounterRepo) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := incrScript.Run(ctx, r.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, storageErr("increment counter", err)
	}
	return n, nil
}

// Decr atomically decrements key if it holds a positive count.
func (r *RedisCounterRepo) Decr(ctx context.Context, key string) (int64, error) {
	n, err := decrScript.Run(ctx, r.client, []string{key}).Int64()
	if err != nil {
		return 0, storageErr("decrement counter", err)
	}
	return n, nil
}

// Get returns the counter value. A missing key counts as zero.
func (r *RedisCounterRepo) Get(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, storageErr("read counter", err)
	}
	return n, nil
}

// TTL returns the time left before the counter expires, or zero if it does not exist.
func (r *RedisCounterRepo) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, storageErr("read counter ttl", err)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// Reset deletes the counter.
func (r *RedisCounterRepo) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return storageErr("reset counter", err)
	}
	return nil
}
