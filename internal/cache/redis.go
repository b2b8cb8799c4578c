package cache

import (
	"context"
	"fmt"
	"time"
)

// RedisEvaler abstracts the minimal surface needed from a Redis client.
// github.com/redis/go-redis/v9's *redis.Client.Eval returns a *redis.Cmd
// rather than this signature's (interface{}, error) pair, so callers
// wrap it in a thin adapter calling .Result() on the returned Cmd.
type RedisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// RedisStore is a cross-process Store backed by Redis. Concurrent
// computation of the same key across processes is resolved first-writer-
// wins via an idempotent SETNX; since the cached computation is
// deterministic, whichever writer's value sticks is as good as any other.
type RedisStore struct {
	client RedisEvaler
	ttl    time.Duration
}

// NewRedisStore returns a store using client, expiring each entry ttl
// after it is written; reads do not extend it (a non-positive ttl
// defaults to 24h, guarding against
// unbounded growth across many analysis runs).
func NewRedisStore(client RedisEvaler, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

// getScript returns the value stored at KEYS[1], or false if absent.
const getScript = `
local v = redis.call('GET', KEYS[1])
if v then
  return v
end
return false
`

// setIfAbsentScript claims KEYS[1] for the first writer only: a
// concurrent second writer's SETNX is a no-op.
const setIfAbsentScript = `
local set = redis.call('SETNX', KEYS[1], ARGV[1])
if set == 1 then
  local ttl = tonumber(ARGV[2])
  if ttl and ttl > 0 then
    redis.call('EXPIRE', KEYS[1], ttl)
  end
  return 1
else
  return 0
end
`

// GetOrCompute implements Store.
func (s *RedisStore) GetOrCompute(ctx context.Context, key string, compute func() ([]byte, error)) ([]byte, error) {
	if v, ok, err := s.get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return v, nil
	}

	v, err := compute()
	if err != nil {
		return nil, err
	}
	if err := s.setIfAbsent(ctx, key, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *RedisStore) get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := s.client.Eval(ctx, getScript, []string{key})
	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get %s: %w", key, err)
	}
	switch v := res.(type) {
	case nil:
		return nil, false, nil
	case bool:
		return nil, false, nil
	case string:
		return []byte(v), true, nil
	case []byte:
		return v, true, nil
	default:
		return nil, false, fmt.Errorf("cache: unexpected redis GET result type %T", res)
	}
}

func (s *RedisStore) setIfAbsent(ctx context.Context, key string, value []byte) error {
	_, err := s.client.Eval(ctx, setIfAbsentScript, []string{key}, string(value), int(s.ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("cache: redis set %s: %w", key, err)
	}
	return nil
}
