package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Compare and increment in one script so concurrent callers cannot both
// pass the check. Returns {admitted, count}.
var reserveScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local limit = tonumber(ARGV[1])
if current >= limit then
  return {0, current}
end
current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
return {1, current}
`)

type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) IncrementBelow(ctx context.Context, key string, limit uint64, ttl time.Duration) (bool, uint64, error) {
	res, err := reserveScript.Run(ctx, s.client, []string{key}, limit, int64(ttl.Seconds())).Result()
	if err != nil {
		return false, 0, err
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return false, 0, fmt.Errorf("unexpected script reply %T", res)
	}
	admitted, _ := vals[0].(int64)
	count, _ := vals[1].(int64)
	return admitted == 1, uint64(count), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (uint64, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(v, 10, 64)
}
