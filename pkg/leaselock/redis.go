package leaselock

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type redisBackend struct {
	rdb    goredis.Cmdable
	prefix string
}

// NewRedis stores leases as Redis keys holding the owner token.
func NewRedis(rdb goredis.Cmdable) *Client {
	return &Client{b: &redisBackend{rdb: rdb, prefix: "lock:"}}
}

// Both scripts only touch the key while it still holds our token.
var (
	acquireScript = goredis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur == false or cur == ARGV[1] then
  redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
  return 1
end
return 0`)

	renewScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)
)

func (r *redisBackend) acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	n, err := acquireScript.Run(ctx, r.rdb, []string{r.prefix + key}, token, ttl.Milliseconds()).Int()
	return n == 1, err
}

func (r *redisBackend) renew(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	n, err := renewScript.Run(ctx, r.rdb, []string{r.prefix + key}, token, ttl.Milliseconds()).Int()
	return n == 1, err
}

func (r *redisBackend) release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, r.rdb, []string{r.prefix + key}, token).Err()
}
