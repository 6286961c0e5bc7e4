package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Redis is a Cache shared between server and worker replicas.
type Redis struct {
	rdb    goredis.Cmdable
	prefix string
}

type NewRedisParams struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces all keys, defaults to "codex:".
	Prefix string
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(ctx context.Context, params NewRedisParams) (*Redis, *goredis.Client, error) {
	if params.Addr == "" {
		return nil, nil, errors.New("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        params.Addr,
		Password:    params.Password,
		DB:          params.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisWithClient(rdb, params.Prefix), rdb, nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(rdb goredis.Cmdable, prefix string) *Redis {
	if prefix == "" {
		prefix = "codex:"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.prefix+key).Err()
}
