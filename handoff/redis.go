package handoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV backs the handoff store with Redis, for multi-process
// deployments where the anonymous creation request and the interactive
// session may land on different instances.
type RedisKV struct {
	client *redis.Client
}

var _ KV = (*RedisKV)(nil)

func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

// NewRedisKVFromURL connects using a redis:// URL.
func NewRedisKVFromURL(url string) (*RedisKV, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return NewRedisKV(redis.NewClient(opts)), nil
}

func (r *RedisKV) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.SetEx(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis setex: %w", err)
	}
	return nil
}

func (r *RedisKV) GetDel(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis getdel: %w", err)
	}
	return value, true, nil
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}
