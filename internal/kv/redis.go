package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each namespace under prefix+namespace.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to addr and verifies the connection with PING.
func NewRedisStore(ctx context.Context, addr string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, namespace string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+namespace).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get namespace %s: %w", namespace, err)
	}
	return value, true, nil
}

// Set implements Store.
func (r *RedisStore) Set(ctx context.Context, namespace, value string) error {
	if err := r.client.Set(ctx, r.prefix+namespace, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set namespace %s: %w", namespace, err)
	}
	return nil
}

// Close implements Backend.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
