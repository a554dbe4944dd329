// Package storage provides durable key/value persistence for Tactix.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tactix/pkg/logger"
)

// Backend is synchronous key/value storage. Get reports ok=false for a key
// that was never written. There are no transactions; last write wins.
type Backend interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// RedisClient wraps go-redis client.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient connects to redisURL. When the URL is empty, invalid or
// unreachable it logs the reason and returns a memory backend instead.
func NewRedisClient(ctx context.Context, redisURL string) Backend {
	if redisURL == "" {
		logger.Log.Warn("Redis not configured (REDIS_URL missing), using memory only")
		return NewMemory()
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Log.Warnf("Failed to parse REDIS_URL: %v", err)
		return NewMemory()
	}

	opt.PoolSize = 5
	opt.MinIdleConns = 1
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.Warnf("Redis connection failed: %v", err)
		_ = client.Close()
		return NewMemory()
	}

	logger.Log.Info("Redis connected successfully")
	return &RedisClient{client: client}
}

// Get retrieves a value from Redis.
func (r *RedisClient) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set stores a value in Redis (no expiration).
func (r *RedisClient) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

// Delete removes a key from Redis.
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Close releases the connection pool.
func (r *RedisClient) Close() error {
	return r.client.Close()
}
