// Package cache wraps the Redis client with small typed helpers.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss indicates the key is absent.
var ErrMiss = errors.New("cache: miss")

// Cache provides JSON value caching with TTL.
type Cache struct {
	client *redis.Client
}

// New constructs a Cache around an existing client.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get unmarshals the cached value into target.
func (c *Cache) Get(ctx context.Context, key string, target any) error {
	if c == nil || c.client == nil {
		return ErrMiss
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	return json.Unmarshal(payload, target)
}

// Set stores value under key with the supplied TTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

// Delete removes a key, ignoring missing entries.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}
