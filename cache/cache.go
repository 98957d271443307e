package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrNotInitialized is returned by every method of a Cache without a redis client.
var ErrNotInitialized = errors.New("Redis client is not initialized")

type Cache struct {
	client *redis.Client
}

// NewCache creates a new Cache instance. A nil client yields a cache whose
// reads always miss and whose writes fail with ErrNotInitialized.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Enabled reports whether the cache has a redis client behind it.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.Enabled() {
		return ErrNotInitialized
	}
	return c.client.Del(ctx, key).Err()
}

func (c *Cache) DeleteAll(ctx context.Context, pattern string) error {
	if !c.Enabled() {
		return ErrNotInitialized
	}
	// Use SCAN for better efficiency on large datasets
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !c.Enabled() {
		return ErrNotInitialized
	}
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	if !c.Enabled() {
		return "", ErrNotInitialized
	}
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil // key does not exist
	}
	return val, err
}

// SetJSON marshals value and stores it under key.
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.Set(ctx, key, data, expiration)
}

// GetJSON loads key into dest. found is false on a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := c.Get(ctx, key)
	if err != nil || val == "" {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}
