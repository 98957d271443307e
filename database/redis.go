package database

import (
	"DentalClinic/config"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// ErrLockNotOwned is returned when releasing a lock held by someone else.
var ErrLockNotOwned = errors.New("lock release failed: not the lock owner")

// NewRedisClient creates a Redis client with the provided configuration
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.MaxRetries = cfg.MaxRetries

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis server: %w", err)
	}

	logger.Info().
		Int("pool_size", cfg.PoolSize).
		Int("min_idle_conns", cfg.MinIdleConns).
		Dur("dial_timeout", cfg.DialTimeout).
		Dur("read_timeout", cfg.ReadTimeout).
		Int("max_retries", cfg.MaxRetries).
		Msg("redis client initialized")
	return client, nil
}

const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// Locker hands out redis SETNX locks. A nil client turns every lock into a no-op.
type Locker struct {
	client  *redis.Client
	release *redis.Script
}

// NewLocker creates a Locker backed by client.
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client, release: redis.NewScript(releaseLockScript)}
}

// Acquire tries to take the lock once.
func (l *Locker) Acquire(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if l == nil || l.client == nil {
		return true, nil
	}
	return l.client.SetNX(ctx, key, value, ttl).Result()
}

// Release frees the lock if value still owns it.
func (l *Locker) Release(ctx context.Context, key, value string) error {
	if l == nil || l.client == nil {
		return nil
	}
	result, err := l.release.Run(ctx, l.client, []string{key}, value).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if n, ok := result.(int64); !ok || n == 0 {
		return ErrLockNotOwned
	}
	return nil
}
