package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound = errors.New("key not found in cache")
	ErrNil      = redis.Nil
)

// RedisCache wraps redis client with common cache operations
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{
		client: client,
	}, nil
}

// Get retrieves a value from cache
func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores a value in cache with expiration
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

// Delete removes keys from cache
func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// Exists checks if a key exists in cache
func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// TTL returns the remaining time to live of a key
func (r *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	return r.client.TTL(ctx, key).Result()
}

// SetNX sets a value only if the key doesn't exist (for distributed locks)
func (r *RedisCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, expiration).Result()
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// lockTTL bounds how long a per-key lock can outlive its holder
const lockTTL = 3 * time.Second

// KeyLock serializes read-modify-write sequences per identifier across
// instances. The counters it guards (failed logins, rate-limit windows) are
// read-then-write at the store layer and would otherwise lose increments
// under concurrent requests from the same identifier.
//
// The lock is best effort: callers proceed without it when Redis is
// unavailable, accepting the original unserialized behavior.
type KeyLock struct {
	cache *RedisCache
}

// NewKeyLock creates a per-key lock backed by the given cache. A nil cache
// yields a no-op lock.
func NewKeyLock(cache *RedisCache) *KeyLock {
	return &KeyLock{cache: cache}
}

// Acquire tries to take the lock for key. It returns a release func and
// whether the lock was actually held. Callers must invoke release either
// way; it is a no-op when the lock was not held.
func (l *KeyLock) Acquire(ctx context.Context, key string) (func(), bool) {
	release := func() {}
	if l == nil || l.cache == nil {
		return release, false
	}

	lockKey := "lock:" + key
	holder := uuid.New().String()

	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		ok, err := l.cache.SetNX(ctx, lockKey, holder, lockTTL)
		if err != nil {
			// Redis down: proceed unlocked
			return release, false
		}
		if ok {
			return func() {
				// Best-effort release; the TTL covers a lost delete
				_ = l.cache.Delete(context.Background(), lockKey)
			}, true
		}
		if time.Now().After(deadline) {
			return release, false
		}
		select {
		case <-ctx.Done():
			return release, false
		case <-time.After(20 * time.Millisecond):
		}
	}
}
