package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix prefixes every key written by a RedisBackend.
const RedisKeyPrefix = "catalog:session:"

// NewSessionID returns a fresh browsing-session id.
func NewSessionID() string {
	return uuid.NewString()
}

// RedisBackend stores one browsing session's values in Redis. Every key is
// namespaced by the session id; ttl (if > 0) is refreshed on each access so
// the cache disappears once the session goes idle.
type RedisBackend struct {
	redis     *redis.Client
	sessionID string
	ttl       time.Duration
}

// NewRedisBackend creates a backend for one browsing session.
func NewRedisBackend(redisClient *redis.Client, sessionID string, ttl time.Duration) *RedisBackend {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	return &RedisBackend{
		redis:     redisClient,
		sessionID: sessionID,
		ttl:       ttl,
	}
}

// SessionID returns the browsing session this backend is scoped to.
func (r *RedisBackend) SessionID() string {
	return r.sessionID
}

func (r *RedisBackend) redisKey(key string) string {
	return RedisKeyPrefix + r.sessionID + ":" + key
}

// GetItem returns the value stored under key for this session.
func (r *RedisBackend) GetItem(ctx context.Context, key string) (string, bool, error) {
	rk := r.redisKey(key)
	val, err := r.redis.Get(ctx, rk).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}

	if r.ttl > 0 {
		if err := r.redis.Expire(ctx, rk, r.ttl).Err(); err != nil {
			return "", false, fmt.Errorf("redis expire: %w", err)
		}
	}
	return val, true, nil
}

// SetItem stores value under key for this session.
func (r *RedisBackend) SetItem(ctx context.Context, key, value string) error {
	if err := r.redis.Set(ctx, r.redisKey(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Clear removes every key of this session. Called when the browsing session
// ends.
func (r *RedisBackend) Clear(ctx context.Context) error {
	iter := r.redis.Scan(ctx, 0, RedisKeyPrefix+r.sessionID+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Name implements named.
func (r *RedisBackend) Name() string { return "redis" }
