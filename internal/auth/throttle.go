package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle counts failed login attempts per key and locks the key out once the limit is hit.
type Throttle interface {
	// Blocked reports the remaining lockout when the key has too many failures.
	Blocked(ctx context.Context, key string) (time.Duration, bool, error)
	Hit(ctx context.Context, key string) error
	Clear(ctx context.Context, key string) error
}

// RedisThrottle keeps failure counters in Redis with a window equal to the lockout.
type RedisThrottle struct {
	client      *redis.Client
	maxAttempts int64
	window      time.Duration
}

// NewRedisThrottle builds a throttle allowing maxAttempts failures per window.
func NewRedisThrottle(client *redis.Client, maxAttempts int, window time.Duration) *RedisThrottle {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisThrottle{client: client, maxAttempts: int64(maxAttempts), window: window}
}

func (t *RedisThrottle) Blocked(ctx context.Context, key string) (time.Duration, bool, error) {
	redisKey := t.key(key)
	count, err := t.client.Get(ctx, redisKey).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read throttle counter: %w", err)
	}
	if count < t.maxAttempts {
		return 0, false, nil
	}
	ttl, err := t.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return 0, false, fmt.Errorf("read throttle ttl: %w", err)
	}
	if ttl <= 0 {
		ttl = t.window
	}
	return ttl, true, nil
}

func (t *RedisThrottle) Hit(ctx context.Context, key string) error {
	redisKey := t.key(key)
	count, err := t.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return fmt.Errorf("record throttle hit: %w", err)
	}
	// The window starts at the first failure.
	if count == 1 {
		if err := t.client.Expire(ctx, redisKey, t.window).Err(); err != nil {
			return fmt.Errorf("set throttle window: %w", err)
		}
	}
	return nil
}

func (t *RedisThrottle) Clear(ctx context.Context, key string) error {
	return t.client.Del(ctx, t.key(key)).Err()
}

func (t *RedisThrottle) key(key string) string {
	return "login_throttle:" + key
}

// ThrottleKey combines the login identifier and client IP.
func ThrottleKey(identifier, ip string) string {
	return strings.ToLower(strings.TrimSpace(identifier)) + "|" + ip
}
