package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a Limiter backed by a shared Redis deployment, so that
// attempt budgets hold across engine nodes.
type RedisLimiter struct {
	redis  redis.UniversalClient
	rules  Rules
	prefix string
}

func NewRedisLimiter(redisClient redis.UniversalClient, rules Rules, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rate"
	}
	return &RedisLimiter{
		redis:  redisClient,
		rules:  rules,
		prefix: prefix,
	}
}

func (l *RedisLimiter) key(action Action, key string) string {
	return l.prefix + ":" + string(action) + ":" + key
}

func (l *RedisLimiter) Allow(ctx context.Context, action Action, key string) (time.Duration, error) {
	rule, ok := l.rules[action]
	if !ok || rule.Limit <= 0 {
		return 0, nil
	}

	count, err := l.redis.Get(ctx, l.key(action, key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count < int64(rule.Limit) {
		return 0, nil
	}

	retryAfter, err := l.redis.TTL(ctx, l.key(action, key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if retryAfter < 0 {
		retryAfter = rule.Window
	}
	return retryAfter, ErrLimited
}

func (l *RedisLimiter) Record(ctx context.Context, action Action, key string) error {
	rule, ok := l.rules[action]
	if !ok || rule.Limit <= 0 {
		return nil
	}

	count, err := l.redis.Incr(ctx, l.key(action, key)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(action, key), rule.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func (l *RedisLimiter) Reset(ctx context.Context, action Action, key string) error {
	if err := l.redis.Del(ctx, l.key(action, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
