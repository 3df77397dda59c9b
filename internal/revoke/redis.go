package revoke

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry is a Registry backed by a shared Redis deployment, so that
// a token revoked on one node is rejected by every node.
type RedisRegistry struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisRegistry(redisClient redis.UniversalClient, prefix string) *RedisRegistry {
	if prefix == "" {
		prefix = "rvk"
	}
	return &RedisRegistry{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (r *RedisRegistry) jtiKey(jti string) string {
	return r.prefix + ":jti:" + jti
}

func (r *RedisRegistry) watermarkKey(principalID string) string {
	return r.prefix + ":wm:" + principalID
}

func (r *RedisRegistry) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.redis.Set(ctx, r.jtiKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *RedisRegistry) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

func (r *RedisRegistry) SetWatermark(ctx context.Context, principalID string, t time.Time, ttl time.Duration) error {
	value := strconv.FormatInt(t.Unix(), 10)
	if err := r.redis.Set(ctx, r.watermarkKey(principalID), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *RedisRegistry) Watermark(ctx context.Context, principalID string) (time.Time, bool, error) {
	value, err := r.redis.Get(ctx, r.watermarkKey(principalID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	unix, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: corrupt watermark: %v", ErrUnavailable, err)
	}
	return time.Unix(unix, 0), true, nil
}
