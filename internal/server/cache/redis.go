package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of a Redis client. Backend failures
// are wrapped in common.ErrorCacheUnavailable so callers can distinguish
// infrastructure errors from absent keys.
type RedisStore struct {
	redis redis.UniversalClient
}

// NewRedisStore constructs a Store bound to the given client.
func NewRedisStore(redisClient redis.UniversalClient) *RedisStore {
	return &RedisStore{redis: redisClient}
}

func (s *RedisStore) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorCacheUnavailable, err)
	}
	return nil
}

func (s *RedisStore) GetString(ctx context.Context, key string) (string, error) {
	value, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("%w: %v", common.ErrorCacheUnavailable, err)
	}
	return value, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorCacheUnavailable, err)
	}
	return nil
}
