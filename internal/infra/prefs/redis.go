// Package prefs provides PreferenceStore implementations: Redis for the
// deployed service, an in-memory map for tests and offline runs.
package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quiz-study-service/internal/domain"
)

const keyPrefix = "prefs:"

// RedisStore persists preference blobs as plain Redis strings without TTL;
// preferences must survive restarts.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("prefs get %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, keyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("prefs set %s: %w", key, err)
	}
	return nil
}

// Clear removes every preference key, leaving unrelated keys in the same
// database untouched.
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("prefs scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("prefs clear: %w", err)
	}
	return nil
}
