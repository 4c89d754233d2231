package credstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisStore implements domain.CredentialStore on a Redis hash, for
// headless agents (CI bots, shared watchers) that cannot rely on a local
// config directory. All commands use a short internal timeout so a slow
// Redis degrades to the documented "" read rather than stalling requests.
type RedisStore struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

// NewRedisStore creates a store persisting into the hash at key.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{
		client:  client,
		key:     key,
		timeout: 2 * time.Second,
	}
}

// Get returns the stored value for field, or "" when absent or on error.
func (s *RedisStore) Get(field string) string {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	val, err := s.client.HGet(ctx, s.key, field).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", s.key).Msg("Redis credential read failed")
		}
		return ""
	}
	return val
}

// Set stores value under field.
func (s *RedisStore) Set(field, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.HSet(ctx, s.key, field, value).Err(); err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("Redis credential write failed")
	}
}

// Remove deletes field from the hash.
func (s *RedisStore) Remove(field string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.HDel(ctx, s.key, field).Err(); err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("Redis credential delete failed")
	}
}
