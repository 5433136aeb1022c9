package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const refreshKeyPrefix = "refresh_token:"

// RedisTokenStore is a Redis-backed TokenStore, letting refresh rotation
// work across process restarts and multiple instances.
type RedisTokenStore struct {
	client *redis.Client
}

// NewRedisTokenStore wraps the given client.
func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

// Save registers the token ID with the store's TTL; Redis expires it
// automatically.
func (s *RedisTokenStore) Save(ctx context.Context, tokenID, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, refreshKeyPrefix+tokenID, userID, ttl).Err()
}

// Take consumes the token ID atomically via GETDEL.
func (s *RedisTokenStore) Take(ctx context.Context, tokenID string) (bool, error) {
	err := s.client.GetDel(ctx, refreshKeyPrefix+tokenID).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}
