package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fanzone/internal/domain"

	"github.com/go-redis/redis/v8"
)

// RedisSessionStore maps bearer tokens issued by the identity provider to
// user ids. Tokens are opaque here.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

func (r *RedisSessionStore) CreateSession(ctx context.Context, token, userID string) error {
	if token == "" {
		return domain.ErrMissingSession
	}
	return r.client.Set(ctx, sessionKey(token), userID, r.ttl).Err()
}

func (r *RedisSessionStore) ResolveSession(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.ErrMissingSession
	}

	userID, err := r.client.Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrSessionNotFound
		}
		return "", err
	}

	return userID, nil
}

func (r *RedisSessionStore) DeleteSession(ctx context.Context, token string) error {
	return r.client.Del(ctx, sessionKey(token)).Err()
}
