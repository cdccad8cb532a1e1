package clips

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "atheer:clip:"

// RedisStore shares clips between the API and the worker. The TTL only
// reclaims clips whose owner crashed; normal release is an explicit DEL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, wav []byte) (Handle, error) {
	h := NewHandle()
	if err := s.client.Set(ctx, keyPrefix+string(h), wav, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("clip put: %w", err)
	}
	return h, nil
}

func (s *RedisStore) Get(ctx context.Context, h Handle) ([]byte, error) {
	wav, err := s.client.Get(ctx, keyPrefix+string(h)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clip get %s: %w", h, err)
	}
	return wav, nil
}

func (s *RedisStore) Release(ctx context.Context, h Handle) error {
	if err := s.client.Del(ctx, keyPrefix+string(h)).Err(); err != nil {
		return fmt.Errorf("clip release %s: %w", h, err)
	}
	return nil
}
