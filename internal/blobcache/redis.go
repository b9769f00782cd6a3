package blobcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "preview_blob:"

// RedisStore 把预览副本存放在 Redis hash 中并依赖 TTL 自动过期。
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, blob Blob) (string, error) {
	token := uuid.NewString()
	key := keyPrefix + token
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "data", blob.Data, "type", blob.ContentType)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store preview blob: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (Blob, error) {
	fields, err := s.client.HGetAll(ctx, keyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Blob{}, ErrNotFound
		}
		return Blob{}, fmt.Errorf("load preview blob: %w", err)
	}
	data, ok := fields["data"]
	if !ok {
		return Blob{}, ErrNotFound
	}
	return Blob{Data: []byte(data), ContentType: fields["type"]}, nil
}

func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("revoke preview blob: %w", err)
	}
	return nil
}
