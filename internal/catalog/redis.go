package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key the catalog document is stored under.
const DefaultRedisKey = "catalog:collections"

// RedisStore keeps the catalog as one JSON value in Redis.
type RedisStore struct {
	rdb *redis.Client
	key string
}

func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

// ReadAll returns an empty catalog when the key does not exist yet.
func (s *RedisStore) ReadAll(ctx context.Context) ([]Collection, error) {
	b, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []Collection{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	var out []Collection
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return out, nil
}

func (s *RedisStore) WriteAll(ctx context.Context, collections []Collection) error {
	b, err := json.Marshal(collections)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}
