package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dwsmith1983/decommigrate/pkg/types"
)

const defaultKeyPrefix = "decommigrate:"

// RedisStore implements Store backed by Redis/Valkey.
type RedisStore struct {
	client *goredis.Client
	prefix string
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(cfg *types.RedisConfig) *RedisStore {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisStoreFromClient creates a RedisStore from an existing client
// (useful for testing).
func NewRedisStoreFromClient(client *goredis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Client returns the underlying Redis client so other components can share
// the connection.
func (s *RedisStore) Client() *goredis.Client {
	return s.client
}

func (s *RedisStore) key(scope string) string {
	return s.prefix + scope + ":checkpoint"
}

// Load retrieves the checkpoint for a scope.
func (s *RedisStore) Load(ctx context.Context, scope string) (*types.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.key(scope)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint for %s: %w", scope, err)
	}

	var cp types.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decoding checkpoint for %s: %w", scope, err)
	}
	return &cp, nil
}

// Save overwrites the checkpoint for a scope.
func (s *RedisStore) Save(ctx context.Context, scope string, cp types.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, s.key(scope), data, 0).Err(); err != nil {
		return fmt.Errorf("saving checkpoint for %s: %w", scope, err)
	}
	return nil
}

// Ping checks connectivity to the Redis server.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close releases the connection.
func (s *RedisStore) Close(_ context.Context) error {
	return s.client.Close()
}
