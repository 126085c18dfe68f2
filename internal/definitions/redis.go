package definitions

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// RedisSource reads definitions from the Redis keys maintained by the live
// ingestion system: a set of target names per scope and a hash of packet
// definitions per target and direction.
type RedisSource struct {
	client *goredis.Client
}

// NewRedisSource creates a RedisSource.
func NewRedisSource(cfg *types.RedisConfig) *RedisSource {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisSource{client: client}
}

// NewRedisSourceFromClient creates a RedisSource from an existing client
// (useful for testing and for sharing the checkpoint connection).
func NewRedisSourceFromClient(client *goredis.Client) *RedisSource {
	return &RedisSource{client: client}
}

// Ping checks connectivity.
func (s *RedisSource) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("definitions redis ping failed: %w", err)
	}
	return nil
}

// Close releases the connection.
func (s *RedisSource) Close() error {
	return s.client.Close()
}

func targetsKey(scope string) string {
	return scope + "__targets"
}

func packetsKey(scope, target string, direction types.Direction) string {
	if direction == types.DirectionCMD {
		return scope + "__cmdpkts__" + target
	}
	return scope + "__tlmpkts__" + target
}

// TargetNames returns the currently defined target names for a scope.
func (s *RedisSource) TargetNames(ctx context.Context, scope string) ([]string, error) {
	names, err := s.client.SMembers(ctx, targetsKey(scope)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing targets for %s: %w", scope, err)
	}
	return names, nil
}

// TelemetryPacketNames returns the defined telemetry packet names for a target.
func (s *RedisSource) TelemetryPacketNames(ctx context.Context, scope, target string) ([]string, error) {
	return s.packetNames(ctx, scope, target, types.DirectionTLM)
}

// CommandPacketNames returns the defined command packet names for a target.
func (s *RedisSource) CommandPacketNames(ctx context.Context, scope, target string) ([]string, error) {
	return s.packetNames(ctx, scope, target, types.DirectionCMD)
}

func (s *RedisSource) packetNames(ctx context.Context, scope, target string, direction types.Direction) ([]string, error) {
	names, err := s.client.HKeys(ctx, packetsKey(scope, target, direction)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing %s packets for %s/%s: %w", direction, scope, target, err)
	}
	return names, nil
}
