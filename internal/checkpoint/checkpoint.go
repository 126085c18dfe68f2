// Package checkpoint persists migration progress so interrupted runs resume
// where they left off.
package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// ErrNotFound is returned by Load when no checkpoint exists for the scope.
var ErrNotFound = errors.New("checkpoint not found")

// Store is the checkpoint persistence contract. At most one checkpoint exists
// per scope; Save overwrites it.
type Store interface {
	Load(ctx context.Context, scope string) (*types.Checkpoint, error)
	Save(ctx context.Context, scope string, cp types.Checkpoint) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// New builds a Store from the configured provider.
func New(cfg types.CheckpointConfig) (Store, error) {
	switch cfg.Provider {
	case types.CheckpointRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis checkpoint config missing")
		}
		return NewRedisStore(cfg.Redis), nil
	case types.CheckpointDynamoDB:
		if cfg.DynamoDB == nil {
			return nil, fmt.Errorf("dynamodb checkpoint config missing")
		}
		return NewDynamoDBStore(cfg.DynamoDB)
	default:
		return nil, fmt.Errorf("unknown checkpoint provider %q", cfg.Provider)
	}
}
