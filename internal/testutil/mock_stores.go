package testutil

import (
	"context"
	"sync"

	"github.com/dwsmith1983/decommigrate/internal/checkpoint"
	"github.com/dwsmith1983/decommigrate/internal/definitions"
	"github.com/dwsmith1983/decommigrate/pkg/types"
)

var (
	_ checkpoint.Store   = (*MockCheckpointStore)(nil)
	_ definitions.Source = (*MockDefinitions)(nil)
)

// MockCheckpointStore is an in-memory checkpoint store.
type MockCheckpointStore struct {
	mu          sync.Mutex
	checkpoints map[string]types.Checkpoint
	LoadErr     error
	SaveErr     error
	saves       int
}

// NewMockCheckpointStore creates an empty MockCheckpointStore.
func NewMockCheckpointStore() *MockCheckpointStore {
	return &MockCheckpointStore{checkpoints: make(map[string]types.Checkpoint)}
}

// Seed installs a checkpoint for a scope.
func (m *MockCheckpointStore) Seed(scope string, cp types.Checkpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[scope] = cp
}

// Load returns the stored checkpoint or checkpoint.ErrNotFound.
func (m *MockCheckpointStore) Load(ctx context.Context, scope string) (*types.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	cp, ok := m.checkpoints[scope]
	if !ok {
		return nil, checkpoint.ErrNotFound
	}
	out := cp
	return &out, nil
}

// Save stores a checkpoint.
func (m *MockCheckpointStore) Save(ctx context.Context, scope string, cp types.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.checkpoints[scope] = cp
	m.saves++
	return nil
}

// Saves returns the number of successful saves.
func (m *MockCheckpointStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Ping always succeeds unless PingErr is set.
func (m *MockCheckpointStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *MockCheckpointStore) Close(ctx context.Context) error { return nil }

// MockDefinitions is an in-memory packet definition source.
type MockDefinitions struct {
	Targets    []string
	TLM        map[string][]string
	CMD        map[string][]string
	TargetsErr error
	PacketErr  map[string]error
}

// NewMockDefinitions creates an empty MockDefinitions.
func NewMockDefinitions() *MockDefinitions {
	return &MockDefinitions{
		TLM:       make(map[string][]string),
		CMD:       make(map[string][]string),
		PacketErr: make(map[string]error),
	}
}

// TargetNames returns the configured target list.
func (m *MockDefinitions) TargetNames(ctx context.Context, scope string) ([]string, error) {
	if m.TargetsErr != nil {
		return nil, m.TargetsErr
	}
	return m.Targets, nil
}

// TelemetryPacketNames returns the configured telemetry packets for a target.
func (m *MockDefinitions) TelemetryPacketNames(ctx context.Context, scope, target string) ([]string, error) {
	if err := m.PacketErr[target]; err != nil {
		return nil, err
	}
	return m.TLM[target], nil
}

// CommandPacketNames returns the configured command packets for a target.
func (m *MockDefinitions) CommandPacketNames(ctx context.Context, scope, target string) ([]string, error) {
	if err := m.PacketErr[target]; err != nil {
		return nil, err
	}
	return m.CMD[target], nil
}
