package testutil

import (
	"context"
	"sync"
)

// Row is one recorded destination write.
type Row struct {
	Table    string
	Columns  map[string]any
	TimeNsec int64
}

// MockDestination records rows and flushes in memory. WriteErr, when set, is
// returned for the next WriteErrCount writes before clearing, which exercises
// the retry path.
type MockDestination struct {
	mu            sync.Mutex
	rows          []Row
	flushes       int
	ConnectErr    error
	FlushErr      error
	WriteErr      error
	WriteErrCount int

	// FlushHook, when set, runs after each successful flush with the
	// running flush count. Tests use it to interrupt a run at a known
	// point in the stream.
	FlushHook func(count int)
}

// NewMockDestination creates an empty MockDestination.
func NewMockDestination() *MockDestination {
	return &MockDestination{}
}

// Connect returns ConnectErr.
func (m *MockDestination) Connect(ctx context.Context) error { return m.ConnectErr }

// Close is a no-op.
func (m *MockDestination) Close(ctx context.Context) {}

// WriteRow records one row.
func (m *MockDestination) WriteRow(ctx context.Context, table string, columns map[string]any, timeNsec int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil && m.WriteErrCount > 0 {
		m.WriteErrCount--
		return m.WriteErr
	}
	m.rows = append(m.rows, Row{Table: table, Columns: columns, TimeNsec: timeNsec})
	return nil
}

// Flush records one flush.
func (m *MockDestination) Flush(ctx context.Context) error {
	m.mu.Lock()
	if m.FlushErr != nil {
		m.mu.Unlock()
		return m.FlushErr
	}
	m.flushes++
	count := m.flushes
	hook := m.FlushHook
	m.mu.Unlock()
	if hook != nil {
		hook(count)
	}
	return nil
}

// Rows returns a copy of the recorded rows.
func (m *MockDestination) Rows() []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Row, len(m.rows))
	copy(out, m.rows)
	return out
}

// Flushes returns the number of successful flushes.
func (m *MockDestination) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}
