package testutil

import (
	"context"
	"math/big"
	"sync"
	"time"

	qdb "github.com/questdb/go-questdb-client/v3"

	"github.com/dwsmith1983/decommigrate/internal/tsdb"
)

var (
	_ qdb.LineSender    = (*MockSender)(nil)
	_ tsdb.ColumnLister = (*MockColumnLister)(nil)
)

// SentRow is one row accumulated by a MockSender.
type SentRow struct {
	Table   string
	Columns map[string]any
	At      time.Time
}

// MockSender is an in-memory ILP sender.
type MockSender struct {
	mu       sync.Mutex
	pending  SentRow
	rows     []SentRow
	flushes  int
	AtErr    error
	FlushErr error
	closed   bool
}

// NewMockSender creates an empty MockSender.
func NewMockSender() *MockSender {
	return &MockSender{}
}

// Table starts a new pending row.
func (m *MockSender) Table(name string) qdb.LineSender {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = SentRow{Table: name, Columns: make(map[string]any)}
	return m
}

// Symbol records a symbol column on the pending row.
func (m *MockSender) Symbol(name, val string) qdb.LineSender { return m.column(name, val) }

// Int64Column records an integer column on the pending row.
func (m *MockSender) Int64Column(name string, val int64) qdb.LineSender { return m.column(name, val) }

// Long256Column records a 256-bit integer column on the pending row.
func (m *MockSender) Long256Column(name string, val *big.Int) qdb.LineSender {
	return m.column(name, val)
}

// TimestampColumn records a timestamp column on the pending row.
func (m *MockSender) TimestampColumn(name string, ts time.Time) qdb.LineSender {
	return m.column(name, ts)
}

// Float64Column records a float column on the pending row.
func (m *MockSender) Float64Column(name string, val float64) qdb.LineSender {
	return m.column(name, val)
}

// StringColumn records a string column on the pending row.
func (m *MockSender) StringColumn(name, val string) qdb.LineSender { return m.column(name, val) }

// BoolColumn records a boolean column on the pending row.
func (m *MockSender) BoolColumn(name string, val bool) qdb.LineSender { return m.column(name, val) }

// At completes the pending row with the given designated timestamp.
func (m *MockSender) At(ctx context.Context, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AtErr != nil {
		return m.AtErr
	}
	m.pending.At = ts
	m.rows = append(m.rows, m.pending)
	m.pending = SentRow{}
	return nil
}

// AtNow completes the pending row with the current time.
func (m *MockSender) AtNow(ctx context.Context) error {
	return m.At(ctx, time.Now().UTC())
}

// Flush records one flush.
func (m *MockSender) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FlushErr != nil {
		return m.FlushErr
	}
	m.flushes++
	return nil
}

// Close marks the sender closed.
func (m *MockSender) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Rows returns a copy of the completed rows.
func (m *MockSender) Rows() []SentRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentRow, len(m.rows))
	copy(out, m.rows)
	return out
}

// Flushes returns the number of successful flushes.
func (m *MockSender) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// Closed reports whether Close has been called.
func (m *MockSender) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockSender) column(name string, val any) qdb.LineSender {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending.Columns != nil {
		m.pending.Columns[name] = val
	}
	return m
}

// MockColumnLister serves canned column metadata per table.
type MockColumnLister struct {
	mu      sync.Mutex
	tables  map[string][]tsdb.Column
	Err     error
	queries int
}

// NewMockColumnLister creates an empty MockColumnLister.
func NewMockColumnLister() *MockColumnLister {
	return &MockColumnLister{tables: make(map[string][]tsdb.Column)}
}

// SetColumns installs the metadata returned for a table.
func (m *MockColumnLister) SetColumns(table string, cols []tsdb.Column) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = cols
}

// Columns returns the canned metadata for a table.
func (m *MockColumnLister) Columns(ctx context.Context, table string) ([]tsdb.Column, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.tables[table], nil
}

// Queries returns the number of Columns calls.
func (m *MockColumnLister) Queries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries
}
