package tsdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	qdb "github.com/questdb/go-questdb-client/v3"
	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// Column is one destination column's metadata.
type Column struct {
	Name string
	Type string
}

// ColumnLister exposes destination column metadata. Implemented by Client;
// narrow so the schema registry can be tested without a database.
type ColumnLister interface {
	Columns(ctx context.Context, table string) ([]Column, error)
}

// RecoverableError marks a write failure caused by a type or schema mismatch,
// as opposed to a connection-level fault. Callers may retry the row once
// after reconciling the schema.
type RecoverableError struct {
	Table string
	Err   error
}

func (e *RecoverableError) Error() string {
	return fmt.Sprintf("recoverable write error on %s: %v", e.Table, e.Err)
}

func (e *RecoverableError) Unwrap() error { return e.Err }

// IsRecoverable reports whether err is a schema/type mismatch write error.
func IsRecoverable(err error) bool {
	var re *RecoverableError
	return errors.As(err, &re)
}

// IsBreakerOpen reports whether err means the flush circuit breaker has
// opened after sustained destination failures.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Client talks to QuestDB twice over: rows go in through the ILP sender,
// column metadata comes back over the Postgres wire port.
type Client struct {
	cfg     types.QuestDBConfig
	sender  qdb.LineSender
	pool    *pgxpool.Pool
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithSender sets a custom ILP sender (useful for testing).
func WithSender(s qdb.LineSender) ClientOption {
	return func(c *Client) { c.sender = s }
}

// NewClient creates an unconnected Client.
func NewClient(cfg types.QuestDBConfig, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:    cfg,
		logger: logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "questdb-flush",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect establishes the ILP sender and the metadata query pool. A failure
// here is fatal for the run.
func (c *Client) Connect(ctx context.Context) error {
	if c.sender == nil {
		opts := []qdb.LineSenderOption{
			qdb.WithHttp(),
			qdb.WithAddress(c.cfg.ILPAddr),
			qdb.WithAutoFlushDisabled(),
		}
		if c.cfg.Username != "" {
			opts = append(opts, qdb.WithBasicAuth(c.cfg.Username, c.cfg.Password))
		}
		sender, err := qdb.NewLineSender(ctx, opts...)
		if err != nil {
			return fmt.Errorf("questdb ilp connect: %w", err)
		}
		c.sender = sender
	}

	if c.pool == nil && c.cfg.PGDSN != "" {
		pool, err := pgxpool.New(ctx, c.cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("questdb pg connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("questdb pg ping: %w", err)
		}
		c.pool = pool
	}
	return nil
}

// Close releases both connections. Safe to call more than once.
func (c *Client) Close(ctx context.Context) {
	if c.sender != nil {
		if err := c.sender.Close(ctx); err != nil {
			c.logger.Warn("closing ilp sender", "error", err)
		}
		c.sender = nil
	}
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
}

// WriteRow buffers one row for the table with the given designated timestamp.
// Column iteration is ordered for reproducibility.
func (c *Client) WriteRow(ctx context.Context, table string, columns map[string]any, timeNsec int64) error {
	if len(columns) == 0 {
		return nil
	}

	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	row := c.sender.Table(table)
	for _, name := range names {
		switch v := columns[name].(type) {
		case nil:
			continue
		case string:
			row = row.StringColumn(name, v)
		case bool:
			row = row.BoolColumn(name, v)
		case int64:
			row = row.Int64Column(name, v)
		case float64:
			row = row.Float64Column(name, v)
		default:
			row = row.StringColumn(name, fmt.Sprintf("%v", v))
		}
	}

	if err := row.At(ctx, time.Unix(0, timeNsec).UTC()); err != nil {
		return classifyWriteError(table, err)
	}
	return nil
}

// Flush pushes buffered rows to the destination through the circuit breaker.
func (c *Client) Flush(ctx context.Context) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.sender.Flush(ctx)
	})
	if err != nil {
		if IsBreakerOpen(err) {
			return fmt.Errorf("questdb flush suppressed: %w", err)
		}
		return classifyWriteError("", err)
	}
	return nil
}

// Columns reads the current column metadata for a table. An unknown table
// yields an empty slice rather than an error.
func (c *Client) Columns(ctx context.Context, table string) ([]Column, error) {
	if c.pool == nil {
		return nil, fmt.Errorf("metadata pool not connected")
	}

	rows, err := c.pool.Query(ctx, fmt.Sprintf(`SHOW COLUMNS FROM %q`, table))
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			return nil, nil
		}
		return nil, fmt.Errorf("show columns %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading column row for %s: %w", table, err)
		}
		if len(values) < 2 {
			continue
		}
		name, _ := values[0].(string)
		columnType, _ := values[1].(string)
		if name != "" {
			cols = append(cols, Column{Name: name, Type: columnType})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("show columns %s: %w", table, err)
	}
	return cols, nil
}

// Schema-mismatch markers in destination error messages. The ILP HTTP
// transport surfaces server-side cast failures as plain text.
var recoverableMarkers = []string{
	"cast error",
	"invalid type",
	"incompatible column type",
	"could not parse",
	"failed to parse",
	"column type mismatch",
}

func classifyWriteError(table string, err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range recoverableMarkers {
		if strings.Contains(msg, marker) {
			return &RecoverableError{Table: table, Err: err}
		}
	}
	return err
}
