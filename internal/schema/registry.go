// Package schema caches per-table destination column classifications so the
// casting step can make per-row decisions without per-row metadata queries.
package schema

import (
	"context"
	"log/slog"

	"github.com/dwsmith1983/decommigrate/internal/tsdb"
	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// Wideness ranks: a column's cached classification may only move toward a
// wider representation during a run, never back.
var kindRank = map[types.ColumnKind]int{
	types.ColumnPlain:       0,
	types.ColumnFloat32:     1,
	types.ColumnFloat64:     2,
	types.ColumnWideInt:     3,
	types.ColumnJSON:        4,
	types.ColumnStateString: 4,
}

// Registry memoizes column classifications per table for the life of the
// process. Single-writer: it is owned by the migrator and never shared across
// goroutines, so no locking is needed.
type Registry struct {
	lister tsdb.ColumnLister
	logger *slog.Logger
	loaded map[string]bool
	kinds  map[string]map[string]types.ColumnKind // table -> column -> kind
}

// New creates a Registry over the given metadata source.
func New(lister tsdb.ColumnLister, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		lister: lister,
		logger: logger,
		loaded: make(map[string]bool),
		kinds:  make(map[string]map[string]types.ColumnKind),
	}
}

// EnsureLoaded queries and classifies a table's columns on first call;
// subsequent calls are no-ops. A metadata query failure is logged and the
// table is marked loaded with no cached kinds, degrading to default casting.
func (r *Registry) EnsureLoaded(ctx context.Context, table string) {
	if r.loaded[table] {
		return
	}

	cols, err := r.lister.Columns(ctx, table)
	if err != nil {
		r.logger.Debug("could not load schema, using default casting", "table", table, "error", err)
		r.loaded[table] = true
		return
	}

	kinds := make(map[string]types.ColumnKind)
	for _, col := range cols {
		if kind, tracked := tsdb.ClassifyColumn(col.Name, col.Type); tracked {
			kinds[col.Name] = kind
		}
	}
	if len(kinds) > 0 {
		r.kinds[table] = kinds
	}
	r.loaded[table] = true
}

// Classify returns the cached kind for a column, defaulting to plain.
func (r *Registry) Classify(table, column string) types.ColumnKind {
	if kinds, ok := r.kinds[table]; ok {
		if kind, ok := kinds[column]; ok {
			return kind
		}
	}
	return types.ColumnPlain
}

// Widen records a wider classification for a column. Narrowing attempts are
// ignored, preserving the never-regress invariant.
func (r *Registry) Widen(table, column string, kind types.ColumnKind) {
	kinds, ok := r.kinds[table]
	if !ok {
		kinds = make(map[string]types.ColumnKind)
		r.kinds[table] = kinds
	}
	if old, ok := kinds[column]; ok && kindRank[old] >= kindRank[kind] {
		return
	}
	kinds[column] = kind
	r.logger.Debug("widened column classification", "table", table, "column", column, "kind", kind.String())
}

// Reconcile re-reads a table's live schema after a write failure and merges
// it into the cache, widening where the destination has moved. Used by the
// single retry a row gets after a recoverable write error.
func (r *Registry) Reconcile(ctx context.Context, table string) {
	cols, err := r.lister.Columns(ctx, table)
	if err != nil {
		r.logger.Debug("schema reconcile failed", "table", table, "error", err)
		return
	}
	for _, col := range cols {
		if kind, tracked := tsdb.ClassifyColumn(col.Name, col.Type); tracked {
			r.Widen(table, col.Name, kind)
		}
	}
	r.loaded[table] = true
}
