// Package migration implements the orchestration engine that drives the
// decom log backfill: discovery, filtering, resumable checkpointing,
// rate-limited ingestion, and file lifecycle routing.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dwsmith1983/decommigrate/internal/bucket"
	"github.com/dwsmith1983/decommigrate/internal/catalog"
	"github.com/dwsmith1983/decommigrate/internal/checkpoint"
	"github.com/dwsmith1983/decommigrate/internal/decoder"
	"github.com/dwsmith1983/decommigrate/internal/definitions"
	"github.com/dwsmith1983/decommigrate/internal/lifecycle"
	"github.com/dwsmith1983/decommigrate/internal/metrics"
	"github.com/dwsmith1983/decommigrate/internal/mover"
	"github.com/dwsmith1983/decommigrate/internal/schema"
	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// Destination is the row-ingestion side of the TSDB client.
type Destination interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context)
	WriteRow(ctx context.Context, table string, columns map[string]any, timeNsec int64) error
	Flush(ctx context.Context) error
}

// PacketSource is a forward-only stream of decoded packets from one file.
type PacketSource interface {
	Next() (*types.DecodedPacket, error)
}

// DecoderFactory builds a PacketSource over one file's decompressed bytes.
type DecoderFactory func(data []byte) (PacketSource, error)

// DefaultDecoder adapts the decom log binary decoder.
func DefaultDecoder(data []byte) (PacketSource, error) {
	return decoder.New(data)
}

// Deps bundles the collaborators a Migrator drives.
type Deps struct {
	Bucket      bucket.Client
	Catalog     *catalog.Catalog
	Definitions definitions.Source
	Checkpoints checkpoint.Store
	Destination Destination
	Registry    *schema.Registry
	Mover       *mover.Mover
	Decoder     DecoderFactory
	AlertFn     func(context.Context, types.Alert)
	Logger      *slog.Logger
}

// Migrator runs one migration for one scope. Single logical worker: files are
// processed sequentially, newest first, one fully drained before the next
// begins. The status snapshot is the only state read concurrently (by the
// status server) and is guarded separately.
type Migrator struct {
	cfg   types.MigrationConfig
	scope string
	runID string
	deps  Deps

	// Run-local counters; authoritative over the persisted checkpoint.
	// Atomic because the status server reads them while the run advances.
	filesProcessed  atomic.Int64
	packetsIngested atomic.Int64
	errorsCount     atomic.Int64
	startedAt       time.Time

	mu     sync.RWMutex
	status types.StatusReport
}

// New creates a Migrator for a scope.
func New(scope string, cfg types.MigrationConfig, deps Deps) *Migrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Decoder == nil {
		deps.Decoder = DefaultDecoder
	}
	m := &Migrator{
		cfg:   cfg,
		scope: scope,
		runID: ulid.Make().String(),
		deps:  deps,
	}
	m.status = types.StatusReport{
		State: types.StateStarting,
		Scope: scope,
		RunID: m.runID,
	}
	return m
}

// RunID returns the identifier for this run, carried in logs, alerts, and
// the checkpoint.
func (m *Migrator) RunID() string { return m.runID }

// Status returns the operator-visible snapshot.
func (m *Migrator) Status() types.StatusReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.status
	s.FilesProcessed = m.filesProcessed.Load()
	s.PacketsIngested = m.packetsIngested.Load()
	s.ErrorsCount = m.errorsCount.Load()
	return s
}

func (m *Migrator) setState(to types.MigrationState, detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := lifecycle.Transition(m.status.State, to); err != nil {
		m.deps.Logger.Error("state machine violation", "error", err)
		return
	}
	m.status.State = to
	m.status.Detail = detail
	m.status.UpdatedAt = time.Now().UTC()
}

// Run executes the migration until the catalog is exhausted, then idles so a
// supervisor does not mistake completion for a crash. It returns non-nil only
// on a fatal error; cooperative cancellation returns nil.
func (m *Migrator) Run(ctx context.Context) error {
	logger := m.deps.Logger

	// Let the co-located live ingestion processes start first.
	if sleep(ctx, time.Duration(m.cfg.InitialDelay())*time.Second) {
		return nil
	}

	logger.Info("starting decom log migration", "scope", m.scope, "run", m.runID)
	m.startedAt = time.Now().UTC()
	m.mu.Lock()
	m.status.StartedAt = m.startedAt
	m.mu.Unlock()

	if err := m.deps.Destination.Connect(ctx); err != nil {
		return m.fatal(ctx, fmt.Errorf("connecting to destination: %w", err))
	}
	defer m.deps.Destination.Close(context.WithoutCancel(ctx))

	snap, err := definitions.TakeSnapshot(ctx, m.deps.Definitions, m.scope, logger)
	if err != nil {
		return m.fatal(ctx, err)
	}

	refs, err := m.deps.Catalog.List(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return m.fatal(ctx, fmt.Errorf("building catalog: %w", err))
	}

	eligible := catalog.FilterEligible(refs, snap)
	metrics.FilesSkippedStale.Add(int64(len(refs) - len(eligible)))
	logger.Info("filtered catalog against live definitions",
		"found", len(refs), "eligible", len(eligible))

	eligible = m.resume(ctx, eligible)

	filesSincePause := 0
	total := len(eligible)
	for i, file := range eligible {
		if ctx.Err() != nil {
			logger.Info("migration cancelled", "run", m.runID)
			return nil
		}

		m.setState(types.StateMigrating, fmt.Sprintf("%d/%d", i+1, total))
		logger.Info("processing file", "key", file.BucketPath)

		packets, hadError, fatal := m.processFile(ctx, file)
		m.packetsIngested.Add(packets)
		if fatal != nil {
			if errors.Is(fatal, context.Canceled) {
				logger.Info("migration cancelled mid-file", "key", file.BucketPath, "run", m.runID)
				return nil
			}
			return m.fatal(ctx, fatal)
		}
		m.filesProcessed.Add(1)
		filesSincePause++
		if hadError {
			m.errorsCount.Add(1)
			metrics.FilesErrored.Add(1)
		}
		metrics.FilesProcessed.Add(1)
		metrics.PacketsIngested.Add(packets)

		m.route(ctx, file, hadError)
		m.saveCheckpoint(ctx, file)

		suffix := ""
		if hadError {
			suffix = " (WITH ERRORS)"
		}
		logger.Info(fmt.Sprintf("completed file%s", suffix),
			"key", file.BucketPath,
			"packets", packets,
			"total_packets", m.packetsIngested.Load(),
			"total_files", m.filesProcessed.Load())

		// Coarse file-granularity throttle, independent of per-batch sleeps.
		if filesSincePause >= m.cfg.FilesBeforePause {
			m.setState(types.StatePaused, "")
			logger.Info("pausing to reduce load on shared systems",
				"seconds", m.cfg.PauseSeconds)
			metrics.PausesTaken.Add(1)
			if sleep(ctx, seconds(m.cfg.PauseSeconds)) {
				return nil
			}
			filesSincePause = 0
		}
	}

	m.setState(types.StateComplete, "")
	logger.Info("migration complete",
		"files", m.filesProcessed.Load(),
		"packets", m.packetsIngested.Load(),
		"errors", m.errorsCount.Load())
	m.alert(ctx, types.AlertLevelInfo, fmt.Sprintf(
		"migration complete: %d files, %d packets, %d errors",
		m.filesProcessed.Load(), m.packetsIngested.Load(), m.errorsCount.Load()))

	// Idle instead of exiting so the supervisor does not restart us.
	for {
		if sleep(ctx, time.Minute) {
			return nil
		}
	}
}

// resume seeds counters from a prior checkpoint and trims the catalog to
// files strictly older than the checkpointed file. Checkpoint load failures
// degrade to a fresh run.
func (m *Migrator) resume(ctx context.Context, refs []types.LogFileRef) []types.LogFileRef {
	cp, err := m.deps.Checkpoints.Load(ctx, m.scope)
	if err != nil {
		if !errors.Is(err, checkpoint.ErrNotFound) {
			m.deps.Logger.Warn("could not load checkpoint, starting fresh", "error", err)
		}
		return refs
	}

	m.filesProcessed.Store(cp.FilesProcessed)
	m.packetsIngested.Store(cp.PacketsIngested)
	m.errorsCount.Store(cp.ErrorsCount)
	if !cp.StartedAt.IsZero() {
		m.startedAt = cp.StartedAt
		m.mu.Lock()
		m.status.StartedAt = cp.StartedAt
		m.mu.Unlock()
	}

	trimmed := catalog.TrimResumed(refs, cp)
	m.deps.Logger.Info("resuming from checkpoint",
		"last_file", cp.LastFile,
		"remaining", len(trimmed),
		"skipped", len(refs)-len(trimmed))
	return trimmed
}

// route moves a finished file to its mirror location. Move failures are
// logged and left alone; the file stays put and is retried on the next run.
func (m *Migrator) route(ctx context.Context, file types.LogFileRef, hadError bool) {
	var err error
	if hadError && m.cfg.ErrorRoutingEnabled() {
		err = m.deps.Mover.MarkError(ctx, file)
	} else if !hadError {
		err = m.deps.Mover.MarkProcessed(ctx, file)
	}
	if err != nil {
		metrics.MovesFailed.Add(1)
		m.deps.Logger.Warn("failed to move file", "key", file.BucketPath, "error", err)
	}
}

// saveCheckpoint persists progress after a file. Best-effort: the in-memory
// counters stay authoritative and a write failure never aborts the run.
func (m *Migrator) saveCheckpoint(ctx context.Context, file types.LogFileRef) {
	cp := types.Checkpoint{
		RunID:           m.runID,
		LastFile:        file.BucketPath,
		LastFileTime:    file.Timestamp,
		FilesProcessed:  m.filesProcessed.Load(),
		PacketsIngested: m.packetsIngested.Load(),
		ErrorsCount:     m.errorsCount.Load(),
		StartedAt:       m.startedAt,
		UpdatedAt:       time.Now().UTC(),
	}
	if err := m.deps.Checkpoints.Save(ctx, m.scope, cp); err != nil {
		metrics.CheckpointFailed.Add(1)
		m.deps.Logger.Warn("failed to persist checkpoint", "error", err)
	}
}

func (m *Migrator) fatal(ctx context.Context, err error) error {
	m.deps.Logger.Error("migration failed", "run", m.runID, "error", err)
	m.mu.Lock()
	if lifecycle.CanTransition(m.status.State, types.StateError) {
		m.status.State = types.StateError
	}
	m.status.LastError = err.Error()
	m.status.UpdatedAt = time.Now().UTC()
	m.mu.Unlock()

	m.alert(ctx, types.AlertLevelError, fmt.Sprintf("migration failed: %v", err))
	return err
}

func (m *Migrator) alert(ctx context.Context, level types.AlertLevel, msg string) {
	if m.deps.AlertFn == nil {
		return
	}
	metrics.AlertsDispatched.Add(1)
	m.deps.AlertFn(ctx, types.Alert{
		Level:     level,
		Scope:     m.scope,
		RunID:     m.runID,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	})
}
