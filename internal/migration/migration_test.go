package migration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dwsmith1983/decommigrate/internal/catalog"
	"github.com/dwsmith1983/decommigrate/internal/metrics"
	"github.com/dwsmith1983/decommigrate/internal/mover"
	"github.com/dwsmith1983/decommigrate/internal/schema"
	"github.com/dwsmith1983/decommigrate/internal/testutil"
	"github.com/dwsmith1983/decommigrate/internal/tsdb"
	"github.com/dwsmith1983/decommigrate/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type alertRecorder struct {
	mu     sync.Mutex
	alerts []types.Alert
}

func (r *alertRecorder) record(_ context.Context, a types.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func (r *alertRecorder) all() []types.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}

type harness struct {
	bucket *testutil.MockBucket
	dest   *testutil.MockDestination
	cps    *testutil.MockCheckpointStore
	defs   *testutil.MockDefinitions
	alerts *alertRecorder
	m      *Migrator
}

func newHarness(cfg types.MigrationConfig, lister tsdb.ColumnLister) *harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if lister == nil {
		lister = testutil.NewMockColumnLister()
	}
	h := &harness{
		bucket: testutil.NewMockBucket(),
		dest:   testutil.NewMockDestination(),
		cps:    testutil.NewMockCheckpointStore(),
		defs:   testutil.NewMockDefinitions(),
		alerts: &alertRecorder{},
	}
	h.defs.Targets = []string{"INST"}
	h.defs.TLM["INST"] = []string{"HEALTH"}
	h.defs.CMD["INST"] = []string{"COLLECT"}
	h.m = New("DEFAULT", cfg, Deps{
		Bucket:      h.bucket,
		Catalog:     catalog.New(h.bucket, "DEFAULT", logger),
		Definitions: h.defs,
		Checkpoints: h.cps,
		Destination: h.dest,
		Registry:    schema.New(lister, logger),
		Mover:       mover.New(h.bucket, logger),
		AlertFn:     h.alerts.record,
		Logger:      logger,
	})
	return h
}

func quickConfig() types.MigrationConfig {
	return types.MigrationConfig{
		BatchSize:        100,
		SleepSeconds:     0.001,
		FilesBeforePause: 100,
		PauseSeconds:     0.001,
	}
}

// logKey builds an object key in the layout the live system writes:
// {scope}/decom_logs/{tlm|cmd}/{TARGET}/{date}/{start}__{end}__{TARGET}__{PACKET}__rt__decom.bin
func logKey(dir, target, packet, ts string, gz bool) string {
	name := fmt.Sprintf("%s__%s__%s__%s__rt__decom.bin", ts, ts, target, packet)
	if gz {
		name += ".gz"
	}
	return fmt.Sprintf("DEFAULT/decom_logs/%s/%s/%s/%s", dir, target, ts[:8], name)
}

func healthLog(times ...int64) *testutil.LogBuilder {
	b := testutil.NewLogBuilder().Declare(1, types.DirectionTLM, "INST", "HEALTH")
	for _, ts := range times {
		b.Packet(1, ts, map[string]any{"TEMP": 21.5, "COUNT": 7})
	}
	return b
}

// runToCompletion drives Run in the background until it reaches a terminal
// state, then cancels the idle loop and joins.
func runToCompletion(t *testing.T, h *harness) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.m.Run(ctx) }()
	testutil.WaitFor(t, 5*time.Second, func() bool {
		s := h.m.Status().State
		return s == types.StateComplete || s == types.StateError
	}, "migration did not reach a terminal state")
	cancel()
	require.NoError(t, <-done)
}

func TestRunMigratesAllFilesNewestFirst(t *testing.T) {
	h := newHarness(quickConfig(), nil)
	older := logKey("tlm", "INST", "HEALTH", "20260110100000", false)
	newer := logKey("tlm", "INST", "HEALTH", "20260110120000", true)
	h.bucket.Put(older, healthLog(1000, 1001).Bytes())
	h.bucket.Put(newer, healthLog(2000, 2001).Gzipped())

	runToCompletion(t, h)

	rows := h.dest.Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, int64(2000), rows[0].TimeNsec)
	assert.Equal(t, int64(1000), rows[2].TimeNsec)
	assert.Equal(t, "TLM__INST__HEALTH", rows[0].Table)
	assert.Equal(t, 21.5, rows[0].Columns["TEMP"])
	assert.Equal(t, int64(7), rows[0].Columns["COUNT"])

	assert.False(t, h.bucket.Has(older))
	assert.False(t, h.bucket.Has(newer))
	assert.True(t, h.bucket.Has(mover.ProcessedPath(older)))
	assert.True(t, h.bucket.Has(mover.ProcessedPath(newer)))

	status := h.m.Status()
	assert.Equal(t, types.StateComplete, status.State)
	assert.Equal(t, int64(2), status.FilesProcessed)
	assert.Equal(t, int64(4), status.PacketsIngested)
	assert.Equal(t, int64(0), status.ErrorsCount)
	assert.Equal(t, h.m.RunID(), status.RunID)

	alerts := h.alerts.all()
	require.Len(t, alerts, 1)
	assert.Equal(t, types.AlertLevelInfo, alerts[0].Level)
	assert.Contains(t, alerts[0].Message, "migration complete")
}

func TestRunSavesCheckpointPerFile(t *testing.T) {
	h := newHarness(quickConfig(), nil)
	older := logKey("tlm", "INST", "HEALTH", "20260110100000", false)
	newer := logKey("tlm", "INST", "HEALTH", "20260110120000", false)
	h.bucket.Put(older, healthLog(1000).Bytes())
	h.bucket.Put(newer, healthLog(2000).Bytes())

	runToCompletion(t, h)

	assert.Equal(t, 2, h.cps.Saves())
	cp, err := h.cps.Load(context.Background(), "DEFAULT")
	require.NoError(t, err)
	assert.Equal(t, older, cp.LastFile)
	assert.Equal(t, int64(2), cp.FilesProcessed)
	assert.Equal(t, int64(2), cp.PacketsIngested)
	assert.Equal(t, h.m.RunID(), cp.RunID)
}

func TestRunSkipsFilesNotInDefinitions(t *testing.T) {
	h := newHarness(quickConfig(), nil)
	stale := logKey("tlm", "INST", "RETIRED", "20260110110000", false)
	all := logKey("tlm", "INST", "ALL", "20260110100000", false)
	h.bucket.Put(stale, healthLog(1000).Bytes())
	h.bucket.Put(all, healthLog(2000).Bytes())

	runToCompletion(t, h)

	// The ALL sentinel bypasses the per-packet check; the retired packet
	// stays untouched in place.
	assert.True(t, h.bucket.Has(stale))
	assert.False(t, h.bucket.Has(all))
	assert.Equal(t, int64(1), h.m.Status().FilesProcessed)
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	h := newHarness(quickConfig(), nil)
	oldest := logKey("tlm", "INST", "HEALTH", "20260110100000", false)
	middle := logKey("tlm", "INST", "HEALTH", "20260110110000", false)
	newest := logKey("tlm", "INST", "HEALTH", "20260110120000", false)
	h.bucket.Put(oldest, healthLog(1000).Bytes())
	h.bucket.Put(middle, healthLog(2000).Bytes())
	h.bucket.Put(newest, healthLog(3000).Bytes())

	middleTime, err := catalog.ParseTimestamp("20260110110000")
	require.NoError(t, err)
	h.cps.Seed("DEFAULT", types.Checkpoint{
		LastFile:        middle,
		LastFileTime:    middleTime,
		FilesProcessed:  2,
		PacketsIngested: 10,
	})

	runToCompletion(t, h)

	// Only the file strictly older than the checkpoint is reprocessed.
	rows := h.dest.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1000), rows[0].TimeNsec)
	assert.True(t, h.bucket.Has(newest))
	assert.True(t, h.bucket.Has(middle))

	status := h.m.Status()
	assert.Equal(t, int64(3), status.FilesProcessed)
	assert.Equal(t, int64(11), status.PacketsIngested)
}

func TestRunStartsFreshWhenCheckpointLoadFails(t *testing.T) {
	h := newHarness(quickConfig(), nil)
	h.cps.LoadErr = errors.New("store unavailable")
	key := logKey("tlm", "INST", "HEALTH", "20260110100000", false)
	h.bucket.Put(key, healthLog(1000).Bytes())

	runToCompletion(t, h)

	assert.Equal(t, int64(1), h.m.Status().FilesProcessed)
}

func TestRunCheckpointSaveFailureIsNotFatal(t *testing.T) {
	h := newHarness(quickConfig(), nil)
	h.cps.SaveErr = errors.New("store unavailable")
	key := logKey("tlm", "INST", "HEALTH", "20260110100000", false)
	h.bucket.Put(key, healthLog(1000).Bytes())

	runToCompletion(t, h)

	assert.Equal(t, types.StateComplete, h.m.Status().State)
	assert.Equal(t, 0, h.cps.Saves())
}

func TestRunRoutesCorruptFileToErrorMirror(t *testing.T) {
	h := newHarness(quickConfig(), nil)
	good := logKey("tlm", "INST", "HEALTH", "20260110120000", false)
	bad := logKey("tlm", "INST", "HEALTH", "20260110100000", false)
	h.bucket.Put(good, healthLog(1000).Bytes())
	h.bucket.Put(bad, []byte("not a decom log"))

	runToCompletion(t, h)

	assert.True(t, h.bucket.Has(mover.ProcessedPath(good)))
	assert.True(t, h.bucket.Has(mover.ErrorPath(bad)))
	assert.False(t, h.bucket.Has(bad))

	status := h.m.Status()
	assert.Equal(t, types.StateComplete, status.State)
	assert.Equal(t, int64(2), status.FilesProcessed)
	assert.Equal(t, int64(1), status.ErrorsCount)
}

func TestRunLeavesFailedFileWhenRoutingDisabled(t *testing.T) {
	cfg := quickConfig()
	off := false
	cfg.ErrorRouting = &off
	h := newHarness(cfg, nil)
	bad := logKey("tlm", "INST", "HEALTH", "20260110100000", false)
	h.bucket.Put(bad, []byte("not a decom log"))

	runToCompletion(t, h)

	assert.True(t, h.bucket.Has(bad))
	assert.False(t, h.bucket.Has(mover.ErrorPath(bad)))
	assert.Equal(t, int64(1), h.m.Status().ErrorsCount)
}

func TestRunFlushesPerBatch(t *testing.T) {
	cfg := quickConfig()
	cfg.BatchSize = 2
	h := newHarness(cfg, nil)
	key := logKey("tlm", "INST", "HEALTH", "20260110100000", false)
	h.bucket.Put(key, healthLog(1, 2, 3, 4, 5).Bytes())

	runToCompletion(t, h)

	// Two full batches plus the final partial flush.
	assert.Equal(t, 3, h.dest.Flushes())
	assert.Len(t, h.dest.Rows(), 5)
}

func TestRunPausesBetweenFiles(t *testing.T) {
	cfg := quickConfig()
	cfg.FilesBeforePause = 1
	h := newHarness(cfg, nil)
	h.bucket.Put(logKey("tlm", "INST", "HEALTH", "20260110100000", false), healthLog(1000).Bytes())
	h.bucket.Put(logKey("tlm", "INST", "HEALTH", "20260110110000", false), healthLog(2000).Bytes())

	before := metrics.PausesTaken.Value()
	runToCompletion(t, h)

	status := h.m.Status()
	assert.Equal(t, types.StateComplete, status.State)
	assert.Equal(t, int64(2), status.FilesProcessed)
	// One pause after each file at a cadence of one.
	assert.Equal(t, int64(2), metrics.PausesTaken.Value()-before)
}

func TestRunPauseCadenceFollowsFilesBeforePause(t *testing.T) {
	cfg := quickConfig()
	cfg.FilesBeforePause = 2
	h := newHarness(cfg, nil)
	h.bucket.Put(logKey("tlm", "INST", "HEALTH", "20260110100000", false), healthLog(1000).Bytes())
	h.bucket.Put(logKey("tlm", "INST", "HEALTH", "20260110110000", false), healthLog(2000).Bytes())
	h.bucket.Put(logKey("tlm", "INST", "HEALTH", "20260110120000", false), healthLog(3000).Bytes())

	before := metrics.PausesTaken.Value()
	runToCompletion(t, h)

	// Pause after the second file only; the trailing odd file completes
	// the run without another pause.
	assert.Equal(t, int64(3), h.m.Status().FilesProcessed)
	assert.Equal(t, int64(1), metrics.PausesTaken.Value()-before)
}

func TestRunDropsRowsOnUnrecoverableWriteError(t *testing.T) {
	h := newHarness(quickConfig(), nil)
	h.dest.WriteErr = errors.New("connection reset")
	h.dest.WriteErrCount = 1000
	bad := logKey("tlm", "INST", "HEALTH", "20260110100000", false)
	h.bucket.Put(bad, healthLog(1000, 1001).Bytes())

	runToCompletion(t, h)

	assert.Empty(t, h.dest.Rows())
	assert.True(t, h.bucket.Has(mover.ErrorPath(bad)))
	status := h.m.Status()
	assert.Equal(t, int64(0), status.PacketsIngested)
	assert.Equal(t, int64(1), status.ErrorsCount)
}

func TestRunRetriesRecoverableWriteError(t *testing.T) {
	h := newHarness(quickConfig(), nil)
	h.dest.WriteErr = &tsdb.RecoverableError{Table: "TLM__INST__HEALTH", Err: errors.New("table busy")}
	h.dest.WriteErrCount = 1
	key := logKey("tlm", "INST", "HEALTH", "20260110100000", false)
	h.bucket.Put(key, healthLog(1000, 1001).Bytes())

	runToCompletion(t, h)

	assert.Len(t, h.dest.Rows(), 2)
	status := h.m.Status()
	assert.Equal(t, int64(2), status.PacketsIngested)
	assert.Equal(t, int64(0), status.ErrorsCount)
}

// seqLister serves one column set for the first query and another afterwards,
// standing in for a destination that widened a column mid-run.
type seqLister struct {
	mu    sync.Mutex
	calls int
	first []tsdb.Column
	later []tsdb.Column
}

func (l *seqLister) Columns(_ context.Context, _ string) ([]tsdb.Column, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.calls == 1 {
		return l.first, nil
	}
	return l.later, nil
}

func TestRunWidensClassificationAfterCastFailure(t *testing.T) {
	lister := &seqLister{
		first: []tsdb.Column{{Name: "MODE", Type: "FLOAT"}},
		later: []tsdb.Column{{Name: "MODE", Type: "VARCHAR"}},
	}
	h := newHarness(quickConfig(), lister)
	key := logKey("tlm", "INST", "HEALTH", "20260110100000", false)
	log := testutil.NewLogBuilder().
		Declare(1, types.DirectionTLM, "INST", "HEALTH").
		Packet(1, 1000, map[string]any{"MODE": "SAFE"})
	h.bucket.Put(key, log.Bytes())

	runToCompletion(t, h)

	rows := h.dest.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, `"SAFE"`, rows[0].Columns["MODE"])
	assert.Equal(t, int64(0), h.m.Status().ErrorsCount)
}

func TestRunConnectFailureIsFatal(t *testing.T) {
	h := newHarness(quickConfig(), nil)
	h.dest.ConnectErr = errors.New("ilp endpoint unreachable")

	err := h.m.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to destination")

	status := h.m.Status()
	assert.Equal(t, types.StateError, status.State)
	assert.Contains(t, status.LastError, "ilp endpoint unreachable")

	alerts := h.alerts.all()
	require.Len(t, alerts, 1)
	assert.Equal(t, types.AlertLevelError, alerts[0].Level)
}

func TestRunSnapshotFailureIsFatal(t *testing.T) {
	h := newHarness(quickConfig(), nil)
	h.defs.TargetsErr = errors.New("definitions store down")

	err := h.m.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.StateError, h.m.Status().State)
}

func TestRunFlushFailureIsFatal(t *testing.T) {
	h := newHarness(quickConfig(), nil)
	h.dest.FlushErr = errors.New("connection reset")
	key := logKey("tlm", "INST", "HEALTH", "20260110100000", false)
	h.bucket.Put(key, healthLog(1000).Bytes())

	err := h.m.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flushing")
	assert.Equal(t, types.StateError, h.m.Status().State)
}

func TestRunCancelledContextReturnsNil(t *testing.T) {
	h := newHarness(quickConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.m.Run(ctx))
}

func TestRunCancelledMidFileKeepsFlushedRows(t *testing.T) {
	cfg := quickConfig()
	cfg.BatchSize = 1
	h := newHarness(cfg, nil)
	key := logKey("tlm", "INST", "HEALTH", "20260110100000", false)
	h.bucket.Put(key, healthLog(1, 2, 3, 4, 5).Bytes())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.dest.FlushHook = func(count int) {
		if count == 2 {
			cancel()
		}
	}

	require.NoError(t, h.m.Run(ctx))

	// Everything flushed before the stop stays written; nothing past it
	// is, the file stays in place, and no checkpoint records the
	// unfinished file.
	assert.Len(t, h.dest.Rows(), 2)
	assert.True(t, h.bucket.Has(key))
	assert.False(t, h.bucket.Has(mover.ProcessedPath(key)))
	assert.Equal(t, 0, h.cps.Saves())
}

func TestRunInitialDelayHonorsCancellation(t *testing.T) {
	cfg := quickConfig()
	delay := 3600
	cfg.InitialDelaySeconds = &delay
	h := newHarness(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.m.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancellation during initial delay")
	}
	assert.Empty(t, h.dest.Rows())
}

func TestRunEmptyCatalogCompletes(t *testing.T) {
	h := newHarness(quickConfig(), nil)

	runToCompletion(t, h)

	status := h.m.Status()
	assert.Equal(t, types.StateComplete, status.State)
	assert.Equal(t, int64(0), status.FilesProcessed)
}
