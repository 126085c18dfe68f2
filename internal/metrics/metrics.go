// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	FilesProcessed    = expvar.NewInt("files_processed")
	FilesErrored      = expvar.NewInt("files_errored")
	PacketsIngested   = expvar.NewInt("packets_ingested")
	RowsDropped       = expvar.NewInt("rows_dropped")
	RowsRecovered     = expvar.NewInt("rows_recovered")
	FlushesIssued     = expvar.NewInt("flushes_issued")
	PausesTaken       = expvar.NewInt("pauses_taken")
	CheckpointFailed  = expvar.NewInt("checkpoint_write_failures")
	MovesFailed       = expvar.NewInt("move_failures")
	AlertsDispatched  = expvar.NewInt("alerts_dispatched")
	FilesSkippedStale = expvar.NewInt("files_skipped_obsolete")
)
