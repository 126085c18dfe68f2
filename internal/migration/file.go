package migration

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"

	"github.com/dwsmith1983/decommigrate/internal/metrics"
	"github.com/dwsmith1983/decommigrate/internal/tsdb"
	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// processFile drains one decom log file into the destination. It returns the
// number of packets ingested, whether any row or decode error occurred, and a
// non-nil fatal error only for conditions that must stop the run (destination
// circuit open, context cancellation).
func (m *Migrator) processFile(ctx context.Context, file types.LogFileRef) (int64, bool, error) {
	logger := m.deps.Logger

	data, err := m.deps.Bucket.Download(ctx, file.BucketPath)
	if err != nil {
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		logger.Error("failed to download file", "key", file.BucketPath, "error", err)
		return 0, true, nil
	}

	if file.Compressed() {
		data, err = gunzip(data)
		if err != nil {
			logger.Error("failed to decompress file", "key", file.BucketPath, "error", err)
			return 0, true, nil
		}
	}

	dec, err := m.deps.Decoder(data)
	if err != nil {
		logger.Error("unreadable decom log", "key", file.BucketPath, "error", err)
		return 0, true, nil
	}

	var (
		packets  int64
		inBatch  int
		hadError bool
	)
	for {
		if ctx.Err() != nil {
			// Flush what is already buffered so the checkpoint's counts
			// stay truthful, then let Run observe the cancellation.
			_ = m.deps.Destination.Flush(context.WithoutCancel(ctx))
			return packets, hadError, ctx.Err()
		}

		pkt, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A framing error poisons the rest of the stream; keep what
			// was already ingested and mark the file failed.
			logger.Error("decode error, abandoning rest of file",
				"key", file.BucketPath, "after_packets", packets, "error", err)
			hadError = true
			break
		}

		table := tsdb.TableName(file.Direction, pkt.Target, pkt.Packet)
		if err := m.writePacket(ctx, table, pkt); err != nil {
			if tsdb.IsBreakerOpen(err) || ctx.Err() != nil {
				return packets, hadError, fmt.Errorf("writing to %s: %w", table, err)
			}
			logger.Warn("dropped packet row", "table", table, "error", err)
			metrics.RowsDropped.Add(1)
			hadError = true
			continue
		}
		packets++
		inBatch++

		if inBatch >= m.cfg.BatchSize {
			if err := m.deps.Destination.Flush(ctx); err != nil {
				return packets, hadError, fmt.Errorf("flushing batch: %w", err)
			}
			metrics.FlushesIssued.Add(1)
			inBatch = 0
			if sleep(ctx, seconds(m.cfg.SleepSeconds)) {
				return packets, hadError, ctx.Err()
			}
		}
	}

	if err := m.deps.Destination.Flush(ctx); err != nil {
		return packets, hadError, fmt.Errorf("flushing final batch: %w", err)
	}
	metrics.FlushesIssued.Add(1)
	return packets, hadError, nil
}

// writePacket casts a packet's fields per the cached schema and writes one
// row. A cast failure or a recoverable destination error earns exactly one
// retry after reconciling the cache against the live schema, which widens
// any column the destination has already moved.
func (m *Migrator) writePacket(ctx context.Context, table string, pkt *types.DecodedPacket) error {
	m.deps.Registry.EnsureLoaded(ctx, table)

	row, err := m.convertRow(table, pkt)
	if err == nil {
		err = m.deps.Destination.WriteRow(ctx, table, row, pkt.TimeNsec)
		if err == nil || !tsdb.IsRecoverable(err) {
			return err
		}
	}

	m.deps.Registry.Reconcile(ctx, table)
	row, convErr := m.convertRow(table, pkt)
	if convErr != nil {
		return convErr
	}
	if retryErr := m.deps.Destination.WriteRow(ctx, table, row, pkt.TimeNsec); retryErr != nil {
		return retryErr
	}
	metrics.RowsRecovered.Add(1)
	return nil
}

func (m *Migrator) convertRow(table string, pkt *types.DecodedPacket) (map[string]any, error) {
	row := make(map[string]any, len(pkt.Fields))
	for name, value := range pkt.Fields {
		converted, err := tsdb.ConvertValue(value, m.deps.Registry.Classify(table, name))
		if err != nil {
			return nil, fmt.Errorf("casting field %s: %w", name, err)
		}
		if converted == nil {
			continue
		}
		row[name] = converted
	}
	return row, nil
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
