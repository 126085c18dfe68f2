// Package mover relocates processed decom log files to their post-migration
// homes in the bucket.
package mover

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dwsmith1983/decommigrate/internal/bucket"
	"github.com/dwsmith1983/decommigrate/pkg/types"
)

const decomSegment = "/decom_logs/"

// Mover transitions files out of the live decom_logs tree once they have been
// handled: successes to a processed/ mirror, failures to an error/ mirror.
type Mover struct {
	client bucket.Client
	logger *slog.Logger
}

// New creates a Mover.
func New(client bucket.Client, logger *slog.Logger) *Mover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mover{client: client, logger: logger}
}

// ProcessedPath mirrors a decom log key under the processed/ root.
func ProcessedPath(key string) string {
	return strings.Replace(key, decomSegment, "/processed"+decomSegment, 1)
}

// ErrorPath mirrors a decom log key under the error/ root.
func ErrorPath(key string) string {
	return strings.Replace(key, decomSegment, "/error"+decomSegment, 1)
}

// MarkProcessed moves a successfully migrated file to its processed/ mirror.
func (m *Mover) MarkProcessed(ctx context.Context, file types.LogFileRef) error {
	return m.move(ctx, file.BucketPath, ProcessedPath(file.BucketPath))
}

// MarkError moves a failed file to its error/ mirror so the next run does not
// silently retry it.
func (m *Mover) MarkError(ctx context.Context, file types.LogFileRef) error {
	return m.move(ctx, file.BucketPath, ErrorPath(file.BucketPath))
}

// move copies then deletes. Idempotent under retry: the copy overwrites any
// destination left by a prior attempt (content is immutable once logged), and
// deleting an already-deleted original is not an error.
func (m *Mover) move(ctx context.Context, src, dst string) error {
	if dst == src {
		return fmt.Errorf("key %q is not under a decom_logs prefix", src)
	}
	if err := m.client.Copy(ctx, src, dst); err != nil {
		return fmt.Errorf("copying to %s: %w", dst, err)
	}
	if err := m.client.Delete(ctx, src); err != nil {
		return fmt.Errorf("deleting original %s: %w", src, err)
	}
	m.logger.Debug("moved file", "from", src, "to", dst)
	return nil
}
