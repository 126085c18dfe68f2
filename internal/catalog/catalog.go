package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dwsmith1983/decommigrate/internal/bucket"
	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// Catalog enumerates decom log files for a scope, newest first.
type Catalog struct {
	client bucket.Client
	scope  string
	logger *slog.Logger
}

// New creates a Catalog over the given object store client.
func New(client bucket.Client, scope string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{client: client, scope: scope, logger: logger}
}

// List walks the telemetry and command decom log prefixes and returns every
// recognized log file, sorted descending by filename timestamp. Sort ties keep
// discovery order. Listing errors on a subtree are logged and that subtree is
// skipped; only context cancellation aborts the walk.
func (c *Catalog) List(ctx context.Context) ([]types.LogFileRef, error) {
	prefixes := []string{
		fmt.Sprintf("%s/decom_logs/tlm/", c.scope),
		fmt.Sprintf("%s/decom_logs/cmd/", c.scope),
	}

	var refs []types.LogFileRef
	for _, prefix := range prefixes {
		keys, err := c.walk(ctx, prefix)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			if !IsDecomLog(key) {
				continue
			}
			ref, err := ParseFileRef(key)
			if err != nil {
				c.logger.Debug("skipping unparseable decom log name", "key", key, "error", err)
				continue
			}
			refs = append(refs, ref)
		}
	}

	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Timestamp.After(refs[j].Timestamp)
	})

	c.logger.Info("decom log catalog built", "scope", c.scope, "files", len(refs))
	return refs, nil
}

// walk traverses the prefix breadth-first, accumulating object keys.
func (c *Catalog) walk(ctx context.Context, root string) ([]string, error) {
	var keys []string
	queue := []string{root}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prefix := queue[0]
		queue = queue[1:]

		dirs, files, err := c.client.List(ctx, prefix)
		if err != nil {
			c.logger.Warn("listing failed, skipping subtree", "prefix", prefix, "error", err)
			continue
		}
		queue = append(queue, dirs...)
		keys = append(keys, files...)
	}
	return keys, nil
}
