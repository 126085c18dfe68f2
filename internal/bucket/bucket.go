// Package bucket provides the object store client used to list, fetch, and
// relocate decom log files.
package bucket

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Client is the object store contract the migration depends on. Keys are
// '/'-delimited logical paths within a single bucket.
type Client interface {
	// List returns the immediate subdirectory prefixes (each ending in "/")
	// and the object keys directly under prefix.
	List(ctx context.Context, prefix string) (dirs []string, files []string, err error)

	// Download fetches an object's bytes.
	Download(ctx context.Context, key string) ([]byte, error)

	// Copy performs a server-side copy within the bucket. Overwrites any
	// existing destination object (last write wins).
	Copy(ctx context.Context, srcKey, dstKey string) error

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

var (
	listErrors    metric.Int64Counter
	downloadCount metric.Int64Counter
	downloadBytes metric.Int64Counter
	moveCount     metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/dwsmith1983/decommigrate/internal/bucket")

	var err error
	listErrors, err = meter.Int64Counter(
		"decommigrate.bucket.list.errors",
		metric.WithDescription("Number of object listing errors"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create list.errors counter: %w", err))
	}

	downloadCount, err = meter.Int64Counter(
		"decommigrate.bucket.download.count",
		metric.WithDescription("Number of object downloads"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create download.count counter: %w", err))
	}

	downloadBytes, err = meter.Int64Counter(
		"decommigrate.bucket.download.bytes",
		metric.WithDescription("Bytes downloaded from the object store"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create download.bytes counter: %w", err))
	}

	moveCount, err = meter.Int64Counter(
		"decommigrate.bucket.move.count",
		metric.WithDescription("Number of object copy+delete moves"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create move.count counter: %w", err))
	}
}
