// Package commands implements the CLI subcommands for the decommigrate binary.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dwsmith1983/decommigrate/internal/alert"
	"github.com/dwsmith1983/decommigrate/internal/bucket"
	"github.com/dwsmith1983/decommigrate/internal/catalog"
	"github.com/dwsmith1983/decommigrate/internal/checkpoint"
	"github.com/dwsmith1983/decommigrate/internal/config"
	"github.com/dwsmith1983/decommigrate/internal/definitions"
	"github.com/dwsmith1983/decommigrate/internal/migration"
	"github.com/dwsmith1983/decommigrate/internal/mover"
	"github.com/dwsmith1983/decommigrate/internal/schema"
	"github.com/dwsmith1983/decommigrate/internal/tsdb"
	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// components holds everything a migration run wires together, so shutdown can
// release the pieces in order.
type components struct {
	migrator *migration.Migrator
	store    checkpoint.Store
	defs     *definitions.RedisSource
	db       *tsdb.Client
}

func (c *components) close(ctx context.Context) {
	if c.defs != nil {
		_ = c.defs.Close()
	}
	if c.store != nil {
		_ = c.store.Close(ctx)
	}
}

// buildComponents assembles a ready-to-run Migrator from the project config.
// The destination client stays unconnected; the migrator connects it inside
// Run so the initial delay elapses first.
func buildComponents(ctx context.Context, cfg *types.ProjectConfig, logger *slog.Logger) (*components, error) {
	bkt, err := bucket.NewS3Client(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("creating bucket client: %w", err)
	}

	store, err := checkpoint.New(cfg.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("creating checkpoint store: %w", err)
	}

	defs := definitions.NewRedisSource(cfg.Definitions)

	dispatcher, err := alert.NewDispatcher(cfg.Alerts, logger)
	if err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("creating alert dispatcher: %w", err)
	}

	db := tsdb.NewClient(cfg.QuestDB, logger)

	m := migration.New(cfg.Scope, cfg.Migration, migration.Deps{
		Bucket:      bkt,
		Catalog:     catalog.New(bkt, cfg.Scope, logger),
		Definitions: defs,
		Checkpoints: store,
		Destination: db,
		Registry:    schema.New(db, logger),
		Mover:       mover.New(bkt, logger),
		AlertFn:     dispatcher.AlertFunc(),
		Logger:      logger,
	})

	return &components{migrator: m, store: store, defs: defs, db: db}, nil
}

// serverAddr resolves the status server listen address.
func serverAddr(cfg *types.ProjectConfig) string {
	if cfg.Server != nil && cfg.Server.Addr != "" {
		return cfg.Server.Addr
	}
	return config.DefaultServerAddr
}
