package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/decommigrate/internal/config"
	"github.com/dwsmith1983/decommigrate/internal/observability"
	"github.com/dwsmith1983/decommigrate/internal/secrets"
	"github.com/dwsmith1983/decommigrate/internal/server"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the decom log migration",
		Long: `Runs the one-time migration of historical decom log files from the
bucket into QuestDB, with a status HTTP server alongside. The migration
resumes from its checkpoint if a previous run was interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(configDir)
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", ".", "Directory containing decommigrate.yaml")
	return cmd
}

func runMigration(configDir string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := secrets.Resolve(ctx, cfg); err != nil {
		return fmt.Errorf("resolving secrets: %w", err)
	}

	shutdownObs, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return fmt.Errorf("setting up observability: %w", err)
	}

	comps, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := server.New(serverAddr(cfg), comps.migrator, comps.store, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return comps.migrator.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	err = g.Wait()

	cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	comps.close(cleanupCtx)
	if shutdownObs != nil {
		_ = shutdownObs(cleanupCtx)
	}

	if err != nil {
		return err
	}
	color.Green("Migration stopped cleanly")
	return nil
}
