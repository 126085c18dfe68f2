// Package definitions reads the live system's target and packet definitions,
// used to exclude obsolete logs from migration.
package definitions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// Source enumerates the currently defined targets and their packet names.
type Source interface {
	TargetNames(ctx context.Context, scope string) ([]string, error)
	TelemetryPacketNames(ctx context.Context, scope, target string) ([]string, error)
	CommandPacketNames(ctx context.Context, scope, target string) ([]string, error)
}

// TakeSnapshot builds a consistent view of the live definitions. A failure to
// list the targets is fatal; a failure to list one target's packets degrades
// to an empty set for that target so a single broken target cannot abort the
// whole run.
func TakeSnapshot(ctx context.Context, src Source, scope string, logger *slog.Logger) (types.Snapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	targets, err := src.TargetNames(ctx, scope)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("loading target definitions: %w", err)
	}

	snap := types.Snapshot{
		Targets:    make(map[string]struct{}, len(targets)),
		TLMPackets: make(map[string]map[string]struct{}, len(targets)),
		CMDPackets: make(map[string]map[string]struct{}, len(targets)),
	}

	totalTLM, totalCMD := 0, 0
	for _, target := range targets {
		snap.Targets[target] = struct{}{}

		tlm, err := src.TelemetryPacketNames(ctx, scope, target)
		if err != nil {
			logger.Warn("failed to load telemetry packets, treating as empty", "target", target, "error", err)
			tlm = nil
		}
		snap.TLMPackets[target] = toSet(tlm)
		totalTLM += len(tlm)

		cmd, err := src.CommandPacketNames(ctx, scope, target)
		if err != nil {
			logger.Warn("failed to load command packets, treating as empty", "target", target, "error", err)
			cmd = nil
		}
		snap.CMDPackets[target] = toSet(cmd)
		totalCMD += len(cmd)
	}

	logger.Info("loaded live definitions",
		"targets", len(targets),
		"tlm_packets", totalTLM,
		"cmd_packets", totalCMD)
	return snap, nil
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
