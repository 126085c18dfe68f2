package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/decommigrate/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "decommigrate",
		Short: "One-time migration of historical decom logs into QuestDB",
		Long: `Decommigrate moves historical decoded telemetry and command log files
from object storage into QuestDB. It runs once alongside the live ingestion
pipeline: files are migrated newest first, throttled to protect shared
systems, and checkpointed so an interrupted run resumes where it left off.`,
		Version: version,
	}

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewRunCmd(),
		commands.NewStatusCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
