package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/decommigrate/internal/config"
	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var configDir string
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				cfg, err := config.Load(configDir)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				addr = serverAddr(cfg)
			}
			return showStatus(addr)
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", ".", "Directory containing decommigrate.yaml")
	cmd.Flags().StringVar(&addr, "addr", "", "Status server address (overrides config)")
	return cmd
}

func showStatus(addr string) error {
	url := addr
	if !strings.HasPrefix(url, "http") {
		if strings.HasPrefix(url, ":") {
			url = "localhost" + url
		}
		url = "http://" + url
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url + "/api/status")
	if err != nil {
		return fmt.Errorf("is the migration running? %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var report types.StatusReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return fmt.Errorf("decoding status: %w", err)
	}

	printStatus(report)
	return nil
}

func printStatus(report types.StatusReport) {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("Migration: %s (run %s)\n", report.Scope, report.RunID)

	stateStr := string(report.State)
	switch report.State {
	case types.StateComplete:
		stateStr = color.GreenString(stateStr)
	case types.StateError:
		stateStr = color.RedString(stateStr)
	case types.StateMigrating:
		stateStr = color.CyanString(stateStr)
	case types.StatePaused:
		stateStr = color.YellowString(stateStr)
	}
	if report.Detail != "" {
		fmt.Printf("  State:    %s (%s)\n", stateStr, report.Detail)
	} else {
		fmt.Printf("  State:    %s\n", stateStr)
	}

	fmt.Printf("  Files:    %d processed, %d with errors\n", report.FilesProcessed, report.ErrorsCount)
	fmt.Printf("  Packets:  %d ingested\n", report.PacketsIngested)
	if !report.StartedAt.IsZero() {
		fmt.Printf("  Started:  %s\n", report.StartedAt.Format(time.RFC3339))
	}
	if !report.UpdatedAt.IsZero() {
		fmt.Printf("  Updated:  %s\n", report.UpdatedAt.Format(time.RFC3339))
	}
	if report.LastError != "" {
		color.Red("  Last error: %s", report.LastError)
	}
	fmt.Println()
}
