package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/Iron-Ham/stagehand/internal/config"
	"github.com/Iron-Ham/stagehand/internal/logging"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View run logs",
	Long: `View and filter stagehand.log from the configured logging.dir.

By default, shows logs from the most recent run. Rotated backups, including
gzipped ones, are read as well.

Examples:
  # Everything the last run logged about one component
  stagehand logs --component map-viewer -n 0

  # Failures across every run in the last hour
  stagehand logs --run all --level error --since 1h

  # Export a run as CSV
  stagehand logs --run 3f2a9c1b --format csv > run.csv`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsDir       string
	logsRun       string
	logsComponent string
	logsPhase     string
	logsLevel     string
	logsSince     string
	logsGrep      string
	logsTail      int
	logsFormat    string
)

// allRuns disables run filtering.
const allRuns = "all"

func init() {
	logsCmd.Flags().StringVar(&logsDir, "dir", "", "Log directory (default: logging.dir)")
	logsCmd.Flags().StringVarP(&logsRun, "run", "r", "", `Run ID (default: most recent, "all" for every run)`)
	logsCmd.Flags().StringVar(&logsComponent, "component", "", "Filter by component ID")
	logsCmd.Flags().StringVar(&logsPhase, "phase", "", "Filter by phase (local_init, dependency_setup, activation, deactivation)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter by message substring")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsFormat, "format", logging.ExportText, "Output format: text, json or csv")
}

func runLogs(cmd *cobra.Command, args []string) error {
	dir := logsDir
	if dir == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		dir = cfg.Logging.Dir
	}
	if dir == "" {
		return errors.New("no log directory: set logging.dir or pass --dir")
	}

	entries, err := logging.ReadEntries(dir)
	if err != nil {
		return err
	}

	filter := logging.Filter{
		Level:       logsLevel,
		RunID:       logsRun,
		ComponentID: logsComponent,
		Phase:       logsPhase,
		Contains:    logsGrep,
	}
	switch filter.RunID {
	case "":
		filter.RunID = logging.LastRunID(entries)
	case allRuns:
		filter.RunID = ""
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid --since duration: %w", err)
		}
		filter.Since = time.Now().Add(-d)
	}

	entries = filter.Apply(entries)
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}
	return logging.Export(cmd.OutOrStdout(), entries, logsFormat)
}
