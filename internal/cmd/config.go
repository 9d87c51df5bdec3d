package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/stagehand/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View Stagehand configuration",
	Long: `View Stagehand configuration.

Without arguments, displays the effective configuration.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/stagehand/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintln(out)

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "lifecycle:")
	fmt.Fprintf(out, "  phase_timeout_ms: %d\n", cfg.Lifecycle.PhaseTimeoutMs)
	fmt.Fprintf(out, "  shutdown_timeout_ms: %d\n", cfg.Lifecycle.ShutdownTimeoutMs)
	fmt.Fprintf(out, "  continue_on_error: %v\n", cfg.Lifecycle.ContinueOnError)
	fmt.Fprintf(out, "  validate_dependencies: %v\n", cfg.Lifecycle.ValidateDependencies)
	fmt.Fprintf(out, "  enable_debug_logging: %v\n", cfg.Lifecycle.EnableDebugLogging)
	fmt.Fprintf(out, "  max_concurrency: %d\n", cfg.Lifecycle.MaxConcurrency)
	fmt.Fprintf(out, "  scope: %s\n", cfg.Lifecycle.Scope)
	fmt.Fprintf(out, "  detect_leaks: %v\n", cfg.Lifecycle.DetectLeaks)

	fmt.Fprintln(out, "logging:")
	fmt.Fprintf(out, "  level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "  format: %s\n", cfg.Logging.Format)
	fmt.Fprintf(out, "  dir: %s\n", cfg.Logging.Dir)
	fmt.Fprintf(out, "  max_size_mb: %d\n", cfg.Logging.MaxSizeMB)
	fmt.Fprintf(out, "  max_backups: %d\n", cfg.Logging.MaxBackups)
	fmt.Fprintf(out, "  compress: %v\n", cfg.Logging.Compress)

	fmt.Fprintln(out, "diagnostics:")
	fmt.Fprintf(out, "  metrics: %v\n", cfg.Diagnostics.Metrics)
	fmt.Fprintf(out, "  metrics_addr: %s\n", cfg.Diagnostics.MetricsAddr)
	fmt.Fprintf(out, "  tracing: %v\n", cfg.Diagnostics.Tracing)

	fmt.Fprintln(out, "watch:")
	fmt.Fprintf(out, "  manifest: %v\n", cfg.Watch.Manifest)
	fmt.Fprintf(out, "  debounce_ms: %d\n", cfg.Watch.DebounceMs)

	return nil
}

// defaultConfigContent is written by config init.
const defaultConfigContent = `# Stagehand Configuration

lifecycle:
  # Time limit for a single local_init, dependency_setup or activation call
  phase_timeout_ms: 10000
  # Time limit for a single deactivation call
  shutdown_timeout_ms: 10000
  # Keep running after a component fails instead of tearing everything down
  continue_on_error: false
  # Fail components whose lookups or declared dependencies are missing or failed
  validate_dependencies: false
  # Log every phase transition at debug level
  enable_debug_logging: false
  # Maximum phase calls in flight per barrier (0 = unbounded)
  max_concurrency: 0
  # Barrier granularity for dependency setup and activation
  # Options: tree, level
  scope: tree
  # Report components that keep event subscriptions after deactivation
  detect_leaks: true

logging:
  # Options: debug, info, warn, error
  level: info
  # Options: json, text (stagehand.log is always json)
  format: text
  # Directory for stagehand.log (empty logs to stderr)
  dir: ""
  # Rotate stagehand.log at this size (0 disables rotation)
  max_size_mb: 10
  max_backups: 3
  # Gzip rotated files
  compress: false

diagnostics:
  # Export Prometheus metrics
  metrics: false
  metrics_addr: 127.0.0.1:9464
  # Write one span per component phase
  tracing: false

watch:
  # Restart the tree when the manifest changes (run --serve)
  manifest: false
  debounce_ms: 250
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_LIFECYCLE_PHASE_TIMEOUT_MS)\n", config.EnvPrefix, config.EnvPrefix)

	return nil
}
