package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/Iron-Ham/stagehand/internal/lifecycle"
	"github.com/Iron-Ham/stagehand/internal/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. STAGEHAND_LIFECYCLE_PHASE_TIMEOUT_MS.
const EnvPrefix = "STAGEHAND"

// Config represents the complete stagehand configuration
type Config struct {
	Lifecycle   LifecycleConfig   `mapstructure:"lifecycle"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Watch       WatchConfig       `mapstructure:"watch"`
}

// LifecycleConfig controls how the controller drives a component tree
type LifecycleConfig struct {
	// PhaseTimeoutMs bounds a single LocalInit, SetupDependencies or Activate call (default: 10000)
	PhaseTimeoutMs int `mapstructure:"phase_timeout_ms"`
	// ShutdownTimeoutMs bounds a single Deactivate call (default: 10000)
	ShutdownTimeoutMs int `mapstructure:"shutdown_timeout_ms"`
	// ContinueOnError keeps a run going after a component fails (default: false)
	ContinueOnError bool `mapstructure:"continue_on_error"`
	// ValidateDependencies fails components whose lookups resolve to missing or failed peers
	ValidateDependencies bool `mapstructure:"validate_dependencies"`
	// EnableDebugLogging logs every phase transition at DEBUG
	EnableDebugLogging bool `mapstructure:"enable_debug_logging"`
	// MaxConcurrency bounds phase calls in flight per barrier (0 = unbounded)
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// Scope selects barrier granularity for dependency setup and activation.
	// Options: "tree" (default), "level"
	Scope string `mapstructure:"scope"`
	// DetectLeaks reports components that keep event subscriptions after deactivation (default: true)
	DetectLeaks bool `mapstructure:"detect_leaks"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Format is "json" or "text" (default: "text")
	Format string `mapstructure:"format"`
	// Dir is the directory for stagehand.log. Empty logs to stderr.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB rotates stagehand.log at this size; 0 disables rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files kept (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress"`
}

// Rotation converts the logging settings to a logging.RotationConfig.
func (c LoggingConfig) Rotation() logging.RotationConfig {
	return logging.RotationConfig{
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
	}
}

// DiagnosticsConfig controls metrics and tracing sinks
type DiagnosticsConfig struct {
	// Metrics enables the Prometheus sink
	Metrics bool `mapstructure:"metrics"`
	// MetricsAddr is the listen address for /metrics when serving (default: "127.0.0.1:9464")
	MetricsAddr string `mapstructure:"metrics_addr"`
	// Tracing exports one span per component phase to stdout
	Tracing bool `mapstructure:"tracing"`
}

// WatchConfig controls manifest hot reload
type WatchConfig struct {
	// Manifest restarts the tree when the manifest file changes (serve mode only)
	Manifest bool `mapstructure:"manifest"`
	// DebounceMs coalesces bursts of file events (default: 250)
	DebounceMs int `mapstructure:"debounce_ms"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Lifecycle: LifecycleConfig{
			PhaseTimeoutMs:       10000,
			ShutdownTimeoutMs:    10000,
			ContinueOnError:      false,
			ValidateDependencies: false,
			EnableDebugLogging:   false,
			MaxConcurrency:       0,
			Scope:                string(lifecycle.ScopeTree),
			DetectLeaks:          true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format:     "text",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
		Diagnostics: DiagnosticsConfig{
			Metrics:     false,
			MetricsAddr: "127.0.0.1:9464",
			Tracing:     false,
		},
		Watch: WatchConfig{
			Manifest:   false,
			DebounceMs: 250,
		},
	}
}

// PhaseTimeout returns the phase timeout as a time.Duration
func (c *LifecycleConfig) PhaseTimeout() time.Duration {
	return time.Duration(c.PhaseTimeoutMs) * time.Millisecond
}

// ShutdownTimeout returns the shutdown timeout as a time.Duration
func (c *LifecycleConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond
}

// Options converts the section into controller options. The leak detector is
// left unset; callers attach their event bus when DetectLeaks is true.
func (c *LifecycleConfig) Options() lifecycle.Options {
	scope, err := lifecycle.ParseScope(c.Scope)
	if err != nil {
		scope = lifecycle.ScopeTree
	}
	return lifecycle.Options{
		PhaseTimeout:         c.PhaseTimeout(),
		ShutdownTimeout:      c.ShutdownTimeout(),
		ContinueOnError:      c.ContinueOnError,
		ValidateDependencies: c.ValidateDependencies,
		EnableDebugLogging:   c.EnableDebugLogging,
		MaxConcurrency:       c.MaxConcurrency,
		Scope:                scope,
	}
}

// Debounce returns the watch debounce as a time.Duration
func (c *WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Lifecycle defaults
	viper.SetDefault("lifecycle.phase_timeout_ms", defaults.Lifecycle.PhaseTimeoutMs)
	viper.SetDefault("lifecycle.shutdown_timeout_ms", defaults.Lifecycle.ShutdownTimeoutMs)
	viper.SetDefault("lifecycle.continue_on_error", defaults.Lifecycle.ContinueOnError)
	viper.SetDefault("lifecycle.validate_dependencies", defaults.Lifecycle.ValidateDependencies)
	viper.SetDefault("lifecycle.enable_debug_logging", defaults.Lifecycle.EnableDebugLogging)
	viper.SetDefault("lifecycle.max_concurrency", defaults.Lifecycle.MaxConcurrency)
	viper.SetDefault("lifecycle.scope", defaults.Lifecycle.Scope)
	viper.SetDefault("lifecycle.detect_leaks", defaults.Lifecycle.DetectLeaks)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.format", defaults.Logging.Format)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Diagnostics defaults
	viper.SetDefault("diagnostics.metrics", defaults.Diagnostics.Metrics)
	viper.SetDefault("diagnostics.metrics_addr", defaults.Diagnostics.MetricsAddr)
	viper.SetDefault("diagnostics.tracing", defaults.Diagnostics.Tracing)

	// Watch defaults
	viper.SetDefault("watch.manifest", defaults.Watch.Manifest)
	viper.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// Watch re-reads the configuration whenever the config file viper loaded
// changes on disk and passes the result to onChange. An invalid file yields
// a nil Config and the validation error.
func Watch(onChange func(*Config, error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(Load())
	})
	viper.WatchConfig()
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "stagehand")
	}
	// Fall back to ~/.config/stagehand
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stagehand"
	}
	return filepath.Join(home, ".config", "stagehand")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
