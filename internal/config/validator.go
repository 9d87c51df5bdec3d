package config

import (
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/Iron-Ham/stagehand/internal/lifecycle"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "lifecycle.phase_timeout_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Upper bounds for timeouts, in milliseconds.
const (
	maxPhaseTimeoutMs = 10 * 60 * 1000 // 10 minutes
	maxDebounceMs     = 60 * 1000
)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid log output formats
func ValidLogFormats() []string {
	return []string{"json", "text"}
}

// ValidScopes returns the list of valid barrier scopes
func ValidScopes() []string {
	return []string{string(lifecycle.ScopeLevel), string(lifecycle.ScopeTree)}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateLifecycle()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateDiagnostics()...)
	errors = append(errors, c.validateWatch()...)

	return errors
}

// validateLifecycle validates the LifecycleConfig
func (c *Config) validateLifecycle() []ValidationError {
	var errors []ValidationError

	for _, f := range []struct {
		field string
		value int
	}{
		{"lifecycle.phase_timeout_ms", c.Lifecycle.PhaseTimeoutMs},
		{"lifecycle.shutdown_timeout_ms", c.Lifecycle.ShutdownTimeoutMs},
	} {
		if f.value <= 0 {
			errors = append(errors, ValidationError{
				Field:   f.field,
				Value:   f.value,
				Message: "must be positive",
			})
		} else if f.value > maxPhaseTimeoutMs {
			errors = append(errors, ValidationError{
				Field:   f.field,
				Value:   f.value,
				Message: fmt.Sprintf("exceeds maximum of %dms", maxPhaseTimeoutMs),
			})
		}
	}

	if c.Lifecycle.MaxConcurrency < 0 {
		errors = append(errors, ValidationError{
			Field:   "lifecycle.max_concurrency",
			Value:   c.Lifecycle.MaxConcurrency,
			Message: "must be non-negative (0 = unbounded)",
		})
	}

	if _, err := lifecycle.ParseScope(c.Lifecycle.Scope); err != nil {
		errors = append(errors, ValidationError{
			Field:   "lifecycle.scope",
			Value:   c.Lifecycle.Scope,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidScopes(), ", ")),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.Format != "" && !slices.Contains(ValidLogFormats(), strings.ToLower(c.Logging.Format)) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative (0 disables rotation)",
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateDiagnostics validates the DiagnosticsConfig
func (c *Config) validateDiagnostics() []ValidationError {
	var errors []ValidationError

	if c.Diagnostics.Metrics || c.Diagnostics.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.Diagnostics.MetricsAddr); err != nil {
			errors = append(errors, ValidationError{
				Field:   "diagnostics.metrics_addr",
				Value:   c.Diagnostics.MetricsAddr,
				Message: "must be a host:port listen address",
			})
		}
	}

	return errors
}

// validateWatch validates the WatchConfig
func (c *Config) validateWatch() []ValidationError {
	var errors []ValidationError

	if c.Watch.DebounceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "watch.debounce_ms",
			Value:   c.Watch.DebounceMs,
			Message: "must be non-negative",
		})
	} else if c.Watch.DebounceMs > maxDebounceMs {
		errors = append(errors, ValidationError{
			Field:   "watch.debounce_ms",
			Value:   c.Watch.DebounceMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxDebounceMs),
		})
	}

	return errors
}
