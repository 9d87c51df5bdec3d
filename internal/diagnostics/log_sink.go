package diagnostics

import (
	"github.com/Iron-Ham/stagehand/internal/logging"
)

// LogSink writes lifecycle events to a structured logger. Per-component phase
// transitions are logged at DEBUG; run outcomes, failures and leaks at INFO or
// above.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a LogSink. A nil logger discards everything.
func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &LogSink{logger: logger.With("subsystem", "diagnostics")}
}

// Handle logs e.
func (s *LogSink) Handle(e Event) {
	args := []any{"seq", e.Seq, "event", string(e.Type)}
	if e.RunID != "" {
		args = append(args, "run_id", e.RunID)
	}
	if e.ComponentID != "" {
		args = append(args, "component_id", e.ComponentID)
	}
	if e.Phase != "" {
		args = append(args, "phase", string(e.Phase))
	}
	if e.Duration > 0 {
		args = append(args, "duration_ms", e.Duration.Milliseconds())
	}
	for k, v := range e.Metadata {
		args = append(args, k, v)
	}
	if e.Err != nil {
		args = append(args, "error", e.Err.Error())
	}

	switch e.Type {
	case PhaseFailed, ComponentLeaked:
		s.logger.Warn("lifecycle event", args...)
	case RunAborted:
		s.logger.Error("lifecycle event", args...)
	case RunStarted, RunReady, TeardownStarted, TeardownCompleted:
		s.logger.Info("lifecycle event", args...)
	default:
		s.logger.Debug("lifecycle event", args...)
	}
}
