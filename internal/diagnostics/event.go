// Package diagnostics carries the lifecycle controller's orchestration
// signals: which phase started, completed or failed for which component, and
// when a run became ready, aborted or was torn down.
//
// The controller emits [Event] values through an [Emitter], which fans them
// out to any number of [Sink] implementations: an in-memory [Recorder] for
// tests, a structured log sink, Prometheus metrics and OpenTelemetry spans.
//
// These events never travel over the component event bus.
package diagnostics

import (
	"fmt"
	"time"

	"github.com/Iron-Ham/stagehand/internal/component"
)

// Type identifies the kind of lifecycle event.
type Type string

const (
	RunStarted        Type = "run.started"
	PhaseStarted      Type = "phase.started"
	PhaseCompleted    Type = "phase.completed"
	PhaseFailed       Type = "phase.failed"
	RunReady          Type = "run.ready"
	RunAborted        Type = "run.aborted"
	TeardownStarted   Type = "teardown.started"
	TeardownCompleted Type = "teardown.completed"
	ComponentLeaked   Type = "component.leaked"
)

// Event is a single lifecycle signal. Events are values; sinks must not
// modify Metadata.
type Event struct {
	// Seq is strictly increasing per Emitter. Use it instead of Timestamp to
	// order events, since timestamps can tie.
	Seq         uint64
	Type        Type
	RunID       string
	ComponentID string
	Phase       component.Phase
	Timestamp   time.Time

	// Duration is set on phase.completed, phase.failed, run.ready,
	// run.aborted and teardown.completed.
	Duration time.Duration
	Err      error
	Metadata map[string]any
}

// Failed reports whether the event carries an error.
func (e Event) Failed() bool { return e.Err != nil }

// String returns a compact single-line rendering used by the watch view.
func (e Event) String() string {
	s := fmt.Sprintf("#%d %s", e.Seq, e.Type)
	if e.ComponentID != "" {
		s += " " + e.ComponentID
	}
	if e.Phase != "" {
		s += " " + string(e.Phase)
	}
	if e.Duration > 0 {
		s += " (" + e.Duration.Round(time.Microsecond).String() + ")"
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
