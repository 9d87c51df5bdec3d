package lifecycle

import (
	"time"

	"github.com/Iron-Ham/stagehand/internal/component"
)

// Failure records why a component failed.
type Failure struct {
	ComponentID string
	Phase       component.Phase
	Err         error
}

// Timings holds wall-clock measurements for a run.
type Timings struct {
	// Total is the time from Run entry to ready or abort.
	Total time.Duration
	// Phases is the wall time spent in each phase across all barriers.
	Phases map[component.Phase]time.Duration
	// Components holds the duration of every settled phase call, keyed by
	// component id. Abandoned calls are recorded at the timeout limit.
	Components map[string]map[component.Phase]time.Duration
}

func newTimings() Timings {
	return Timings{
		Phases:     make(map[component.Phase]time.Duration),
		Components: make(map[string]map[component.Phase]time.Duration),
	}
}

func (t Timings) record(id string, phase component.Phase, d time.Duration) {
	m, ok := t.Components[id]
	if !ok {
		m = make(map[component.Phase]time.Duration, 3)
		t.Components[id] = m
	}
	m[phase] = d
}

// Component returns the duration of id's call for phase, or 0 if none was
// recorded.
func (t Timings) Component(id string, phase component.Phase) time.Duration {
	return t.Components[id][phase]
}

// TeardownReport describes a best-effort deactivation pass.
type TeardownReport struct {
	// Deactivated lists components whose Deactivate returned without error,
	// deepest level first.
	Deactivated []string
	// Failed lists components whose Deactivate returned an error, panicked or
	// timed out.
	Failed []Failure
	// Leaked lists components that still owned event bus subscriptions after
	// Deactivate returned.
	Leaked []string
	// Duration is the wall time of the whole pass.
	Duration time.Duration
}

// Count returns the number of Deactivate calls made.
func (r *TeardownReport) Count() int {
	if r == nil {
		return 0
	}
	return len(r.Deactivated) + len(r.Failed)
}

// Result is the outcome of a Run.
type Result struct {
	RunID string
	// Ready lists components that reached the Active state, in discovery
	// order. It is empty for an aborted run, since everything has been torn
	// down.
	Ready []string
	// Failed lists every component failure, in the order barriers settled.
	Failed  []Failure
	Timings Timings
	// Aborted is true when the run ended before every phase completed.
	Aborted bool
	// Teardown is the report of the deactivation pass an abort triggered.
	Teardown *TeardownReport
}

func newResult(runID string) *Result {
	return &Result{RunID: runID, Timings: newTimings()}
}

// ReadyIDs returns the identifiers of ready components.
func (r *Result) ReadyIDs() []string {
	return append([]string(nil), r.Ready...)
}

// FailedIDs returns the identifiers of failed components.
func (r *Result) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		ids = append(ids, f.ComponentID)
	}
	return ids
}

// Failure returns the error recorded for id, or nil if it did not fail.
func (r *Result) Failure(id string) error {
	for _, f := range r.Failed {
		if f.ComponentID == id {
			return f.Err
		}
	}
	return nil
}

// OK reports whether the run completed with no failures.
func (r *Result) OK() bool {
	return !r.Aborted && len(r.Failed) == 0
}
