package diagnostics

import (
	"slices"
	"sync"

	"github.com/Iron-Ham/stagehand/internal/component"
)

// Recorder is a Sink that keeps every event in memory. Tests use it to assert
// ordering properties through Seq.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Handle appends e.
func (r *Recorder) Handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of every recorded event in emission order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset discards every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Filter returns the recorded events for which keep returns true.
func (r *Recorder) Filter(keep func(Event) bool) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	return r.Filter(func(e Event) bool { return e.Type == t })
}

// ForComponent returns the recorded events about componentID.
func (r *Recorder) ForComponent(componentID string) []Event {
	return r.Filter(func(e Event) bool { return e.ComponentID == componentID })
}

// Find returns the first event matching type, component and phase. An empty
// componentID or phase matches any value.
func (r *Recorder) Find(t Type, componentID string, phase component.Phase) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Type != t {
			continue
		}
		if componentID != "" && e.ComponentID != componentID {
			continue
		}
		if phase != "" && e.Phase != phase {
			continue
		}
		return e, true
	}
	return Event{}, false
}

// Last returns the last event matching type, component and phase, with the
// same matching rules as Find.
func (r *Recorder) Last(t Type, componentID string, phase component.Phase) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		e := r.events[i]
		if e.Type != t {
			continue
		}
		if componentID != "" && e.ComponentID != componentID {
			continue
		}
		if phase != "" && e.Phase != phase {
			continue
		}
		return e, true
	}
	return Event{}, false
}

// Count returns how many events of type t concern componentID in phase, with
// the same matching rules as Find.
func (r *Recorder) Count(t Type, componentID string, phase component.Phase) int {
	return len(r.Filter(func(e Event) bool {
		return e.Type == t &&
			(componentID == "" || e.ComponentID == componentID) &&
			(phase == "" || e.Phase == phase)
	}))
}
