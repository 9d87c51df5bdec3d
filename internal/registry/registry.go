// Package registry holds the tree-scoped id to component map that the
// lifecycle controller populates during discovery and that components query
// through a [component.Lookup] view during dependency setup.
package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Iron-Ham/stagehand/internal/component"
	"github.com/Iron-Ham/stagehand/internal/errors"
)

type entry struct {
	comp     component.Component
	parentID string
	depth    int
	state    component.State
	err      error
	// changed is closed and replaced on every state change.
	changed chan struct{}
}

// Registry maps component identifiers to components and their lifecycle
// state. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	lookups map[string][]string // caller id -> ids it looked up, first-seen order

	// levelBarriers marks deeper components as unreachable for View.Await.
	levelBarriers bool
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		lookups: make(map[string][]string),
	}
}

// Register adds c under its identifier in the Constructed state.
// It returns a *errors.DuplicateIdentifierError if the identifier is taken.
func (r *Registry) Register(c component.Component, parentID string) error {
	id := c.ID()
	if id == "" {
		return errors.Wrapf(errors.ErrEmptyIdentifier, "register child of %q", parentID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[id]; ok {
		return errors.NewDuplicateIdentifierError(id, existing.parentID, parentID)
	}
	depth := 0
	if parent, ok := r.entries[parentID]; ok && parentID != "" {
		depth = parent.depth + 1
	}
	r.entries[id] = &entry{
		comp:     c,
		parentID: parentID,
		depth:    depth,
		state:    component.StateConstructed,
		changed:  make(chan struct{}),
	}
	r.order = append(r.order, id)
	return nil
}

// SetState moves the component to state to. Backward or otherwise illegal
// moves are rejected with errors.ErrInvalidTransition.
func (r *Registry) SetState(id string, to component.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("set state of %q: %w", id, errors.ErrDependencyNotFound)
	}
	if !component.CanTransition(e.state, to) {
		return fmt.Errorf("%q: %s -> %s: %w", id, e.state, to, errors.ErrInvalidTransition)
	}
	r.transition(e, to)
	return nil
}

// Fail moves the component to the Failed state and records cause. Failing an
// already failed or deactivated component is a no-op that returns false.
func (r *Registry) Fail(id string, cause error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || !component.CanTransition(e.state, component.StateFailed) {
		return false
	}
	e.err = cause
	r.transition(e, component.StateFailed)
	return true
}

// transition must be called with r.mu held.
func (r *Registry) transition(e *entry, to component.State) {
	e.state = to
	close(e.changed)
	e.changed = make(chan struct{})
}

// Err returns the failure recorded for id, if any.
func (r *Registry) Err(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.err
	}
	return nil
}

// Lookup returns the component registered under id.
func (r *Registry) Lookup(id string) (component.Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.comp, true
}

// State returns the lifecycle state of the component registered under id.
func (r *Registry) State(id string) (component.State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return 0, false
	}
	return e.state, true
}

// Parent returns the parent identifier recorded at registration. Roots have
// an empty parent.
func (r *Registry) Parent(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return "", false
	}
	return e.parentID, true
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// Await blocks until the component registered under id reaches target. It
// fails fast with errors.ErrDependencyNotFound for unknown ids and with
// errors.ErrDependencyFailed when the component fails, and returns ctx.Err()
// when ctx is done first.
func (r *Registry) Await(ctx context.Context, id string, target component.State) (component.Component, error) {
	for {
		r.mu.RLock()
		e, ok := r.entries[id]
		if !ok {
			r.mu.RUnlock()
			return nil, fmt.Errorf("await %q: %w", id, errors.ErrDependencyNotFound)
		}
		state, comp, changed := e.state, e.comp, e.changed
		r.mu.RUnlock()

		if state == component.StateFailed {
			return nil, fmt.Errorf("await %q: %w", id, errors.ErrDependencyFailed)
		}
		if state.Reached(target) {
			return comp, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, fmt.Errorf("await %q reaching %s: %w", id, target, ctx.Err())
		}
	}
}

// IDs returns every registered identifier in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot returns the current state of every registered component.
func (r *Registry) Snapshot() map[string]component.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]component.State, len(r.entries))
	for id, e := range r.entries {
		out[id] = e.state
	}
	return out
}

// Lookups returns the identifiers callerID queried through its scoped view,
// in first-seen order.
func (r *Registry) Lookups(callerID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.lookups[callerID])
}

func (r *Registry) record(callerID, id string) {
	if callerID == "" || callerID == id {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.lookups[callerID], id) {
		r.lookups[callerID] = append(r.lookups[callerID], id)
	}
}

// Reset removes every entry and wakes any waiters, which then observe the
// identifiers as not found.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		close(e.changed)
	}
	r.entries = make(map[string]*entry)
	r.order = nil
	r.lookups = make(map[string][]string)
}

// SetLevelBarriers tells the registry that dependency setup and activation
// run one depth at a time. While set, View.Await on a component deeper than
// the caller fails immediately unless the target state is already reached.
func (r *Registry) SetLevelBarriers(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levelBarriers = on
}

// unreachable reports whether callerID would wait on id forever: id sits
// below the caller under level barriers and has not reached target yet.
func (r *Registry) unreachable(callerID, id string, target component.State) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.levelBarriers {
		return false
	}
	caller, ok := r.entries[callerID]
	if !ok {
		return false
	}
	e, ok := r.entries[id]
	if !ok || e.depth <= caller.depth {
		return false
	}
	return e.state != component.StateFailed && !e.state.Reached(target)
}

// Scoped returns the read-only view handed to the component callerID. Every
// query made through the view is recorded for dependency validation.
func (r *Registry) Scoped(callerID string) *View {
	return &View{registry: r, caller: callerID}
}

// View is a caller-scoped, read-only component.Lookup over a Registry.
type View struct {
	registry *Registry
	caller   string
}

var _ component.Lookup = (*View)(nil)

// Caller returns the identifier of the component that owns the view.
func (v *View) Caller() string { return v.caller }

// Lookup returns the component registered under id.
func (v *View) Lookup(id string) (component.Component, bool) {
	v.registry.record(v.caller, id)
	return v.registry.Lookup(id)
}

// State returns the lifecycle state of the component registered under id.
func (v *View) State(id string) (component.State, bool) {
	v.registry.record(v.caller, id)
	return v.registry.State(id)
}

// Await waits for id to reach target. Failures are reported as
// *errors.DependencyUnresolvedError attributed to the caller.
func (v *View) Await(ctx context.Context, id string, target component.State) (component.Component, error) {
	v.registry.record(v.caller, id)
	if v.registry.unreachable(v.caller, id, target) {
		cause := fmt.Errorf("await %q reaching %s: %w", id, target, errors.ErrDependencyUnreachable)
		return nil, errors.NewDependencyUnresolvedError(v.caller, "", id, cause)
	}
	comp, err := v.registry.Await(ctx, id, target)
	if err != nil {
		return nil, errors.NewDependencyUnresolvedError(v.caller, "", id, err)
	}
	return comp, nil
}
