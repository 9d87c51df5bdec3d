package component

import (
	"context"
	"sync"
)

// Base is an embeddable helper that gives a component an identifier, an
// injected Lookup, and idempotent release of tracked event-bus subscriptions.
// Every phase method is a no-op; embedders override the ones they need.
//
//	type MapViewer struct {
//	    *component.Base
//	    bus *event.Bus
//	}
//
//	func (m *MapViewer) Activate(ctx context.Context) error {
//	    m.Track(m.bus.Subscribe("unit.selected", m.onSelect, event.OwnedBy(m.ID())))
//	    return nil
//	}
type Base struct {
	id string

	mu       sync.Mutex
	lookup   Lookup
	releases []func()
	released bool
}

// NewBase returns a Base with the given identifier.
func NewBase(id string) *Base {
	return &Base{id: id}
}

// ID returns the component identifier.
func (b *Base) ID() string { return b.id }

// Bind stores the lookup injected by the controller.
func (b *Base) Bind(lookup Lookup) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lookup = lookup
}

// Peers returns the injected lookup, or nil if the component was never bound.
func (b *Base) Peers() Lookup {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lookup
}

// Track records a release function (typically an event-bus unsubscribe) to
// run on Release. If the component is already released, fn runs immediately
// so a late subscription cannot outlive teardown.
func (b *Base) Track(fn func()) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		fn()
		return
	}
	b.releases = append(b.releases, fn)
	b.mu.Unlock()
}

// Release runs every tracked release function once, most recent first.
// Subsequent calls do nothing.
func (b *Base) Release() {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return
	}
	b.released = true
	fns := b.releases
	b.releases = nil
	b.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// Released reports whether Release has run.
func (b *Base) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

// Tracked returns the number of release functions still pending.
func (b *Base) Tracked() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.releases)
}

func (b *Base) LocalInit(ctx context.Context) ([]Component, error) { return nil, nil }

func (b *Base) SetupDependencies(ctx context.Context) error { return nil }

func (b *Base) Activate(ctx context.Context) error { return nil }

// Deactivate releases tracked subscriptions. It is safe to call repeatedly.
func (b *Base) Deactivate(ctx context.Context) error {
	b.Release()
	return nil
}
