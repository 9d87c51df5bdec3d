package component

import (
	"context"
)

// Component is a unit of UI behavior driven through the four lifecycle phases.
//
// The controller calls the phase methods in order; a component never calls
// them on itself or on peers.
type Component interface {
	// ID returns the identifier of the component. It must be stable and unique
	// within one tree.
	ID() string

	// LocalInit prepares the component's own display subtree and returns the
	// newly constructed children to fold into the tree at the next depth.
	// It must not touch peers or subscribe on the event bus.
	LocalInit(ctx context.Context) ([]Component, error)

	// SetupDependencies resolves references to peers and shared services.
	// Every component in the tree has completed LocalInit when it is called.
	SetupDependencies(ctx context.Context) error

	// Activate starts the component. Every component in the tree has completed
	// SetupDependencies when it is called. This is the only phase that may
	// subscribe or emit on the event bus.
	Activate(ctx context.Context) error

	// Deactivate releases bus subscriptions and owned resources. It must be
	// idempotent and must tolerate a component that never finished an
	// earlier phase.
	Deactivate(ctx context.Context) error
}

// Lookup is the read-only, tree-scoped view of the registry exposed to
// components during SetupDependencies and later.
type Lookup interface {
	// Lookup returns the component registered under id.
	Lookup(id string) (Component, bool)

	// State returns the current lifecycle state of the component registered
	// under id.
	State(id string) (State, bool)

	// Await blocks until the component registered under id reaches at least
	// the target state. It returns an error if the component fails, does not
	// exist, or ctx is done first.
	Await(ctx context.Context, id string, target State) (Component, error)
}

// Binder is implemented by components that want the controller to inject a
// Lookup when they are discovered, before SetupDependencies runs.
type Binder interface {
	Bind(lookup Lookup)
}

// DependencyDeclarer is implemented by components that declare the ids they
// depend on. Declared ids are validated together with recorded lookups when
// dependency validation is enabled.
type DependencyDeclarer interface {
	Dependencies() []string
}
