package lifecycle

import (
	"fmt"
	"strings"
	"time"
)

// Scope selects how phases 2 and 3 are partitioned into barriers.
type Scope string

const (
	// ScopeLevel runs a phase one depth at a time, root level first, with a
	// barrier between levels and between phases.
	ScopeLevel Scope = "level"
	// ScopeTree runs a phase on the whole tree at once behind a single barrier.
	ScopeTree Scope = "tree"
)

// ParseScope converts a configuration string into a Scope. An empty string
// yields ScopeTree.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeTree:
		return ScopeTree, nil
	case ScopeLevel:
		return ScopeLevel, nil
	default:
		return "", fmt.Errorf("invalid scope %q (must be %q or %q)", s, ScopeLevel, ScopeTree)
	}
}

// LeakDetector reports how many event bus subscriptions are still registered
// for an owner. *event.Bus implements it.
type LeakDetector interface {
	OwnedCount(owner string) int
}

// Default timeouts.
const (
	DefaultPhaseTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Options configures a Controller.
type Options struct {
	// PhaseTimeout bounds a single LocalInit, SetupDependencies or Activate
	// call. A call that exceeds it fails that component with a TimeoutError
	// and is abandoned.
	PhaseTimeout time.Duration

	// ShutdownTimeout bounds a single Deactivate call.
	ShutdownTimeout time.Duration

	// ContinueOnError keeps the run going after a component fails. When false
	// the first barrier that records a failure ends the run and everything
	// already initialized is torn down.
	ContinueOnError bool

	// ValidateDependencies fails components whose recorded lookups or
	// declared dependencies resolve to nothing or to a failed component.
	ValidateDependencies bool

	// EnableDebugLogging raises the controller's logger to DEBUG.
	EnableDebugLogging bool

	// MaxConcurrency bounds the number of phase calls in flight per barrier.
	// Zero means unbounded.
	MaxConcurrency int

	// Scope selects whole-tree or level-by-level barriers for phases 2 and 3.
	// Under ScopeLevel a component cannot Await anything deeper than itself.
	Scope Scope

	// LeakDetector, if set, is consulted after every Deactivate call.
	LeakDetector LeakDetector
}

// DefaultOptions returns Options with the default timeouts, abort-on-error
// and tree scope.
func DefaultOptions() Options {
	return Options{
		PhaseTimeout:    DefaultPhaseTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		Scope:           ScopeTree,
	}
}

// normalize fills zero values with defaults.
func (o Options) normalize() Options {
	if o.PhaseTimeout <= 0 {
		o.PhaseTimeout = DefaultPhaseTimeout
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	if o.MaxConcurrency < 0 {
		o.MaxConcurrency = 0
	}
	if o.Scope == "" {
		o.Scope = ScopeTree
	}
	return o
}
