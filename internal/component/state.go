package component

// State is a component's position in its lifecycle. States are ordered; a
// component only ever moves forward.
type State int

const (
	StateConstructed State = iota
	StateLocallyInitialized
	StateDependenciesReady
	StateActive
	StateDeactivated
	StateFailed
)

// String returns the snake_case name of the state.
func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateLocallyInitialized:
		return "locally_initialized"
	case StateDependenciesReady:
		return "dependencies_ready"
	case StateActive:
		return "active"
	case StateDeactivated:
		return "deactivated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is allowed out of s.
func (s State) IsTerminal() bool {
	return s == StateFailed
}

// Reached reports whether s is at or beyond target on the success path.
// A failed component has reached nothing.
func (s State) Reached(target State) bool {
	if s == StateFailed {
		return false
	}
	return s >= target
}

// CanTransition reports whether a component may move from one state to
// another. Transitions are forward only; Failed is terminal. Deactivated can
// be entered from any initialized state, not only from Active.
func CanTransition(from, to State) bool {
	if from.IsTerminal() || from == to {
		return false
	}
	switch to {
	case StateFailed:
		return from != StateDeactivated
	case StateDeactivated:
		return from >= StateLocallyInitialized
	default:
		return to == from+1
	}
}

// Phase names one of the four lifecycle phases.
type Phase string

const (
	PhaseLocalInit       Phase = "local_init"
	PhaseDependencySetup Phase = "dependency_setup"
	PhaseActivation      Phase = "activation"
	PhaseDeactivation    Phase = "deactivation"
)

// Phases returns the three startup phases in execution order.
func Phases() []Phase {
	return []Phase{PhaseLocalInit, PhaseDependencySetup, PhaseActivation}
}

// Requires returns the state a component must be in to enter the phase.
func (p Phase) Requires() State {
	switch p {
	case PhaseLocalInit:
		return StateConstructed
	case PhaseDependencySetup:
		return StateLocallyInitialized
	case PhaseActivation:
		return StateDependenciesReady
	default:
		return StateLocallyInitialized
	}
}

// Produces returns the state a component enters when the phase succeeds.
func (p Phase) Produces() State {
	switch p {
	case PhaseLocalInit:
		return StateLocallyInitialized
	case PhaseDependencySetup:
		return StateDependenciesReady
	case PhaseActivation:
		return StateActive
	default:
		return StateDeactivated
	}
}
