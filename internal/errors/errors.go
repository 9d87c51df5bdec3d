// Package errors provides the error taxonomy for the stagehand lifecycle
// orchestrator. It defines sentinel errors, typed lifecycle errors that carry
// the failing component and phase, and classification helpers.
//
// # Error Types
//
// Every failure recorded by the lifecycle controller is one of:
//   - InitializationError: a component's own phase logic returned an error or panicked
//   - TimeoutError: a phase call did not settle within its time limit
//   - DuplicateIdentifierError: two components in one tree share an identifier
//   - DependencyUnresolvedError: a dependency lookup resolved to nothing or to a failed component
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewInitializationError("map-viewer", "activation", cause)
//	err := errors.NewTimeoutError("stat-panel", "dependency_setup", 10*time.Second)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrTimeout) { ... }
//
//	var dup *errors.DuplicateIdentifierError
//	if errors.As(err, &dup) { ... }
//
//	if errors.IsFatal(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that abort a whole run.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Lifecycle sentinel errors
var (
	// ErrPhaseFailed indicates that a component's phase logic reported a failure.
	ErrPhaseFailed = New("phase failed")
	// ErrPanic indicates that a component panicked during a phase call.
	ErrPanic = New("component panicked")
	// ErrTimeout indicates that a phase call exceeded its time limit.
	ErrTimeout = New("phase timed out")
	// ErrDuplicateIdentifier indicates that an identifier is already registered in the tree.
	ErrDuplicateIdentifier = New("duplicate component identifier")
	// ErrDependencyNotFound indicates that a looked-up component does not exist.
	ErrDependencyNotFound = New("dependency not found")
	// ErrDependencyFailed indicates that a looked-up component is in the Failed state.
	ErrDependencyFailed = New("dependency failed")
	// ErrDependencyUnreachable indicates an await on a component whose phase
	// runs in a later level barrier.
	ErrDependencyUnreachable = New("dependency settles in a later barrier")
	// ErrInvalidTransition indicates an attempt to move a component backwards through its states.
	ErrInvalidTransition = New("invalid state transition")
	// ErrRunInProgress indicates that Run was called while another run is active.
	ErrRunInProgress = New("run already in progress")
	// ErrCanceled indicates that a run was canceled by its caller.
	ErrCanceled = New("run canceled")
	// ErrEmptyIdentifier indicates that a component reported an empty identifier.
	ErrEmptyIdentifier = New("empty component identifier")
)

// -----------------------------------------------------------------------------
// Base Error
// -----------------------------------------------------------------------------

// LifecycleError is the interface implemented by every error recorded
// against a component.
type LifecycleError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// ComponentID returns the identifier of the component the error belongs to.
	ComponentID() string

	// Phase returns the lifecycle phase in which the error occurred.
	Phase() string

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if rerunning the phase may succeed.
	IsRetryable() bool
}

// baseError provides common functionality for all lifecycle error types.
type baseError struct {
	componentID string
	phase       string
	message     string
	cause       error
	severity    Severity
	retryable   bool
}

func (e *baseError) prefix(kind string) string {
	var parts []string
	if e.componentID != "" {
		parts = append(parts, fmt.Sprintf("component=%s", e.componentID))
	}
	if e.phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.phase))
	}
	if len(parts) == 0 {
		return kind
	}
	return fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
}

func (e *baseError) format(kind string) string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.prefix(kind), e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.prefix(kind), e.message)
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error { return e.cause }

// ComponentID returns the failing component's identifier.
func (e *baseError) ComponentID() string { return e.componentID }

// Phase returns the phase in which the error occurred.
func (e *baseError) Phase() string { return e.phase }

// Severity returns the error severity.
func (e *baseError) Severity() Severity { return e.severity }

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool { return e.retryable }

// -----------------------------------------------------------------------------
// InitializationError
// -----------------------------------------------------------------------------

// InitializationError is raised by a component's own phase logic, either as a
// returned error or as a recovered panic.
//
// Example:
//
//	err := errors.NewInitializationError("map-viewer", "local_init", io.ErrUnexpectedEOF)
//	fmt.Println(err) // "initialization error [component=map-viewer, phase=local_init]: phase failed: unexpected EOF"
type InitializationError struct {
	baseError
}

// NewInitializationError creates an InitializationError wrapping cause.
func NewInitializationError(componentID, phase string, cause error) *InitializationError {
	return &InitializationError{
		baseError: baseError{
			componentID: componentID,
			phase:       phase,
			message:     ErrPhaseFailed.Error(),
			cause:       cause,
			severity:    SeverityError,
		},
	}
}

// NewPanicError creates an InitializationError for a recovered panic value.
func NewPanicError(componentID, phase string, recovered any) *InitializationError {
	return &InitializationError{
		baseError: baseError{
			componentID: componentID,
			phase:       phase,
			message:     ErrPanic.Error(),
			cause:       fmt.Errorf("%v", recovered),
			severity:    SeverityCritical,
		},
	}
}

// Error returns the formatted error message.
func (e *InitializationError) Error() string { return e.format("initialization error") }

// Is reports whether target is ErrPhaseFailed, ErrPanic (for recovered panics),
// or matches the wrapped cause.
func (e *InitializationError) Is(target error) bool {
	if target == ErrPhaseFailed {
		return true
	}
	if target == ErrPanic {
		return e.message == ErrPanic.Error()
	}
	return false
}

// -----------------------------------------------------------------------------
// TimeoutError
// -----------------------------------------------------------------------------

// TimeoutError indicates that a phase call did not settle in time. The call is
// abandoned; its eventual result is ignored.
type TimeoutError struct {
	baseError
	Limit time.Duration
}

// NewTimeoutError creates a TimeoutError for the given phase limit.
func NewTimeoutError(componentID, phase string, limit time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			componentID: componentID,
			phase:       phase,
			message:     fmt.Sprintf("did not settle within %v", limit),
			cause:       ErrTimeout,
			severity:    SeverityError,
			retryable:   true,
		},
		Limit: limit,
	}
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %s", e.prefix("timeout error"), e.message)
}

// -----------------------------------------------------------------------------
// DuplicateIdentifierError
// -----------------------------------------------------------------------------

// DuplicateIdentifierError is raised during tree construction when a newly
// discovered component reuses an identifier already present in the tree.
type DuplicateIdentifierError struct {
	baseError
	// ExistingParent is the parent id of the component that already owns the identifier.
	ExistingParent string
	// DuplicateParent is the parent id of the rejected component.
	DuplicateParent string
}

// NewDuplicateIdentifierError creates a DuplicateIdentifierError.
func NewDuplicateIdentifierError(componentID, existingParent, duplicateParent string) *DuplicateIdentifierError {
	return &DuplicateIdentifierError{
		baseError: baseError{
			componentID: componentID,
			message:     "identifier already registered",
			cause:       ErrDuplicateIdentifier,
			severity:    SeverityCritical,
		},
		ExistingParent:  existingParent,
		DuplicateParent: duplicateParent,
	}
}

// Error returns the formatted error message.
func (e *DuplicateIdentifierError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.prefix("duplicate identifier error"), e.message)
	if e.ExistingParent != "" || e.DuplicateParent != "" {
		msg += fmt.Sprintf(" (existing parent %q, duplicate parent %q)", e.ExistingParent, e.DuplicateParent)
	}
	return msg
}

// -----------------------------------------------------------------------------
// DependencyUnresolvedError
// -----------------------------------------------------------------------------

// DependencyUnresolvedError is raised when dependency validation finds that a
// component looked up (or declared) a dependency that does not exist or failed.
type DependencyUnresolvedError struct {
	baseError
	DependencyID string
}

// NewDependencyUnresolvedError creates a DependencyUnresolvedError.
// cause should be ErrDependencyNotFound or ErrDependencyFailed.
func NewDependencyUnresolvedError(componentID, phase, dependencyID string, cause error) *DependencyUnresolvedError {
	return &DependencyUnresolvedError{
		baseError: baseError{
			componentID: componentID,
			phase:       phase,
			message:     fmt.Sprintf("dependency %q unresolved", dependencyID),
			cause:       cause,
			severity:    SeverityError,
		},
		DependencyID: dependencyID,
	}
}

// Error returns the formatted error message.
func (e *DependencyUnresolvedError) Error() string { return e.format("dependency error") }

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsTimeout reports whether err is (or wraps) a phase timeout.
func IsTimeout(err error) bool {
	return err != nil && Is(err, ErrTimeout)
}

// IsFatal reports whether err aborts a run regardless of the continue-on-error
// policy. Duplicate identifiers and caller cancellation are fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrDuplicateIdentifier) || Is(err, ErrCanceled)
}

// IsRetryable returns true if the error is transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var lerr LifecycleError
	if As(err, &lerr) {
		return lerr.IsRetryable()
	}
	return Is(err, ErrTimeout)
}

// GetSeverity returns the severity of err, or SeverityError for foreign errors.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityInfo
	}
	var lerr LifecycleError
	if As(err, &lerr) {
		return lerr.Severity()
	}
	return SeverityError
}

// ComponentID extracts the component identifier carried by err, if any.
func ComponentID(err error) string {
	var lerr LifecycleError
	if As(err, &lerr) {
		return lerr.ComponentID()
	}
	return ""
}

// Wrap wraps err with a message. Returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps err with a formatted message. Returns nil if err is nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
