package errors

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// InitializationError Tests
// -----------------------------------------------------------------------------

func TestNewInitializationError(t *testing.T) {
	err := NewInitializationError("map-viewer", "local_init", io.ErrUnexpectedEOF)

	if err.ComponentID() != "map-viewer" {
		t.Errorf("ComponentID() = %q, want %q", err.ComponentID(), "map-viewer")
	}
	if err.Phase() != "local_init" {
		t.Errorf("Phase() = %q, want %q", err.Phase(), "local_init")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("errors.Is(err, io.ErrUnexpectedEOF) = false, want true")
	}
	if !errors.Is(err, ErrPhaseFailed) {
		t.Error("errors.Is(err, ErrPhaseFailed) = false, want true")
	}
	if errors.Is(err, ErrPanic) {
		t.Error("errors.Is(err, ErrPanic) = true, want false")
	}
	want := "initialization error [component=map-viewer, phase=local_init]: phase failed: unexpected EOF"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNewPanicError(t *testing.T) {
	err := NewPanicError("drawer", "activation", "boom")

	if !errors.Is(err, ErrPanic) {
		t.Error("errors.Is(err, ErrPanic) = false, want true")
	}
	if err.Severity() != SeverityCritical {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityCritical)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("Error() = %q, want it to contain the panic value", err.Error())
	}
}

// -----------------------------------------------------------------------------
// TimeoutError Tests
// -----------------------------------------------------------------------------

func TestNewTimeoutError(t *testing.T) {
	err := NewTimeoutError("stat-panel", "dependency_setup", 250*time.Millisecond)

	if !errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = false, want true")
	}
	if !IsTimeout(err) {
		t.Error("IsTimeout() = false, want true")
	}
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true")
	}
	if err.Limit != 250*time.Millisecond {
		t.Errorf("Limit = %v, want %v", err.Limit, 250*time.Millisecond)
	}
	want := "timeout error [component=stat-panel, phase=dependency_setup]: did not settle within 250ms"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// -----------------------------------------------------------------------------
// DuplicateIdentifierError Tests
// -----------------------------------------------------------------------------

func TestNewDuplicateIdentifierError(t *testing.T) {
	err := NewDuplicateIdentifierError("tile", "board", "sidebar")

	if !errors.Is(err, ErrDuplicateIdentifier) {
		t.Error("errors.Is(err, ErrDuplicateIdentifier) = false, want true")
	}
	if !IsFatal(err) {
		t.Error("IsFatal() = false, want true")
	}
	if !strings.Contains(err.Error(), `existing parent "board"`) {
		t.Errorf("Error() = %q, want existing parent in message", err.Error())
	}

	var dup *DuplicateIdentifierError
	wrapped := fmt.Errorf("discover: %w", err)
	if !errors.As(wrapped, &dup) {
		t.Fatal("errors.As() failed to find DuplicateIdentifierError")
	}
	if dup.ComponentID() != "tile" {
		t.Errorf("ComponentID() = %q, want %q", dup.ComponentID(), "tile")
	}
}

// -----------------------------------------------------------------------------
// DependencyUnresolvedError Tests
// -----------------------------------------------------------------------------

func TestNewDependencyUnresolvedError(t *testing.T) {
	tests := []struct {
		name  string
		cause error
	}{
		{"not found", ErrDependencyNotFound},
		{"failed", ErrDependencyFailed},
		{"unreachable", ErrDependencyUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDependencyUnresolvedError("map-viewer", "dependency_setup", "rules", tt.cause)
			if !errors.Is(err, tt.cause) {
				t.Errorf("errors.Is(err, %v) = false, want true", tt.cause)
			}
			if err.DependencyID != "rules" {
				t.Errorf("DependencyID = %q, want %q", err.DependencyID, "rules")
			}
			if IsFatal(err) {
				t.Error("IsFatal() = true, want false")
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Helper Tests
// -----------------------------------------------------------------------------

func TestComponentID(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"foreign", io.EOF, ""},
		{"lifecycle", NewTimeoutError("a", "activation", time.Second), "a"},
		{"wrapped", Wrap(NewInitializationError("b", "local_init", io.EOF), "run"), "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComponentID(tt.err); got != tt.want {
				t.Errorf("ComponentID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	if got := GetSeverity(nil); got != SeverityInfo {
		t.Errorf("GetSeverity(nil) = %v, want %v", got, SeverityInfo)
	}
	if got := GetSeverity(io.EOF); got != SeverityError {
		t.Errorf("GetSeverity(io.EOF) = %v, want %v", got, SeverityError)
	}
	if got := GetSeverity(NewDuplicateIdentifierError("x", "", "")); got != SeverityCritical {
		t.Errorf("GetSeverity(duplicate) = %v, want %v", got, SeverityCritical)
	}
}

func TestIsFatal_Canceled(t *testing.T) {
	if !IsFatal(Wrap(ErrCanceled, "run")) {
		t.Error("IsFatal(canceled) = false, want true")
	}
	if IsFatal(nil) {
		t.Error("IsFatal(nil) = true, want false")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	err := Wrapf(io.EOF, "reading %s", "manifest")
	if err.Error() != "reading manifest: EOF" {
		t.Errorf("Wrapf() = %q, want %q", err.Error(), "reading manifest: EOF")
	}
	if !errors.Is(err, io.EOF) {
		t.Error("Wrapf() should preserve the cause")
	}
}
