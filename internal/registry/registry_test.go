package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/stagehand/internal/component"
	"github.com/Iron-Ham/stagehand/internal/errors"
)

func TestRegistry_Register(t *testing.T) {
	r := New()

	if err := r.Register(component.NewBase("root"), ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(component.NewBase("map-viewer"), "root"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if r.Len() != 2 {
		t.Errorf("Expected 2 components, got %d", r.Len())
	}
	state, ok := r.State("map-viewer")
	if !ok || state != component.StateConstructed {
		t.Errorf("Expected map-viewer constructed, got %v (found=%v)", state, ok)
	}
	parent, _ := r.Parent("map-viewer")
	if parent != "root" {
		t.Errorf("Expected parent 'root', got %q", parent)
	}

	ids := r.IDs()
	if len(ids) != 2 || ids[0] != "root" || ids[1] != "map-viewer" {
		t.Errorf("Expected registration order [root map-viewer], got %v", ids)
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := New()
	_ = r.Register(component.NewBase("stat-panel"), "sidebar")

	err := r.Register(component.NewBase("stat-panel"), "drawer")
	if err == nil {
		t.Fatal("Expected duplicate registration to fail")
	}
	var dup *errors.DuplicateIdentifierError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected DuplicateIdentifierError, got %T", err)
	}
	if dup.ExistingParent != "sidebar" || dup.DuplicateParent != "drawer" {
		t.Errorf("Expected parents sidebar/drawer, got %q/%q", dup.ExistingParent, dup.DuplicateParent)
	}
	if r.Len() != 1 {
		t.Errorf("Expected duplicate not to be registered, got %d entries", r.Len())
	}
}

func TestRegistry_RegisterEmptyID(t *testing.T) {
	r := New()
	err := r.Register(component.NewBase(""), "root")
	if !errors.Is(err, errors.ErrEmptyIdentifier) {
		t.Errorf("Expected ErrEmptyIdentifier, got %v", err)
	}
}

func TestRegistry_SetState(t *testing.T) {
	tests := []struct {
		name    string
		path    []component.State
		wantErr bool
	}{
		{
			name: "forward path",
			path: []component.State{
				component.StateLocallyInitialized,
				component.StateDependenciesReady,
				component.StateActive,
				component.StateDeactivated,
			},
		},
		{
			name:    "skip a state",
			path:    []component.State{component.StateDependenciesReady},
			wantErr: true,
		},
		{
			name: "backwards",
			path: []component.State{
				component.StateLocallyInitialized,
				component.StateConstructed,
			},
			wantErr: true,
		},
		{
			name: "deactivate before active",
			path: []component.State{
				component.StateLocallyInitialized,
				component.StateDeactivated,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			_ = r.Register(component.NewBase("c"), "")

			var err error
			for _, s := range tt.path {
				if err = r.SetState("c", s); err != nil {
					break
				}
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if err != nil && !errors.Is(err, errors.ErrInvalidTransition) {
				t.Errorf("Expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestRegistry_Fail(t *testing.T) {
	r := New()
	_ = r.Register(component.NewBase("drawer"), "")

	cause := errors.New("boom")
	if !r.Fail("drawer", cause) {
		t.Fatal("Expected Fail to succeed")
	}
	if state, _ := r.State("drawer"); state != component.StateFailed {
		t.Errorf("Expected failed state, got %s", state)
	}
	if r.Err("drawer") != cause {
		t.Errorf("Expected recorded cause, got %v", r.Err("drawer"))
	}
	if r.Fail("drawer", errors.New("again")) {
		t.Error("Expected second Fail to be a no-op")
	}
	if r.Err("drawer") != cause {
		t.Error("Expected original cause to be kept")
	}
	if err := r.SetState("drawer", component.StateDeactivated); err == nil {
		t.Error("Expected Failed to be terminal")
	}
}

func TestRegistry_Await(t *testing.T) {
	r := New()
	_ = r.Register(component.NewBase("map-viewer"), "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var wg sync.WaitGroup
	var got component.Component
	var err error
	wg.Go(func() {
		got, err = r.Await(ctx, "map-viewer", component.StateDependenciesReady)
	})

	_ = r.SetState("map-viewer", component.StateLocallyInitialized)
	_ = r.SetState("map-viewer", component.StateDependenciesReady)
	wg.Wait()

	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if got == nil || got.ID() != "map-viewer" {
		t.Errorf("Expected map-viewer, got %v", got)
	}
}

func TestRegistry_AwaitFailures(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		r := New()
		_, err := r.Await(context.Background(), "ghost", component.StateActive)
		if !errors.Is(err, errors.ErrDependencyNotFound) {
			t.Errorf("Expected ErrDependencyNotFound, got %v", err)
		}
	})

	t.Run("target fails while waiting", func(t *testing.T) {
		r := New()
		_ = r.Register(component.NewBase("drawer"), "")

		done := make(chan error, 1)
		go func() {
			_, err := r.Await(context.Background(), "drawer", component.StateActive)
			done <- err
		}()
		r.Fail("drawer", errors.New("boom"))

		select {
		case err := <-done:
			if !errors.Is(err, errors.ErrDependencyFailed) {
				t.Errorf("Expected ErrDependencyFailed, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Await did not return after target failed")
		}
	})

	t.Run("context done", func(t *testing.T) {
		r := New()
		_ = r.Register(component.NewBase("drawer"), "")

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := r.Await(ctx, "drawer", component.StateActive)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Expected deadline exceeded, got %v", err)
		}
	})

	t.Run("reset wakes waiters", func(t *testing.T) {
		r := New()
		_ = r.Register(component.NewBase("drawer"), "")

		done := make(chan error, 1)
		go func() {
			_, err := r.Await(context.Background(), "drawer", component.StateActive)
			done <- err
		}()
		time.Sleep(10 * time.Millisecond)
		r.Reset()

		select {
		case err := <-done:
			if !errors.Is(err, errors.ErrDependencyNotFound) {
				t.Errorf("Expected ErrDependencyNotFound after reset, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Await did not return after Reset")
		}
	})
}

func TestView_RecordsLookups(t *testing.T) {
	r := New()
	_ = r.Register(component.NewBase("map-viewer"), "")
	_ = r.Register(component.NewBase("stat-panel"), "")

	view := r.Scoped("stat-panel")
	if _, ok := view.Lookup("map-viewer"); !ok {
		t.Error("Expected map-viewer to be found")
	}
	view.Lookup("map-viewer")
	view.State("missing")
	view.Lookup("stat-panel") // self lookups are not recorded

	got := r.Lookups("stat-panel")
	if len(got) != 2 || got[0] != "map-viewer" || got[1] != "missing" {
		t.Errorf("Expected [map-viewer missing], got %v", got)
	}
	if len(r.Lookups("map-viewer")) != 0 {
		t.Error("Expected no lookups recorded for map-viewer")
	}
}

func TestView_AwaitAttributesCaller(t *testing.T) {
	r := New()
	view := r.Scoped("stat-panel")

	_, err := view.Await(context.Background(), "ghost", component.StateActive)

	var dep *errors.DependencyUnresolvedError
	if !errors.As(err, &dep) {
		t.Fatalf("Expected DependencyUnresolvedError, got %T", err)
	}
	if dep.ComponentID() != "stat-panel" || dep.DependencyID != "ghost" {
		t.Errorf("Expected stat-panel -> ghost, got %s -> %s", dep.ComponentID(), dep.DependencyID)
	}
	if !errors.Is(err, errors.ErrDependencyNotFound) {
		t.Error("Expected error to wrap ErrDependencyNotFound")
	}
}

func TestView_AwaitDeeperUnderLevelBarriers(t *testing.T) {
	r := New()
	_ = r.Register(component.NewBase("page"), "")
	_ = r.Register(component.NewBase("sidebar"), "")
	_ = r.Register(component.NewBase("grid"), "page")
	_ = r.Register(component.NewBase("cell"), "grid")
	for _, id := range []string{"page", "sidebar", "grid", "cell"} {
		_ = r.SetState(id, component.StateLocallyInitialized)
	}
	r.SetLevelBarriers(true)

	tests := []struct {
		name        string
		caller      string
		id          string
		target      component.State
		unreachable bool
	}{
		{name: "deeper not yet reached", caller: "page", id: "cell", target: component.StateDependenciesReady, unreachable: true},
		{name: "deeper already reached", caller: "page", id: "cell", target: component.StateLocallyInitialized},
		{name: "deeper in another subtree", caller: "sidebar", id: "grid", target: component.StateActive, unreachable: true},
		{name: "shallower", caller: "cell", id: "page", target: component.StateLocallyInitialized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			_, err := r.Scoped(tt.caller).Await(ctx, tt.id, tt.target)
			if got := errors.Is(err, errors.ErrDependencyUnreachable); got != tt.unreachable {
				t.Errorf("Await(%s) error = %v, want unreachable=%v", tt.id, err, tt.unreachable)
			}
			if tt.unreachable && ctx.Err() != nil {
				t.Error("Expected the await to fail before its context expired")
			}
		})
	}

	// Tree-wide barriers wait instead.
	r.SetLevelBarriers(false)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Scoped("page").Await(ctx, "cell", component.StateDependenciesReady)
	if errors.Is(err, errors.ErrDependencyUnreachable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected the await to wait for its context, got %v", err)
	}
}

func TestRegistry_Snapshot(t *testing.T) {
	r := New()
	_ = r.Register(component.NewBase("a"), "")
	_ = r.Register(component.NewBase("b"), "a")
	_ = r.SetState("a", component.StateLocallyInitialized)

	snap := r.Snapshot()
	if snap["a"] != component.StateLocallyInitialized || snap["b"] != component.StateConstructed {
		t.Errorf("Unexpected snapshot: %v", snap)
	}
}
