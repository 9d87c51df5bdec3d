package lifecycle

import (
	"context"
	"sync"
	"testing"

	"github.com/Iron-Ham/stagehand/internal/component"
	"github.com/Iron-Ham/stagehand/internal/diagnostics"
	"github.com/Iron-Ham/stagehand/internal/registry"
)

// testComponent is a scriptable component. Each phase runs its hook, if any,
// and counts the call.
type testComponent struct {
	*component.Base

	children []component.Component
	deps     []string

	mu    sync.Mutex
	calls map[component.Phase]int
	hooks map[component.Phase]func(ctx context.Context) error
}

func newTestComponent(id string, children ...component.Component) *testComponent {
	return &testComponent{
		Base:     component.NewBase(id),
		children: children,
		calls:    make(map[component.Phase]int),
		hooks:    make(map[component.Phase]func(ctx context.Context) error),
	}
}

// on installs a hook for phase and returns the component for chaining.
func (c *testComponent) on(phase component.Phase, fn func(ctx context.Context) error) *testComponent {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks[phase] = fn
	return c
}

// failIn makes phase return err.
func (c *testComponent) failIn(phase component.Phase, err error) *testComponent {
	return c.on(phase, func(context.Context) error { return err })
}

// hangIn makes phase block until release is closed, ignoring its context.
func (c *testComponent) hangIn(phase component.Phase, release <-chan struct{}) *testComponent {
	return c.on(phase, func(context.Context) error {
		<-release
		return nil
	})
}

func (c *testComponent) run(ctx context.Context, phase component.Phase) error {
	c.mu.Lock()
	c.calls[phase]++
	hook := c.hooks[phase]
	c.mu.Unlock()
	if hook != nil {
		return hook(ctx)
	}
	return nil
}

func (c *testComponent) count(phase component.Phase) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[phase]
}

func (c *testComponent) LocalInit(ctx context.Context) ([]component.Component, error) {
	if err := c.run(ctx, component.PhaseLocalInit); err != nil {
		return nil, err
	}
	return c.children, nil
}

func (c *testComponent) SetupDependencies(ctx context.Context) error {
	return c.run(ctx, component.PhaseDependencySetup)
}

func (c *testComponent) Activate(ctx context.Context) error {
	return c.run(ctx, component.PhaseActivation)
}

func (c *testComponent) Deactivate(ctx context.Context) error {
	err := c.run(ctx, component.PhaseDeactivation)
	c.Release()
	return err
}

func (c *testComponent) Dependencies() []string { return c.deps }

// sevenNodeTree builds root -> {a, b}, a -> {a1, a2}, b -> {b1, b2}.
func sevenNodeTree() (*testComponent, map[string]*testComponent) {
	all := make(map[string]*testComponent)
	mk := func(id string, children ...component.Component) *testComponent {
		c := newTestComponent(id, children...)
		all[id] = c
		return c
	}
	a := mk("a", mk("a1"), mk("a2"))
	b := mk("b", mk("b1"), mk("b2"))
	root := mk("root", a, b)
	return root, all
}

// parentOf lists the parent/child edges of sevenNodeTree.
var parentOf = map[string]string{
	"a":  "root",
	"b":  "root",
	"a1": "a",
	"a2": "a",
	"b1": "b",
	"b2": "b",
}

func newTestController(t *testing.T, opts Options) (*Controller, *diagnostics.Recorder) {
	t.Helper()
	rec := diagnostics.NewRecorder()
	ctrl := New(opts, registry.New(), diagnostics.NewEmitter(rec), nil)
	ctrl.newRunID = func() string { return "test-run" }
	return ctrl, rec
}

func mustFind(t *testing.T, rec *diagnostics.Recorder, typ diagnostics.Type, id string, phase component.Phase) diagnostics.Event {
	t.Helper()
	ev, ok := rec.Find(typ, id, phase)
	if !ok {
		t.Fatalf("Expected %s event for %s/%s", typ, id, phase)
	}
	return ev
}

// seqBounds returns the lowest and highest Seq of events matching typ and
// phase.
func seqBounds(rec *diagnostics.Recorder, typ diagnostics.Type, phase component.Phase) (lo, hi uint64) {
	for _, e := range rec.Filter(func(e diagnostics.Event) bool { return e.Type == typ && e.Phase == phase }) {
		if lo == 0 || e.Seq < lo {
			lo = e.Seq
		}
		if e.Seq > hi {
			hi = e.Seq
		}
	}
	return lo, hi
}
