// Package widget provides a scripted component whose behavior comes from a
// manifest node: per-phase delays, injected failures, hangs and panics,
// declared dependencies, and event bus traffic during activation.
package widget

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Iron-Ham/stagehand/internal/component"
	"github.com/Iron-Ham/stagehand/internal/errors"
	"github.com/Iron-Ham/stagehand/internal/event"
	"github.com/Iron-Ham/stagehand/internal/logging"
	"github.com/Iron-Ham/stagehand/internal/manifest"
)

// ErrInjected is returned by a phase listed in a node's fail_in.
var ErrInjected = errors.New("injected failure")

// Widget is a component driven by a manifest node.
type Widget struct {
	*component.Base

	node   manifest.Node
	bus    *event.Bus
	logger *logging.Logger

	mu       sync.Mutex
	peers    map[string]component.Component
	received []event.Message
}

// New creates a widget for node. A nil bus disables subscriptions and
// emissions; a nil logger discards output.
func New(node manifest.Node, bus *event.Bus, logger *logging.Logger) *Widget {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Widget{
		Base:   component.NewBase(node.ID),
		node:   node,
		bus:    bus,
		logger: logger.WithComponent(node.ID),
		peers:  make(map[string]component.Component),
	}
}

// FromManifest returns the root widgets of m. Children are constructed
// lazily by each widget's LocalInit.
func FromManifest(m *manifest.Manifest, bus *event.Bus, logger *logging.Logger) []component.Component {
	roots := make([]component.Component, 0, len(m.Components))
	for _, n := range m.Components {
		roots = append(roots, New(n, bus, logger))
	}
	return roots
}

// Node returns the manifest node the widget was built from.
func (w *Widget) Node() manifest.Node { return w.node }

// Dependencies returns the ids listed in depends_on and await.
func (w *Widget) Dependencies() []string {
	deps := slices.Clone(w.node.DependsOn)
	for _, id := range w.node.Await {
		if !slices.Contains(deps, id) {
			deps = append(deps, id)
		}
	}
	return deps
}

func (w *Widget) LocalInit(ctx context.Context) ([]component.Component, error) {
	if err := w.step(ctx, component.PhaseLocalInit); err != nil {
		return nil, err
	}
	children := make([]component.Component, 0, len(w.node.Children))
	for _, n := range w.node.Children {
		children = append(children, New(n, w.bus, w.logger))
	}
	return children, nil
}

// SetupDependencies resolves depends_on by lookup, tolerating missing peers,
// and blocks until every await peer is DependenciesReady.
func (w *Widget) SetupDependencies(ctx context.Context) error {
	if err := w.step(ctx, component.PhaseDependencySetup); err != nil {
		return err
	}
	peers := w.Peers()
	if peers == nil {
		return nil
	}

	for _, id := range w.node.DependsOn {
		if c, ok := peers.Lookup(id); ok {
			w.setPeer(id, c)
		} else {
			w.logger.Debug("dependency not found", "dependency_id", id)
		}
	}
	for _, id := range w.node.Await {
		c, err := peers.Await(ctx, id, component.StateDependenciesReady)
		if err != nil {
			return err
		}
		w.setPeer(id, c)
	}
	return nil
}

// Activate subscribes to the node's event types, scoped to the widget's id,
// then publishes its emissions.
func (w *Widget) Activate(ctx context.Context) error {
	if err := w.step(ctx, component.PhaseActivation); err != nil {
		return err
	}
	if w.bus == nil {
		return nil
	}

	for _, typ := range w.node.Subscribe {
		unsub := w.bus.Subscribe(typ, w.receive, event.InScope(w.ID()), event.OwnedBy(w.ID()))
		if !w.node.Leak {
			w.Track(unsub)
		}
	}
	for _, e := range w.node.Emit {
		n := w.bus.Emit(e.Type, e.Payload, e.Target, w.ID())
		w.logger.Debug("emitted event", "event_type", e.Type, "target", e.Target, "delivered", n)
	}
	return nil
}

// Deactivate releases tracked subscriptions. It runs the injected behavior
// for the deactivation phase first, but always releases. Once released,
// further calls do nothing.
func (w *Widget) Deactivate(ctx context.Context) error {
	if w.Released() {
		return nil
	}
	defer w.Release()
	return w.step(ctx, component.PhaseDeactivation)
}

func (w *Widget) receive(msg event.Message) {
	w.mu.Lock()
	w.received = append(w.received, msg)
	w.mu.Unlock()
	w.logger.Debug("received event", "event_type", msg.Type, "source", msg.Source)
}

// Received returns the messages delivered to the widget so far.
func (w *Widget) Received() []event.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.received)
}

// Peer returns a dependency resolved during SetupDependencies.
func (w *Widget) Peer(id string) (component.Component, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.peers[id]
	return c, ok
}

func (w *Widget) setPeer(id string, c component.Component) {
	w.mu.Lock()
	w.peers[id] = c
	w.mu.Unlock()
}

// step applies the node's delay and injected behavior for phase.
func (w *Widget) step(ctx context.Context, phase component.Phase) error {
	if err := sleep(ctx, w.node.Delay.For(phase)); err != nil {
		return err
	}
	switch {
	case slices.Contains(w.node.PanicIn, phase):
		panic(fmt.Sprintf("widget %s: injected panic in %s", w.ID(), phase))
	case slices.Contains(w.node.HangIn, phase):
		<-ctx.Done()
		return ctx.Err()
	case slices.Contains(w.node.FailIn, phase):
		return fmt.Errorf("%w in %s", ErrInjected, phase)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
