package lifecycle

import (
	"context"
	"time"

	"github.com/Iron-Ham/stagehand/internal/component"
	"github.com/Iron-Ham/stagehand/internal/diagnostics"
	"github.com/Iron-Ham/stagehand/internal/errors"
	"github.com/sourcegraph/conc/pool"
)

// outcome is the settled result of one phase call.
type outcome struct {
	node     *Node
	children []component.Component
	err      error
	duration time.Duration
}

// barrier runs phase on every node concurrently and returns once each call
// has settled or been abandoned at limit. Outcomes are returned in the order
// of nodes. Component state is updated as soon as each call settles so that
// peers awaiting it through the registry are released without waiting for
// the whole barrier.
func (c *Controller) barrier(ctx context.Context, rs *runState, nodes []*Node, phase component.Phase, limit time.Duration) []outcome {
	outcomes := make([]outcome, len(nodes))
	if len(nodes) == 0 {
		return outcomes
	}

	p := pool.New()
	if c.opts.MaxConcurrency > 0 {
		p = p.WithMaxGoroutines(c.opts.MaxConcurrency)
	}
	for i, n := range nodes {
		p.Go(func() {
			outcomes[i] = c.invoke(ctx, rs, n, phase, limit)
		})
	}
	p.Wait()
	return outcomes
}

type callResult struct {
	children []component.Component
	err      error
}

// invoke makes a single phase call bounded by limit, recovers panics, and
// records the resulting state transition and diagnostics event.
func (c *Controller) invoke(ctx context.Context, rs *runState, n *Node, phase component.Phase, limit time.Duration) outcome {
	n.enter(phase)
	wasActive := false
	if phase == component.PhaseDeactivation {
		state, _ := c.registry.State(n.id)
		wasActive = state == component.StateActive
	}

	c.emit(rs, diagnostics.Event{
		Type:        diagnostics.PhaseStarted,
		ComponentID: n.id,
		Phase:       phase,
		Metadata:    map[string]any{"depth": n.depth, "parent_id": n.parentID},
	})

	callCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan callResult, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: errors.NewPanicError(n.id, string(phase), r)}
			}
		}()
		children, err := call(callCtx, n.comp, phase)
		done <- callResult{children: children, err: err}
	}()

	var res callResult
	select {
	case res = <-done:
	case <-callCtx.Done():
		select {
		case res = <-done:
		default:
			res.err = callCtx.Err()
		}
	}
	// A call that gave up on its own context is classified the same way as
	// one that was abandoned.
	if res.err != nil && callCtx.Err() != nil && errors.Is(res.err, callCtx.Err()) {
		if ctx.Err() != nil {
			res.err = errors.NewInitializationError(n.id, string(phase), ctx.Err())
		} else {
			res.err = errors.NewTimeoutError(n.id, string(phase), limit)
		}
	}
	out := outcome{node: n, children: res.children, duration: time.Since(start)}

	if res.err != nil {
		out.children = nil
		out.err = asLifecycleError(n.id, phase, res.err)
		c.registry.Fail(n.id, out.err)
		rs.logger.WithComponent(n.id).WithPhase(string(phase)).Warn("phase failed",
			"error", out.err.Error(),
			"duration_ms", out.duration.Milliseconds(),
		)
		c.emit(rs, diagnostics.Event{
			Type:        diagnostics.PhaseFailed,
			ComponentID: n.id,
			Phase:       phase,
			Duration:    out.duration,
			Err:         out.err,
			Metadata:    map[string]any{"was_active": wasActive},
		})
		return out
	}

	if err := c.registry.SetState(n.id, phase.Produces()); err != nil && phase != component.PhaseDeactivation {
		out.err = err
		c.registry.Fail(n.id, err)
		c.emit(rs, diagnostics.Event{
			Type:        diagnostics.PhaseFailed,
			ComponentID: n.id,
			Phase:       phase,
			Duration:    out.duration,
			Err:         err,
		})
		return out
	}

	meta := map[string]any{"was_active": wasActive}
	if phase == component.PhaseLocalInit {
		meta["children"] = len(out.children)
	}
	rs.logger.WithComponent(n.id).WithPhase(string(phase)).Debug("phase completed",
		"duration_ms", out.duration.Milliseconds(),
	)
	c.emit(rs, diagnostics.Event{
		Type:        diagnostics.PhaseCompleted,
		ComponentID: n.id,
		Phase:       phase,
		Duration:    out.duration,
		Metadata:    meta,
	})
	return out
}

// call dispatches phase to the component.
func call(ctx context.Context, comp component.Component, phase component.Phase) ([]component.Component, error) {
	switch phase {
	case component.PhaseLocalInit:
		return comp.LocalInit(ctx)
	case component.PhaseDependencySetup:
		return nil, comp.SetupDependencies(ctx)
	case component.PhaseActivation:
		return nil, comp.Activate(ctx)
	default:
		return nil, comp.Deactivate(ctx)
	}
}

// asLifecycleError keeps errors that already carry a component and phase and
// wraps everything else as an InitializationError.
func asLifecycleError(id string, phase component.Phase, err error) error {
	var lerr errors.LifecycleError
	if errors.As(err, &lerr) && lerr.ComponentID() == id {
		return err
	}
	return errors.NewInitializationError(id, string(phase), err)
}
