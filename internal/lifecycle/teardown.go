package lifecycle

import (
	"context"
	"time"

	"github.com/Iron-Ham/stagehand/internal/component"
	"github.com/Iron-Ham/stagehand/internal/diagnostics"
	"github.com/Iron-Ham/stagehand/internal/errors"
)

// teardown deactivates every retained node whose LocalInit was attempted,
// deepest level first, so that a parent starts only after all of its
// children have finished. Nodes are detached once their level settles and
// the retained tree is released.
func (c *Controller) teardown(ctx context.Context, rs *runState) *TeardownReport {
	c.mu.Lock()
	nodes := c.nodes
	c.nodes = nil
	c.mu.Unlock()

	report := &TeardownReport{}
	var targets []*Node
	for _, n := range nodes {
		if n.Attempted(component.PhaseLocalInit) && n.claimDeactivation() {
			targets = append(targets, n)
		}
	}
	if len(targets) == 0 {
		for _, n := range nodes {
			n.detach()
		}
		return report
	}

	start := time.Now()
	rs.logger.Info("teardown started", "components", len(targets))
	c.emit(rs, diagnostics.Event{
		Type:     diagnostics.TeardownStarted,
		Metadata: map[string]any{"components": len(targets)},
	})

	byDepth := levels(targets)
	for depth := len(byDepth) - 1; depth >= 0; depth-- {
		outcomes := c.barrier(ctx, rs, byDepth[depth], component.PhaseDeactivation, c.opts.ShutdownTimeout)
		for _, o := range outcomes {
			if o.err != nil {
				report.Failed = append(report.Failed, Failure{
					ComponentID: o.node.id,
					Phase:       component.PhaseDeactivation,
					Err:         o.err,
				})
			} else {
				report.Deactivated = append(report.Deactivated, o.node.id)
			}
			// An abandoned Deactivate may still be releasing subscriptions.
			if !errors.IsTimeout(o.err) {
				c.checkLeak(rs, report, o.node)
			}
			o.node.detach()
		}
	}
	for _, n := range nodes {
		n.detach()
	}

	report.Duration = time.Since(start)
	rs.logger.Info("teardown completed",
		"deactivated", len(report.Deactivated),
		"failed", len(report.Failed),
		"leaked", len(report.Leaked),
		"duration_ms", report.Duration.Milliseconds(),
	)
	c.emit(rs, diagnostics.Event{
		Type:     diagnostics.TeardownCompleted,
		Duration: report.Duration,
		Metadata: map[string]any{
			"deactivated": len(report.Deactivated),
			"failed":      len(report.Failed),
			"leaked":      len(report.Leaked),
		},
	})
	return report
}

// checkLeak reports a component that still owns event bus subscriptions
// after its Deactivate call.
func (c *Controller) checkLeak(rs *runState, report *TeardownReport, n *Node) {
	if c.opts.LeakDetector == nil {
		return
	}
	count := c.opts.LeakDetector.OwnedCount(n.id)
	if count == 0 {
		return
	}
	report.Leaked = append(report.Leaked, n.id)
	rs.logger.WithComponent(n.id).Warn("component leaked event subscriptions", "subscriptions", count)
	c.emit(rs, diagnostics.Event{
		Type:        diagnostics.ComponentLeaked,
		ComponentID: n.id,
		Phase:       component.PhaseDeactivation,
		Metadata:    map[string]any{"subscriptions": count},
	})
}
