package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/stagehand/internal/component"
	"github.com/Iron-Ham/stagehand/internal/diagnostics"
	"github.com/Iron-Ham/stagehand/internal/errors"
	"github.com/Iron-Ham/stagehand/internal/logging"
	"github.com/Iron-Ham/stagehand/internal/registry"
	"github.com/google/uuid"
)

// Controller builds a component tree and drives it through the lifecycle
// phases. A Controller runs one tree at a time: call Shutdown before running
// another.
type Controller struct {
	opts     Options
	registry *registry.Registry
	emitter  *diagnostics.Emitter
	logger   *logging.Logger

	// newRunID generates run identifiers. Tests may replace it.
	newRunID func() string

	mu      sync.Mutex
	running bool
	runID   string
	nodes   []*Node // discovery order; retained until teardown
}

// runState carries per-run values through the phase helpers.
type runState struct {
	runID  string
	logger *logging.Logger
	result *Result
	start  time.Time
}

// New creates a Controller. A nil registry, emitter or logger is replaced
// with a fresh registry, a sink-less emitter and a no-op logger.
func New(opts Options, reg *registry.Registry, emitter *diagnostics.Emitter, logger *logging.Logger) *Controller {
	if reg == nil {
		reg = registry.New()
	}
	if emitter == nil {
		emitter = diagnostics.NewEmitter()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	opts = opts.normalize()
	if opts.EnableDebugLogging {
		logger.SetLevel(logging.LevelDebug)
	}
	return &Controller{
		opts:     opts,
		registry: reg,
		emitter:  emitter,
		logger:   logger.With("subsystem", "lifecycle"),
		newRunID: uuid.NewString,
	}
}

// Options returns the normalized options the controller runs with.
func (c *Controller) Options() Options { return c.opts }

// Registry returns the registry components are resolved from.
func (c *Controller) Registry() *registry.Registry { return c.registry }

// Nodes returns the retained tree in discovery order. It is empty before the
// first run and after teardown.
func (c *Controller) Nodes() []*Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Node(nil), c.nodes...)
}

// Live reports whether a tree is retained and awaiting Shutdown.
func (c *Controller) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.running && len(c.nodes) > 0
}

func (c *Controller) emit(rs *runState, ev diagnostics.Event) diagnostics.Event {
	ev.RunID = rs.runID
	return c.emitter.Emit(ev)
}

// Run discovers the tree rooted at roots and drives it through LocalInit,
// SetupDependencies and Activate.
//
// Component failures never surface as the returned error; they are recorded
// in Result.Failed. Without ContinueOnError the first barrier that records a
// failure aborts the run, everything whose LocalInit was attempted is torn
// down, and Result.Aborted is set. The returned error is non-nil only for
// failures that end the run regardless of policy: a duplicate identifier or
// cancellation of ctx. The Result is returned in every case.
func (c *Controller) Run(ctx context.Context, roots []component.Component) (*Result, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, errors.ErrRunInProgress
	}
	if len(c.nodes) > 0 {
		c.mu.Unlock()
		return nil, errors.Wrap(errors.ErrRunInProgress, "previous tree still live; call Shutdown first")
	}
	c.running = true
	c.runID = c.newRunID()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	c.registry.Reset()
	c.registry.SetLevelBarriers(c.opts.Scope == ScopeLevel)
	rs := &runState{
		runID:  c.runID,
		logger: c.logger.WithRun(c.runID),
		result: newResult(c.runID),
		start:  time.Now(),
	}

	rs.logger.Info("run started", "roots", len(roots), "scope", string(c.opts.Scope))
	c.emit(rs, diagnostics.Event{
		Type:     diagnostics.RunStarted,
		Metadata: map[string]any{"roots": len(roots), "scope": string(c.opts.Scope)},
	})

	if err := c.discover(ctx, rs, roots); err != nil {
		return c.abort(ctx, rs, err)
	}
	if rs.mustAbort(c.opts.ContinueOnError) {
		return c.abort(ctx, rs, nil)
	}

	if err := c.walk(ctx, rs, component.PhaseDependencySetup); err != nil || rs.mustAbort(c.opts.ContinueOnError) {
		return c.abort(ctx, rs, err)
	}

	if c.opts.ValidateDependencies {
		c.validateDependencies(rs)
		if rs.mustAbort(c.opts.ContinueOnError) {
			return c.abort(ctx, rs, nil)
		}
	}

	if err := c.walk(ctx, rs, component.PhaseActivation); err != nil || rs.mustAbort(c.opts.ContinueOnError) {
		return c.abort(ctx, rs, err)
	}

	for _, n := range c.Nodes() {
		if state, _ := c.registry.State(n.id); state == component.StateActive {
			rs.result.Ready = append(rs.result.Ready, n.id)
		}
	}
	rs.result.Timings.Total = time.Since(rs.start)

	rs.logger.Info("run ready",
		"ready", len(rs.result.Ready),
		"failed", len(rs.result.Failed),
		"duration_ms", rs.result.Timings.Total.Milliseconds(),
	)
	c.emit(rs, diagnostics.Event{
		Type:     diagnostics.RunReady,
		Duration: rs.result.Timings.Total,
		Metadata: map[string]any{"ready": len(rs.result.Ready), "failed": len(rs.result.Failed)},
	})
	return rs.result, nil
}

// mustAbort reports whether abort-on-error is in force and a failure has been
// recorded.
func (rs *runState) mustAbort(continueOnError bool) bool {
	return !continueOnError && len(rs.result.Failed) > 0
}

// discover runs LocalInit frontier by frontier until no new children appear.
// Every node of a frontier is registered before LocalInit runs on any of
// them, so duplicate identifiers are rejected before either duplicate is
// initialized.
func (c *Controller) discover(ctx context.Context, rs *runState, roots []component.Component) error {
	start := time.Now()
	defer func() { rs.result.Timings.Phases[component.PhaseLocalInit] += time.Since(start) }()

	frontier := make([]*Node, 0, len(roots))
	for _, r := range roots {
		if r == nil {
			continue
		}
		frontier = append(frontier, newNode(r, nil))
	}
	if err := c.register(frontier); err != nil {
		return err
	}

	for depth := 0; len(frontier) > 0; depth++ {
		rs.logger.Debug("discovering level", "depth", depth, "nodes", len(frontier))
		outcomes := c.barrier(ctx, rs, frontier, component.PhaseLocalInit, c.opts.PhaseTimeout)
		c.collect(rs, component.PhaseLocalInit, outcomes)
		if err := c.checkContext(ctx); err != nil {
			return err
		}
		if rs.mustAbort(c.opts.ContinueOnError) {
			return nil
		}

		var next []*Node
		for _, o := range outcomes {
			if o.err != nil {
				continue
			}
			for _, child := range o.children {
				if child == nil {
					rs.logger.WithComponent(o.node.id).Warn("ignoring nil child")
					continue
				}
				cn := newNode(child, o.node)
				o.node.addChild(cn)
				next = append(next, cn)
			}
		}
		if err := c.register(next); err != nil {
			return err
		}
		frontier = next
	}
	return nil
}

// register adds a frontier to the registry and the retained tree, binding a
// scoped lookup into components that accept one.
func (c *Controller) register(frontier []*Node) error {
	for _, n := range frontier {
		if err := c.registry.Register(n.comp, n.parentID); err != nil {
			return err
		}
		c.mu.Lock()
		c.nodes = append(c.nodes, n)
		c.mu.Unlock()
		if b, ok := n.comp.(component.Binder); ok {
			b.Bind(c.registry.Scoped(n.id))
		}
	}
	return nil
}

// walk runs phase 2 or 3 over the retained tree according to the configured
// scope. Components not in the state the phase requires (failed ones, or
// ones left behind by an earlier failure) are skipped.
func (c *Controller) walk(ctx context.Context, rs *runState, phase component.Phase) error {
	start := time.Now()
	defer func() { rs.result.Timings.Phases[phase] += time.Since(start) }()

	var groups [][]*Node
	if c.opts.Scope == ScopeTree {
		groups = [][]*Node{c.Nodes()}
	} else {
		groups = levels(c.Nodes())
	}

	for depth, group := range groups {
		eligible := c.eligible(group, phase)
		if len(eligible) == 0 {
			continue
		}
		rs.logger.Debug("running barrier", "phase", string(phase), "depth", depth, "nodes", len(eligible))
		outcomes := c.barrier(ctx, rs, eligible, phase, c.opts.PhaseTimeout)
		c.collect(rs, phase, outcomes)
		if err := c.checkContext(ctx); err != nil {
			return err
		}
		if rs.mustAbort(c.opts.ContinueOnError) {
			return nil
		}
	}
	return nil
}

func (c *Controller) eligible(nodes []*Node, phase component.Phase) []*Node {
	want := phase.Requires()
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if state, ok := c.registry.State(n.id); ok && state == want {
			out = append(out, n)
		}
	}
	return out
}

// collect records timings and failures from a settled barrier.
func (c *Controller) collect(rs *runState, phase component.Phase, outcomes []outcome) {
	for _, o := range outcomes {
		rs.result.Timings.record(o.node.id, phase, o.duration)
		if o.err != nil {
			rs.result.Failed = append(rs.result.Failed, Failure{
				ComponentID: o.node.id,
				Phase:       phase,
				Err:         o.err,
			})
		}
	}
}

func (c *Controller) checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrCanceled, err)
	}
	return nil
}

// abort tears down everything initialized so far and finishes the run.
// fatal is returned to the caller alongside the result.
func (c *Controller) abort(ctx context.Context, rs *runState, fatal error) (*Result, error) {
	rs.result.Aborted = true

	var dup *errors.DuplicateIdentifierError
	if errors.As(fatal, &dup) {
		rs.result.Failed = append(rs.result.Failed, Failure{
			ComponentID: dup.ComponentID(),
			Phase:       component.PhaseLocalInit,
			Err:         fatal,
		})
	}

	cause := fatal
	if cause == nil && len(rs.result.Failed) > 0 {
		cause = rs.result.Failed[0].Err
	}
	rs.logger.Error("run aborted", "error", fmt.Sprint(cause), "failed", len(rs.result.Failed))

	rs.result.Teardown = c.teardown(context.WithoutCancel(ctx), rs)
	rs.result.Timings.Total = time.Since(rs.start)

	c.emit(rs, diagnostics.Event{
		Type:     diagnostics.RunAborted,
		Duration: rs.result.Timings.Total,
		Err:      cause,
		Metadata: map[string]any{
			"failed":      len(rs.result.Failed),
			"deactivated": rs.result.Teardown.Count(),
		},
	})
	return rs.result, fatal
}

// Shutdown deactivates the retained tree, deepest level first. It is best
// effort: failures are recorded in the report, never returned. Calling it
// again, or before any run, deactivates nothing.
func (c *Controller) Shutdown(ctx context.Context) *TeardownReport {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.logger.Warn("shutdown ignored while a run is in progress")
		return &TeardownReport{}
	}
	runID := c.runID
	c.mu.Unlock()

	rs := &runState{runID: runID, logger: c.logger.WithRun(runID)}
	return c.teardown(ctx, rs)
}
