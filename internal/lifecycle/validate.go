package lifecycle

import (
	"slices"

	"github.com/Iron-Ham/stagehand/internal/component"
	"github.com/Iron-Ham/stagehand/internal/diagnostics"
	"github.com/Iron-Ham/stagehand/internal/errors"
)

// dependenciesOf returns the ids n looked up through its scoped view plus
// the ids it declares.
func (c *Controller) dependenciesOf(n *Node) []string {
	deps := c.registry.Lookups(n.id)
	if d, ok := n.comp.(component.DependencyDeclarer); ok {
		for _, id := range d.Dependencies() {
			if id != n.id && !slices.Contains(deps, id) {
				deps = append(deps, id)
			}
		}
	}
	return deps
}

// validateDependencies fails every component whose dependencies resolve to
// nothing or to a failed component. Failing one component can invalidate
// the components that depend on it, so the check repeats until nothing
// changes.
func (c *Controller) validateDependencies(rs *runState) {
	nodes := c.Nodes()
	for {
		changed := false
		for _, n := range nodes {
			if state, _ := c.registry.State(n.id); state != component.StateDependenciesReady {
				continue
			}
			err := c.unresolved(n)
			if err == nil {
				continue
			}
			if !c.registry.Fail(n.id, err) {
				continue
			}
			changed = true
			rs.result.Failed = append(rs.result.Failed, Failure{
				ComponentID: n.id,
				Phase:       component.PhaseDependencySetup,
				Err:         err,
			})
			rs.logger.WithComponent(n.id).Warn("dependency validation failed", "error", err.Error())
			c.emit(rs, diagnostics.Event{
				Type:        diagnostics.PhaseFailed,
				ComponentID: n.id,
				Phase:       component.PhaseDependencySetup,
				Err:         err,
				Metadata:    map[string]any{"validation": true},
			})
		}
		if !changed {
			return
		}
	}
}

// unresolved returns a DependencyUnresolvedError for the first dependency of
// n that is missing or failed.
func (c *Controller) unresolved(n *Node) error {
	for _, dep := range c.dependenciesOf(n) {
		state, ok := c.registry.State(dep)
		switch {
		case !ok:
			return errors.NewDependencyUnresolvedError(n.id, string(component.PhaseDependencySetup), dep, errors.ErrDependencyNotFound)
		case state == component.StateFailed:
			return errors.NewDependencyUnresolvedError(n.id, string(component.PhaseDependencySetup), dep, errors.ErrDependencyFailed)
		}
	}
	return nil
}
