package manifest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Iron-Ham/stagehand/internal/component"
	"github.com/Iron-Ham/stagehand/internal/errors"
)

// Problem is a single static defect found in a manifest.
type Problem struct {
	NodeID  string
	Field   string
	Message string
	err     error
}

func (p Problem) Error() string {
	if p.NodeID == "" {
		return fmt.Sprintf("%s: %s", p.Field, p.Message)
	}
	return fmt.Sprintf("%s.%s: %s", p.NodeID, p.Field, p.Message)
}

func (p Problem) Unwrap() error { return p.err }

// Problems is every defect found by Validate.
type Problems []Problem

func (ps Problems) Error() string {
	if len(ps) == 1 {
		return ps[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d problems:", len(ps))
	for _, p := range ps {
		sb.WriteString("\n  - ")
		sb.WriteString(p.Error())
	}
	return sb.String()
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (ps Problems) Unwrap() []error {
	errs := make([]error, len(ps))
	for i, p := range ps {
		errs[i] = p
	}
	return errs
}

var knownPhases = []component.Phase{
	component.PhaseLocalInit,
	component.PhaseDependencySetup,
	component.PhaseActivation,
	component.PhaseDeactivation,
}

// Validate reports the defects a run would trip over: empty or duplicate
// identifiers, references to unknown peers, and unknown phase names.
// Duplicate identifiers wrap errors.ErrDuplicateIdentifier and unknown
// references wrap errors.ErrDependencyNotFound.
func (m *Manifest) Validate() error {
	var problems Problems

	if m.Version != Version {
		problems = append(problems, Problem{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %q (supported: %s)", m.Version, Version),
		})
	}
	if len(m.Components) == 0 {
		problems = append(problems, Problem{Field: "components", Message: "at least one component is required"})
	}

	parents := make(map[string]string)
	m.Walk(func(n *Node, parentID string) {
		if strings.TrimSpace(n.ID) == "" {
			problems = append(problems, Problem{
				NodeID:  parentID,
				Field:   "children",
				Message: "component id is required",
				err:     errors.ErrEmptyIdentifier,
			})
			return
		}
		if prev, dup := parents[n.ID]; dup {
			problems = append(problems, Problem{
				NodeID:  n.ID,
				Field:   "id",
				Message: fmt.Sprintf("duplicate identifier (parents %s and %s)", describeParent(prev), describeParent(parentID)),
				err:     errors.ErrDuplicateIdentifier,
			})
			return
		}
		parents[n.ID] = parentID
	})

	m.Walk(func(n *Node, _ string) {
		if n.ID == "" {
			return
		}
		for field, phases := range map[string][]component.Phase{
			"fail_in":  n.FailIn,
			"hang_in":  n.HangIn,
			"panic_in": n.PanicIn,
		} {
			for _, p := range phases {
				if !slices.Contains(knownPhases, p) {
					problems = append(problems, Problem{
						NodeID:  n.ID,
						Field:   field,
						Message: fmt.Sprintf("unknown phase %q", p),
					})
				}
			}
		}
		for field, refs := range map[string][]string{
			"depends_on": n.DependsOn,
			"await":      n.Await,
		} {
			for _, ref := range refs {
				switch {
				case ref == n.ID:
					problems = append(problems, Problem{
						NodeID:  n.ID,
						Field:   field,
						Message: "component cannot depend on itself",
					})
				case !hasKey(parents, ref):
					problems = append(problems, Problem{
						NodeID:  n.ID,
						Field:   field,
						Message: fmt.Sprintf("unknown component %q", ref),
						err:     errors.ErrDependencyNotFound,
					})
				}
			}
		}
		for i, e := range n.Emit {
			if e.Type == "" {
				problems = append(problems, Problem{
					NodeID:  n.ID,
					Field:   fmt.Sprintf("emit[%d].type", i),
					Message: "event type is required",
				})
			}
		}
	})

	if len(problems) == 0 {
		return nil
	}
	// Map iteration above is unordered.
	slices.SortStableFunc(problems, func(a, b Problem) int {
		if c := strings.Compare(a.NodeID, b.NodeID); c != 0 {
			return c
		}
		return strings.Compare(a.Field, b.Field)
	})
	return problems
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}

func describeParent(id string) string {
	if id == "" {
		return "<root>"
	}
	return id
}
