package lifecycle

import (
	"slices"
	"sync"

	"github.com/Iron-Ham/stagehand/internal/component"
)

// Node is the controller's bookkeeping for one component in the tree.
// The parent pointer is for traversal only; it is cleared once the node has
// been deactivated.
type Node struct {
	comp     component.Component
	id       string
	depth    int
	parentID string

	mu          sync.Mutex
	parent      *Node
	children    []*Node
	entered     map[component.Phase]bool
	deactivated bool
}

func newNode(comp component.Component, parent *Node) *Node {
	n := &Node{
		comp:    comp,
		id:      comp.ID(),
		parent:  parent,
		entered: make(map[component.Phase]bool, 4),
	}
	if parent != nil {
		n.depth = parent.depth + 1
		n.parentID = parent.id
	}
	return n
}

// ID returns the component identifier.
func (n *Node) ID() string { return n.id }

// Component returns the wrapped component.
func (n *Node) Component() component.Component { return n.comp }

// Depth returns the node's depth; roots are at depth 0.
func (n *Node) Depth() int { return n.depth }

// ParentID returns the identifier of the parent, or "" for roots. It stays
// available after the node is detached.
func (n *Node) ParentID() string { return n.parentID }

// Parent returns the parent node, or nil for roots and detached nodes.
func (n *Node) Parent() *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.parent
}

// Children returns the node's children in discovery order.
func (n *Node) Children() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.children)
}

// Attempted reports whether the controller has called phase on the node.
func (n *Node) Attempted(phase component.Phase) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.entered[phase]
}

func (n *Node) addChild(child *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.children = append(n.children, child)
}

func (n *Node) enter(phase component.Phase) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entered[phase] = true
}

// claimDeactivation returns true the first time it is called, so the
// controller never deactivates a node twice.
func (n *Node) claimDeactivation() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.deactivated {
		return false
	}
	n.deactivated = true
	return true
}

func (n *Node) detach() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.parent = nil
	n.children = nil
}

// Detached reports whether the node has been removed from the tree after
// deactivation.
func (n *Node) Detached() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.deactivated && n.parent == nil && n.children == nil
}

// levels groups nodes by depth, shallowest first. Order within a level is
// discovery order.
func levels(nodes []*Node) [][]*Node {
	var out [][]*Node
	for _, n := range nodes {
		for len(out) <= n.depth {
			out = append(out, nil)
		}
		out[n.depth] = append(out[n.depth], n)
	}
	return out
}
