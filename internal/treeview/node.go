package treeview

import (
	"fmt"

	"github.com/voidreamer/maya-usd-author/internal/scene"
)

// Node is one prim in the lazily materialized tree. A node knows its
// path and its parent; children exist only after the first Children or
// ChildCount call. Until then HasChildren answers from a memoized
// existence probe without building anything.
//
// Nodes are not safe for concurrent use; callers serialize access the
// same way they serialize the projection that owns them.
type Node struct {
	reader   scene.Reader
	path     scene.Path
	parent   *Node
	children []*Node
	loaded   bool
	probe    *bool
}

// NewNode returns an unmaterialized node for p. A standalone root
// passes a nil parent.
func NewNode(r scene.Reader, p scene.Path, parent *Node) *Node {
	return &Node{reader: r, path: p, parent: parent}
}

func (n *Node) Path() scene.Path { return n.path }

func (n *Node) Parent() *Node { return n.parent }

// Loaded reports whether children have been materialized.
func (n *Node) Loaded() bool { return n.loaded }

// Children materializes the child nodes on first call and returns the
// same slice afterwards without touching the provider again. A provider
// error leaves the node unmaterialized so the next call retries.
func (n *Node) Children() ([]*Node, error) {
	if n.loaded {
		return n.children, nil
	}
	paths, err := n.reader.Children(n.path)
	if err != nil {
		return nil, err
	}
	children := make([]*Node, 0, len(paths))
	for _, p := range paths {
		children = append(children, &Node{reader: n.reader, path: p, parent: n})
	}
	n.children = children
	n.loaded = true
	n.probe = nil
	return n.children, nil
}

// ChildCount materializes and returns the number of children.
func (n *Node) ChildCount() (int, error) {
	children, err := n.Children()
	if err != nil {
		return 0, err
	}
	return len(children), nil
}

// Child returns the child at row.
func (n *Node) Child(row int) (*Node, error) {
	children, err := n.Children()
	if err != nil {
		return nil, err
	}
	if row < 0 || row >= len(children) {
		return nil, fmt.Errorf("child row %d out of range for %s", row, n.path)
	}
	return children[row], nil
}

// Row returns this node's position among its parent's children. A root
// node is row 0.
func (n *Node) Row() int {
	if n.parent == nil {
		return 0
	}
	for i, sibling := range n.parent.children {
		if sibling == n {
			return i
		}
	}
	return 0
}

// HasChildren answers the existence question without materializing:
// once materialized it counts the children, otherwise it asks the
// provider's cheap probe and memoizes the answer.
func (n *Node) HasChildren() (bool, error) {
	if n.loaded {
		return len(n.children) > 0, nil
	}
	if n.probe != nil {
		return *n.probe, nil
	}
	has, err := n.reader.HasChildren(n.path)
	if err != nil {
		return false, err
	}
	n.probe = &has
	return has, nil
}

// Invalidate forgets the materialized subtree and the memoized probe.
// The next Children or HasChildren call reads the provider again.
// Previously returned child nodes stay usable but are no longer
// reachable from this node.
func (n *Node) Invalidate() {
	n.children = nil
	n.loaded = false
	n.probe = nil
}
