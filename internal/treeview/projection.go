// Package treeview turns a scene provider into the flat row list a
// hierarchy view renders: lazily materialized nodes, an expansion set
// keyed by path so view state survives tree rebuilds, a substring
// filter with force-expanded ancestors, and a poll-style dirty set.
//
// Nothing in this package is safe for concurrent use. A host owns one
// projection and serializes access to it.
package treeview

import (
	"context"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/voidreamer/maya-usd-author/internal/scene"
)

// Row is one visible line of the projected tree.
type Row struct {
	Node        *Node
	Path        scene.Path
	Name        string
	Depth       int
	Expanded    bool
	HasChildren bool
}

// Options tune projection behavior. The zero value disables
// auto-expansion.
type Options struct {
	// AutoExpand renders every row at depth <= MaxExpandedDepth
	// expanded even when it was never expanded explicitly.
	AutoExpand       bool
	MaxExpandedDepth int
}

// Projection flattens the hierarchy into visible rows under the current
// expansion and filter state. Expansion is keyed by path, not by node,
// so it survives Rebuild. Rows are recomputed by Refresh; Rebuild
// additionally discards every materialized node and starts from a fresh
// root.
type Projection struct {
	reader scene.Reader
	root   *Node

	rows  []Row
	index map[scene.Path]int

	expanded map[scene.Path]struct{}

	autoExpand       bool
	maxExpandedDepth int

	// needle and visible hold the active filter state. visible is a
	// snapshot taken when Filter last ran; nil means no filter.
	needle  string
	visible *roaring.Bitmap

	interner *pathInterner
	dirty    *roaring.Bitmap
}

// NewProjection returns an empty projection over r. Call Rebuild before
// reading rows.
func NewProjection(r scene.Reader, opts Options) *Projection {
	return &Projection{
		reader:           r,
		expanded:         make(map[scene.Path]struct{}),
		autoExpand:       opts.AutoExpand,
		maxExpandedDepth: opts.MaxExpandedDepth,
		interner:         newPathInterner(),
		dirty:            roaring.New(),
	}
}

// Root returns the current root node, nil before the first Rebuild.
func (pr *Projection) Root() *Node { return pr.root }

// Rebuild discards the materialized tree, clears the dirty set and
// recomputes the rows from a fresh root. The expansion set and any
// active filter are kept: paths expanded before the rebuild render
// expanded after it when they still resolve.
func (pr *Projection) Rebuild() error {
	rootPath, err := pr.reader.Root()
	if err != nil {
		return err
	}
	pr.root = NewNode(pr.reader, rootPath, nil)
	pr.dirty.Clear()
	return pr.Refresh()
}

// Refresh recomputes the visible rows from the current expansion,
// filter and node state without discarding materialized nodes.
func (pr *Projection) Refresh() error {
	pr.rows = pr.rows[:0]
	pr.index = make(map[scene.Path]int)
	if pr.root == nil {
		return nil
	}
	children, err := pr.root.Children()
	if err != nil {
		return err
	}
	stack := make([]*Node, 0, len(children))
	for i := len(children) - 1; i >= 0; i-- {
		stack = append(stack, children[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !pr.pathVisible(n.Path()) {
			continue
		}
		has, err := n.HasChildren()
		if err != nil {
			continue
		}
		expanded := has && pr.ShouldAutoExpand(n.Path())
		pr.index[n.Path()] = len(pr.rows)
		pr.rows = append(pr.rows, Row{
			Node:        n,
			Path:        n.Path(),
			Name:        n.Path().Name(),
			Depth:       n.Path().Depth(),
			Expanded:    expanded,
			HasChildren: has,
		})
		if !expanded {
			continue
		}
		kids, err := n.Children()
		if err != nil {
			continue
		}
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return nil
}

func (pr *Projection) pathVisible(p scene.Path) bool {
	if pr.visible == nil {
		return true
	}
	id, ok := pr.interner.lookup(p)
	return ok && pr.visible.Contains(id)
}

// RowCount returns the number of visible rows.
func (pr *Projection) RowCount() int { return len(pr.rows) }

// Rows returns the visible rows. The slice is owned by the projection
// and valid until the next Refresh or Rebuild.
func (pr *Projection) Rows() []Row { return pr.rows }

// RowAt returns the row at index i.
func (pr *Projection) RowAt(i int) (Row, bool) {
	if i < 0 || i >= len(pr.rows) {
		return Row{}, false
	}
	return pr.rows[i], true
}

// IndexOf returns the row index of p, or -1 when p has no visible row:
// collapsed ancestors, filtered away, or gone from the stage.
func (pr *Projection) IndexOf(p scene.Path) int {
	if i, ok := pr.index[p]; ok {
		return i
	}
	return -1
}

// NodeAt resolves p through the tree, materializing only the chain of
// nodes between the root and p. Returns nil when p does not resolve on
// the current stage.
func (pr *Projection) NodeAt(p scene.Path) *Node {
	if pr.root == nil {
		return nil
	}
	if p == pr.root.Path() {
		return pr.root
	}
	cur := pr.root
steps:
	for _, step := range append(p.Ancestors(), p) {
		children, err := cur.Children()
		if err != nil {
			return nil
		}
		for _, child := range children {
			if child.Path() == step {
				cur = child
				continue steps
			}
		}
		return nil
	}
	return cur
}

// HasChildren probes p without materializing p's children.
func (pr *Projection) HasChildren(p scene.Path) (bool, error) {
	n := pr.NodeAt(p)
	if n == nil {
		return false, fmt.Errorf("%s: %w", p, scene.ErrNotFound)
	}
	return n.HasChildren()
}

// TrackExpanded records p as expanded or collapsed. The root is always
// expanded and is never tracked. Call Refresh to see the change in the
// rows.
func (pr *Projection) TrackExpanded(p scene.Path, expanded bool) {
	if p.IsRoot() {
		return
	}
	if expanded {
		pr.expanded[p] = struct{}{}
	} else {
		delete(pr.expanded, p)
	}
}

// IsExpanded reports whether p is in the expansion set.
func (pr *Projection) IsExpanded(p scene.Path) bool {
	if p.IsRoot() {
		return true
	}
	_, ok := pr.expanded[p]
	return ok
}

// ShouldAutoExpand reports whether a row at p renders expanded: either
// p is in the expansion set, or auto-expansion is on and covers p's
// depth.
func (pr *Projection) ShouldAutoExpand(p scene.Path) bool {
	if pr.IsExpanded(p) {
		return true
	}
	return pr.autoExpand && p.Depth() <= pr.maxExpandedDepth
}

// ExpandedPaths returns the expansion set sorted, for session
// persistence.
func (pr *Projection) ExpandedPaths() []scene.Path {
	out := make([]scene.Path, 0, len(pr.expanded))
	for p := range pr.expanded {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RestoreExpanded replaces the expansion set, typically from a saved
// session. Call Refresh afterwards.
func (pr *Projection) RestoreExpanded(paths []scene.Path) {
	pr.expanded = make(map[scene.Path]struct{}, len(paths))
	for _, p := range paths {
		if !p.IsRoot() {
			pr.expanded[p] = struct{}{}
		}
	}
}

// AutoExpandTargets walks breadth-first from the root and returns, in
// visit order, every path ShouldAutoExpand covers, descending only into
// covered subtrees. The walk reads the provider directly and
// materializes nothing.
func (pr *Projection) AutoExpandTargets(ctx context.Context) ([]scene.Path, error) {
	rootPath, err := pr.reader.Root()
	if err != nil {
		return nil, err
	}
	var out []scene.Path
	queue := []scene.Path{rootPath}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := queue[0]
		queue = queue[1:]
		children, err := pr.reader.Children(p)
		if err != nil {
			continue
		}
		for _, child := range children {
			if !pr.ShouldAutoExpand(child) {
				continue
			}
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out, nil
}

// MarkDirty records that p changed since the last TakeDirty. Hosts poll
// the dirty set to decide which rows to repaint.
func (pr *Projection) MarkDirty(p scene.Path) {
	pr.dirty.Add(pr.interner.id(p))
}

// TakeDirty drains the dirty set to a sorted path slice. Returns nil
// when nothing changed.
func (pr *Projection) TakeDirty() []scene.Path {
	if pr.dirty.IsEmpty() {
		return nil
	}
	out := make([]scene.Path, 0, pr.dirty.GetCardinality())
	for it := pr.dirty.Iterator(); it.HasNext(); {
		out = append(out, pr.interner.path(it.Next()))
	}
	pr.dirty.Clear()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
