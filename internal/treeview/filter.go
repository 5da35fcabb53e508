package treeview

import (
	"context"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/sirupsen/logrus"

	"github.com/voidreamer/maya-usd-author/internal/scene"
)

// Filter recomputes row visibility for a case-insensitive substring
// match on prim names. A prim is visible when its own name matches or
// any descendant is visible; every ancestor of a match is force-expanded
// and that expansion is tracked like a user expansion, so it outlives
// the filter. An empty needle clears the filter without touching the
// expansion set.
//
// The walk reads the provider directly, covers the whole hierarchy and
// checks ctx between steps; on cancellation the previous filter state
// is left in place. Unreadable subtrees are skipped.
func (pr *Projection) Filter(ctx context.Context, needle string) error {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		pr.needle = ""
		pr.visible = nil
		return pr.Refresh()
	}

	rootPath, err := pr.reader.Root()
	if err != nil {
		return err
	}
	fold := strings.ToLower(needle)
	vis := roaring.New()
	expand := make(map[scene.Path]struct{})

	// Iterative post-order: a frame is pushed once to list its
	// children and once more, after them, to decide its visibility
	// from theirs.
	type frame struct {
		path     scene.Path
		children []scene.Path
		visited  bool
	}
	stack := []frame{{path: rootPath}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !f.visited {
			children, err := pr.reader.Children(f.path)
			if err != nil {
				logrus.WithField("path", f.path).WithError(err).
					Debug("filter: skipping unreadable subtree")
				children = nil
			}
			stack = append(stack, frame{path: f.path, children: children, visited: true})
			for _, child := range children {
				stack = append(stack, frame{path: child})
			}
			continue
		}
		childVisible := false
		for _, child := range f.children {
			if id, ok := pr.interner.lookup(child); ok && vis.Contains(id) {
				childVisible = true
				break
			}
		}
		match := strings.Contains(strings.ToLower(f.path.Name()), fold)
		if !match && !childVisible {
			continue
		}
		vis.Add(pr.interner.id(f.path))
		if childVisible && !f.path.IsRoot() {
			expand[f.path] = struct{}{}
		}
	}

	pr.needle = needle
	pr.visible = vis
	for p := range expand {
		pr.expanded[p] = struct{}{}
	}
	return pr.Refresh()
}

// Needle returns the active filter needle, "" when no filter is active.
func (pr *Projection) Needle() string { return pr.needle }

// Filtered reports whether a filter is active.
func (pr *Projection) Filtered() bool { return pr.visible != nil }
