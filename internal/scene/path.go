package scene

import (
	"fmt"
	"strings"
)

// Path is the stable identity of a prim in the hierarchy, e.g.
// "/world/geo/sphere". The pseudo-root is "/". Paths survive tree
// rebuilds, which is why expansion state and caches key on them
// rather than on node pointers.
type Path string

// RootPath is the pseudo-root of every stage.
const RootPath Path = "/"

func (p Path) String() string { return string(p) }

func (p Path) IsRoot() bool { return p == RootPath }

// Name returns the last path component, or "" for the pseudo-root.
func (p Path) Name() string {
	if p.IsRoot() {
		return ""
	}
	s := string(p)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Parent returns the containing path. The pseudo-root is its own parent.
func (p Path) Parent() Path {
	if p.IsRoot() {
		return RootPath
	}
	s := string(p)
	i := strings.LastIndexByte(s, '/')
	if i <= 0 {
		return RootPath
	}
	return Path(s[:i])
}

// Child returns the path of a direct child prim.
func (p Path) Child(name string) Path {
	if p.IsRoot() {
		return Path("/" + name)
	}
	return Path(string(p) + "/" + name)
}

// Depth is the number of path components: "/" is 0, "/world" is 1,
// "/world/geo/sphere" is 3.
func (p Path) Depth() int {
	if p.IsRoot() {
		return 0
	}
	return strings.Count(string(p), "/")
}

// Components splits the path into prim names, outermost first.
func (p Path) Components() []string {
	if p.IsRoot() {
		return nil
	}
	return strings.Split(strings.TrimPrefix(string(p), "/"), "/")
}

// Ancestors returns the proper ancestors between the pseudo-root and p,
// outermost first: "/a/b/c" yields ["/a", "/a/b"].
func (p Path) Ancestors() []Path {
	comps := p.Components()
	if len(comps) <= 1 {
		return nil
	}
	out := make([]Path, 0, len(comps)-1)
	cur := RootPath
	for _, c := range comps[:len(comps)-1] {
		cur = cur.Child(c)
		out = append(out, cur)
	}
	return out
}

// IsAncestorOf reports whether p strictly contains other.
func (p Path) IsAncestorOf(other Path) bool {
	if p == other {
		return false
	}
	if p.IsRoot() {
		return true
	}
	return strings.HasPrefix(string(other), string(p)+"/")
}

// ParsePath validates and normalizes user-supplied path text.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "/" {
		return RootPath, nil
	}
	if !strings.HasPrefix(s, "/") {
		return "", fmt.Errorf("path %q must be absolute", s)
	}
	s = strings.TrimSuffix(s, "/")
	for _, comp := range strings.Split(s[1:], "/") {
		if !ValidName(comp) {
			return "", fmt.Errorf("path %q has invalid component %q", s, comp)
		}
	}
	return Path(s), nil
}

// ValidName reports whether name is a legal prim name: an identifier
// of letters, digits and underscores not starting with a digit.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
