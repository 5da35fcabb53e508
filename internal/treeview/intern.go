package treeview

import "github.com/voidreamer/maya-usd-author/internal/scene"

// pathInterner assigns stable uint32 ids to paths so dirty and filter
// visibility state can live in roaring bitmaps instead of path sets.
// Ids are never reused; the table grows with the distinct paths seen.
type pathInterner struct {
	ids   map[scene.Path]uint32
	paths []scene.Path
}

func newPathInterner() *pathInterner {
	return &pathInterner{ids: make(map[scene.Path]uint32)}
}

// id returns the id for p, interning it on first sight.
func (in *pathInterner) id(p scene.Path) uint32 {
	if id, ok := in.ids[p]; ok {
		return id
	}
	id := uint32(len(in.paths))
	in.ids[p] = id
	in.paths = append(in.paths, p)
	return id
}

// lookup returns the id for p without interning.
func (in *pathInterner) lookup(p scene.Path) (uint32, bool) {
	id, ok := in.ids[p]
	return id, ok
}

// path is the inverse of id.
func (in *pathInterner) path(id uint32) scene.Path {
	return in.paths[id]
}
