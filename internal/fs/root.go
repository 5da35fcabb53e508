// Package fs projects a stage hierarchy through FUSE. Prim directories
// mirror the hierarchy and the per-prim virtual files carry rendered
// JSON; the mount is strictly read-only.
package fs

import (
	"sync"
	"time"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/voidreamer/maya-usd-author/internal/scene"
)

// StageFS implements the FUSE interface from cgofuse.
type StageFS struct {
	fuse.FileSystemBase
	reader    scene.Reader
	export    func() (string, error)
	mountTime fuse.Timespec

	mu     sync.Mutex
	nextFh uint64
	dirs   map[uint64][]string
}

// NewStageFS creates a read-only FUSE filesystem over a stage reader.
// The export callback renders the root _stage.usda content.
func NewStageFS(r scene.Reader, export func() (string, error)) *StageFS {
	return &StageFS{
		reader:    r,
		export:    export,
		mountTime: fuse.NewTimespec(time.Now()),
		nextFh:    1,
		dirs:      make(map[uint64][]string),
	}
}

// content renders the body of a virtual file.
func (f *StageFS) content(prim scene.Path, vfile string) ([]byte, error) {
	if vfile == scene.VFileStage && prim.IsRoot() {
		text, err := f.export()
		if err != nil {
			return nil, err
		}
		return []byte(text), nil
	}
	return scene.RenderVirtual(f.reader, prim, vfile)
}

// Open checks that the path names a virtual file.
func (f *StageFS) Open(path string, flags int) (int, uint64) {
	prim, vfile, err := scene.SplitVirtual(path)
	if err != nil {
		return -fuse.ENOENT, 0
	}
	if vfile == "" {
		if _, err := f.reader.Info(prim); err != nil {
			return -fuse.ENOENT, 0
		}
		return -fuse.EISDIR, 0
	}
	if _, err := f.content(prim, vfile); err != nil {
		return -fuse.ENOENT, 0
	}
	return 0, 0
}

// Getattr (Stat)
func (f *StageFS) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	stat.Atim = f.mountTime
	stat.Mtim = f.mountTime
	stat.Ctim = f.mountTime
	stat.Birthtim = f.mountTime

	// Root is always there
	if path == "/" {
		stat.Mode = fuse.S_IFDIR | 0o555
		stat.Nlink = 2
		return 0
	}

	prim, vfile, err := scene.SplitVirtual(path)
	if err != nil {
		return -fuse.ENOENT
	}

	if vfile != "" {
		data, err := f.content(prim, vfile)
		if err != nil {
			return -fuse.ENOENT
		}
		stat.Mode = fuse.S_IFREG | 0o444
		stat.Nlink = 1
		stat.Size = int64(len(data))
		return 0
	}

	if _, err := f.reader.Info(prim); err != nil {
		return -fuse.ENOENT
	}
	stat.Mode = fuse.S_IFDIR | 0o555
	stat.Nlink = 2
	return 0
}

// listDir builds the full entry list for a prim directory, including
// the dot entries the kernel expects first.
func (f *StageFS) listDir(path string) ([]string, int) {
	prim, vfile, err := scene.SplitVirtual(path)
	if err != nil {
		return nil, -fuse.ENOENT
	}
	if vfile != "" {
		if _, err := f.content(prim, vfile); err == nil {
			return nil, -fuse.ENOTDIR
		}
		return nil, -fuse.ENOENT
	}
	entries, err := scene.ListEntries(f.reader, prim)
	if err != nil {
		return nil, -fuse.ENOENT
	}
	names := make([]string, 0, len(entries)+3)
	names = append(names, ".", "..")
	for _, e := range entries {
		names = append(names, e.Name)
	}
	if prim.IsRoot() {
		names = append(names, scene.VFileStage)
	}
	return names, 0
}

// Opendir resolves the directory once and caches its entry list under
// a fresh handle, so Readdir pages see a stable snapshot.
func (f *StageFS) Opendir(path string) (int, uint64) {
	names, errc := f.listDir(path)
	if errc != 0 {
		return errc, 0
	}
	f.mu.Lock()
	fh := f.nextFh
	f.nextFh++
	f.dirs[fh] = names
	f.mu.Unlock()
	return 0, fh
}

// Readdir (List directory)
func (f *StageFS) Readdir(path string, fill func(name string, stat *fuse.Stat_t, ofst int64) bool, ofst int64, fh uint64) int {
	f.mu.Lock()
	names, ok := f.dirs[fh]
	f.mu.Unlock()
	if !ok {
		// No cached handle (auto-mode readdir): build fresh.
		var errc int
		names, errc = f.listDir(path)
		if errc != 0 {
			return errc
		}
	}

	for i := int(ofst); i < len(names); i++ {
		// fill returns true = accepted, keep sending; false = buffer full.
		if !fill(names[i], nil, int64(i+1)) {
			return 0
		}
	}
	return 0
}

// Releasedir frees the cached entry list.
func (f *StageFS) Releasedir(path string, fh uint64) int {
	f.mu.Lock()
	delete(f.dirs, fh)
	f.mu.Unlock()
	return 0
}

// Read (Cat file)
func (f *StageFS) Read(path string, buff []byte, ofst int64, fh uint64) int {
	prim, vfile, err := scene.SplitVirtual(path)
	if err != nil {
		return -fuse.ENOENT
	}
	if vfile == "" {
		if _, err := f.reader.Info(prim); err != nil {
			return -fuse.ENOENT
		}
		return -fuse.EISDIR
	}

	content, err := f.content(prim, vfile)
	if err != nil {
		return -fuse.ENOENT
	}

	if ofst >= int64(len(content)) {
		return 0
	}
	end := ofst + int64(len(buff))
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	n := copy(buff, content[ofst:end])
	return n
}
