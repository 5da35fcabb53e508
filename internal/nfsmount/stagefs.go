// Package nfsmount exports a stage hierarchy over NFS. It adapts the
// scene.Reader view to billy.Filesystem for use with willscott/go-nfs:
// prim directories mirror the hierarchy, per-prim virtual files carry
// rendered JSON, and the root _stage.usda round-trips the stage text.
package nfsmount

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/voidreamer/maya-usd-author/internal/scene"
)

var errReadOnly = fmt.Errorf("read-only filesystem")

// StageFS adapts a scene.Reader to billy.Filesystem.
// This is the bridge between the hierarchy projection and go-nfs.
type StageFS struct {
	reader    scene.Reader
	export    func() (string, error)
	mountTime time.Time
	writable  bool
	writeBack WriteBackFunc

	mu     sync.Mutex
	status string
}

// NewStageFS creates a billy.Filesystem backed by a stage reader. The
// export callback renders the full stage text for the root _stage.usda.
func NewStageFS(r scene.Reader, export func() (string, error)) *StageFS {
	return &StageFS{
		reader:    r,
		export:    export,
		mountTime: time.Now(),
		status:    "ok\n",
	}
}

// SetWriteBack enables write support on the root _stage.usda. The
// callback is invoked when a written handle is closed.
func (fs *StageFS) SetWriteBack(fn WriteBackFunc) {
	fs.writable = true
	fs.writeBack = fn
}

// commit runs the write-back and records the outcome for _status.
// A rejected text leaves the stage untouched; the error is surfaced
// to the NFS client and kept readable in _status.
func (fs *StageFS) commit(name string, content []byte) error {
	err := fs.writeBack(name, content)
	fs.mu.Lock()
	if err != nil {
		fs.status = fmt.Sprintf("rejected: %v\n", err)
	} else {
		fs.status = "ok\n"
	}
	fs.mu.Unlock()
	return err
}

func (fs *StageFS) statusBytes() []byte {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return []byte(fs.status)
}

func (fs *StageFS) stageBytes() ([]byte, error) {
	text, err := fs.export()
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// --- billy.Basic ---

// Create signals success for the writable stage file (NFS CREATE on an
// existing file). go-nfs closes this file immediately — the actual
// writes come via separate OpenFile calls from WRITE RPCs. We return a
// no-op file to avoid a premature empty write-back.
func (fs *StageFS) Create(filename string) (billy.File, error) {
	if !fs.writable {
		return nil, errReadOnly
	}
	filename = cleanPath(filename)
	if filename != "/"+scene.VFileStage {
		return nil, &os.PathError{Op: "create", Path: filename, Err: errReadOnly}
	}
	return &bytesFile{name: filename, data: nil}, nil
}

func (fs *StageFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *StageFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	filename = cleanPath(filename)

	writing := flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0

	if writing {
		if !fs.writable {
			return nil, errReadOnly
		}
		return fs.openWritable(filename, flag)
	}

	prim, vfile, err := scene.SplitVirtual(filename)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}

	switch {
	case vfile == scene.VFileStage && prim.IsRoot():
		data, err := fs.stageBytes()
		if err != nil {
			return nil, &os.PathError{Op: "open", Path: filename, Err: err}
		}
		return &bytesFile{name: filename, data: data}, nil

	case vfile == scene.VFileStatus && prim.IsRoot():
		return &bytesFile{name: filename, data: fs.statusBytes()}, nil

	case vfile != "":
		data, err := scene.RenderVirtual(fs.reader, prim, vfile)
		if err != nil {
			return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
		}
		return &bytesFile{name: filename, data: data}, nil
	}

	if _, err := fs.reader.Info(prim); err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	return nil, &os.PathError{Op: "open", Path: filename, Err: fmt.Errorf("is a directory")}
}

// openWritable returns a buffered writeFile for the root stage text.
// Prim directories and the per-prim virtual files stay read-only.
func (fs *StageFS) openWritable(filename string, flag int) (billy.File, error) {
	if filename != "/"+scene.VFileStage {
		return nil, &os.PathError{Op: "open", Path: filename, Err: errReadOnly}
	}

	// Pre-fill buffer with the current text (for O_RDWR / partial writes).
	var buf []byte
	if flag&os.O_TRUNC == 0 {
		data, err := fs.stageBytes()
		if err != nil {
			return nil, &os.PathError{Op: "open", Path: filename, Err: err}
		}
		buf = data
	}

	return &writeFile{
		name:    filename,
		buf:     buf,
		onClose: fs.commit,
	}, nil
}

func (fs *StageFS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *StageFS) Rename(oldpath, newpath string) error {
	return errReadOnly
}

func (fs *StageFS) Remove(filename string) error {
	return errReadOnly
}

func (fs *StageFS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// --- billy.TempFile ---

func (fs *StageFS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *StageFS) ReadDir(path string) ([]os.FileInfo, error) {
	path = cleanPath(path)

	prim, vfile, err := scene.SplitVirtual(path)
	if err != nil {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: os.ErrNotExist}
	}
	if vfile != "" {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: fmt.Errorf("not a directory")}
	}

	entries, err := scene.ListEntries(fs.reader, prim)
	if err != nil {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: os.ErrNotExist}
	}

	infos := make([]os.FileInfo, 0, len(entries)+2)
	for _, e := range entries {
		infos = append(infos, fs.entryInfo(e))
	}

	// Root-only virtual files.
	if prim.IsRoot() {
		stage, err := fs.stageBytes()
		if err != nil {
			return nil, &os.PathError{Op: "readdir", Path: path, Err: err}
		}
		infos = append(infos, &staticFileInfo{
			name:    scene.VFileStage,
			size:    int64(len(stage)),
			mode:    fs.stageMode(),
			modTime: fs.mountTime,
		})
		infos = append(infos, &staticFileInfo{
			name:    scene.VFileStatus,
			size:    int64(len(fs.statusBytes())),
			mode:    0o444,
			modTime: fs.mountTime,
		})
	}

	return infos, nil
}

func (fs *StageFS) MkdirAll(filename string, perm os.FileMode) error {
	return errReadOnly
}

// --- billy.Symlink ---

func (fs *StageFS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)

	if filename == "/" {
		return &staticFileInfo{
			name:    "/",
			mode:    os.ModeDir | 0o555,
			modTime: fs.mountTime,
		}, nil
	}

	prim, vfile, err := scene.SplitVirtual(filename)
	if err != nil {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
	}

	switch {
	case vfile == scene.VFileStage && prim.IsRoot():
		data, err := fs.stageBytes()
		if err != nil {
			return nil, &os.PathError{Op: "lstat", Path: filename, Err: err}
		}
		return &staticFileInfo{
			name:    scene.VFileStage,
			size:    int64(len(data)),
			mode:    fs.stageMode(),
			modTime: fs.mountTime,
		}, nil

	case vfile == scene.VFileStatus && prim.IsRoot():
		return &staticFileInfo{
			name:    scene.VFileStatus,
			size:    int64(len(fs.statusBytes())),
			mode:    0o444,
			modTime: fs.mountTime,
		}, nil

	case vfile != "":
		data, err := scene.RenderVirtual(fs.reader, prim, vfile)
		if err != nil {
			return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
		}
		return &staticFileInfo{
			name:    vfile,
			size:    int64(len(data)),
			mode:    0o444,
			modTime: fs.mountTime,
		}, nil
	}

	if _, err := fs.reader.Info(prim); err != nil {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
	}
	return &staticFileInfo{
		name:    prim.Name(),
		mode:    os.ModeDir | 0o555,
		modTime: fs.mountTime,
	}, nil
}

func (fs *StageFS) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (fs *StageFS) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (fs *StageFS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *StageFS) Root() string {
	return "/"
}

// --- billy.Capable ---

func (fs *StageFS) Capabilities() billy.Capability {
	caps := billy.ReadCapability | billy.SeekCapability
	if fs.writable {
		caps |= billy.WriteCapability
	}
	return caps
}

// --- internals ---

func (fs *StageFS) stageMode() os.FileMode {
	if fs.writable {
		return 0o644
	}
	return 0o444
}

func (fs *StageFS) entryInfo(e scene.Entry) os.FileInfo {
	mode := os.FileMode(0o444)
	if e.Dir {
		mode = os.ModeDir | 0o555
	}
	return &staticFileInfo{
		name:    e.Name,
		size:    e.Size,
		mode:    mode,
		modTime: fs.mountTime,
	}
}

// cleanPath normalizes a billy path to a clean absolute path.
func cleanPath(path string) string {
	path = filepath.Clean("/" + path)
	if path == "." {
		return "/"
	}
	return path
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

// Compile-time interface checks.
var (
	_ billy.Filesystem = (*StageFS)(nil)
	_ billy.Capable    = (*StageFS)(nil)
)

// Verify file types satisfy billy.File.
var (
	_ billy.File = (*bytesFile)(nil)
	_ billy.File = (*writeFile)(nil)
)
