package nfsmount

import (
	"fmt"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidreamer/maya-usd-author/internal/scene"
)

const fsStage = `#usda 1.0

def Xform "world" (
    kind = "group"
)
{
    def Scope "geo"
    {
        def Mesh "sphere"
        {
            float radius = 2.0
        }
    }
}

def Scope "env"
{
}
`

func newTestStage(t *testing.T) *scene.MemoryStage {
	t.Helper()
	stage, err := scene.NewMemoryStageFromText(fsStage)
	require.NoError(t, err)
	return stage
}

func newTestFS(t *testing.T) *StageFS {
	t.Helper()
	stage := newTestStage(t)
	return NewStageFS(stage, stage.ExportText)
}

func TestStatRoot(t *testing.T) {
	sfs := newTestFS(t)

	info, err := sfs.Stat("/")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "/", info.Name())
}

func TestStatStageText(t *testing.T) {
	sfs := newTestFS(t)

	info, err := sfs.Stat("/" + scene.VFileStage)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, scene.VFileStage, info.Name())
	assert.True(t, info.Size() > 0)
}

func TestStatStatus(t *testing.T) {
	sfs := newTestFS(t)

	info, err := sfs.Stat("/" + scene.VFileStatus)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, int64(len("ok\n")), info.Size())
}

func TestStatPrimDir(t *testing.T) {
	sfs := newTestFS(t)

	info, err := sfs.Stat("/world/geo")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "geo", info.Name())
}

func TestStatVirtualFile(t *testing.T) {
	sfs := newTestFS(t)

	info, err := sfs.Stat("/world/_info")
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, "_info", info.Name())
	assert.True(t, info.Size() > 0)
}

func TestStatNotFound(t *testing.T) {
	sfs := newTestFS(t)

	_, err := sfs.Stat("/nonexistent")
	assert.True(t, os.IsNotExist(err))

	_, err = sfs.Stat("/nonexistent/_info")
	assert.True(t, os.IsNotExist(err))
}

func TestReadDirRoot(t *testing.T) {
	sfs := newTestFS(t)

	entries, err := sfs.ReadDir("/")
	require.NoError(t, err)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	assert.Contains(t, names, "world")
	assert.Contains(t, names, "env")
	assert.Contains(t, names, scene.VFileStage)
	assert.Contains(t, names, scene.VFileStatus)
	assert.Contains(t, names, scene.VFileInfo)
}

func TestReadDirPrim(t *testing.T) {
	sfs := newTestFS(t)

	entries, err := sfs.ReadDir("/world")
	require.NoError(t, err)
	require.Len(t, entries, 5, "one child plus four virtual files")

	assert.Equal(t, "geo", entries[0].Name())
	assert.True(t, entries[0].IsDir())
	names := make([]string, 0, 4)
	for _, e := range entries[1:] {
		assert.False(t, e.IsDir())
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{
		scene.VFileInfo, scene.VFileAttributes, scene.VFilePrimvars, scene.VFileVariants,
	}, names)
}

func TestReadDirOnFile(t *testing.T) {
	sfs := newTestFS(t)

	_, err := sfs.ReadDir("/world/_info")
	assert.Error(t, err)
}

func TestOpenAndReadInfo(t *testing.T) {
	sfs := newTestFS(t)

	f, err := sfs.Open("/world/_info")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	buf := make([]byte, 4096)
	n, _ := f.Read(buf)
	// Read may return io.EOF with n > 0, that's fine
	require.True(t, n > 0)
	assert.Contains(t, string(buf[:n]), `"kind": "group"`)
}

func TestOpenStageText(t *testing.T) {
	sfs := newTestFS(t)

	f, err := sfs.Open("/" + scene.VFileStage)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	buf := make([]byte, 8192)
	n, _ := f.Read(buf)
	require.True(t, n > 0)
	assert.Contains(t, string(buf[:n]), "#usda 1.0")
	assert.Contains(t, string(buf[:n]), `def Xform "world"`)
}

func TestOpenPrimDir(t *testing.T) {
	sfs := newTestFS(t)

	_, err := sfs.Open("/world")
	assert.Error(t, err, "prim directories are not readable as files")
}

func TestReadAt(t *testing.T) {
	sfs := newTestFS(t)

	f, err := sfs.Open("/" + scene.VFileStage)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	buf := make([]byte, 4)
	n, _ := f.ReadAt(buf, 1)
	require.True(t, n > 0)
	assert.Equal(t, "usda", string(buf[:n]))
}

func TestSeek(t *testing.T) {
	sfs := newTestFS(t)

	f, err := sfs.Open("/" + scene.VFileStage)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	pos, err := f.Seek(6, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos)

	buf := make([]byte, 3)
	n, _ := f.Read(buf)
	require.True(t, n > 0)
	assert.Equal(t, "1.0", string(buf[:n]))
}

func TestOpenNotFound(t *testing.T) {
	sfs := newTestFS(t)

	_, err := sfs.Open("/nonexistent/_info")
	assert.Error(t, err)
}

func TestReadOnly(t *testing.T) {
	sfs := newTestFS(t)

	_, err := sfs.Create(scene.VFileStage)
	assert.Equal(t, errReadOnly, err)

	err = sfs.MkdirAll("/newdir", 0o755)
	assert.Equal(t, errReadOnly, err)

	err = sfs.Remove("/world")
	assert.Equal(t, errReadOnly, err)

	err = sfs.Rename("/world", "/renamed")
	assert.Equal(t, errReadOnly, err)

	_, err = sfs.OpenFile("/"+scene.VFileStage, os.O_WRONLY, 0o644)
	assert.Equal(t, errReadOnly, err)
}

func TestWritableOnlyStageText(t *testing.T) {
	sfs := newTestFS(t)
	sfs.SetWriteBack(func(string, []byte) error { return nil })

	_, err := sfs.OpenFile("/world/_info", os.O_WRONLY, 0o644)
	assert.Error(t, err, "virtual prim files stay read-only")

	_, err = sfs.Create("/world/new.usda")
	assert.Error(t, err)
}

func TestCapabilities(t *testing.T) {
	sfs := newTestFS(t)

	caps := sfs.Capabilities()
	assert.NotZero(t, caps&2) // ReadCapability (1 << 1)
	assert.NotZero(t, caps&8) // SeekCapability (1 << 3)
	assert.Zero(t, caps&1)    // WriteCapability (1 << 0) should NOT be set

	sfs.SetWriteBack(func(string, []byte) error { return nil })
	assert.NotZero(t, sfs.Capabilities()&1)
}

func TestWriteBackOnClose(t *testing.T) {
	stage := newTestStage(t)
	sfs := NewStageFS(stage, stage.ExportText)

	var got []byte
	sfs.SetWriteBack(func(name string, content []byte) error {
		got = append([]byte(nil), content...)
		return stage.ReplaceFromText(string(content))
	})

	f, err := sfs.OpenFile("/"+scene.VFileStage, os.O_WRONLY|os.O_TRUNC, 0o644)
	require.NoError(t, err)

	next := "#usda 1.0\n\ndef Scope \"swapped\"\n{\n}\n"
	_, err = f.Write([]byte(next))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, next, string(got))

	children, err := stage.Children(scene.RootPath)
	require.NoError(t, err)
	assert.Equal(t, []scene.Path{"/swapped"}, children, "write-back replaced the hierarchy")
}

func TestTruncateOnlyDoesNotCommit(t *testing.T) {
	sfs := newTestFS(t)

	calls := 0
	sfs.SetWriteBack(func(string, []byte) error { calls++; return nil })

	f, err := sfs.OpenFile("/"+scene.VFileStage, os.O_WRONLY, 0o644)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(0))
	require.NoError(t, f.Close())

	assert.Zero(t, calls, "SETATTR truncate+close cycle must not commit")
}

func TestRejectedWriteSurfacesStatus(t *testing.T) {
	stage := newTestStage(t)
	sfs := NewStageFS(stage, stage.ExportText)
	sfs.SetWriteBack(func(string, []byte) error {
		return fmt.Errorf("bad header")
	})

	f, err := sfs.OpenFile("/"+scene.VFileStage, os.O_WRONLY|os.O_TRUNC, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("not a stage"))
	require.NoError(t, err)
	assert.Error(t, f.Close())

	st, err := sfs.Open("/" + scene.VFileStatus)
	require.NoError(t, err)
	buf := make([]byte, 256)
	n, _ := st.Read(buf)
	assert.Contains(t, string(buf[:n]), "rejected: bad header")

	children, err := stage.Children(scene.RootPath)
	require.NoError(t, err)
	assert.Equal(t, []scene.Path{"/world", "/env"}, children, "stage is untouched")
}

func TestRoot(t *testing.T) {
	sfs := newTestFS(t)
	assert.Equal(t, "/", sfs.Root())
}

func TestJoin(t *testing.T) {
	sfs := newTestFS(t)
	assert.Equal(t, "a/b/c", sfs.Join("a", "b", "c"))
}

func TestNFSServerStarts(t *testing.T) {
	sfs := newTestFS(t)

	srv, err := NewServer(sfs)
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	assert.True(t, srv.Port() > 0, "server should be on a valid port")

	// Verify TCP connectivity
	conn, err := net.Dial("tcp", fmt.Sprintf("localhost:%d", srv.Port()))
	require.NoError(t, err)
	_ = conn.Close()
}
