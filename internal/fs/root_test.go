package fs

import (
	"strings"
	"testing"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/voidreamer/maya-usd-author/internal/scene"
)

const fuseStage = `#usda 1.0

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

// newTestFS creates a StageFS over a small in-memory stage.
func newTestFS(t *testing.T) *StageFS {
	t.Helper()
	stage, err := scene.NewMemoryStageFromText(fuseStage)
	if err != nil {
		t.Fatalf("parse stage: %v", err)
	}
	return NewStageFS(stage, stage.ExportText)
}

func TestStageFS_Open(t *testing.T) {
	sfs := newTestFS(t)

	tests := []struct {
		name    string
		path    string
		wantErr int
		wantFh  uint64
	}{
		{
			name:    "open virtual info file",
			path:    "/world/_info",
			wantErr: 0,
			wantFh:  0,
		},
		{
			name:    "open stage text at root",
			path:    "/_stage.usda",
			wantErr: 0,
			wantFh:  0,
		},
		{
			name:    "open non-existent path",
			path:    "/does-not-exist",
			wantErr: -fuse.ENOENT,
			wantFh:  0,
		},
		{
			name:    "open virtual file under missing prim",
			path:    "/does-not-exist/_info",
			wantErr: -fuse.ENOENT,
			wantFh:  0,
		},
		{
			name:    "open prim directory returns EISDIR",
			path:    "/world",
			wantErr: -fuse.EISDIR,
			wantFh:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errCode, fh := sfs.Open(tt.path, 0)
			if errCode != tt.wantErr {
				t.Errorf("Open() errCode = %v, want %v", errCode, tt.wantErr)
			}
			if fh != tt.wantFh {
				t.Errorf("Open() fh = %v, want %v", fh, tt.wantFh)
			}
		})
	}
}

func TestStageFS_Getattr(t *testing.T) {
	sfs := newTestFS(t)

	tests := []struct {
		name      string
		path      string
		wantErr   int
		checkStat func(*testing.T, *fuse.Stat_t)
	}{
		{
			name:    "stat root directory",
			path:    "/",
			wantErr: 0,
			checkStat: func(t *testing.T, stat *fuse.Stat_t) {
				if stat.Mode&fuse.S_IFDIR == 0 {
					t.Error("Root should be a directory")
				}
				if stat.Nlink != 2 {
					t.Errorf("Root nlink = %v, want 2", stat.Nlink)
				}
			},
		},
		{
			name:    "stat prim directory",
			path:    "/world",
			wantErr: 0,
			checkStat: func(t *testing.T, stat *fuse.Stat_t) {
				if stat.Mode&fuse.S_IFDIR == 0 {
					t.Error("world should be a directory")
				}
			},
		},
		{
			name:    "stat nested prim directory",
			path:    "/world/geo/sphere",
			wantErr: 0,
			checkStat: func(t *testing.T, stat *fuse.Stat_t) {
				if stat.Mode&fuse.S_IFDIR == 0 {
					t.Error("sphere should be a directory")
				}
			},
		},
		{
			name:    "stat virtual file",
			path:    "/world/_info",
			wantErr: 0,
			checkStat: func(t *testing.T, stat *fuse.Stat_t) {
				if stat.Mode&fuse.S_IFREG == 0 {
					t.Error("_info should be a regular file")
				}
				if stat.Size <= 0 {
					t.Errorf("_info size = %v, want > 0", stat.Size)
				}
			},
		},
		{
			name:    "stat stage text",
			path:    "/_stage.usda",
			wantErr: 0,
			checkStat: func(t *testing.T, stat *fuse.Stat_t) {
				if stat.Mode&fuse.S_IFREG == 0 {
					t.Error("_stage.usda should be a regular file")
				}
				if stat.Size <= 0 {
					t.Errorf("_stage.usda size = %v, want > 0", stat.Size)
				}
			},
		},
		{
			name:    "stat non-existent path",
			path:    "/does-not-exist",
			wantErr: -fuse.ENOENT,
			checkStat: func(t *testing.T, stat *fuse.Stat_t) {
				// No stat to check on error
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stat fuse.Stat_t
			errCode := sfs.Getattr(tt.path, &stat, 0)
			if errCode != tt.wantErr {
				t.Errorf("Getattr() errCode = %v, want %v", errCode, tt.wantErr)
			}
			if errCode == 0 && tt.checkStat != nil {
				tt.checkStat(t, &stat)
			}
		})
	}
}

func TestStageFS_Readdir(t *testing.T) {
	sfs := newTestFS(t)

	tests := []struct {
		name        string
		path        string
		wantErr     int
		wantEntries []string
	}{
		{
			name:    "readdir root lists prims and root virtual files",
			path:    "/",
			wantErr: 0,
			wantEntries: []string{
				".", "..", "world", "env",
				"_info", "_attributes", "_primvars", "_variants",
				"_stage.usda",
			},
		},
		{
			name:    "readdir prim lists children then virtual files",
			path:    "/world",
			wantErr: 0,
			wantEntries: []string{
				".", "..", "geo",
				"_info", "_attributes", "_primvars", "_variants",
			},
		},
		{
			name:    "readdir leaf prim lists only virtual files",
			path:    "/world/geo/sphere",
			wantErr: 0,
			wantEntries: []string{
				".", "..",
				"_info", "_attributes", "_primvars", "_variants",
			},
		},
		{
			name:    "readdir non-existent path",
			path:    "/does-not-exist",
			wantErr: -fuse.ENOENT,
		},
		// Note: "readdir on a file" is caught by Opendir (ENOTDIR).
		// See TestStageFS_Opendir_Errors.
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var entries []string
			fill := func(name string, stat *fuse.Stat_t, ofst int64) bool {
				entries = append(entries, name)
				return true // true = accepted, keep sending
			}

			errCode := sfs.Readdir(tt.path, fill, 0, 0)
			if errCode != tt.wantErr {
				t.Errorf("Readdir() errCode = %v, want %v", errCode, tt.wantErr)
			}

			if errCode == 0 && tt.wantEntries != nil {
				if len(entries) != len(tt.wantEntries) {
					t.Errorf("Readdir() got %v entries %v, want %v entries %v", len(entries), entries, len(tt.wantEntries), tt.wantEntries)
				}
				for i, want := range tt.wantEntries {
					if i >= len(entries) || entries[i] != want {
						t.Errorf("Readdir() entry[%d] = %v, want %v", i, entries[i], want)
					}
				}
			}
		})
	}
}

func TestStageFS_Readdir_BufferFull(t *testing.T) {
	sfs := newTestFS(t)

	// fill returning false means buffer full — we stop after the first entry.
	var entries []string
	fill := func(name string, stat *fuse.Stat_t, ofst int64) bool {
		entries = append(entries, name)
		return false // false = buffer full, stop sending
	}

	errCode := sfs.Readdir("/world", fill, 0, 0)
	if errCode != 0 {
		t.Fatalf("Readdir errCode = %v, want 0", errCode)
	}
	// Buffer full on first fill → only "." is returned
	if len(entries) != 1 || entries[0] != "." {
		t.Fatalf("entries = %v, want [\".\"]", entries)
	}
}

// Regression test: the fill() convention is true=accepted, keep sending.
// All children must be returned when fill always accepts.
func TestStageFS_Readdir_FillConventionRegression(t *testing.T) {
	sfs := newTestFS(t)

	var entries []string
	fill := func(name string, stat *fuse.Stat_t, ofst int64) bool {
		entries = append(entries, name)
		return true // cgofuse: true = accepted, continue
	}

	errCode := sfs.Readdir("/world/geo", fill, 0, 0)
	if errCode != 0 {
		t.Fatalf("Readdir errCode = %v, want 0", errCode)
	}

	// Must contain all children, not just "." and ".."
	if len(entries) < 3 {
		t.Fatalf("fill convention bug: only got %v — expected at least 3 (., .., + children)", entries)
	}
	found := make(map[string]bool)
	for _, e := range entries {
		found[e] = true
	}
	for _, want := range []string{"sphere", "_info"} {
		if !found[want] {
			t.Errorf("missing child %q in entries %v", want, entries)
		}
	}
}

func TestStageFS_Opendir_Errors(t *testing.T) {
	sfs := newTestFS(t)

	errCode, _ := sfs.Opendir("/does-not-exist")
	if errCode != -fuse.ENOENT {
		t.Errorf("Opendir(nonexistent) = %v, want ENOENT", errCode)
	}

	errCode, _ = sfs.Opendir("/world/_info")
	if errCode != -fuse.ENOTDIR {
		t.Errorf("Opendir(file) = %v, want ENOTDIR", errCode)
	}
}

func TestStageFS_Opendir_Readdir_Releasedir(t *testing.T) {
	sfs := newTestFS(t)

	// Opendir caches the entry list
	errCode, fh := sfs.Opendir("/world")
	if errCode != 0 {
		t.Fatalf("Opendir errCode = %v, want 0", errCode)
	}

	// First Readdir page: accept 2 entries then signal buffer full
	var page1 []string
	count := 0
	fill1 := func(name string, stat *fuse.Stat_t, ofst int64) bool {
		page1 = append(page1, name)
		count++
		return count < 2 // accept first 2, then buffer full
	}

	errCode = sfs.Readdir("/world", fill1, 0, fh)
	if errCode != 0 {
		t.Fatalf("Readdir page1 errCode = %v, want 0", errCode)
	}
	if len(page1) != 2 || page1[0] != "." || page1[1] != ".." {
		t.Fatalf("page1 = %v, want [. ..]", page1)
	}

	// Second Readdir page: resume from offset 2, accept all remaining
	var page2 []string
	fill2 := func(name string, stat *fuse.Stat_t, ofst int64) bool {
		page2 = append(page2, name)
		return true
	}

	errCode = sfs.Readdir("/world", fill2, 2, fh)
	if errCode != 0 {
		t.Fatalf("Readdir page2 errCode = %v, want 0", errCode)
	}
	want2 := []string{"geo", "_info", "_attributes", "_primvars", "_variants"}
	if len(page2) != len(want2) {
		t.Fatalf("page2 = %v, want %v", page2, want2)
	}
	for i, w := range want2 {
		if page2[i] != w {
			t.Errorf("page2[%d] = %q, want %q", i, page2[i], w)
		}
	}

	// Releasedir frees the handle
	errCode = sfs.Releasedir("/world", fh)
	if errCode != 0 {
		t.Fatalf("Releasedir errCode = %v, want 0", errCode)
	}
}

func TestStageFS_Read(t *testing.T) {
	sfs := newTestFS(t)

	tests := []struct {
		name       string
		path       string
		offset     int64
		buffSize   int
		wantN      int
		wantPrefix string
	}{
		{
			name:       "read stage text from start",
			path:       "/_stage.usda",
			offset:     0,
			buffSize:   8192,
			wantN:      -1, // any positive length
			wantPrefix: "#usda 1.0",
		},
		{
			name:       "read with offset",
			path:       "/_stage.usda",
			offset:     6,
			buffSize:   3,
			wantN:      3,
			wantPrefix: "1.0",
		},
		{
			name:       "read virtual info file",
			path:       "/world/_info",
			offset:     0,
			buffSize:   4096,
			wantN:      -1,
			wantPrefix: "{",
		},
		{
			name:     "read past end of file",
			path:     "/world/_info",
			offset:   1 << 20,
			buffSize: 100,
			wantN:    0,
		},
		{
			name:     "read non-existent path",
			path:     "/does-not-exist",
			offset:   0,
			buffSize: 100,
			wantN:    -fuse.ENOENT,
		},
		{
			name:     "read a directory returns EISDIR",
			path:     "/world",
			offset:   0,
			buffSize: 100,
			wantN:    -fuse.EISDIR,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buff := make([]byte, tt.buffSize)
			n := sfs.Read(tt.path, buff, tt.offset, 0)

			if tt.wantN == -1 {
				if n <= 0 {
					t.Fatalf("Read() n = %v, want > 0", n)
				}
			} else if n != tt.wantN {
				t.Errorf("Read() n = %v, want %v", n, tt.wantN)
			}

			if n > 0 && tt.wantPrefix != "" {
				got := string(buff[:n])
				if !strings.HasPrefix(got, tt.wantPrefix) {
					t.Errorf("Read() data = %q, want prefix %q", got, tt.wantPrefix)
				}
			}
		})
	}
}

func TestStageFS_ErrorCodesArePositive(t *testing.T) {
	if fuse.ENOENT <= 0 {
		t.Errorf("fuse.ENOENT = %v, expected positive value", fuse.ENOENT)
	}
}
