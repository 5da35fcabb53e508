package control

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlBlockRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usdauthor.ctl")

	ctl, err := OpenOrCreate(path)
	require.NoError(t, err)
	assert.Zero(t, ctl.Generation())
	assert.Empty(t, ctl.StagePath())

	require.NoError(t, ctl.SetStage("/shots/sq010/shot.usda"))
	assert.Equal(t, uint64(1), ctl.Bump())
	assert.Equal(t, uint64(2), ctl.Bump())
	require.NoError(t, ctl.Close())

	// State lives in the file, not the process.
	ctl, err = OpenOrCreate(path)
	require.NoError(t, err)
	defer ctl.Close()
	assert.Equal(t, uint64(2), ctl.Generation())
	assert.Equal(t, "/shots/sq010/shot.usda", ctl.StagePath())
}

func TestControlSharedBetweenControllers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usdauthor.ctl")

	host, err := OpenOrCreate(path)
	require.NoError(t, err)
	defer host.Close()
	writer, err := OpenOrCreate(path)
	require.NoError(t, err)
	defer writer.Close()

	before := host.Generation()
	writer.Bump()
	assert.Equal(t, before+1, host.Generation(),
		"a bump by one mapping is visible through the other")
}

func TestControlRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-control-file")
	data := make([]byte, ControlSize)
	data[0] = 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err := OpenOrCreate(path)
	assert.ErrorContains(t, err, "invalid magic")
}

func TestControlRejectsOverlongStagePath(t *testing.T) {
	ctl, err := OpenOrCreate(filepath.Join(t.TempDir(), "usdauthor.ctl"))
	require.NoError(t, err)
	defer ctl.Close()

	err = ctl.SetStage("/" + strings.Repeat("x", 300))
	assert.ErrorContains(t, err, "too long")

	// Shorter paths replace longer ones cleanly.
	require.NoError(t, ctl.SetStage("/long/path/to/a/shot.usda"))
	require.NoError(t, ctl.SetStage("/s.usda"))
	assert.Equal(t, "/s.usda", ctl.StagePath())
}
