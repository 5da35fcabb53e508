package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidreamer/maya-usd-author/internal/scene"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "view.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dir
}

func TestSessionSaveLoadRoundTrip(t *testing.T) {
	store, dir := openTestStore(t)
	stage := filepath.Join(dir, "shot.usda")

	saved := State{
		Expanded:  []scene.Path{"/world", "/world/geo"},
		Selection: "/world/geo/sphere",
	}
	require.NoError(t, store.Save(stage, saved))

	got, found, err := store.Load(stage)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, saved, got)

	// Saving again replaces, never accumulates.
	require.NoError(t, store.Save(stage, State{Expanded: []scene.Path{"/env"}}))
	got, found, err = store.Load(stage)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []scene.Path{"/env"}, got.Expanded)
	assert.Empty(t, got.Selection)
}

func TestSessionUnknownStage(t *testing.T) {
	store, dir := openTestStore(t)

	got, found, err := store.Load(filepath.Join(dir, "never-saved.usda"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, got.Expanded)
	assert.Empty(t, got.Selection)
}

func TestSessionPerStageIsolation(t *testing.T) {
	store, dir := openTestStore(t)
	a := filepath.Join(dir, "a.usda")
	b := filepath.Join(dir, "b.usda")

	require.NoError(t, store.Save(a, State{Expanded: []scene.Path{"/world"}}))
	require.NoError(t, store.Save(b, State{Expanded: []scene.Path{"/env"}}))

	got, found, err := store.Load(a)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []scene.Path{"/world"}, got.Expanded)

	got, found, err = store.Load(b)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []scene.Path{"/env"}, got.Expanded)
}

func TestSessionKeysNormalize(t *testing.T) {
	store, dir := openTestStore(t)

	require.NoError(t, store.Save(filepath.Join(dir, ".", "shot.usda"),
		State{Selection: "/world"}))
	got, found, err := store.Load(filepath.Join(dir, "shot.usda"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, scene.Path("/world"), got.Selection)
}

func TestSessionSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "view.db")
	stage := filepath.Join(dir, "shot.usda")

	store, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Save(stage, State{
		Expanded:  []scene.Path{"/world"},
		Selection: "/world",
	}))
	require.NoError(t, store.Close())

	store, err = Open(dbPath)
	require.NoError(t, err)
	defer store.Close()
	got, found, err := store.Load(stage)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []scene.Path{"/world"}, got.Expanded)
}
