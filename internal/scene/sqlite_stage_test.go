package scene

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStageDurability(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "stage.db")

	stage, err := OpenSQLiteStage(dbPath)
	require.NoError(t, err)
	require.NoError(t, stage.ReplaceFromText(stageText))
	require.NoError(t, stage.SetKind("/env", "assembly"))
	require.NoError(t, stage.SelectVariant("/world/geo/sphere", "shading", "glossy"))
	require.NoError(t, stage.UnloadPayload("/world/geo/sphere"))
	require.NoError(t, stage.Close())

	reopened, err := OpenSQLiteStage(dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	info, err := reopened.Info("/env")
	require.NoError(t, err)
	assert.Equal(t, "assembly", info.Kind)

	sets, err := reopened.VariantSets("/world/geo/sphere")
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "glossy", sets[0].Selection)

	// Load state survives reopen too, and keeps hiding descendants.
	_, err = reopened.Info("/world/geo/sphere/detail")
	assert.ErrorIs(t, err, ErrNotFound)

	children, err := reopened.Children(RootPath)
	require.NoError(t, err)
	assert.Equal(t, []Path{"/world", "/env"}, children)
}

func TestSQLiteStageExportRoundTrip(t *testing.T) {
	stage := openTestSQLite(t)
	require.NoError(t, stage.ReplaceFromText(stageText))

	text, err := stage.ExportText()
	require.NoError(t, err)

	again := openTestSQLite(t)
	require.NoError(t, again.ReplaceFromText(text))
	text2, err := again.ExportText()
	require.NoError(t, err)
	assert.Equal(t, text, text2, "export is a fixed point after one round trip")
}
