package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closableStage struct {
	Provider
	closed bool
}

func (c *closableStage) Close() error {
	c.closed = true
	return nil
}

func TestHotSwapStage_SwapClosesOld(t *testing.T) {
	first, err := NewMemoryStageFromText(`def Xform "old" {}`)
	require.NoError(t, err)
	second, err := NewMemoryStageFromText(`def Xform "new" {}`)
	require.NoError(t, err)

	wrapped := &closableStage{Provider: first}
	hot := NewHotSwapStage(wrapped)

	children, err := hot.Children(RootPath)
	require.NoError(t, err)
	assert.Equal(t, []Path{"/old"}, children)

	hot.Swap(second)
	assert.True(t, wrapped.closed, "old provider should be closed after Swap")

	children, err = hot.Children(RootPath)
	require.NoError(t, err)
	assert.Equal(t, []Path{"/new"}, children)
	assert.Same(t, second, hot.Current())
}

func TestHotSwapStage_DelegatesMutations(t *testing.T) {
	stage, err := NewMemoryStageFromText(`def Scope "env" {}`)
	require.NoError(t, err)
	hot := NewHotSwapStage(stage)

	require.NoError(t, hot.AddAttribute("/env", "weight", "double", 1.5))
	attrs, err := hot.Attributes("/env")
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, 1.5, attrs[0].Value)

	text, err := hot.ExportText()
	require.NoError(t, err)
	assert.Contains(t, text, "custom double weight = 1.5")
}
