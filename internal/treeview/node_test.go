package treeview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidreamer/maya-usd-author/internal/scene"
)

func TestNodeMaterializationIdempotent(t *testing.T) {
	counting := newCountingReader(newTestStage(t))
	root := NewNode(counting, scene.RootPath, nil)

	count, err := root.ChildCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	children, err := root.Children()
	require.NoError(t, err)
	assert.Len(t, children, 2)
	again, err := root.Children()
	require.NoError(t, err)
	assert.Equal(t, children, again)

	assert.Equal(t, 1, counting.calls["children:/"],
		"repeated loads hit the provider once")
	assert.True(t, root.Loaded())
}

func TestNodeHasChildrenProbe(t *testing.T) {
	counting := newCountingReader(newTestStage(t))
	world := NewNode(counting, "/world", nil)

	has, err := world.HasChildren()
	require.NoError(t, err)
	assert.True(t, has)
	_, err = world.HasChildren()
	require.NoError(t, err)
	assert.Equal(t, 1, counting.calls["probe:/world"], "probe answer is memoized")
	assert.Zero(t, counting.calls["children:/world"], "probe must not materialize")

	_, err = world.Children()
	require.NoError(t, err)
	has, err = world.HasChildren()
	require.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, 1, counting.calls["probe:/world"],
		"a materialized node answers from its children")
}

func TestNodeChildRowParent(t *testing.T) {
	stage := newTestStage(t)
	root := NewNode(stage, scene.RootPath, nil)

	world, err := root.Child(0)
	require.NoError(t, err)
	assert.Equal(t, scene.Path("/world"), world.Path())
	assert.Same(t, root, world.Parent())
	assert.Equal(t, 0, world.Row())

	env, err := root.Child(1)
	require.NoError(t, err)
	assert.Equal(t, scene.Path("/env"), env.Path())
	assert.Equal(t, 1, env.Row())

	_, err = root.Child(2)
	assert.ErrorContains(t, err, "out of range")
	_, err = root.Child(-1)
	assert.Error(t, err)

	assert.Equal(t, 0, root.Row())
	assert.Nil(t, root.Parent())
}

func TestNodeInvalidate(t *testing.T) {
	stage := newTestStage(t)
	counting := newCountingReader(stage)
	sphere := NewNode(counting, "/world/geo/sphere", nil)

	children, err := sphere.Children()
	require.NoError(t, err)
	require.Len(t, children, 1)

	require.NoError(t, stage.UnloadPayload("/world/geo/sphere"))
	children, err = sphere.Children()
	require.NoError(t, err)
	assert.Len(t, children, 1, "a materialized node is a snapshot until invalidated")

	sphere.Invalidate()
	assert.False(t, sphere.Loaded())
	children, err = sphere.Children()
	require.NoError(t, err)
	assert.Empty(t, children)
	assert.Equal(t, 2, counting.calls["children:/world/geo/sphere"])

	has, err := sphere.HasChildren()
	require.NoError(t, err)
	assert.False(t, has)
}
