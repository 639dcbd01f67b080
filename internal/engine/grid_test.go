package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vecgrid/internal/ir"
	"github.com/roach88/vecgrid/internal/model"
)

func newTestGrid(t *testing.T, elem ir.Kind) (*model.Space, *Grid) {
	t.Helper()
	space := model.NewSpace()
	t.Cleanup(space.Close)
	domain := space.AssignAffinity()

	noop := func(*Row) model.Callback {
		return func(context.Context, model.Notification) {}
	}
	g, err := newGrid(space, elem, domain, noop, nil)
	require.NoError(t, err)
	return space, g
}

func TestGrid_UnsupportedElementKind(t *testing.T) {
	space := model.NewSpace()
	defer space.Close()

	_, err := newGrid(space, ir.KindObject, space.AssignAffinity(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, ErrCodeUnsupportedType, ConfigurationCode(err))
}

func TestGrid_CreateRowIsUnattached(t *testing.T) {
	space, g := newTestGrid(t, ir.KindFloat)
	src := ir.NewArray(ir.KindFloat, ir.Float(1.5), ir.Float(2.5))

	row, err := g.CreateRow(src, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, row.Index())
	assert.Nil(t, row.Object().Parent())
	assert.Equal(t, 0, g.Len())
	assert.Equal(t, ir.Float(2.5), row.Cell().Value())
	assert.Equal(t, ir.KindFloat, row.Cell().Kind())
	assert.Equal(t, 1, space.Registrations())
}

func TestGrid_CreateRowOutOfRange(t *testing.T) {
	space, g := newTestGrid(t, ir.KindInt)

	_, err := g.CreateRow(ir.Ints(1), 3)
	assert.Error(t, err)
	assert.Equal(t, 0, space.Registrations())
}

func TestGrid_ResizeAndDelete(t *testing.T) {
	space, g := newTestGrid(t, ir.KindInt)
	require.NoError(t, space.Root().Add(g.Object()))

	added, removed, err := g.resize(ir.Ints(1, 2, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, 4, added)
	assert.Equal(t, 0, removed)
	for i := 0; i < 4; i++ {
		row, err := g.Row(i)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("Grid/Row%d/Cell0", i), row.Cell().Path())
	}

	first, err := g.Row(0)
	require.NoError(t, err)
	assert.Error(t, g.DeleteRow(first), "only the last row can be deleted")
	assert.Equal(t, 4, g.Len())

	added, removed, err = g.resize(ir.Ints(1))
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.Equal(t, 3, removed)
	assert.Equal(t, 1, space.Registrations())

	_, err = g.Row(1)
	assert.True(t, IsShapeError(err))
}

func TestGrid_PushAndDestroy(t *testing.T) {
	space, g := newTestGrid(t, ir.KindBool)
	src := ir.NewArray(ir.KindBool, ir.Bool(false), ir.Bool(false))
	_, _, err := g.resize(src)
	require.NoError(t, err)

	next := ir.NewArray(ir.KindBool, ir.Bool(true), ir.Bool(false))
	require.NoError(t, g.push(context.Background(), next))
	assert.Equal(t, []ir.Value{ir.Bool(true), ir.Bool(false)}, g.Values())

	require.NoError(t, g.destroy())
	assert.Equal(t, 0, g.Len())
	assert.True(t, g.Object().Deleted())
	assert.Equal(t, 0, space.Registrations())
}
