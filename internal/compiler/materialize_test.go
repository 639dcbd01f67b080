package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vecgrid/internal/ir"
	"github.com/roach88/vecgrid/internal/model"
)

func TestMaterialize(t *testing.T) {
	space := model.NewSpace()
	defer space.Close()

	p := validProject()
	p.Variables = append(p.Variables, ir.VariableSpec{Path: "Plant/Line1/Speed", Kind: ir.KindFloat})

	owners, err := Materialize(space, p)
	require.NoError(t, err)

	vec, err := space.ResolveVariable("VectorValue")
	require.NoError(t, err)
	assert.Equal(t, ir.Ints(1, 2, 3), vec.Value())

	slot, err := space.ResolveVariable("GridModel")
	require.NoError(t, err)
	assert.Equal(t, ir.NodeRef(0), slot.Value())

	speed, err := space.ResolveVariable("Plant/Line1/Speed")
	require.NoError(t, err)
	assert.Equal(t, ir.Float(0), speed.Value())

	require.Contains(t, owners, "Main")
	assert.Equal(t, "Main", owners["Main"].Path())
	assert.Equal(t, 0, owners["Main"].Len())
}

func TestMaterializeSharesIntermediateObjects(t *testing.T) {
	space := model.NewSpace()
	defer space.Close()

	p := &ir.Project{Variables: []ir.VariableSpec{
		{Path: "Plant/A", Kind: ir.KindInt},
		{Path: "Plant/B", Kind: ir.KindInt},
	}}
	_, err := Materialize(space, p)
	require.NoError(t, err)

	plant, err := space.Resolve("Plant")
	require.NoError(t, err)
	obj, ok := plant.(*model.Object)
	require.True(t, ok)
	assert.Equal(t, 2, obj.Len())
}

func TestMaterializeErrors(t *testing.T) {
	t.Run("duplicate variable", func(t *testing.T) {
		space := model.NewSpace()
		defer space.Close()

		p := &ir.Project{Variables: []ir.VariableSpec{
			{Path: "A", Kind: ir.KindInt},
			{Path: "A", Kind: ir.KindInt},
		}}
		_, err := Materialize(space, p)
		assert.ErrorIs(t, err, model.ErrDuplicateName)
	})

	t.Run("variable used as object", func(t *testing.T) {
		space := model.NewSpace()
		defer space.Close()

		p := &ir.Project{Variables: []ir.VariableSpec{
			{Path: "A", Kind: ir.KindInt},
			{Path: "A/B", Kind: ir.KindInt},
		}}
		_, err := Materialize(space, p)
		assert.ErrorIs(t, err, model.ErrNotObject)
	})

	t.Run("kind mismatch", func(t *testing.T) {
		space := model.NewSpace()
		defer space.Close()

		p := &ir.Project{Variables: []ir.VariableSpec{
			{Path: "A", Kind: ir.KindBool, Value: ir.Int(1)},
		}}
		_, err := Materialize(space, p)
		assert.ErrorIs(t, err, model.ErrTypeMismatch)
	})
}
