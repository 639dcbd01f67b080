package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProperties_SetGet(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetProperty(ctx, "last_project", "projects/basic"))
	got, err := s.GetProperty(ctx, "last_project")
	require.NoError(t, err)
	assert.Equal(t, "projects/basic", got)

	require.NoError(t, s.SetProperty(ctx, "last_project", "projects/other"))
	got, err = s.GetProperty(ctx, "last_project")
	require.NoError(t, err)
	assert.Equal(t, "projects/other", got)
}

func TestProperties_Missing(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetProperty(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPropertyNotFound)
}

func TestProperties_EmptyKey(t *testing.T) {
	s := createTestStore(t)
	assert.Error(t, s.SetProperty(context.Background(), "", "x"))
}

func TestProperties_ListAndDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetProperty(ctx, "b", "2"))
	require.NoError(t, s.SetProperty(ctx, "a", "1"))
	require.NoError(t, s.SetProperty(ctx, "b", "3"))

	props, err := s.ListProperties(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Property{
		{Key: "a", Value: "1", Revision: 1},
		{Key: "b", Value: "3", Revision: 2},
	}, props)

	require.NoError(t, s.DeleteProperty(ctx, "a"))
	require.NoError(t, s.DeleteProperty(ctx, "a"), "deleting twice is fine")

	props, err = s.ListProperties(ctx)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "b", props[0].Key)
}
