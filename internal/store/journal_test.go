package store

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vecgrid/internal/ir"
	"github.com/roach88/vecgrid/internal/model"
)

func TestAppend_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, createTestWrite(1, "VectorValue", ir.Ints(1, 2, 3))))
	require.NoError(t, s.Append(ctx, model.Notification{
		Path:    "VectorValue",
		New:     ir.Int(7),
		Old:     ir.Int(2),
		Indexes: []int{1},
		Sender:  3,
		Seq:     2,
		Depth:   1,
	}))

	got, err := s.ReadWrites(ctx, WriteFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, WriteRecord{Seq: 1, Path: "VectorValue", Value: "[1,2,3]", OldValue: "0"}, got[0])
	assert.Equal(t, WriteRecord{
		Seq:      2,
		Path:     "VectorValue",
		Indexes:  []int{1},
		Value:    "7",
		OldValue: "2",
		Sender:   3,
		Depth:    1,
	}, got[1])
}

func TestAppend_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	w := createTestWrite(5, "X", ir.String("a"))

	require.NoError(t, s.Append(ctx, w))
	require.NoError(t, s.Append(ctx, w))

	n, err := s.CountWrites(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAppend_RejectsUnencodableValue(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Append(ctx, createTestWrite(1, "F", ir.Float(math.NaN())))
	assert.Error(t, err)

	n, err := s.CountWrites(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReadWrites_Filter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	writes := []model.Notification{
		createTestWrite(1, "VectorValue", ir.Ints(1)),
		createTestWrite(2, "Main/Grid/Row0/Cell0", ir.Int(1)),
		createTestWrite(3, "Main/Grid/Row1/Cell0", ir.Int(2)),
		createTestWrite(4, "VectorValue", ir.Ints(1, 2)),
		createTestWrite(5, "Main/GridSlot", ir.NodeRef(4)),
	}
	for _, w := range writes {
		require.NoError(t, s.Append(ctx, w))
	}

	exact, err := s.ReadWrites(ctx, WriteFilter{Path: "VectorValue"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, seqs(exact))

	prefix, err := s.ReadWrites(ctx, WriteFilter{Path: "Main/Grid/"})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, seqs(prefix))

	after, err := s.ReadWrites(ctx, WriteFilter{AfterSeq: 3, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, seqs(after))

	none, err := s.ReadWrites(ctx, WriteFilter{Path: "Missing"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestReadWrites_NonASCIIPrefix(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, w := range []model.Notification{
		createTestWrite(1, "Größe/Grid/Row0/Cell0", ir.Int(1)),
		createTestWrite(2, "Main/Grid/Row0/Cell0", ir.Int(2)),
		createTestWrite(3, "Größe", ir.Ints(1)),
		createTestWrite(4, "Größen/Grid/Row0/Cell0", ir.Int(3)),
	} {
		require.NoError(t, s.Append(ctx, w))
	}

	below, err := s.ReadWrites(ctx, WriteFilter{Path: "Größe/"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, seqs(below))

	exact, err := s.ReadWrites(ctx, WriteFilter{Path: "Größe"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, seqs(exact))
}

func TestLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	last, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)

	require.NoError(t, s.Append(ctx, createTestWrite(9, "X", ir.Bool(true))))
	require.NoError(t, s.Append(ctx, createTestWrite(4, "X", ir.Bool(false))))

	last, err = s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), last)
}

func TestStore_AsSpaceJournal(t *testing.T) {
	s := createTestStore(t)
	space := model.NewSpace(model.WithJournal(s))
	defer space.Close()

	v, err := space.NewVariable("VectorValue", ir.KindInt, ir.Ints(1, 2))
	require.NoError(t, err)
	require.NoError(t, space.Root().Add(v))

	ctx := context.Background()
	require.NoError(t, v.Set(ctx, ir.Ints(3, 4)))
	require.NoError(t, v.SetElement(model.WithSender(ctx, 2), 0, ir.Int(5)))

	got, err := s.ReadWrites(ctx, WriteFilter{Path: "VectorValue"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "[3,4]", got[0].Value)
	assert.Equal(t, "[1,2]", got[0].OldValue)
	assert.Equal(t, []int{0}, got[1].Indexes)
	assert.Equal(t, uint64(2), got[1].Sender)
}

func seqs(recs []WriteRecord) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = r.Seq
	}
	return out
}
