package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vecgrid/internal/adapters/redis"
	"github.com/roach88/vecgrid/internal/ir"
	"github.com/roach88/vecgrid/internal/model"
)

func newJournal(t *testing.T, opts ...redis.Option) (*miniredis.Miniredis, *redis.StreamJournal) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	j := redis.NewFromClient(client, opts...)
	t.Cleanup(func() { _ = j.Close() })
	return mr, j
}

func TestStreamJournal_AppendAndRead(t *testing.T) {
	_, j := newJournal(t)
	ctx := context.Background()
	require.NoError(t, j.Ping(ctx))

	require.NoError(t, j.Append(ctx, model.Notification{
		Path: "VectorValue", New: ir.Ints(1, 2), Seq: 1,
	}))
	require.NoError(t, j.Append(ctx, model.Notification{
		Path: "VectorValue", New: ir.Int(7), Indexes: []int{1}, Sender: 4, Seq: 2, Depth: 1,
	}))

	entries, err := j.Read(ctx, "0", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, "[1,2]", entries[0].Value)
	assert.Equal(t, "[]", entries[0].Indexes)

	assert.Equal(t, "[1]", entries[1].Indexes)
	assert.Equal(t, "7", entries[1].Value)
	assert.Equal(t, uint64(4), entries[1].Sender)
	assert.Equal(t, 1, entries[1].Depth)

	rest, err := j.Read(ctx, entries[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, int64(2), rest[0].Seq)
}

func TestStreamJournal_CustomStream(t *testing.T) {
	mr, j := newJournal(t, redis.WithStream("grid:test"), redis.WithMaxLen(0))
	ctx := context.Background()

	require.NoError(t, j.Append(ctx, model.Notification{Path: "X", New: ir.Bool(true), Seq: 1}))

	assert.Equal(t, "grid:test", j.Stream())
	assert.True(t, mr.Exists("grid:test"))
	assert.False(t, mr.Exists(redis.DefaultStream))
}

func TestStreamJournal_AsSpaceJournal(t *testing.T) {
	_, j := newJournal(t)
	space := model.NewSpace(model.WithJournal(j))
	defer space.Close()

	v, err := space.NewVariable("Counter", ir.KindInt, nil)
	require.NoError(t, err)
	require.NoError(t, space.Root().Add(v))
	require.NoError(t, v.Set(context.Background(), ir.Int(3)))

	entries, err := j.Read(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Counter", entries[0].Path)
	assert.Equal(t, "3", entries[0].Value)
}

func TestStreamJournal_EmptyStream(t *testing.T) {
	_, j := newJournal(t)

	entries, err := j.Read(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStreamJournal_ServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	j := redis.New(mr.Addr())
	defer j.Close()
	mr.Close()

	err = j.Append(context.Background(), model.Notification{Path: "X", New: ir.Int(1), Seq: 1})
	assert.Error(t, err)
}
