package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vecgrid/internal/ir"
)

func TestVariable_SetNotifiesWithSender(t *testing.T) {
	s := newTestSpace(t)
	v := mustVariable(t, s, s.Root(), "VectorValue", ir.KindInt, ir.Ints(1, 2))
	d := s.AssignAffinity()

	rec := &recorder{}
	_, err := v.Observe(d, rec.callback)
	require.NoError(t, err)

	sender := s.AssignSender()
	ctx := WithSender(context.Background(), sender)
	require.NoError(t, v.Set(ctx, ir.Ints(1, 2, 3)))
	require.NoError(t, v.Set(context.Background(), ir.Ints(4)))
	settle(t, s)

	seen := rec.all()
	require.Len(t, seen, 2)
	assert.Equal(t, sender, seen[0].Sender)
	assert.True(t, ir.Equal(ir.Ints(1, 2, 3), seen[0].New))
	assert.True(t, ir.Equal(ir.Ints(1, 2), seen[0].Old))
	assert.False(t, seen[0].IsPatch())
	assert.Equal(t, ir.External, seen[1].Sender)
	assert.Less(t, seen[0].Seq, seen[1].Seq)
	assert.Equal(t, "VectorValue", seen[1].Path)
}

func TestVariable_SetDoesNotAliasCallerArray(t *testing.T) {
	s := newTestSpace(t)
	v := mustVariable(t, s, s.Root(), "V", ir.KindInt, nil)

	arr := ir.Ints(1, 2)
	require.NoError(t, v.Set(context.Background(), arr))
	arr.Items[0] = ir.Int(99)

	assert.True(t, ir.Equal(ir.Ints(1, 2), v.Value()))
}

func TestVariable_SetElementIsPatch(t *testing.T) {
	s := newTestSpace(t)
	v := mustVariable(t, s, s.Root(), "V", ir.KindInt, ir.Ints(10, 20, 30))
	d := s.AssignAffinity()

	rec := &recorder{}
	_, err := v.Observe(d, rec.callback)
	require.NoError(t, err)

	require.NoError(t, v.SetElement(context.Background(), 1, ir.Int(21)))
	settle(t, s)

	seen := rec.all()
	require.Len(t, seen, 1)
	assert.True(t, seen[0].IsPatch())
	assert.Equal(t, []int{1}, seen[0].Indexes)
	assert.Equal(t, ir.Int(21), seen[0].New)
	assert.Equal(t, ir.Int(20), seen[0].Old)
	assert.True(t, ir.Equal(ir.Ints(10, 21, 30), v.Value()))
}

func TestVariable_SetElementRejects(t *testing.T) {
	s := newTestSpace(t)
	ctx := context.Background()
	v := mustVariable(t, s, s.Root(), "V", ir.KindInt, ir.Ints(1))
	scalar := mustVariable(t, s, s.Root(), "S", ir.KindInt, ir.Int(1))

	assert.ErrorIs(t, v.SetElement(ctx, 1, ir.Int(0)), ErrIndexOutOfRange)
	assert.ErrorIs(t, v.SetElement(ctx, -1, ir.Int(0)), ErrIndexOutOfRange)
	assert.ErrorIs(t, v.SetElement(ctx, 0, ir.String("x")), ErrTypeMismatch)
	assert.ErrorIs(t, v.SetElement(ctx, 0, ir.Ints(1)), ErrTypeMismatch)
	assert.ErrorIs(t, scalar.SetElement(ctx, 0, ir.Int(2)), ErrTypeMismatch)
}

func TestVariable_SetRejectsKindMismatch(t *testing.T) {
	s := newTestSpace(t)
	v := mustVariable(t, s, s.Root(), "V", ir.KindInt, nil)

	err := v.Set(context.Background(), ir.NewArray(ir.KindString, ir.String("a")))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	bad := ir.Array{Elem: ir.KindInt, Dims: []int{3}, Items: []ir.Value{ir.Int(1)}}
	assert.ErrorIs(t, v.Set(context.Background(), bad), ErrTypeMismatch)
}

func TestVariable_CallbackDepthAndCascadeLimit(t *testing.T) {
	s := newTestSpace(t, WithMaxCascade(3))
	v := mustVariable(t, s, s.Root(), "Counter", ir.KindInt, ir.Int(0))
	d := s.AssignAffinity()

	var depths []int
	var lastErr error
	_, err := v.Observe(d, func(ctx context.Context, n Notification) {
		depths = append(depths, DepthFrom(ctx))
		next := n.New.(ir.Int) + 1
		if err := v.Set(ctx, next); err != nil {
			lastErr = err
		}
	})
	require.NoError(t, err)

	require.NoError(t, v.Set(context.Background(), ir.Int(1)))
	settle(t, s)

	// Writes at depth 0..3 are accepted; the one at depth 4 is refused.
	assert.Equal(t, []int{1, 2, 3, 4}, depths)
	require.Error(t, lastErr)
	assert.True(t, IsCascadeLimitError(lastErr))

	var ce *CascadeLimitError
	require.True(t, errors.As(lastErr, &ce))
	assert.Equal(t, 4, ce.Depth)
	assert.Equal(t, 3, ce.Limit)
	assert.Equal(t, ir.Int(4), v.Value())
}

func TestVariable_JournalSeesEveryWrite(t *testing.T) {
	journal := NewMemoryJournal()
	s := newTestSpace(t, WithJournal(journal))
	v := mustVariable(t, s, s.Root(), "V", ir.KindInt, ir.Ints(0, 0))

	require.NoError(t, v.Set(context.Background(), ir.Ints(1, 1)))
	require.NoError(t, v.SetElement(context.Background(), 0, ir.Int(5)))

	entries := journal.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, int64(2), entries[1].Seq)
	assert.Equal(t, []int{0}, entries[1].Indexes)
}

func TestVariable_JournalOrderUnderConcurrentWrites(t *testing.T) {
	journal := NewMemoryJournal()
	s := newTestSpace(t, WithJournal(journal))
	v := mustVariable(t, s, s.Root(), "V", ir.KindInt, ir.Int(0))

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				assert.NoError(t, v.Set(context.Background(), ir.Int(int64(w*perWriter+i))))
			}
		}()
	}
	wg.Wait()

	entries := journal.Entries()
	require.Len(t, entries, writers*perWriter)
	for i := 1; i < len(entries); i++ {
		require.Less(t, entries[i-1].Seq, entries[i].Seq, "entry %d out of order", i)
	}
}

type failingJournal struct{}

func (failingJournal) Append(context.Context, Notification) error {
	return errors.New("disk full")
}

func TestVariable_JournalFailureDoesNotFailWrite(t *testing.T) {
	mem := NewMemoryJournal()
	s := newTestSpace(t, WithJournal(MultiJournal{failingJournal{}, mem}))
	v := mustVariable(t, s, s.Root(), "V", ir.KindInt, nil)

	require.NoError(t, v.Set(context.Background(), ir.Int(7)))
	assert.Equal(t, 1, mem.Len())
	assert.Equal(t, ir.Int(7), v.Value())
}

func TestVariable_ObserveClosedDomain(t *testing.T) {
	s := newTestSpace(t)
	v := mustVariable(t, s, s.Root(), "V", ir.KindInt, nil)
	d := s.AssignAffinity()
	d.Terminate()
	<-d.Done()

	_, err := v.Observe(d, func(context.Context, Notification) {})
	assert.ErrorIs(t, err, ErrDomainClosed)
}

func TestRegistration_Close(t *testing.T) {
	s := newTestSpace(t)
	v := mustVariable(t, s, s.Root(), "V", ir.KindInt, nil)
	d := s.AssignAffinity()

	rec := &recorder{}
	reg, err := v.Observe(d, rec.callback)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Observers())

	require.NoError(t, reg.Close())
	assert.False(t, reg.Active())
	assert.Equal(t, 0, v.Observers())
	assert.Equal(t, 0, s.Registrations())
	assert.ErrorIs(t, reg.Close(), ErrRegistrationClosed)

	require.NoError(t, v.Set(context.Background(), ir.Int(1)))
	settle(t, s)
	assert.Empty(t, rec.all())
}

func TestVariable_ObserveRacingDelete(t *testing.T) {
	s := newTestSpace(t)
	d := s.AssignAffinity()
	noop := func(context.Context, Notification) {}

	for i := range 200 {
		v := mustVariable(t, s, s.Root(), fmt.Sprintf("V%d", i), ir.KindInt, nil)

		var (
			wg  sync.WaitGroup
			reg *Registration
			err error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg, err = v.Observe(d, noop)
		}()
		go func() {
			defer wg.Done()
			v.Delete()
		}()
		wg.Wait()

		if err != nil {
			require.ErrorIs(t, err, ErrDeleted)
		} else {
			assert.False(t, reg.Active(), "registration on a deleted variable stays open")
		}
		require.Equal(t, 0, v.Observers())
	}
	assert.Equal(t, 0, s.Registrations())
}
