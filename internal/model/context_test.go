package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/vecgrid/internal/ir"
)

func TestSenderFrom(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ir.External, SenderFrom(ctx))

	inner := WithSender(ctx, 7)
	assert.Equal(t, ir.SenderID(7), SenderFrom(inner))
	assert.Equal(t, ir.External, SenderFrom(ctx), "parent context keeps its sender")
}

func TestDepthFrom(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, 0, DepthFrom(ctx))
	assert.Equal(t, 2, DepthFrom(withDepth(ctx, 2)))
}

func TestLogicalClock(t *testing.T) {
	c := NewLogicalClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())

	resumed := NewLogicalClockAt(40)
	assert.Equal(t, int64(41), resumed.Next())
}
