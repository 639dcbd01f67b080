package model

import (
	"context"

	"github.com/roach88/vecgrid/internal/ir"
)

type ctxKey int

const (
	senderKey ctxKey = iota
	depthKey
)

// WithSender returns a context that attributes writes to sender.
//
// The override is scoped by construction: the parent context keeps its own
// sender, so there is nothing to restore when the write returns.
func WithSender(ctx context.Context, sender ir.SenderID) context.Context {
	return context.WithValue(ctx, senderKey, sender)
}

// SenderFrom returns the sender carried by ctx, or ir.External.
func SenderFrom(ctx context.Context) ir.SenderID {
	if ctx == nil {
		return ir.External
	}
	if id, ok := ctx.Value(senderKey).(ir.SenderID); ok {
		return id
	}
	return ir.External
}

// withDepth marks ctx as running inside a callback at the given depth.
func withDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthKey, depth)
}

// DepthFrom returns the cascade depth carried by ctx. Writes made with a
// context that never passed through a callback have depth 0.
func DepthFrom(ctx context.Context) int {
	if ctx == nil {
		return 0
	}
	if d, ok := ctx.Value(depthKey).(int); ok {
		return d
	}
	return 0
}
