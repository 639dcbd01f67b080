package testutil

import (
	"sync/atomic"

	"github.com/roach88/vecgrid/internal/model"
)

var _ model.Clock = (*DeterministicClock)(nil)

// DeterministicClock is a model.Clock that can be rewound. Running one
// scenario against a fresh space after Reset yields the same seq values,
// which model.LogicalClock cannot do.
type DeterministicClock struct {
	seq atomic.Int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

func (c *DeterministicClock) Next() int64 { return c.seq.Add(1) }

// Current is the last seq handed out, 0 before the first Next.
func (c *DeterministicClock) Current() int64 { return c.seq.Load() }

// Reset rewinds to zero.
func (c *DeterministicClock) Reset() { c.seq.Store(0) }
