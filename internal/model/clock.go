package model

import "sync/atomic"

// Clock stamps every committed write with a sequence number.
// Implemented by LogicalClock (production) and testutil.DeterministicClock.
type Clock interface {
	Next() int64
	Current() int64
}

// LogicalClock is a monotonic logical clock for write ordering.
//
// Notification order within one variable always follows seq order. Seq
// numbers are never derived from wall-clock time.
//
// Thread-safety: LogicalClock is safe for concurrent use.
type LogicalClock struct {
	seq atomic.Int64
}

// NewLogicalClock creates a clock whose first Next() returns 1.
func NewLogicalClock() *LogicalClock {
	return &LogicalClock{}
}

// NewLogicalClockAt creates a clock resuming after start.
// Used when appending to an existing journal.
func NewLogicalClockAt(start int64) *LogicalClock {
	c := &LogicalClock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *LogicalClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *LogicalClock) Current() int64 {
	return c.seq.Load()
}
