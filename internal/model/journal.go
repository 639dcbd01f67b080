package model

import (
	"context"
	"errors"
	"sync"
)

// Journal receives every committed write, in commit order per variable.
// Append runs with the written variable locked, so it must not write to
// the space.
type Journal interface {
	Append(ctx context.Context, n Notification) error
}

// MultiJournal fans a write out to several journals. Every journal sees the
// write even if an earlier one fails; the failures are joined.
type MultiJournal []Journal

// Append implements Journal.
func (m MultiJournal) Append(ctx context.Context, n Notification) error {
	var errs []error
	for _, j := range m {
		if j == nil {
			continue
		}
		if err := j.Append(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemoryJournal keeps writes in memory. Used by the harness and tests.
//
// Thread-safety: safe for concurrent use.
type MemoryJournal struct {
	mu      sync.Mutex
	entries []Notification
}

// NewMemoryJournal creates an empty journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// Append implements Journal.
func (m *MemoryJournal) Append(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, n)
	return nil
}

// Entries returns a copy of the recorded writes.
func (m *MemoryJournal) Entries() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of recorded writes.
func (m *MemoryJournal) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Reset drops all recorded writes.
func (m *MemoryJournal) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
}
