package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/vecgrid/internal/ir"
)

// Variable is a typed, observable value holder.
//
// The variable's kind is fixed at creation. It accepts scalars of that kind
// and arrays whose element kind matches.
type Variable struct {
	nodeBase
	kind ir.Kind

	// mu guards value and regs. Deliveries are enqueued while mu is held so
	// that every domain sees this variable's writes in commit order.
	mu    sync.Mutex
	value ir.Value
	regs  []*Registration
}

// Kind returns the variable's scalar kind.
func (v *Variable) Kind() ir.Kind { return v.kind }

// Value returns the current value.
func (v *Variable) Value() ir.Value {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// Observers returns the number of active registrations.
func (v *Variable) Observers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.regs)
}

// Observe registers fn to receive this variable's notifications inside
// domain d.
func (v *Variable) Observe(d *Domain, fn Callback) (*Registration, error) {
	if d == nil || fn == nil {
		return nil, fmt.Errorf("observe %s: domain and callback are required", v.name)
	}
	if v.Deleted() {
		return nil, fmt.Errorf("observe %s: %w", v.name, ErrDeleted)
	}
	if d.Terminated() {
		return nil, fmt.Errorf("observe %s: %w", v.name, ErrDomainClosed)
	}

	reg := &Registration{
		id:       v.space.nextRegID.Add(1),
		variable: v,
		domain:   d,
		fn:       fn,
	}

	// Recheck under mu: closeRegistrations runs after the deleted flag is
	// set and takes mu, so a registration appended here is either seen by
	// it or rejected.
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.Deleted() {
		return nil, fmt.Errorf("observe %s: %w", v.name, ErrDeleted)
	}
	v.regs = append(v.regs, reg)
	v.space.registrations.Add(1)

	return reg, nil
}

func (v *Variable) removeRegistration(r *Registration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, existing := range v.regs {
		if existing == r {
			v.regs = append(v.regs[:i], v.regs[i+1:]...)
			return
		}
	}
}

// closeRegistrations closes every registration; used on delete.
func (v *Variable) closeRegistrations() {
	v.mu.Lock()
	regs := v.regs
	v.regs = nil
	v.mu.Unlock()

	for _, r := range regs {
		if r.closed.CompareAndSwap(false, true) {
			v.space.registrations.Add(-1)
		}
	}
}

// Set replaces the whole value. The write is attributed to SenderFrom(ctx).
func (v *Variable) Set(ctx context.Context, value ir.Value) error {
	if err := v.checkKind(value); err != nil {
		return err
	}
	if arr, ok := value.(ir.Array); ok {
		value = arr.Clone()
	}
	return v.commit(ctx, nil, func(current ir.Value) (ir.Value, ir.Value, ir.Value, error) {
		return value, value, current, nil
	})
}

// SetElement replaces element index of a rank-1 array value. Observers
// receive an element patch: Indexes is [index], New and Old are elements.
func (v *Variable) SetElement(ctx context.Context, index int, value ir.Value) error {
	if value == nil || ir.IsArray(value) {
		return fmt.Errorf("set %s[%d]: element must be a scalar: %w", v.name, index, ErrTypeMismatch)
	}
	return v.commit(ctx, []int{index}, func(current ir.Value) (ir.Value, ir.Value, ir.Value, error) {
		arr, ok := current.(ir.Array)
		if !ok || arr.Rank() != 1 {
			return nil, nil, nil, fmt.Errorf("set %s[%d]: value is not a rank-1 array: %w", v.name, index, ErrTypeMismatch)
		}
		if index < 0 || index >= arr.Len() {
			return nil, nil, nil, fmt.Errorf("set %s[%d]: length %d: %w", v.name, index, arr.Len(), ErrIndexOutOfRange)
		}
		if value.Kind() != arr.Elem {
			return nil, nil, nil, fmt.Errorf("set %s[%d]: %s into %s array: %w", v.name, index, value.Kind(), arr.Elem, ErrTypeMismatch)
		}
		next, err := arr.With(index, value)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("set %s[%d]: %w", v.name, index, err)
		}
		return next, value, arr.Items[index], nil
	})
}

// commit applies a write, enqueues deliveries and appends the write to the
// journal, all under the variable lock.
//
// apply returns the variable's next value plus the new and old values to
// report in the notification.
func (v *Variable) commit(ctx context.Context, indexes []int, apply func(current ir.Value) (next, reportNew, reportOld ir.Value, err error)) error {
	if v.Deleted() {
		return fmt.Errorf("set %s: %w", v.name, ErrDeleted)
	}

	path := v.Path()
	depth := DepthFrom(ctx)
	if limit := v.space.maxCascade; limit > 0 && depth > limit {
		return &CascadeLimitError{Path: path, Depth: depth, Limit: limit}
	}

	v.mu.Lock()
	next, reportNew, reportOld, err := apply(v.value)
	if err != nil {
		v.mu.Unlock()
		return err
	}
	v.value = next

	n := Notification{
		Variable: v,
		Path:     path,
		New:      reportNew,
		Old:      reportOld,
		Indexes:  indexes,
		Sender:   SenderFrom(ctx),
		Seq:      v.space.clock.Next(),
		Depth:    depth,
	}
	for _, reg := range v.regs {
		if !reg.Active() {
			continue
		}
		if !reg.domain.enqueue(delivery{reg: reg, n: n}) {
			v.space.logger.Debug("notification dropped: domain terminated",
				"path", path,
				"affinity", uint32(reg.domain.id),
			)
		}
	}

	// Appending under mu keeps each variable's journal entries in seq
	// order for sinks that do not sort, such as the Redis stream.
	if j := v.space.journal; j != nil {
		if err := j.Append(ctx, n); err != nil {
			v.space.logger.Warn("journal append failed",
				"path", path,
				"seq", n.Seq,
				"error", err,
			)
		}
	}
	v.mu.Unlock()
	return nil
}

// checkKind validates a whole value against the variable's kind.
func (v *Variable) checkKind(value ir.Value) error {
	if value == nil {
		return fmt.Errorf("set %s: nil value: %w", v.name, ErrTypeMismatch)
	}
	if value.Kind() != v.kind {
		return fmt.Errorf("set %s: %s value into %s variable: %w", v.name, value.Kind(), v.kind, ErrTypeMismatch)
	}
	if arr, ok := value.(ir.Array); ok {
		if err := arr.Validate(); err != nil {
			return fmt.Errorf("set %s: %v: %w", v.name, err, ErrTypeMismatch)
		}
	}
	return nil
}
