package model

import (
	"context"
	"sync/atomic"

	"github.com/roach88/vecgrid/internal/ir"
)

// Notification describes one committed write.
//
// For a whole-value replace Indexes is empty and New/Old are the full
// values. For an element patch Indexes holds the element index and New/Old
// are the element values.
type Notification struct {
	Variable *Variable
	Path     string
	New      ir.Value
	Old      ir.Value
	Indexes  []int
	Sender   ir.SenderID
	Seq      int64
	Depth    int
}

// IsPatch reports whether the notification is an element-level patch.
func (n Notification) IsPatch() bool {
	return len(n.Indexes) > 0
}

// Callback handles a notification. The context carries the notification's
// cascade depth; writes made with it are stamped one level deeper.
type Callback func(ctx context.Context, n Notification)

// Registration is a live observer of one variable inside one domain.
type Registration struct {
	id       uint64
	variable *Variable
	domain   *Domain
	fn       Callback
	closed   atomic.Bool
}

// Variable returns the observed variable.
func (r *Registration) Variable() *Variable { return r.variable }

// Domain returns the domain deliveries run in.
func (r *Registration) Domain() *Domain { return r.domain }

// Active reports whether the registration still receives notifications.
func (r *Registration) Active() bool { return !r.closed.Load() }

// Close unregisters the observer. Deliveries already queued for it are
// dropped. Closing twice returns ErrRegistrationClosed.
func (r *Registration) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrRegistrationClosed
	}
	r.variable.removeRegistration(r)
	r.variable.space.registrations.Add(-1)
	return nil
}

// delivery is one queued notification for one registration.
type delivery struct {
	reg *Registration
	n   Notification
}
