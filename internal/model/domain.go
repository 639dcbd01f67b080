package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/vecgrid/internal/ir"
)

// Domain is a serialization domain (affinity domain).
//
// All notifications delivered to registrations of one domain run on the
// domain's own goroutine, one at a time, in the order they were enqueued.
// Domains are independent of each other.
//
// Thread-safety model:
//   - enqueue, Suspend, Terminate, WaitIdle: safe from any goroutine
//   - WaitIdle must not be called from one of the domain's own callbacks
//     (it would wait for itself)
type Domain struct {
	id     ir.AffinityID
	space  *Space
	logger *slog.Logger

	mu        sync.Mutex
	queue     []delivery
	suspended int
	pending   int           // queued + in flight
	idle      chan struct{} // closed while pending == 0
	closed    bool

	signal chan struct{} // buffered, size 1; coalesces wakeups
	cancel context.CancelFunc
	done   chan struct{}
}

func newDomain(ctx context.Context, s *Space, id ir.AffinityID) *Domain {
	idle := make(chan struct{})
	close(idle)

	dctx, cancel := context.WithCancel(ctx)
	d := &Domain{
		id:     id,
		space:  s,
		logger: s.logger.With("affinity", uint32(id)),
		queue:  make([]delivery, 0, 64),
		idle:   idle,
		signal: make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go d.run(dctx)
	return d
}

// ID returns the affinity id.
func (d *Domain) ID() ir.AffinityID { return d.id }

// enqueue appends a delivery. Returns false if the domain is terminated.
func (d *Domain) enqueue(del delivery) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}

	d.queue = append(d.queue, del)
	if d.pending == 0 {
		d.idle = make(chan struct{})
	}
	d.pending++

	if d.suspended == 0 {
		d.wake()
	}
	return true
}

// wake signals the worker without blocking. Caller holds d.mu.
func (d *Domain) wake() {
	select {
	case d.signal <- struct{}{}:
	default:
	}
}

type nextState int

const (
	nextReady nextState = iota
	nextWait
	nextClosed
)

// next pops the front delivery unless the domain is suspended or empty.
func (d *Domain) next() (delivery, nextState) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return delivery{}, nextClosed
	}
	if d.suspended > 0 || len(d.queue) == 0 {
		return delivery{}, nextWait
	}

	del := d.queue[0]
	// Clear the slot so the notification's values can be collected.
	d.queue[0] = delivery{}
	if len(d.queue) == 1 {
		d.queue = d.queue[:0]
	} else {
		d.queue = d.queue[1:]
	}
	return del, nextReady
}

// finish marks one in-flight delivery as done.
func (d *Domain) finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending--
	if d.pending == 0 {
		close(d.idle)
	}
}

func (d *Domain) run(ctx context.Context) {
	defer close(d.done)

	for {
		del, state := d.next()
		switch state {
		case nextReady:
			d.deliver(ctx, del)
			d.finish()
			continue
		case nextClosed:
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-d.signal:
		}
	}
}

// deliver runs one callback. A panicking callback is logged and contained
// so one bad event cannot stop the domain.
func (d *Domain) deliver(ctx context.Context, del delivery) {
	if !del.reg.Active() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notification callback panicked",
				"path", del.n.Path,
				"seq", del.n.Seq,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	del.reg.fn(withDepth(ctx, del.n.Depth+1), del.n)
}

// Suspend stops delivery until the returned resume func is called.
// Suspensions nest; the resume func is safe to call more than once and only
// the first call counts, so it can be deferred on every exit path.
func (d *Domain) Suspend() (resume func()) {
	d.mu.Lock()
	d.suspended++
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.suspended--
			if d.suspended == 0 && len(d.queue) > 0 {
				d.wake()
			}
		})
	}
}

// Suspended reports whether delivery is currently suspended.
func (d *Domain) Suspended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suspended > 0
}

// Pending returns the number of queued and in-flight deliveries.
func (d *Domain) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Terminate drops queued deliveries and stops the domain's goroutine.
// A delivery already running finishes first. Terminate does not wait; use
// Done for that. Calling Terminate twice is a no-op.
func (d *Domain) Terminate() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	dropped := len(d.queue)
	for i := range d.queue {
		d.queue[i] = delivery{}
	}
	d.queue = nil
	d.pending -= dropped
	if dropped > 0 && d.pending == 0 {
		close(d.idle)
	}
	d.mu.Unlock()

	d.cancel()
	d.space.forgetDomain(d)

	if dropped > 0 {
		d.logger.Debug("domain terminated with queued notifications", "dropped", dropped)
	}
}

// Terminated reports whether Terminate has been called.
func (d *Domain) Terminated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Done is closed once the domain's goroutine has exited.
func (d *Domain) Done() <-chan struct{} {
	return d.done
}

// WaitIdle blocks until no delivery is queued or running, or ctx ends.
// A suspended domain with queued deliveries stays busy until resumed.
func (d *Domain) WaitIdle(ctx context.Context) error {
	for {
		d.mu.Lock()
		if d.pending == 0 {
			d.mu.Unlock()
			return nil
		}
		idle := d.idle
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for domain %d: %w", d.id, ctx.Err())
		case <-idle:
		}
	}
}
