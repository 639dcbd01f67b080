// Package scheduler runs callbacks periodically or once after a delay.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Func is the work a task runs. Errors are logged; they never stop a
// periodic task.
type Func func(ctx context.Context) error

var (
	// ErrStarted is returned when starting a task twice.
	ErrStarted = errors.New("task already started")

	// ErrInterval is returned when starting a periodic task whose interval
	// is not positive.
	ErrInterval = errors.New("periodic interval must be positive")
)

// Task is a cancellable background callback. Create one with Periodic or
// Delayed, then Start it.
//
// Thread-safety: all methods are safe for concurrent use.
type Task struct {
	name     string
	interval time.Duration
	repeat   bool
	fn       Func
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	runs    int
}

// Option configures a Task.
type Option func(*Task)

// WithLogger sets the logger for callback failures.
func WithLogger(l *slog.Logger) Option {
	return func(t *Task) {
		if l != nil {
			t.logger = l
		}
	}
}

// Periodic creates a task that calls fn every interval until cancelled.
// The first call happens one interval after Start.
func Periodic(name string, interval time.Duration, fn Func, opts ...Option) *Task {
	return newTask(name, interval, true, fn, opts)
}

// Delayed creates a task that calls fn once, delay after Start, unless it
// is cancelled first. A delay <= 0 fires right away.
func Delayed(name string, delay time.Duration, fn Func, opts ...Option) *Task {
	return newTask(name, delay, false, fn, opts)
}

func newTask(name string, d time.Duration, repeat bool, fn Func, opts []Option) *Task {
	t := &Task{
		name:     name,
		interval: d,
		repeat:   repeat,
		fn:       fn,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start launches the task. It stops when ctx is done or Cancel is called.
func (t *Task) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return ErrStarted
	}
	if t.repeat && t.interval <= 0 {
		return fmt.Errorf("start %s: %w (got %s)", t.name, ErrInterval, t.interval)
	}
	t.started = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go t.run(ctx)
	return nil
}

func (t *Task) run(ctx context.Context) {
	defer close(t.done)

	if !t.repeat {
		timer := time.NewTimer(t.interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			t.invoke(ctx)
		}
		return
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.invoke(ctx)
		}
	}
}

func (t *Task) invoke(ctx context.Context) {
	t.mu.Lock()
	t.runs++
	t.mu.Unlock()

	if err := t.fn(ctx); err != nil && ctx.Err() == nil {
		t.logger.Warn("scheduled task failed", "task", t.name, "error", err)
	}
}

// Cancel stops the task and waits for a running callback to return.
// Cancelling a task that was never started is a no-op.
func (t *Task) Cancel() {
	t.mu.Lock()
	cancel := t.cancel
	started := t.started
	t.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-t.done
}

// Done is closed when a started task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Runs returns how many times the callback has been invoked.
func (t *Task) Runs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}
