package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/vecgrid/internal/ir"
	"github.com/roach88/vecgrid/internal/model"
)

// Engine keeps a rank-1 array variable and its shadow grid consistent in
// both directions.
//
// Every write the engine makes carries its own sender id, and every
// notification carrying that id is dropped, so an edit crosses between
// array and grid exactly once.
//
// Thread-safety model:
//   - Start, Stop, Resync, Snapshot, Rows: safe from any goroutine
//   - notification callbacks run on the engine's affinity domain
//   - Stop and Resync must not be called from one of this engine's own
//     callbacks
type Engine struct {
	space   *model.Space
	logger  *slog.Logger
	metrics *Metrics
	tokens  TokenGenerator

	// mu serializes callbacks with Start, Stop and Resync.
	mu       sync.Mutex
	running  bool
	session  string
	log      *slog.Logger
	array    *model.Variable
	slot     *model.Variable
	domain   *model.Domain
	sender   ir.SenderID
	arrayReg *model.Registration
	grid     *Grid
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records engine activity in m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithSessionTokens sets the generator for per-start session tokens.
// Default: UUIDv7Generator.
func WithSessionTokens(g TokenGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.tokens = g
		}
	}
}

// New creates a stopped engine over space.
func New(space *model.Space, opts ...Option) *Engine {
	e := &Engine{
		space:  space,
		logger: slog.Default(),
		tokens: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.logger
	return e
}

// Start binds the engine to the array at arrayPath and publishes a new
// grid into the node reference variable at slotPath. The grid node is
// created under owner (the space root when owner is nil).
//
// Every precondition failure is a *ConfigurationError and leaves nothing
// registered.
func (e *Engine) Start(ctx context.Context, owner *model.Object, arrayPath, slotPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return configError(ErrCodeAlreadyStarted, arrayPath, "engine is already running (session=%s)", e.session)
	}
	if owner == nil {
		owner = e.space.Root()
	}

	array, elem, err := e.resolveArray(arrayPath)
	if err != nil {
		return err
	}
	slot, err := e.resolveSlot(slotPath)
	if err != nil {
		return err
	}

	domain := e.space.AssignAffinity()
	sender := e.space.AssignSender()
	session := e.tokens.Generate()
	log := e.logger.With(
		"session", session,
		"affinity", uint32(domain.ID()),
		"sender", uint64(sender),
		"array", arrayPath,
	)

	e.array = array
	e.slot = slot
	e.domain = domain
	e.sender = sender
	e.session = session
	e.log = log

	if err := e.build(ctx, owner, elem); err != nil {
		e.abortStart()
		return err
	}

	e.running = true
	log.Info("engine started", "rows", e.grid.Len(), "slot", slotPath)
	return nil
}

func (e *Engine) resolveArray(path string) (*model.Variable, ir.Kind, error) {
	array, err := e.space.ResolveVariable(path)
	if err != nil {
		return nil, ir.KindInvalid, configError(ErrCodeMissingVariable, path, "array variable not found: %v", err)
	}
	arr, ok := array.Value().(ir.Array)
	if !ok {
		return nil, ir.KindInvalid, configError(ErrCodeNotAnArray, path, "variable holds a %s scalar", array.Kind())
	}
	if arr.Rank() != 1 {
		return nil, ir.KindInvalid, configError(ErrCodeUnsupportedRank, path, "array has rank %d, want 1", arr.Rank())
	}
	if _, ok := ir.CellKind(arr.Elem); !ok {
		return nil, ir.KindInvalid, configError(ErrCodeUnsupportedType, path, "element kind %s has no grid cell type", arr.Elem)
	}
	return array, arr.Elem, nil
}

func (e *Engine) resolveSlot(path string) (*model.Variable, error) {
	slot, err := e.space.ResolveVariable(path)
	if err != nil {
		return nil, configError(ErrCodeMissingGridSlot, path, "grid slot not found: %v", err)
	}
	if slot.Kind() != ir.KindNodeRef || ir.IsArray(slot.Value()) {
		return nil, configError(ErrCodeInvalidGridSlot, path, "grid slot must be a noderef scalar, is %s", slot.Kind())
	}
	return slot, nil
}

// build creates the grid and every registration with dispatch suspended,
// then publishes the grid.
func (e *Engine) build(ctx context.Context, owner *model.Object, elem ir.Kind) error {
	resume := e.domain.Suspend()
	defer resume()

	// Observe first: a write racing with the build queues behind it and is
	// replayed once dispatch resumes.
	reg, err := e.array.Observe(e.domain, e.arrayCallback(e.domain))
	if err != nil {
		return fmt.Errorf("observe array: %w", err)
	}
	e.arrayReg = reg

	grid, err := newGrid(e.space, elem, e.domain, e.cellCallback, e.metrics)
	if err != nil {
		var ce *ConfigurationError
		if errors.As(err, &ce) {
			ce.Path = e.array.Path()
		}
		return err
	}
	e.grid = grid

	arr, ok := e.array.Value().(ir.Array)
	if !ok || arr.Rank() != 1 || arr.Elem != elem {
		return configError(ErrCodeNotAnArray, e.array.Path(), "array changed shape during start")
	}
	if _, _, err := grid.resize(arr); err != nil {
		return err
	}
	if err := owner.Add(grid.Object()); err != nil {
		return fmt.Errorf("attach grid: %w", err)
	}
	if err := e.slot.Set(e.senderContext(ctx), ir.NodeRef(grid.ID())); err != nil {
		return fmt.Errorf("publish grid: %w", err)
	}
	return nil
}

// abortStart undoes a failed Start. Caller holds e.mu.
func (e *Engine) abortStart() {
	if e.arrayReg != nil {
		_ = e.arrayReg.Close()
	}
	if e.grid != nil {
		if err := e.grid.destroy(); err != nil {
			e.log.Warn("grid teardown after failed start", "error", err)
		}
	}
	e.domain.Terminate()
	e.reset()
}

func (e *Engine) reset() {
	e.running = false
	e.array = nil
	e.slot = nil
	e.domain = nil
	e.sender = ir.External
	e.arrayReg = nil
	e.grid = nil
	e.session = ""
	e.log = e.logger
}

// Stop releases every registration, clears the grid slot, deletes the grid
// and retires the engine's affinity and sender. Every step is attempted even
// if an earlier one fails; the failures are joined. Stopping a stopped
// engine is a no-op.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil
	}

	resume := e.domain.Suspend()
	defer resume()

	var errs []error
	if err := e.arrayReg.Close(); err != nil && !errors.Is(err, model.ErrRegistrationClosed) {
		errs = append(errs, fmt.Errorf("release array: %w", err))
	}
	rows := e.grid.Len()
	if err := e.grid.destroy(); err != nil {
		errs = append(errs, err)
	}
	if !e.slot.Deleted() {
		if err := e.slot.Set(e.senderContext(ctx), ir.NodeRef(0)); err != nil {
			errs = append(errs, fmt.Errorf("clear grid slot: %w", err))
		}
	}
	e.domain.Terminate()

	err := errors.Join(errs...)
	if err != nil {
		e.log.Warn("engine stopped with errors", "rows", rows, "error", err)
	} else {
		e.log.Info("engine stopped", "rows", rows)
	}
	e.reset()
	return err
}

// Running reports whether the engine is started.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Session returns the current session token, or "" when stopped.
func (e *Engine) Session() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Sender returns the engine's sender id, or ir.External when stopped.
func (e *Engine) Sender() ir.SenderID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sender
}

// Domain returns the engine's affinity domain, or nil when stopped.
func (e *Engine) Domain() *model.Domain {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.domain
}

// Grid returns the live grid, or nil when stopped. The grid must only be
// read while the engine is settled.
func (e *Engine) Grid() *Grid {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid
}

// Rows returns the current row count.
func (e *Engine) Rows() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grid == nil {
		return 0
	}
	return e.grid.Len()
}

// Snapshot returns the cell values in row order.
func (e *Engine) Snapshot() []ir.Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grid == nil {
		return nil
	}
	return e.grid.Values()
}

// Resync re-reads the array and applies it as a whole-value replace.
// It is a no-op on a stopped engine.
func (e *Engine) Resync(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil
	}
	return e.replace(ctx, e.array.Value())
}

func (e *Engine) senderContext(ctx context.Context) context.Context {
	return model.WithSender(ctx, e.sender)
}

// arrayCallback binds array notifications to the session running on d.
// A delivery from an earlier session can still be blocked on e.mu while
// Stop and a new Start run; it must not touch the new grid.
func (e *Engine) arrayCallback(d *model.Domain) model.Callback {
	return func(ctx context.Context, n model.Notification) {
		e.mu.Lock()
		defer e.mu.Unlock()

		if !e.running || e.domain != d {
			e.log.Debug("array notification from a retired session dropped", "seq", n.Seq)
			return
		}
		e.arrayChanged(ctx, n.New, n.Indexes, n.Sender)
	}
}

// OnArrayChanged applies an array notification to the grid. A whole-value
// replace resizes the grid and pushes every element; a patch pushes one.
func (e *Engine) OnArrayChanged(ctx context.Context, newValue, oldValue ir.Value, indexes []int, sender ir.SenderID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}
	e.arrayChanged(ctx, newValue, indexes, sender)
}

// arrayChanged is OnArrayChanged for a running engine. Caller holds e.mu.
func (e *Engine) arrayChanged(ctx context.Context, newValue ir.Value, indexes []int, sender ir.SenderID) {
	if sender == e.sender {
		e.metrics.echoSuppressed()
		e.log.Debug("array echo suppressed", "indexes", indexes)
		return
	}

	if len(indexes) > 0 {
		e.patch(ctx, indexes, newValue)
		return
	}
	if err := e.replace(ctx, newValue); err != nil {
		e.log.Error("array replace failed", "error", err)
	}
}

// patch pushes one element into its cell. Caller holds e.mu.
func (e *Engine) patch(ctx context.Context, indexes []int, value ir.Value) {
	if len(indexes) != 1 {
		e.metrics.staleEvent()
		e.log.Warn("array patch skipped", "indexes", indexes, "error", fmt.Errorf("patch rank %d on rank-1 array", len(indexes)))
		return
	}

	row, err := e.grid.Row(indexes[0])
	if err != nil {
		e.metrics.staleEvent()
		e.log.Warn("array patch skipped", "index", indexes[0], "error", err)
		return
	}
	if err := row.cell.Set(e.senderContext(ctx), value); err != nil {
		e.log.Error("cell write failed", "row", row.index, "error", err)
		return
	}
	e.metrics.cellWrite()
}

// replace resizes the grid to the new value, then pushes every element.
// Caller holds e.mu.
func (e *Engine) replace(ctx context.Context, value ir.Value) error {
	arr, ok := value.(ir.Array)
	if !ok || arr.Rank() != 1 {
		e.metrics.staleEvent()
		e.log.Warn("array replace skipped: value is not a rank-1 array", "kind", kindName(value))
		return nil
	}

	resume := e.domain.Suspend()
	added, removed, err := e.grid.resize(arr)
	resume()
	if err != nil {
		return fmt.Errorf("resize grid to %d rows: %w", arr.Len(), err)
	}
	if added > 0 || removed > 0 {
		e.log.Debug("grid resized", "rows", e.grid.Len(), "added", added, "removed", removed)
	}

	return e.grid.push(e.senderContext(ctx), arr)
}

func (e *Engine) cellCallback(row *Row) model.Callback {
	return func(ctx context.Context, n model.Notification) {
		e.OnCellChanged(ctx, row, n.New, n.Sender)
	}
}

// OnCellChanged writes a cell edit back into the array element at the
// row's index.
func (e *Engine) OnCellChanged(ctx context.Context, row *Row, newValue ir.Value, sender ir.SenderID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}
	if sender == e.sender {
		e.metrics.echoSuppressed()
		return
	}
	if !e.grid.owns(row) {
		e.metrics.staleEvent()
		e.log.Warn("cell edit skipped", "row", row.index,
			"error", &ShapeError{Index: row.index, Rows: e.grid.Len()})
		return
	}

	err := e.array.SetElement(e.senderContext(ctx), row.index, newValue)
	switch {
	case err == nil:
		e.metrics.arrayWrite()
	case errors.Is(err, model.ErrIndexOutOfRange):
		e.metrics.staleEvent()
		e.log.Warn("cell edit skipped", "row", row.index, "error", err)
	default:
		e.log.Error("array write failed", "row", row.index, "error", err)
	}
}

func kindName(v ir.Value) string {
	if v == nil {
		return "nil"
	}
	return v.Kind().String()
}
