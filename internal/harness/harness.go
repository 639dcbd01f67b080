package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/vecgrid/internal/compiler"
	"github.com/roach88/vecgrid/internal/engine"
	"github.com/roach88/vecgrid/internal/ir"
	"github.com/roach88/vecgrid/internal/logging"
	"github.com/roach88/vecgrid/internal/model"
	"github.com/roach88/vecgrid/internal/store"
	"github.com/roach88/vecgrid/internal/testutil"
)

// SettleTimeout bounds how long a step may take to quiesce.
const SettleTimeout = 5 * time.Second

// Harness executes one scenario against a fresh address space.
// It runs with a deterministic clock and a fixed session token, so two runs
// of the same scenario journal identical traces.
type Harness struct {
	space   *model.Space
	store   *store.Store
	engine  *engine.Engine
	owner   *model.Object
	editor  ir.EditorSpec
	array   *model.Variable
	slot    *model.Variable
	senders map[ir.SenderID]bool
	logger  *slog.Logger
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger routes engine and space logs to l. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Run executes a scenario and returns its result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Load the CUE project and seed a new space with it
//  2. Start the scenario's editor
//  3. Apply each step with the external sender, then settle
//  4. Read the journaled trace and evaluate expectations and assertions
//
// An error is returned only when the scenario cannot be executed at all;
// failed checks are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	project, err := compiler.LoadProject(scenario.Project)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	editor, ok := project.Editor(scenario.Editor)
	if !ok {
		return nil, fmt.Errorf("editor %q is not declared in %s", scenario.Editor, scenario.Project)
	}

	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	space := model.NewSpace(
		model.WithClock(testutil.NewDeterministicClock()),
		model.WithJournal(st),
		model.WithLogger(cfg.logger),
	)
	defer space.Close()

	owners, err := compiler.Materialize(space, project)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize project: %w", err)
	}

	h := &Harness{
		space:   space,
		store:   st,
		owner:   owners[editor.Name],
		editor:  editor,
		senders: make(map[ir.SenderID]bool),
		logger:  cfg.logger,
		engine: engine.New(space,
			engine.WithLogger(cfg.logger),
			engine.WithSessionTokens(testutil.NewFixedTokenGenerator(scenario.SessionToken)),
		),
	}
	if h.array, err = space.ResolveVariable(editor.Array); err != nil {
		return nil, fmt.Errorf("array variable: %w", err)
	}
	if h.slot, err = space.ResolveVariable(editor.Grid); err != nil {
		return nil, fmt.Errorf("grid slot: %w", err)
	}

	if err := h.start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start editor %s: %w", editor.Name, err)
	}
	defer func() {
		if err := h.engine.Stop(context.Background()); err != nil {
			h.logger.Warn("harness stop failed", "error", err)
		}
	}()

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.apply(ctx, step); err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
		}
		if err := h.settle(ctx); err != nil {
			return nil, fmt.Errorf("steps[%d]: settle: %w", i, err)
		}
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}

	for _, msg := range checkExpectation(scenario.Expect, h.array.Kind(), result) {
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// RunAll executes scenarios concurrently, at most limit at a time (no limit
// when limit <= 0). Results are returned in input order.
func RunAll(ctx context.Context, scenarios []*Scenario, limit int, opts ...Option) ([]*Result, error) {
	results := make([]*Result, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, s := range scenarios {
		g.Go(func() error {
			r, err := Run(ctx, s, opts...)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", s.Name, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (h *Harness) start(ctx context.Context) error {
	if err := h.engine.Start(ctx, h.owner, h.editor.Array, h.editor.Grid); err != nil {
		return err
	}
	h.senders[h.engine.Sender()] = true
	return h.settle(ctx)
}

func (h *Harness) settle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, SettleTimeout)
	defer cancel()
	return h.space.Settle(ctx)
}

// apply performs one step as the external sender.
func (h *Harness) apply(ctx context.Context, step Step) error {
	ctx = model.WithSender(ctx, ir.External)
	kind := h.array.Kind()

	switch {
	case step.WriteArray != nil:
		v, err := ir.FromAny(kind, step.WriteArray)
		if err != nil {
			return fmt.Errorf("write_array: %w", err)
		}
		return h.array.Set(ctx, v)

	case step.WriteElement != nil:
		v, err := ir.FromAny(kind, step.WriteElement.Value)
		if err != nil {
			return fmt.Errorf("write_element: %w", err)
		}
		return h.array.SetElement(ctx, step.WriteElement.Index, v)

	case step.WriteCell != nil:
		grid := h.engine.Grid()
		if grid == nil {
			return errors.New("write_cell: editor is not running")
		}
		row, err := grid.Row(step.WriteCell.Row)
		if err != nil {
			return fmt.Errorf("write_cell: %w", err)
		}
		v, err := ir.FromAny(row.Cell().Kind(), step.WriteCell.Value)
		if err != nil {
			return fmt.Errorf("write_cell: %w", err)
		}
		return row.Cell().Set(ctx, v)

	case step.Resync:
		return h.engine.Resync(ctx)

	case step.Stop:
		return h.engine.Stop(ctx)

	case step.Start:
		return h.start(ctx)
	}
	return errors.New("empty step")
}

// collect reads the journal and the final structure into result.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	records, err := h.store.ReadWrites(ctx, store.WriteFilter{})
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}
	for _, rec := range records {
		value, err := decodeJSON(rec.Value)
		if err != nil {
			return fmt.Errorf("trace seq %d: %w", rec.Seq, err)
		}
		result.Trace = append(result.Trace, TraceEvent{
			Seq:     rec.Seq,
			Target:  h.target(rec.Path),
			Path:    rec.Path,
			Indexes: rec.Indexes,
			Value:   value,
			Sender:  h.role(ir.SenderID(rec.Sender)),
			Depth:   rec.Depth,
		})
	}

	if arr, ok := h.array.Value().(ir.Array); ok {
		result.Array, _ = ir.ToAny(arr).([]any)
	}
	for _, v := range h.engine.Snapshot() {
		result.Cells = append(result.Cells, ir.ToAny(v))
	}
	result.Rows = h.engine.Rows()
	result.Subscriptions = h.space.Registrations()
	ref, _ := h.slot.Value().(ir.NodeRef)
	result.SlotEmpty = ref.IsEmpty()
	return nil
}

func (h *Harness) target(path string) string {
	switch {
	case path == strings.Trim(h.editor.Array, "/"):
		return TargetArray
	case path == strings.Trim(h.editor.Grid, "/"):
		return TargetSlot
	case strings.HasPrefix(path, h.editor.Name+"/"+engine.GridName+"/"):
		return TargetCell
	default:
		return "other"
	}
}

func (h *Harness) role(id ir.SenderID) string {
	switch {
	case id == ir.External:
		return RoleExternal
	case h.senders[id]:
		return RoleEngine
	default:
		return fmt.Sprintf("sender-%d", id)
	}
}

// decodeJSON decodes journal JSON keeping integers as int64, so they
// re-encode without a fraction.
func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return fromNumbers(raw), nil
}

func fromNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = fromNumbers(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = fromNumbers(x[k])
		}
		return x
	default:
		return v
	}
}
