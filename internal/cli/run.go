package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	redisjournal "github.com/roach88/vecgrid/internal/adapters/redis"
	"github.com/roach88/vecgrid/internal/compiler"
	"github.com/roach88/vecgrid/internal/engine"
	"github.com/roach88/vecgrid/internal/ir"
	"github.com/roach88/vecgrid/internal/model"
	"github.com/roach88/vecgrid/internal/scheduler"
	"github.com/roach88/vecgrid/internal/store"
)

// PropLastProject records the project directory of the most recent run.
const PropLastProject = "last_project"

// settleTimeout bounds how long the run command waits for editors to
// quiesce after starting and after applying edits.
const settleTimeout = 10 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Sets     []string
	Refresh  time.Duration
	For      time.Duration

	// SessionTokens overrides the engine session token generator (for
	// testing). If nil, engines use UUIDv7 tokens.
	SessionTokens engine.TokenGenerator
}

// CellEdit is one parsed --set flag: write Value into row Row of Editor's
// grid.
type CellEdit struct {
	Editor string
	Row    int
	Value  any
}

// EditorState is the final state of one editor.
type EditorState struct {
	Name    string `json:"name"`
	Session string `json:"session"`
	Rows    int    `json:"rows"`
	Array   []any  `json:"array"`
	Cells   []any  `json:"cells"`
}

// RunResult is the output of the run command.
type RunResult struct {
	Database string             `json:"database"`
	LastSeq  int64              `json:"last_seq"`
	Editors  []EditorState      `json:"editors"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <project-dir>",
		Short: "Start every editor of a project",
		Long: `Seed an address space from a CUE project and start every editor.

Each editor mirrors its array into a grid. Cell edits given with --set are
applied as an operator would type them, then the final arrays and grids are
printed. Every write is journaled to the SQLite database, and also to a
Redis stream when VECGRID_REDIS_ADDR is set.

With --refresh the editors re-push their arrays into the grids at the given
interval until interrupted, or until --for has elapsed.

Examples:
  vecgrid run ./project
  vecgrid run --db ./vecgrid.db --set Main.2=42 ./project
  vecgrid run --refresh 5s ./project
  vecgrid run --refresh 1s --for 30s ./project`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEditors(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $VECGRID_DB)")
	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "cell edit Editor.row=value (repeatable)")
	cmd.Flags().DurationVar(&opts.Refresh, "refresh", 0, "periodic resync interval (default $VECGRID_REFRESH)")
	cmd.Flags().DurationVar(&opts.For, "for", 0, "with --refresh, stop after this long (0 = until interrupted)")

	return cmd
}

func runEditors(opts *RunOptions, projectDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	cfg := opts.config()
	logger := opts.logger()

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.DB
	}
	if dbPath == "" {
		return NewExitError(ExitCommandError, "no database: pass --db or set VECGRID_DB")
	}
	refresh := opts.Refresh
	if refresh == 0 {
		refresh = cfg.Refresh
	}
	if refresh < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--refresh must not be negative, got %s", refresh))
	}
	if opts.For < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--for must not be negative, got %s", opts.For))
	}

	project, err := LoadProject(projectDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load project", err)
	}
	if errs := compiler.Validate(project); len(errs) > 0 {
		for _, e := range errs {
			logger.Error("invalid project", "code", e.Code, "field", e.Field, "message", e.Message)
		}
		return WrapExitError(ExitFailure, "invalid project", errs[0])
	}

	edits, err := parseEdits(opts.Sets, project)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeInvalidEdit, err)
	}

	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	logger.Info("opening database", "path", dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	lastSeq, err := st.LastSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	journal := model.MultiJournal{st}
	if cfg.RedisAddr != "" {
		rj := redisjournal.New(cfg.RedisAddr, redisjournal.WithStream(cfg.RedisStream))
		defer rj.Close()
		if err := rj.Ping(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to reach redis", err)
		}
		logger.Info("journaling to redis", "addr", cfg.RedisAddr, "stream", rj.Stream())
		journal = append(journal, rj)
	}

	registry := prometheus.NewRegistry()
	metrics := engine.NewMetrics(registry)

	space := model.NewSpace(
		model.WithClock(model.NewLogicalClockAt(lastSeq)),
		model.WithJournal(journal),
		model.WithMaxCascade(cfg.MaxCascade),
		model.WithLogger(logger),
	)
	defer space.Close()

	owners, err := compiler.Materialize(space, project)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to materialize project", err)
	}

	engineOpts := []engine.Option{engine.WithLogger(logger), engine.WithMetrics(metrics)}
	if opts.SessionTokens != nil {
		engineOpts = append(engineOpts, engine.WithSessionTokens(opts.SessionTokens))
	}

	// Declaration order fixes the node ids.
	engines := make(map[string]*engine.Engine, len(project.Editors))
	defer func() {
		if err := stopAll(engines); err != nil {
			logger.Error("error stopping editors", "error", err)
		}
	}()
	for _, ed := range project.Editors {
		eng := engine.New(space, engineOpts...)
		if err := eng.Start(ctx, owners[ed.Name], ed.Array, ed.Grid); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("%s: editor %s", ErrCodeStartFailed, ed.Name), err)
		}
		engines[ed.Name] = eng
		formatter.VerboseLog("Started editor %s (session %s)", ed.Name, eng.Session())
	}
	if err := settle(ctx, space); err != nil {
		return WrapExitError(ExitFailure, "editors did not settle", err)
	}

	if len(edits) > 0 {
		for _, edit := range edits {
			if err := applyEdit(ctx, engines[edit.Editor], edit); err != nil {
				return WrapExitError(ExitCommandError, ErrCodeInvalidEdit, err)
			}
			formatter.VerboseLog("Set %s row %d = %v", edit.Editor, edit.Row, edit.Value)
		}
		if err := settle(ctx, space); err != nil {
			return WrapExitError(ExitFailure, "edits did not settle", err)
		}
	}

	if abs, err := filepath.Abs(projectDir); err == nil {
		if err := st.SetProperty(ctx, PropLastProject, abs); err != nil {
			logger.Warn("failed to record last project", "error", err)
		}
	}

	if err := outputRun(formatter, opts, st, space, dbPath, project, engines, registry); err != nil {
		return err
	}

	if refresh > 0 {
		return refreshUntilDone(ctx, formatter, logger, space, project, engines, refresh, opts.For)
	}
	return nil
}

// signalContext derives a context cancelled on SIGINT/SIGTERM or when the
// command's own context ends.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func settle(ctx context.Context, space *model.Space) error {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	return space.Settle(ctx)
}

// refreshUntilDone resyncs every editor periodically until ctx ends or,
// when runFor > 0, until runFor has elapsed.
func refreshUntilDone(ctx context.Context, formatter *OutputFormatter, logger *slog.Logger, space *model.Space, project *ir.Project, engines map[string]*engine.Engine, interval, runFor time.Duration) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	tasks := make([]*scheduler.Task, 0, len(engines)+1)
	defer func() {
		for _, t := range tasks {
			t.Cancel()
		}
	}()

	for _, ed := range project.Editors {
		eng := engines[ed.Name]
		task := scheduler.Periodic("resync "+ed.Name, interval, func(ctx context.Context) error {
			if err := eng.Resync(ctx); err != nil {
				return err
			}
			return settle(ctx, space)
		}, scheduler.WithLogger(logger))
		if err := task.Start(ctx); err != nil {
			return WrapExitError(ExitFailure, "failed to schedule resync", err)
		}
		tasks = append(tasks, task)
	}

	if runFor > 0 {
		deadline := scheduler.Delayed("stop refresh", runFor, func(context.Context) error {
			logger.Info("refresh period elapsed", "for", runFor)
			stop()
			return nil
		}, scheduler.WithLogger(logger))
		if err := deadline.Start(ctx); err != nil {
			return WrapExitError(ExitFailure, "failed to schedule stop", err)
		}
		tasks = append(tasks, deadline)
		formatter.Printf("Refreshing every %s for %s.\n", interval, runFor)
	} else {
		formatter.Printf("Refreshing every %s. Press Ctrl-C to stop.\n", interval)
	}
	<-ctx.Done()
	logger.Info("editors stopping")
	return nil
}

// stopAll stops every engine concurrently.
func stopAll(engines map[string]*engine.Engine) error {
	var g errgroup.Group
	for name, eng := range engines {
		g.Go(func() error {
			if err := eng.Stop(context.Background()); err != nil {
				return fmt.Errorf("stop %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// parseEdits parses --set flags of the form Editor.row=value. Values are
// YAML scalars, so 42, 4.5, true and "text" keep their types.
func parseEdits(sets []string, project *ir.Project) ([]CellEdit, error) {
	edits := make([]CellEdit, 0, len(sets))
	for _, s := range sets {
		target, raw, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("--set %q: want Editor.row=value", s)
		}
		dot := strings.LastIndex(target, ".")
		if dot <= 0 {
			return nil, fmt.Errorf("--set %q: want Editor.row=value", s)
		}
		name := target[:dot]
		row, err := strconv.Atoi(target[dot+1:])
		if err != nil || row < 0 {
			return nil, fmt.Errorf("--set %q: row must be a non-negative integer", s)
		}
		if _, ok := project.Editor(name); !ok {
			return nil, fmt.Errorf("--set %q: no editor named %s", s, name)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("--set %q: %w", s, err)
		}
		if value == nil {
			return nil, fmt.Errorf("--set %q: value is required", s)
		}
		edits = append(edits, CellEdit{Editor: name, Row: row, Value: value})
	}
	return edits, nil
}

// applyEdit writes one cell as the external sender.
func applyEdit(ctx context.Context, eng *engine.Engine, edit CellEdit) error {
	grid := eng.Grid()
	if grid == nil {
		return fmt.Errorf("editor %s is not running", edit.Editor)
	}
	row, err := grid.Row(edit.Row)
	if err != nil {
		return fmt.Errorf("%s: %w", edit.Editor, err)
	}
	value, err := ir.FromAny(row.Cell().Kind(), edit.Value)
	if err != nil {
		return fmt.Errorf("%s row %d: %w", edit.Editor, edit.Row, err)
	}
	return row.Cell().Set(model.WithSender(ctx, ir.External), value)
}

func outputRun(formatter *OutputFormatter, opts *RunOptions, st *store.Store, space *model.Space, dbPath string, project *ir.Project, engines map[string]*engine.Engine, registry *prometheus.Registry) error {
	lastSeq, err := st.LastSeq(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := RunResult{Database: dbPath, LastSeq: lastSeq, Editors: make([]EditorState, 0, len(engines))}
	for _, ed := range project.Editors {
		eng := engines[ed.Name]
		state := EditorState{Name: ed.Name, Session: eng.Session(), Rows: eng.Rows(), Array: []any{}, Cells: []any{}}
		if array, err := space.ResolveVariable(ed.Array); err == nil {
			if items, ok := ir.ToAny(array.Value()).([]any); ok {
				state.Array = items
			}
		}
		for _, v := range eng.Snapshot() {
			state.Cells = append(state.Cells, ir.ToAny(v))
		}
		result.Editors = append(result.Editors, state)
	}
	if opts.Verbose {
		result.Metrics = gatherMetrics(registry)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, state := range result.Editors {
		fmt.Fprintf(w, "%s (%d rows, session %s)\n", state.Name, state.Rows, state.Session)
		for i, cell := range state.Cells {
			fmt.Fprintf(w, "  %s  %s\n", engine.RowName(i), formatValue(cell))
		}
	}
	fmt.Fprintf(w, "Journal: %s (last seq %d)\n", result.Database, result.LastSeq)
	for _, name := range sortedKeys(result.Metrics) {
		formatter.VerboseLog("%s %g", name, result.Metrics[name])
	}
	return nil
}

// gatherMetrics flattens the engine counters and gauges into name/value
// pairs.
func gatherMetrics(registry *prometheus.Registry) map[string]float64 {
	families, err := registry.Gather()
	if err != nil {
		return nil
	}
	out := make(map[string]float64, len(families))
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			out[mf.GetName()] += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	return out
}
