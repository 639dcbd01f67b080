package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vecgrid/internal/ir"
	"github.com/roach88/vecgrid/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Path     string // exact path, or a prefix when it ends in "/"
	After    int64
	Limit    int
}

// TraceEvent is one journaled write in the trace output.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Path     string `json:"path"`
	Indexes  []int  `json:"indexes,omitempty"`
	Value    any    `json:"value"`
	OldValue any    `json:"old_value,omitempty"`
	Sender   uint64 `json:"sender"`
	Depth    int    `json:"depth"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Path   string       `json:"path,omitempty"`
	Writes []TraceEvent `json:"writes"`
	Stats  TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Writes   int            `json:"writes"`
	Paths    int            `json:"paths"`
	Senders  map[string]int `json:"senders"`
	MaxDepth int            `json:"max_depth"`
	LastSeq  int64          `json:"last_seq"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print journaled writes",
		Long: `Print the writes journaled by previous runs.

Each write shows its sequence number, the variable path and element index,
the new value, the sender that made it and its cascade depth. Sender 0 is
an external writer; every editor run has its own sender.

Examples:
  vecgrid trace --db ./vecgrid.db
  vecgrid trace --db ./vecgrid.db --path VectorValue
  vecgrid trace --db ./vecgrid.db --path Main/Grid/ --after 10 --limit 20
  vecgrid trace --db ./vecgrid.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Path, "path", "", "variable path; a trailing / matches everything below it")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only writes with a greater sequence number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of writes (0 = all)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.ReadWrites(ctx, store.WriteFilter{
		Path:     opts.Path,
		AfterSeq: opts.After,
		Limit:    opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result, err := buildTrace(opts.Path, records)
	if err != nil {
		return WrapExitError(ExitCommandError, "corrupt journal entry", err)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputTraceText(formatter.Writer, result, opts.Verbose)
}

// buildTrace decodes journal records and computes the stats.
func buildTrace(path string, records []store.WriteRecord) (TraceResult, error) {
	result := TraceResult{
		Path:   path,
		Writes: make([]TraceEvent, 0, len(records)),
		Stats:  TraceStats{Senders: map[string]int{}},
	}
	paths := make(map[string]bool)

	for _, rec := range records {
		value, err := decodeJournalValue(rec.Value)
		if err != nil {
			return TraceResult{}, fmt.Errorf("seq %d: %w", rec.Seq, err)
		}
		old, err := decodeJournalValue(rec.OldValue)
		if err != nil {
			return TraceResult{}, fmt.Errorf("seq %d: %w", rec.Seq, err)
		}
		result.Writes = append(result.Writes, TraceEvent{
			Seq:      rec.Seq,
			Path:     rec.Path,
			Indexes:  rec.Indexes,
			Value:    value,
			OldValue: old,
			Sender:   rec.Sender,
			Depth:    rec.Depth,
		})

		paths[rec.Path] = true
		result.Stats.Senders[senderLabel(rec.Sender)]++
		result.Stats.MaxDepth = max(result.Stats.MaxDepth, rec.Depth)
		result.Stats.LastSeq = rec.Seq
	}
	result.Stats.Writes = len(result.Writes)
	result.Stats.Paths = len(paths)
	return result, nil
}

// decodeJournalValue parses canonical JSON from the journal. An empty
// string (no old value) decodes to nil.
func decodeJournalValue(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func senderLabel(sender uint64) string {
	if ir.SenderID(sender) == ir.External {
		return "external"
	}
	return fmt.Sprintf("sender-%d", sender)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	if result.Path != "" {
		fmt.Fprintf(w, "Trace for: %s\n", result.Path)
	} else {
		fmt.Fprintln(w, "Trace for: all variables")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Writes ===")
	if len(result.Writes) == 0 {
		fmt.Fprintln(w, "  (no writes)")
	}
	for _, e := range result.Writes {
		formatWrite(w, e, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Writes:    %d\n", result.Stats.Writes)
	fmt.Fprintf(w, "  Paths:     %d\n", result.Stats.Paths)
	fmt.Fprintf(w, "  Max Depth: %d\n", result.Stats.MaxDepth)
	for _, label := range sortedKeys(result.Stats.Senders) {
		fmt.Fprintf(w, "  %s: %d\n", label, result.Stats.Senders[label])
	}
	return nil
}

// formatWrite formats a single write for text output, e.g.
//
//	[4] sender-1 VectorValue[2] = 42 (depth 1)
func formatWrite(w io.Writer, e TraceEvent, verbose bool) {
	var idx strings.Builder
	for _, i := range e.Indexes {
		fmt.Fprintf(&idx, "[%d]", i)
	}
	fmt.Fprintf(w, "  [%d] %s %s%s = %s (depth %d)\n",
		e.Seq, senderLabel(e.Sender), e.Path, idx.String(), formatValue(e.Value), e.Depth)
	if verbose && e.OldValue != nil {
		fmt.Fprintf(w, "       was: %s\n", formatValue(e.OldValue))
	}
}

// formatValue formats a value for display, with map keys in sorted order.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		parts := make([]string, 0, len(val))
		for _, k := range sortedKeys(val) {
			parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(val[k])))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return fmt.Sprintf("%q", val)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
