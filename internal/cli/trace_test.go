package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vecgrid/internal/store"
)

// journaledRun runs the basic project once with one cell edit and returns
// the database. The journal then holds: slot publish, cell edit, array
// write-back, slot clear.
func journaledRun(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "vecgrid.db")
	_, err := execute(t, "run", "--db", db, "--set", "Main.1=9", writeProject(t, basicProject))
	require.NoError(t, err)
	return db
}

func TestTraceMissingDatabaseFlag(t *testing.T) {
	_, err := execute(t, "trace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestTraceNonExistentDatabase(t *testing.T) {
	_, err := execute(t, "trace", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestTraceText(t *testing.T) {
	db := journaledRun(t)

	out, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Trace for: all variables")
	assert.Contains(t, out, "[1] sender-")
	assert.Contains(t, out, "GridModel = {node=")
	assert.Contains(t, out, "[2] external Main/Grid/Row1/Cell0 = 9 (depth 0)")
	assert.Contains(t, out, "VectorValue[1] = 9 (depth 1)")
	assert.Contains(t, out, "GridModel = {node=0}")
	assert.Contains(t, out, "Writes:    4")
	assert.Contains(t, out, "Max Depth: 1")
	assert.Contains(t, out, "external: 1")
}

func TestTraceVerboseShowsOldValue(t *testing.T) {
	db := journaledRun(t)

	out, err := execute(t, "trace", "--verbose", "--db", db, "--path", "VectorValue")
	require.NoError(t, err)
	assert.Contains(t, out, "was: 2")
}

func TestTraceFilters(t *testing.T) {
	db := journaledRun(t)

	tests := []struct {
		name  string
		args  []string
		seqs  []int64
		paths int
	}{
		{"exact path", []string{"--path", "VectorValue"}, []int64{3}, 1},
		{"prefix", []string{"--path", "Main/Grid/"}, []int64{2}, 1},
		{"after", []string{"--after", "2"}, []int64{3, 4}, 2},
		{"limit", []string{"--limit", "2"}, []int64{1, 2}, 2},
		{"slot", []string{"--path", "GridModel"}, []int64{1, 4}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--format", "json", "trace", "--db", db}, tt.args...)
			out, err := execute(t, args...)
			require.NoError(t, err)

			var result TraceResult
			decodeData(t, out, &result)
			var seqs []int64
			for _, w := range result.Writes {
				seqs = append(seqs, w.Seq)
			}
			assert.Equal(t, tt.seqs, seqs)
			assert.Equal(t, tt.paths, result.Stats.Paths)
		})
	}
}

func TestTraceEmptyJournal(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "(no writes)")
}

func TestTraceNegativeLimit(t *testing.T) {
	_, err := execute(t, "trace", "--db", journaledRun(t), "--limit", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBuildTrace(t *testing.T) {
	records := []store.WriteRecord{
		{Seq: 7, Path: "VectorValue", Value: "[1,2]", OldValue: "[1]", Sender: 0},
		{Seq: 8, Path: "Main/Grid/Row1/Cell0", Value: "2", Sender: 3, Depth: 1},
	}

	result, err := buildTrace("", records)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0}, result.Writes[0].Value)
	assert.Equal(t, []any{1.0}, result.Writes[0].OldValue)
	assert.Nil(t, result.Writes[1].OldValue)
	assert.Equal(t, TraceStats{
		Writes:   2,
		Paths:    2,
		Senders:  map[string]int{"external": 1, "sender-3": 1},
		MaxDepth: 1,
		LastSeq:  8,
	}, result.Stats)

	_, err = buildTrace("", []store.WriteRecord{{Seq: 1, Value: "{"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seq 1")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "42", formatValue(42.0))
	assert.Equal(t, `"a"`, formatValue("a"))
	assert.Equal(t, "null", formatValue(nil))
	assert.Equal(t, "[1, true]", formatValue([]any{1.0, true}))
	assert.Equal(t, "{a=1, b=[2]}", formatValue(map[string]any{"b": []any{2.0}, "a": 1.0}))
}
