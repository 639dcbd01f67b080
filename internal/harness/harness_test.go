package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var basicProject = filepath.Join("testdata", "projects", "basic")

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	for _, name := range []string{"growth", "shrink", "teardown", "stale"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_GrowthResult(t *testing.T) {
	result, err := Run(context.Background(), loadScenario(t, "growth"))
	require.NoError(t, err)

	assert.Equal(t, []any{int64(1), int64(7), int64(42), int64(4), int64(5)}, result.Array)
	assert.Equal(t, result.Array, result.Cells)
	assert.Equal(t, 5, result.Rows)
	assert.False(t, result.SlotEmpty)
	require.Len(t, result.Trace, 16)
	assert.Equal(t, TargetSlot, result.Trace[0].Target)
	assert.Equal(t, RoleEngine, result.Trace[0].Sender)
}

func TestRun_Deterministic(t *testing.T) {
	s := loadScenario(t, "growth")

	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)

	a, err := MarshalTrace(s.Name, first)
	require.NoError(t, err)
	b, err := MarshalTrace(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_FailedExpectation(t *testing.T) {
	s := &Scenario{
		Name:        "wrong",
		Description: "expects the wrong contents",
		Project:     basicProject,
		Editor:      "Main",
		Steps:       []Step{{WriteArray: []any{1, 2}}},
		Expect:      &Expectation{Array: []any{1, 2, 3}},
		Assertions:  []Assertion{{Type: AssertRows, Count: 3}},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expect.array mismatch")
	assert.Contains(t, result.Errors[1], "Expected: 3")
}

func TestRun_StepErrorsAreFailures(t *testing.T) {
	s := &Scenario{
		Name:        "bad_row",
		Description: "writes a row that does not exist",
		Project:     basicProject,
		Editor:      "Main",
		Steps: []Step{
			{WriteCell: &CellWrite{Row: 9, Value: 1}},
			{WriteElement: &ElementWrite{Index: 5, Value: 1}},
		},
		Expect: &Expectation{Array: []any{1, 2, 3}},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "steps[0]: write_cell")
	assert.Contains(t, result.Errors[1], "steps[1]")
}

func TestRun_RestartPublishesNewGrid(t *testing.T) {
	s := &Scenario{
		Name:        "restart",
		Description: "stop then start again",
		Project:     basicProject,
		Editor:      "Main",
		Steps: []Step{
			{Stop: true},
			{WriteArray: []any{5, 6}},
			{Start: true},
			{WriteCell: &CellWrite{Row: 1, Value: 8}},
		},
		Expect: &Expectation{Array: []any{5, 8}, Cells: []any{5, 8}},
		Assertions: []Assertion{
			{Type: AssertWriteCount, Target: TargetSlot, Sender: RoleEngine, Count: 3},
			{Type: AssertSubscriptions, Count: 3},
		},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_UnknownEditor(t *testing.T) {
	s := &Scenario{
		Name:        "nope",
		Description: "unknown editor",
		Project:     basicProject,
		Editor:      "Other",
		Expect:      &Expectation{},
	}
	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `editor "Other"`)
}

func TestRunAll(t *testing.T) {
	files, err := FindScenarios(filepath.Join("testdata", "scenarios"), "")
	require.NoError(t, err)
	require.Len(t, files, 4)

	scenarios := make([]*Scenario, len(files))
	for i, f := range files {
		scenarios[i], err = LoadScenario(f)
		require.NoError(t, err)
	}

	results, err := RunAll(context.Background(), scenarios, 2)
	require.NoError(t, err)
	require.Len(t, results, len(scenarios))
	for i, r := range results {
		assert.True(t, r.Pass, "%s: %v", scenarios[i].Name, r.Errors)
	}
}
