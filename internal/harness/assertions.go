package harness

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/vecgrid/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", FormatEvent(event))
		}
	}

	return buf.String()
}

// FormatEvent renders one trace event on a single line, e.g.
//
//	[4] external VectorValue[1] = 7
func FormatEvent(e TraceEvent) string {
	var idx strings.Builder
	for _, i := range e.Indexes {
		fmt.Fprintf(&idx, "[%d]", i)
	}
	value, err := ir.MarshalCanonical(e.Value)
	if err != nil {
		value = []byte(fmt.Sprint(e.Value))
	}
	return fmt.Sprintf("[%d] %s %s%s = %s", e.Seq, e.Sender, e.Path, idx.String(), value)
}

// assertWriteCount checks how many writes hit the target, optionally only
// those from one sender role.
func assertWriteCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, e := range trace {
		if e.Target != a.Target {
			continue
		}
		if a.Sender != "" && e.Sender != a.Sender {
			continue
		}
		count++
	}
	if count == a.Count {
		return nil
	}

	what := a.Target + " writes"
	if a.Sender != "" {
		what = a.Sender + " " + what
	}
	return &AssertionError{
		Type:     AssertWriteCount,
		Expected: fmt.Sprintf("%d %s", a.Count, what),
		Actual:   fmt.Sprintf("%d %s", count, what),
		Trace:    trace,
	}
}

func assertCount(kind string, want, got int) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%d", want),
		Actual:   fmt.Sprintf("%d", got),
	}
}

// EvaluateAssertions runs every assertion against the result and returns
// one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertWriteCount:
			err = assertWriteCount(result.Trace, a)
		case AssertRows:
			err = assertCount(AssertRows, a.Count, result.Rows)
		case AssertSubscriptions:
			err = assertCount(AssertSubscriptions, a.Count, result.Subscriptions)
		case AssertSlotEmpty:
			if !result.SlotEmpty {
				err = &AssertionError{Type: AssertSlotEmpty, Expected: "empty grid slot", Actual: "slot holds a reference"}
			}
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

// checkExpectation compares the final array and cells with the expected
// lists. Expected values are converted with the array's element kind so
// YAML integers compare equal to int64 values.
func checkExpectation(exp *Expectation, kind ir.Kind, result *Result) []string {
	if exp == nil {
		return nil
	}
	var errs []string
	check := func(field string, want []any, got []any) {
		if want == nil {
			return
		}
		v, err := ir.FromAny(kind, want)
		if err != nil {
			errs = append(errs, fmt.Sprintf("expect.%s: %v", field, err))
			return
		}
		normalized, _ := ir.ToAny(v).([]any)
		if got == nil {
			got = []any{}
		}
		if diff := cmp.Diff(normalized, got); diff != "" {
			errs = append(errs, fmt.Sprintf("expect.%s mismatch (-want +got):\n%s", field, diff))
		}
	}
	check("array", exp.Array, result.Array)
	check("cells", exp.Cells, result.Cells)
	return errs
}
