package harness

// TraceEvent is one journaled write, as seen by a scenario.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Target  string `json:"target"` // "array", "cell" or "slot"
	Path    string `json:"path"`
	Indexes []int  `json:"indexes,omitempty"`
	Value   any    `json:"value"`
	Sender  string `json:"sender"` // "external", "engine" or "sender-N"
	Depth   int    `json:"depth"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every journaled write in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Array and Cells are the final array contents and grid cell values.
	Array []any `json:"array"`
	Cells []any `json:"cells"`

	// Rows, Subscriptions and SlotEmpty describe the final structure.
	Rows          int  `json:"rows"`
	Subscriptions int  `json:"subscriptions"`
	SlotEmpty     bool `json:"slot_empty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Array:  []any{},
		Cells:  []any{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
