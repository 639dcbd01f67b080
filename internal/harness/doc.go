// Package harness runs YAML scenarios against a live engine.
//
// A scenario names a CUE project and one of its editors. The harness seeds
// a fresh space from the project, starts the editor, and applies each step
// as an external writer:
//
//	steps:
//	  - write_array: [1, 2, 3, 4, 5]
//	  - write_element: { index: 1, value: 7 }
//	  - write_cell: { row: 2, value: 42 }
//	  - resync: true
//	  - stop: true
//
// After every step the space is settled, so all engine reactions to the
// step have been delivered before the next one runs.
//
// Every committed write is journaled to an in-memory SQLite store. The
// resulting trace lists each write with its seq, target (array, cell or
// slot), value and sender role (external or engine). Because the clock and
// the session token are deterministic, the trace of a scenario is stable
// across runs and can be compared against a golden file.
//
// Expectations compare the final array and grid contents. Assertions check
// write counts, row count, live subscriptions and whether the grid slot is
// empty.
package harness
