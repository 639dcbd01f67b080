// Package engine implements the array/grid synchronization engine.
//
// An Engine binds one rank-1 array variable to a shadow grid: a Grid object
// holding one Row per element, each Row holding a single Cell0 variable.
// External edits to the array are pushed into the cells; edits to a cell
// are written back into the matching array element.
//
// ARCHITECTURE:
//
// Affinity Domain:
// Each started engine gets its own model.Domain. All of its notification
// callbacks run on that domain's goroutine, one at a time, in delivery
// order. Independent engines are not ordered relative to each other.
//
// Echo Suppression:
// Each start mints a sender id. Every write the engine makes carries it
// (model.WithSender) and every notification carrying it is dropped. An
// external array write therefore produces one round of cell writes and no
// further array writes; an external cell write produces exactly one array
// write and no further cell writes.
//
// Structural Changes:
// Grid construction at Start and every resize run with the domain
// suspended. Rows are appended in ascending order and deleted from the
// highest index down, and the row count reaches its final value before any
// cell is written.
//
// Stale Events:
// A notification whose index addresses no row (it raced with a resize) is
// logged as a ShapeError, counted, and skipped.
package engine
