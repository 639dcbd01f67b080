package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a path or id resolves to no node.
	ErrNotFound = errors.New("node not found")

	// ErrNotVariable is returned when a path resolves to an object.
	ErrNotVariable = errors.New("node is not a variable")

	// ErrNotObject is returned when a path walks through a variable.
	ErrNotObject = errors.New("node is not an object")

	// ErrTypeMismatch is returned when a written value's kind or shape does
	// not fit the variable.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrIndexOutOfRange is returned by SetElement for a bad index.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrDeleted is returned when operating on a deleted node.
	ErrDeleted = errors.New("node deleted")

	// ErrDuplicateName is returned when adding a child whose name is taken.
	ErrDuplicateName = errors.New("duplicate child name")

	// ErrAttached is returned when adding a node that already has a parent.
	ErrAttached = errors.New("node already attached")

	// ErrDomainClosed is returned when observing through a terminated domain.
	ErrDomainClosed = errors.New("domain terminated")

	// ErrRegistrationClosed is returned when closing a registration twice.
	ErrRegistrationClosed = errors.New("registration already closed")
)

// CascadeLimitError is returned when a write would exceed the space's
// maximum cascade depth, i.e. a chain of callbacks writing to variables
// that trigger further callbacks has grown too long.
type CascadeLimitError struct {
	Path  string // Variable that was being written
	Depth int    // Depth the write would have had
	Limit int    // Configured maximum
}

// Error implements the error interface.
func (e *CascadeLimitError) Error() string {
	return fmt.Sprintf("write to %s exceeds cascade limit: depth %d > %d", e.Path, e.Depth, e.Limit)
}

// IsCascadeLimitError returns true if err is or wraps a CascadeLimitError.
func IsCascadeLimitError(err error) bool {
	var ce *CascadeLimitError
	return errors.As(err, &ce)
}
