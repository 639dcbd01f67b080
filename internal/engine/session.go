package engine

import "github.com/google/uuid"

// TokenGenerator mints the session token attached to an engine's log lines
// and metrics for one Start..Stop cycle.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator is the default TokenGenerator. UUIDv7 tokens embed a
// millisecond timestamp, so sessions sort by start time.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
