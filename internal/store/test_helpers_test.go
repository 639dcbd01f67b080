package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/vecgrid/internal/ir"
	"github.com/roach88/vecgrid/internal/model"
)

// createTestStore opens a file-backed store under t.TempDir and closes it
// when the test ends.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "vecgrid.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// createTestWrite builds an external whole-value write at seq.
func createTestWrite(seq int64, path string, value ir.Value) model.Notification {
	return model.Notification{Seq: seq, Path: path, New: value, Old: ir.Zero(value.Kind())}
}
