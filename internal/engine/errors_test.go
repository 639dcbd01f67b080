package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigurationError_Error(t *testing.T) {
	err := configError(ErrCodeUnsupportedRank, "VectorValue", "array has rank %d, want 1", 2)
	assert.Equal(t, "UNSUPPORTED_RANK: array has rank 2, want 1 (path=VectorValue)", err.Error())

	bare := &ConfigurationError{Code: ErrCodeAlreadyStarted, Message: "running"}
	assert.Equal(t, "ALREADY_STARTED: running", bare.Error())
}

func TestConfigurationError_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("start Main: %w", configError(ErrCodeMissingVariable, "X", "not found"))

	assert.True(t, IsConfigurationError(wrapped))
	assert.Equal(t, ErrCodeMissingVariable, ConfigurationCode(wrapped))
	assert.False(t, IsConfigurationError(errors.New("other")))
	assert.Equal(t, ConfigurationErrorCode(""), ConfigurationCode(errors.New("other")))
}

func TestShapeError(t *testing.T) {
	err := fmt.Errorf("patch: %w", &ShapeError{Index: 4, Rows: 2})
	assert.True(t, IsShapeError(err))
	assert.Contains(t, err.Error(), "index 4 does not address a row (rows=2)")
}
