package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProject(t *testing.T) {
	project, err := LoadProject(writeProject(t, basicProject))
	require.NoError(t, err)
	require.Len(t, project.Editors, 1)
	assert.Equal(t, "VectorValue", project.Editors[0].Array)
}

func TestLoadProject_Errors(t *testing.T) {
	notDir := writeFile(t, t.TempDir(), "file.cue", basicProject)

	tests := []struct {
		name    string
		dir     string
		code    string
		command bool
	}{
		{"missing", "/nonexistent/project", ErrCodeNotFound, true},
		{"not a directory", notDir, ErrCodeNotFound, true},
		{"empty", t.TempDir(), ErrCodeNoFiles, true},
		{"no variables", writeProject(t, "editors: {}\n"), ErrCodeInvalidVariable, false},
		{"bad kind", writeProject(t, `variables: X: {type: "complex"}`+"\n"), ErrCodeInvalidVariable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProject(tt.dir)
			require.Error(t, err)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.code, loadErr.Code)
			assert.Equal(t, tt.command, loadErr.Command())
		})
	}
}

func TestMapFieldToErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeBuildFailed, MapFieldToErrorCode("cue"))
	assert.Equal(t, ErrCodeInvalidVariable, MapFieldToErrorCode("variables"))
	assert.Equal(t, ErrCodeInvalidVariable, MapFieldToErrorCode("variables.VectorValue.type"))
	assert.Equal(t, ErrCodeInvalidEditor, MapFieldToErrorCode("editors.Main.grid"))
	assert.Equal(t, ErrCodeGeneric, MapFieldToErrorCode("other"))
}
