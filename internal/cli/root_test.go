package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "vecgrid", cmd.Use)
	assert.Contains(t, cmd.Long, "grid")
}

func TestSubcommands(t *testing.T) {
	root := NewRootCommand()
	for _, path := range [][]string{
		{"validate"}, {"run"}, {"test"}, {"trace"}, {"props"},
		{"props", "get"}, {"props", "set"}, {"props", "list"}, {"props", "delete"},
	} {
		name := strings.Join(path, " ")
		t.Run(name, func(t *testing.T) {
			sub, _, err := root.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}
}

func TestFlagDefaults(t *testing.T) {
	root := NewRootCommand()
	tests := []struct {
		command []string
		flag    string
		def     string
	}{
		{nil, "verbose", "false"},
		{nil, "format", "text"},
		{nil, "log-level", ""},
		{[]string{"run"}, "db", ""},
		{[]string{"run"}, "set", "[]"},
		{[]string{"run"}, "refresh", "0s"},
		{[]string{"run"}, "for", "0s"},
		{[]string{"test"}, "update", "false"},
		{[]string{"test"}, "filter", ""},
		{[]string{"trace"}, "db", ""},
		{[]string{"trace"}, "path", ""},
		{[]string{"trace"}, "after", "0"},
		{[]string{"trace"}, "limit", "0"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(append(tt.command, tt.flag), "/"), func(t *testing.T) {
			cmd, _, err := root.Find(tt.command)
			require.NoError(t, err)
			f := cmd.Flags().Lookup(tt.flag)
			if f == nil {
				f = cmd.PersistentFlags().Lookup(tt.flag)
			}
			require.NotNil(t, f)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}

	assert.Equal(t, "v", root.PersistentFlags().Lookup("verbose").Shorthand)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, err := execute(t, "--format", "invalid", "validate", ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "validate", ".")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInvalidEnvironment(t *testing.T) {
	t.Setenv("VECGRID_MAX_CASCADE", "-1")
	_, err := execute(t, "validate", ".")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
