package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const basicProject = `variables: {
	VectorValue: {type: "int", value: [1, 2, 3]}
	GridModel: {type: "noderef"}
}

editors: {
	Main: {array: "VectorValue", grid: "GridModel"}
}
`

// writeFile writes content to dir/name, creating parent directories.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeProject creates a project directory holding one CUE file.
func writeProject(t *testing.T, content string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "project")
	writeFile(t, dir, "project.cue", content)
	return dir
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// decodeData unmarshals the data field of a JSON CLIResponse into v.
func decodeData(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var envelope struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &envelope), out)
	if v != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, v), out)
	}
	return envelope.CLIResponse
}
