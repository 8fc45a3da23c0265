package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypesList_Builtin(t *testing.T) {
	resp, err := executeJSON(t, "types", "list")
	require.NoError(t, err)
	types := data(t, resp)["types"].([]any)

	var names []string
	for _, bt := range types {
		names = append(names, bt.(map[string]any)["name"].(string))
	}
	assert.Equal(t, []string{"html", "problem", "unit", "video"}, names)
}

func TestTypesList_Text(t *testing.T) {
	out, err := execute(t, nil, "types", "list", "unit")
	require.NoError(t, err)
	assert.Contains(t, out, "unit (Unit) [children]\n")
	assert.Contains(t, out, `default="aggregator"`)
	assert.NotContains(t, out, "html")
}

func TestTypesList_Unknown(t *testing.T) {
	out, err := execute(t, nil, "types", "list", "html", "poll", "quiz")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "unknown block type(s): poll, quiz")
}

func TestTypesValidate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "poll.cue"), `package blocks

block: poll: {
	display_name: "Poll"
	fields: {
		question: {scope: "content", type: "string", default: "?"}
	}
}
`)
	resp, err := executeJSON(t, "types", "validate", dir)
	require.NoError(t, err)
	types := data(t, resp)["types"].([]any)
	require.Len(t, types, 1)
	assert.Equal(t, "poll", types[0].(map[string]any)["name"])

	resp, err = executeJSON(t, "types", "list", "poll", "--dir", dir)
	require.NoError(t, err)
	require.Len(t, data(t, resp)["types"], 1)
}

func TestTypesValidate_Invalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.cue"), `package blocks

block: poll: {
	display_name: "Poll"
	fields: {
		question: {scope: "nowhere", type: "string"}
	}
}
`)
	resp, err := executeJSON(t, "types", "validate", dir)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "invalid block types")

	_, err = execute(t, nil, "types", "validate", filepath.Join(dir, "missing"))
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
