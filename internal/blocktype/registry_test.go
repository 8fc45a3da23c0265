package blocktype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Othello1111/edx-platform/internal/ir"
)

func TestBuiltin(t *testing.T) {
	r, err := Builtin()
	require.NoError(t, err)
	assert.Equal(t, []string{"html", "problem", "unit", "video"}, r.Names())

	html, ok := r.Lookup("html")
	require.True(t, ok)
	assert.Equal(t, "data", html.ContentField)
	f, ok := html.Field("display_name")
	require.True(t, ok)
	assert.Equal(t, ir.String("Text"), f.Default)

	unit, _ := r.Lookup("unit")
	assert.True(t, unit.HasChildren)

	video, _ := r.Lookup("video")
	tr, _ := video.Field("transcripts")
	assert.Equal(t, ir.Dict{}, tr.Default)
	speed, _ := video.Field("speed")
	assert.Equal(t, ir.ScopePreferences, speed.Scope)

	_, ok = r.Lookup("nope")
	assert.False(t, ok)
}

func TestLoadSource_SchemaViolation(t *testing.T) {
	r := NewRegistry()

	err := r.LoadSource("bad.cue", []byte(`block: x: {display_name: "X", fields: {a: {scope: "settings", type: "float"}}}`))
	require.Error(t, err)
	assert.Empty(t, r.Names(), "nothing registered on failure")
}

func TestLoadSource_UnknownKey(t *testing.T) {
	r := NewRegistry()

	err := r.LoadSource("bad.cue", []byte(`block: x: {display_name: "X", colour: "red", fields: {}}`))
	assert.Error(t, err)
}

func TestLoadSource_NoBlocks(t *testing.T) {
	r := NewRegistry()

	err := r.LoadSource("empty.cue", []byte(`other: 1`))
	assert.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	src := `package blocks

block: poll: {
	display_name: "Poll"
	fields: {
		question: {scope: "content", type: "string", default: "?"}
		votes: {scope: "user_state_summary", type: "dict"}
	}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "poll.cue"), []byte(src), 0o644))

	r := MustBuiltin()
	require.NoError(t, r.LoadDir(dir))
	assert.Equal(t, []string{"html", "poll", "problem", "unit", "video"}, r.Names())

	poll, ok := r.Lookup("poll")
	require.True(t, ok)
	votes, _ := poll.Field("votes")
	assert.Equal(t, ir.ScopeUserStateSummary, votes.Scope)
}

func TestLoadDir_Missing(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.LoadDir(filepath.Join(t.TempDir(), "nope")))
}
