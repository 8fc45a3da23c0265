package enrollments

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogQueries(t *testing.T) {
	ctx := context.Background()
	cat := NewStaticCatalog(Program{
		UUID:       programA,
		Title:      "Data Science",
		CourseRuns: []string{"course-v1:edX+DS101+2026", "course-v1:edX+DS102+2026"},
	})

	ok, err := DoesProgramExist(ctx, cat, programA)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = DoesProgramExist(ctx, cat, programB)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = DoesCourseRunExistInProgram(ctx, cat, programA, "course-v1:edX+DS102+2026")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = DoesCourseRunExistInProgram(ctx, cat, programA, "course-v1:edX+CS50+2026")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = DoesCourseRunExistInProgram(ctx, cat, programB, "course-v1:edX+DS101+2026")
	require.NoError(t, err)
	assert.False(t, ok, "missing program is false, not an error")
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
programs:
  - uuid: `+programA+`
    title: Data Science
    course_runs:
      - course-v1:edX+DS101+2026
`), 0o644))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	p, ok, err := cat.Program(context.Background(), programA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Data Science", p.Title)
	assert.Equal(t, []string{"course-v1:edX+DS101+2026"}, p.CourseRuns)
}

func TestLoadCatalog_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadCatalog(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("programs: [\n"), 0o644))
	_, err = LoadCatalog(bad)
	assert.Error(t, err)

	noUUID := filepath.Join(dir, "nouuid.yaml")
	require.NoError(t, os.WriteFile(noUUID, []byte("programs:\n  - title: x\n"), 0o644))
	_, err = LoadCatalog(noUUID)
	assert.ErrorContains(t, err, "has no uuid")
}
