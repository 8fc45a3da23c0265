package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
listen: 127.0.0.1:9000
base_url: https://lms.example.com
blockstore_db: data/blockstore.db
enrollments_db: /var/lib/blockrt/enrollments.db
read_replica_db: data/replica.db
catalog_file: catalog.yaml
max_definitions_loaded: 250
secret_key: s3cret
block_types_dir: types
log_level: debug
contexts:
  - key: lib1
    bundle: lib1
    draft: studio_draft
    editors: [10]
    viewers: [20, 21]
  - key: published
    bundle: lib1
    version: 3
    public: true
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("secret_key: k\n"))
	require.NoError(t, err)

	want := Default()
	want.SecretKey = "k"
	assert.Equal(t, want, cfg)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestParse_Full(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, 250, cfg.MaxDefinitionsLoaded)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	require.Len(t, cfg.Contexts, 2)
	assert.Equal(t, Context{Key: "lib1", Bundle: "lib1", Draft: "studio_draft", Editors: []int64{10}, Viewers: []int64{20, 21}}, cfg.Contexts[0])
	assert.Equal(t, Context{Key: "published", Bundle: "lib1", Version: 3, Public: true}, cfg.Contexts[1])
}

func TestParse_EmptyDocumentNeedsSecret(t *testing.T) {
	_, err := Parse(nil)
	assert.ErrorContains(t, err, "secret_key is required")
}

func TestParse_SecretFromEnvironment(t *testing.T) {
	t.Setenv(SecretKeyEnv, "from-env")
	cfg, err := Parse([]byte("secret_key: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.SecretKey)
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := Parse([]byte("secret_key: k\nmax_definitons_loaded: 5\n"))
	assert.ErrorContains(t, err, "max_definitons_loaded")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"zero ceiling", "secret_key: k\nmax_definitions_loaded: 0\n", "max_definitions_loaded must be at least 1"},
		{"bad log level", "secret_key: k\nlog_level: loud\n", "log_level"},
		{"context without key", "secret_key: k\ncontexts: [{bundle: b}]\n", "contexts[0]: key is required"},
		{"context key with colon", "secret_key: k\ncontexts: [{key: 'a:b', bundle: b}]\n", "may not contain"},
		{"duplicate context", "secret_key: k\ncontexts: [{key: a, bundle: b}, {key: a, bundle: c}]\n", `contexts[1]: duplicate key "a"`},
		{"context without bundle", "secret_key: k\ncontexts: [{key: a}]\n", "contexts[0]: bundle is required"},
		{"draft and version", "secret_key: k\ncontexts: [{key: a, bundle: b, draft: d, version: 2}]\n", "not both"},
		{"negative version", "secret_key: k\ncontexts: [{key: a, bundle: b, version: -1}]\n", "negative version"},
		{"empty listen", "secret_key: k\nlisten: ''\n", "listen is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.MaxDefinitionsLoaded = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_definitions_loaded")
	assert.Contains(t, err.Error(), "secret_key")
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blockrt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data/blockstore.db"), cfg.BlockstoreDB)
	assert.Equal(t, "/var/lib/blockrt/enrollments.db", cfg.EnrollmentsDB)
	assert.Equal(t, filepath.Join(dir, "data/replica.db"), cfg.ReadReplicaDB)
	assert.Equal(t, filepath.Join(dir, "catalog.yaml"), cfg.CatalogFile)
	assert.Equal(t, filepath.Join(dir, "types"), cfg.BlockTypesDir)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("listen: [\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "bad.yaml")
}
