package cli

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Othello1111/edx-platform/internal/api"
	"github.com/Othello1111/edx-platform/internal/blockstore"
	"github.com/Othello1111/edx-platform/internal/config"
	"github.com/Othello1111/edx-platform/internal/enrollments"
	"github.com/Othello1111/edx-platform/internal/ir"
	"github.com/Othello1111/edx-platform/internal/runtime"
)

func TestServe_ConfigErrors(t *testing.T) {
	_, err := execute(t, nil, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "config" not set`)

	cfg := filepath.Join(t.TempDir(), "blockrt.yaml")
	writeFile(t, cfg, "listen: ':0'\n")
	_, err = execute(t, nil, "serve", "--config", cfg)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "secret_key is required")
}

func TestPlatformUsers(t *testing.T) {
	ctx := context.Background()
	store, err := enrollments.Open(filepath.Join(t.TempDir(), "enrollments.db"))
	require.NoError(t, err)
	defer store.Close()
	alice, err := store.CreateUser(ctx, "alice", "")
	require.NoError(t, err)

	users := platformUsers(store)
	u, err := users.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, runtime.User{ID: alice.ID, Username: "alice"}, u)

	_, err = users.UserByID(ctx, 99)
	assert.ErrorIs(t, err, api.ErrUserNotFound)
}

func TestOpenApp_ContextRevisions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	seedLibrary(t, dir)

	st, err := blockstore.Open(filepath.Join(dir, "blockstore.db"))
	require.NoError(t, err)
	lib, err := st.GetBundleBySlug(ctx, "lib1")
	require.NoError(t, err)
	_, err = st.CommitDraft(ctx, lib.UUID, DefaultDraft, "v1")
	require.NoError(t, err)
	_, err = st.WriteDraftFile(ctx, lib.UUID, DefaultDraft, "html/intro/definition.xml", []byte(`<html display_name="Draft"/>`))
	require.NoError(t, err)
	empty, err := st.CreateBundle(ctx, "empty", "Empty")
	require.NoError(t, err)
	require.NoError(t, st.CreateDraft(ctx, empty.UUID, DefaultDraft))
	require.NoError(t, st.Close())

	cfg := config.Default()
	cfg.BlockstoreDB = filepath.Join(dir, "blockstore.db")
	cfg.EnrollmentsDB = filepath.Join(dir, "enrollments.db")
	cfg.SecretKey = "s"
	cfg.Contexts = []config.Context{
		{Key: "latest", Bundle: "lib1", Public: true},
		{Key: "draft", Bundle: "lib1", Draft: DefaultDraft, Public: true},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := openApp(ctx, cfg, logger)
	require.NoError(t, err)
	defer a.Close()

	names := map[string]string{"latest": "Introduction", "draft": "Draft"}
	for key, want := range names {
		usage := ir.UsageKey{ContextKey: key, BlockType: "html", UsageID: "intro"}
		b, err := a.runtime.LoadBlock(ctx, usage, runtime.Anonymous)
		require.NoError(t, err, key)
		got, err := b.DisplayName(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got, key)
		b.Release()
	}

	cfg.Contexts = []config.Context{{Key: "e", Bundle: "empty"}}
	_, err = openApp(ctx, cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `context "e": bundle "empty" has no committed version`)
}
