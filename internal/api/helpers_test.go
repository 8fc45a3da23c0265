package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Othello1111/edx-platform/internal/blockstore"
	"github.com/Othello1111/edx-platform/internal/blocktype"
	"github.com/Othello1111/edx-platform/internal/fielddata"
	"github.com/Othello1111/edx-platform/internal/runtime"
	"github.com/Othello1111/edx-platform/internal/testutil"
)

const (
	editorID = int64(10)
	viewerID = int64(20)
	otherID  = int64(30)
)

var testUsers = map[int64]runtime.User{
	editorID: {ID: editorID, Username: "editor"},
	viewerID: {ID: viewerID, Username: "viewer"},
	otherID:  {ID: otherID, Username: "other"},
}

func lookupUser(_ context.Context, id int64) (runtime.User, error) {
	u, ok := testUsers[id]
	if !ok {
		return runtime.User{}, fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	return u, nil
}

type fixture struct {
	store  *blockstore.Store
	clock  *testutil.FakeClock
	signer *TokenSigner
	server *Server
	http   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := blockstore.Open(filepath.Join(t.TempDir(), "blockstore.db"),
		blockstore.WithIDGenerator(blockstore.NewFixedGenerator("lib-uuid")))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	lib, err := store.CreateBundle(ctx, "lib1", "Library One")
	require.NoError(t, err)
	require.NoError(t, store.CreateDraft(ctx, lib.UUID, "studio_draft"))
	files := map[string]string{
		"html/intro/definition.xml": `<html display_name="Introduction"><![CDATA[<p>Welcome</p>]]></html>`,
		"problem/p1/definition.xml": `<problem max_attempts="2"><![CDATA[<p>2+2?</p>]]></problem>`,
	}
	for path, content := range files {
		_, err := store.WriteDraftFile(ctx, lib.UUID, "studio_draft", path, []byte(content))
		require.NoError(t, err)
	}

	cached := blockstore.NewCached(store)
	fields := fielddata.New(cached, fielddata.WithMetricsComponent("api-test"))
	rt := runtime.New(cached, fields, blocktype.MustBuiltin(), runtime.WithWriter(store))
	rt.AddContext("lib1", runtime.NewBundleContext("lib1", lib.UUID,
		blockstore.Revision{DraftName: "studio_draft"},
		runtime.WithEditors(editorID), runtime.WithViewers(viewerID)))

	clock := testutil.NewFakeClock(epoch)
	signer := newSigner(t, clock)
	srv, err := New(rt, signer, UserLookupFunc(lookupUser))
	require.NoError(t, err)

	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)

	return &fixture{store: store, clock: clock, signer: signer, server: srv, http: hs}
}

// do sends a request as userID (0 for anonymous).
func (f *fixture) do(t *testing.T, method, path string, userID int64, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.http.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if userID != 0 {
		req.Header.Set(UserIDHeader, fmt.Sprint(userID))
	}
	resp, err := f.http.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
