package runtime

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Othello1111/edx-platform/internal/blockstore"
	"github.com/Othello1111/edx-platform/internal/blocktype"
	"github.com/Othello1111/edx-platform/internal/fielddata"
	"github.com/Othello1111/edx-platform/internal/ir"
)

const (
	editorID = int64(10)
	viewerID = int64(20)
	otherID  = int64(30)
)

type fixture struct {
	store  *blockstore.Store
	cached *blockstore.Cached
	fields *fielddata.FieldData
	rt     *Runtime
	bundle blockstore.Bundle
	lib    *BundleContext
}

var libraryFiles = map[string]string{
	"unit/week1/definition.xml": `<unit display_name="Week 1">
    <xblock-include definition="html/intro" />
    <xblock-include definition="problem/p1" usage="quiz" />
    <xblock-include source="shared" definition="video/v1" />
</unit>`,
	"html/intro/definition.xml":  `<html display_name="Introduction"><![CDATA[<p>Welcome</p>]]></html>`,
	"problem/p1/definition.xml":  `<problem max_attempts="2"><![CDATA[<p>2+2?</p>]]></problem>`,
	"html/broken/definition.xml": `<html`,
	"unit/bad/definition.xml":    `<unit><xblock-include definition="nope" /></unit>`,
}

func newFixture(t *testing.T, opts ...fielddata.Option) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := blockstore.Open(filepath.Join(t.TempDir(), "blockstore.db"),
		blockstore.WithIDGenerator(blockstore.NewFixedGenerator("shared-uuid", "lib-uuid")))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	shared, err := store.CreateBundle(ctx, "shared", "Shared media")
	require.NoError(t, err)
	require.NoError(t, store.CreateDraft(ctx, shared.UUID, "studio_draft"))
	_, err = store.WriteDraftFile(ctx, shared.UUID, "studio_draft", "video/v1/definition.xml",
		[]byte(`<video display_name="Lecture" youtube_id="abc123" start_time="5"/>`))
	require.NoError(t, err)
	_, err = store.CommitDraft(ctx, shared.UUID, "studio_draft", "initial")
	require.NoError(t, err)

	lib, err := store.CreateBundle(ctx, "lib1", "Library One")
	require.NoError(t, err)
	require.NoError(t, store.CreateDraft(ctx, lib.UUID, "studio_draft"))
	for path, content := range libraryFiles {
		_, err := store.WriteDraftFile(ctx, lib.UUID, "studio_draft", path, []byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, store.SetDraftLink(ctx, lib.UUID, "studio_draft", "shared", shared.UUID, 1))

	cached := blockstore.NewCached(store)
	fields := fielddata.New(cached, opts...)
	rt := New(cached, fields, blocktype.MustBuiltin(), WithWriter(store))
	bc := NewBundleContext("lib1", lib.UUID, blockstore.Revision{DraftName: "studio_draft"},
		WithEditors(editorID), WithViewers(viewerID))
	rt.AddContext("lib1", bc)

	return &fixture{store: store, cached: cached, fields: fields, rt: rt, bundle: lib, lib: bc}
}

func usage(blockType, id string) ir.UsageKey {
	return ir.UsageKey{ContextKey: "lib1", BlockType: blockType, UsageID: id}
}

var editor = User{ID: editorID, Username: "editor"}
var viewer = User{ID: viewerID, Username: "viewer"}
