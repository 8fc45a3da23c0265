package blockstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Othello1111/edx-platform/internal/ir"
)

func TestResolveFingerprint(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	b := createTestDraft(t, s, "lib1", "d", map[string]string{
		"html/a/definition.xml": `<html display_name="A"/>`,
	})

	key := ir.DefinitionKey{BundleUUID: b.UUID, BlockType: "html", OLXPath: "html/a/definition.xml", DraftName: "d"}
	fp, err := s.ResolveFingerprint(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, ir.ContentHash([]byte(`<html display_name="A"/>`)), fp)

	content, fp2, err := s.ReadFile(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, fp, fp2)
	assert.Equal(t, `<html display_name="A"/>`, string(content))
}

func TestResolveFingerprint_NotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	b := createTestDraft(t, s, "lib1", "d", nil)

	tests := []struct {
		name string
		key  ir.DefinitionKey
	}{
		{"missing path", ir.DefinitionKey{BundleUUID: b.UUID, OLXPath: "nope.xml", DraftName: "d"}},
		{"missing draft", ir.DefinitionKey{BundleUUID: b.UUID, OLXPath: "nope.xml", DraftName: "other"}},
		{"missing version", ir.DefinitionKey{BundleUUID: b.UUID, OLXPath: "nope.xml", BundleVersion: 3}},
		{"missing bundle", ir.DefinitionKey{BundleUUID: "ghost", OLXPath: "nope.xml", BundleVersion: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ResolveFingerprint(ctx, tt.key)
			assert.ErrorIs(t, err, ErrDefinitionNotFound)
		})
	}
}

func TestIdenticalContentSharesFingerprint(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	b := createTestDraft(t, s, "lib1", "d", map[string]string{
		"html/a/definition.xml": `<html display_name="Same"/>`,
		"html/b/definition.xml": `<html display_name="Same"/>`,
	})

	a, err := s.ResolveFingerprint(ctx, ir.DefinitionKey{BundleUUID: b.UUID, OLXPath: "html/a/definition.xml", DraftName: "d"})
	require.NoError(t, err)
	bb, err := s.ResolveFingerprint(ctx, ir.DefinitionKey{BundleUUID: b.UUID, OLXPath: "html/b/definition.xml", DraftName: "d"})
	require.NoError(t, err)
	assert.Equal(t, a, bb)
}

func TestListFiles_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)
	b := createTestDraft(t, s, "lib1", "d", nil)

	files, err := s.ListFiles(context.Background(), b.UUID, Revision{DraftName: "d"})
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestGetBundle_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetBundle(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrBundleNotFound)
}
