package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Othello1111/edx-platform/internal/blockstore"
	"github.com/Othello1111/edx-platform/internal/ir"
	"github.com/Othello1111/edx-platform/internal/olx"
)

func TestBundleContext_Permissions(t *testing.T) {
	ctx := context.Background()
	private := NewBundleContext("lib", "b1", blockstore.Revision{DraftName: "d"}, WithEditors(1), WithViewers(2))
	public := NewBundleContext("pub", "b2", blockstore.Revision{Version: 3}, WithPublic(true))

	u := ir.UsageKey{ContextKey: "lib", BlockType: "html", UsageID: "x"}
	pu := ir.UsageKey{ContextKey: "pub", BlockType: "html", UsageID: "x"}

	tests := []struct {
		name     string
		lc       *BundleContext
		user     User
		usage    ir.UsageKey
		wantView bool
		wantEdit bool
	}{
		{"editor", private, User{ID: 1}, u, true, true},
		{"viewer", private, User{ID: 2}, u, true, false},
		{"stranger", private, User{ID: 3}, u, false, false},
		{"anonymous", private, Anonymous, u, false, false},
		{"anonymous on public", public, Anonymous, pu, true, false},
		{"wrong context", private, User{ID: 1}, pu, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := tt.lc.CanViewBlock(ctx, tt.user, tt.usage)
			require.NoError(t, err)
			edit, err := tt.lc.CanEditBlock(ctx, tt.user, tt.usage)
			require.NoError(t, err)
			assert.Equal(t, tt.wantView, view)
			assert.Equal(t, tt.wantEdit, edit)
		})
	}
}

func TestBundleContext_DefinitionForUsage(t *testing.T) {
	ctx := context.Background()
	c := NewBundleContext("lib", "b1", blockstore.Revision{Version: 4})

	def, ok, err := c.DefinitionForUsage(ctx, ir.UsageKey{ContextKey: "lib", BlockType: "html", UsageID: "intro"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.DefinitionKey{BundleUUID: "b1", BlockType: "html", OLXPath: "html/intro/definition.xml", BundleVersion: 4}, def)

	_, ok, err = c.DefinitionForUsage(ctx, ir.UsageKey{ContextKey: "other", BlockType: "html", UsageID: "intro"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBundleContext_UsageForChildInclude(t *testing.T) {
	ctx := context.Background()
	c := NewBundleContext("lib", "b1", blockstore.Revision{DraftName: "d"})
	parent := ir.UsageKey{ContextKey: "lib", BlockType: "unit", UsageID: "u1"}

	local, err := c.UsageForChildInclude(ctx, parent, ir.DefinitionKey{}, olx.Include{BlockType: "html", DefinitionID: "intro"})
	require.NoError(t, err)
	assert.Equal(t, ir.UsageKey{ContextKey: "lib", BlockType: "html", UsageID: "intro"}, local)

	linkedDef := ir.DefinitionKey{BundleUUID: "b9", BlockType: "video", OLXPath: "video/v1/definition.xml", BundleVersion: 2}
	linked, err := c.UsageForChildInclude(ctx, parent, linkedDef, olx.Include{LinkID: "media", BlockType: "video", DefinitionID: "v1", UsageHint: "lecture"})
	require.NoError(t, err)
	assert.Equal(t, "lecture", linked.UsageID)

	def, ok, err := c.DefinitionForUsage(ctx, linked)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, linkedDef, def)
}
