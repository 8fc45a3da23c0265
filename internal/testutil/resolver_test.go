package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Othello1111/edx-platform/internal/blockstore"
	"github.com/Othello1111/edx-platform/internal/ir"
)

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver()
	key := ir.DefinitionKey{BundleUUID: "b", OLXPath: "html/a/definition.xml", DraftName: "d"}

	_, err := r.ResolveFingerprint(context.Background(), key)
	assert.ErrorIs(t, err, blockstore.ErrDefinitionNotFound)

	r.Set(key, "H1")
	fp, err := r.ResolveFingerprint(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, ir.Fingerprint("H1"), fp)
	assert.Equal(t, 2, r.Calls())

	r.Remove(key)
	_, err = r.ResolveFingerprint(context.Background(), key)
	assert.ErrorIs(t, err, blockstore.ErrDefinitionNotFound)
}
