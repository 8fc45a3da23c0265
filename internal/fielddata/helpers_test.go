package fielddata_test

import (
	"github.com/Othello1111/edx-platform/internal/fielddata"
	"github.com/Othello1111/edx-platform/internal/ir"
	"github.com/Othello1111/edx-platform/internal/testutil"
)

var testFields = map[string]ir.Scope{
	"title":       ir.ScopeSettings,
	"data":        ir.ScopeContent,
	"children":    ir.ScopeChildren,
	"parent":      ir.ScopeParent,
	"kids":        ir.ScopeChildren,
	"progress":    ir.ScopeUserState,
	"speed":       ir.ScopePreferences,
	"shared_type": {Name: "type_shared", User: ir.UserScopeNone, Block: ir.BlockScopeType},
}

type testBlock struct {
	key    *fielddata.InstanceKey
	defKey ir.DefinitionKey
}

func (b *testBlock) InstanceKey() *fielddata.InstanceKey { return b.key }
func (b *testBlock) DefinitionKey() ir.DefinitionKey     { return b.defKey }
func (b *testBlock) FieldScope(name string) (ir.Scope, bool) {
	s, ok := testFields[name]
	return s, ok
}

func defKey(id string) ir.DefinitionKey {
	return ir.DefinitionKey{
		BundleUUID: "bundle-1",
		BlockType:  "html",
		OLXPath:    ir.OLXPathFor("html", id),
		DraftName:  "studio_draft",
	}
}

// newBlock creates a block whose definition resolves to fp.
func newBlock(r *testutil.StaticResolver, id string, fp ir.Fingerprint) *testBlock {
	k := defKey(id)
	r.Set(k, fp)
	return &testBlock{key: fielddata.NewInstanceKey("lb:lib:html:" + id), defKey: k}
}

// instance returns another instance of the same definition as b.
func instance(b *testBlock) *testBlock {
	return &testBlock{key: fielddata.NewInstanceKey(b.key.String()), defKey: b.defKey}
}
