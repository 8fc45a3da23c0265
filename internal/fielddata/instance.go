package fielddata

import (
	"context"
	"sync/atomic"

	"github.com/Othello1111/edx-platform/internal/ir"
)

var instanceSeq atomic.Uint64

// InstanceKey identifies one block instance by pointer identity. Two
// instances are the same only if they hold the same *InstanceKey; the
// key's contents are never compared.
type InstanceKey struct {
	id    uint64
	label string
}

// NewInstanceKey returns a fresh key. label is used in log messages only.
func NewInstanceKey(label string) *InstanceKey {
	return &InstanceKey{id: instanceSeq.Add(1), label: label}
}

// ID returns a process-unique number for the key.
func (k *InstanceKey) ID() uint64 {
	return k.id
}

func (k *InstanceKey) String() string {
	return k.label
}

// Block is what the cache needs to know about a block instance.
type Block interface {
	// InstanceKey returns the instance's identity handle. It must return
	// the same pointer for the life of the instance.
	InstanceKey() *InstanceKey

	// DefinitionKey returns the definition the instance was loaded from.
	DefinitionKey() ir.DefinitionKey

	// FieldScope returns the declared scope of a field, false when the
	// block has no such field.
	FieldScope(name string) (ir.Scope, bool)
}

// FingerprintResolver maps a definition key to the fingerprint of its
// current content. Implementations fail with an error wrapping
// blockstore.ErrDefinitionNotFound when there is no such content.
type FingerprintResolver interface {
	ResolveFingerprint(ctx context.Context, key ir.DefinitionKey) (ir.Fingerprint, error)
}
