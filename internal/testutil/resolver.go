package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/Othello1111/edx-platform/internal/blockstore"
	"github.com/Othello1111/edx-platform/internal/ir"
)

// StaticResolver resolves definition keys from an in-memory table.
//
// Unlike blockstore.Cached, the table can be edited between calls, which
// lets tests simulate a draft changing underneath a live block.
//
// Thread-safety: All methods are safe for concurrent use.
type StaticResolver struct {
	mu    sync.Mutex
	fps   map[ir.DefinitionKey]ir.Fingerprint
	calls int
}

// NewStaticResolver creates an empty resolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{fps: make(map[ir.DefinitionKey]ir.Fingerprint)}
}

// Set maps key to fp.
func (r *StaticResolver) Set(key ir.DefinitionKey, fp ir.Fingerprint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fps[key] = fp
}

// Remove forgets key.
func (r *StaticResolver) Remove(key ir.DefinitionKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.fps, key)
}

// Calls returns how many times ResolveFingerprint has been called.
func (r *StaticResolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// ResolveFingerprint implements fielddata.FingerprintResolver.
func (r *StaticResolver) ResolveFingerprint(ctx context.Context, key ir.DefinitionKey) (ir.Fingerprint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	fp, ok := r.fps[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", blockstore.ErrDefinitionNotFound, key)
	}
	return fp, nil
}
