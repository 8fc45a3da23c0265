package blockstore

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Othello1111/edx-platform/internal/ir"
)

// Cached is a read-through view of a Store.
//
// Version file lists and version links are cached for the life of the
// process: versions are immutable. Draft lookups always go to the store
// because the draft may have been edited since the last call. Concurrent
// identical lookups share one database round trip.
//
// Thread-safety: Cached is safe for concurrent use.
type Cached struct {
	store *Store
	group singleflight.Group

	mu    sync.RWMutex
	files map[versionRef][]FileEntry
	links map[versionRef]map[string]Link
}

type versionRef struct {
	bundleUUID string
	version    int64
}

// NewCached wraps store.
func NewCached(store *Store) *Cached {
	return &Cached{
		store: store,
		files: make(map[versionRef][]FileEntry),
		links: make(map[versionRef]map[string]Link),
	}
}

// Store returns the wrapped store.
func (c *Cached) Store() *Store {
	return c.store
}

// ListFiles returns the files of a bundle revision. The returned slice
// must be treated as read-only.
func (c *Cached) ListFiles(ctx context.Context, bundleUUID string, rev Revision) ([]FileEntry, error) {
	if rev.IsDraft() {
		v, err, _ := c.group.Do("files:"+bundleUUID+":"+rev.String(), func() (any, error) {
			return c.store.ListFiles(ctx, bundleUUID, rev)
		})
		if err != nil {
			return nil, err
		}
		return v.([]FileEntry), nil
	}

	ref := versionRef{bundleUUID, rev.Version}
	c.mu.RLock()
	files, ok := c.files[ref]
	c.mu.RUnlock()
	if ok {
		return files, nil
	}

	v, err, _ := c.group.Do("files:"+bundleUUID+":"+rev.String(), func() (any, error) {
		files, err := c.store.ListFiles(ctx, bundleUUID, rev)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.files[ref] = files
		c.mu.Unlock()
		return files, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]FileEntry), nil
}

// DirectLinks returns the links of a bundle revision. The returned map is
// a copy the caller may keep.
func (c *Cached) DirectLinks(ctx context.Context, bundleUUID string, rev Revision) (map[string]Link, error) {
	if rev.IsDraft() {
		return c.store.DirectLinks(ctx, bundleUUID, rev)
	}

	ref := versionRef{bundleUUID, rev.Version}
	c.mu.RLock()
	links, ok := c.links[ref]
	c.mu.RUnlock()
	if ok {
		return maps.Clone(links), nil
	}

	v, err, _ := c.group.Do("links:"+bundleUUID+":"+rev.String(), func() (any, error) {
		links, err := c.store.DirectLinks(ctx, bundleUUID, rev)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.links[ref] = links
		c.mu.Unlock()
		return links, nil
	})
	if err != nil {
		return nil, err
	}
	return maps.Clone(v.(map[string]Link)), nil
}

// ResolveFingerprint implements fielddata.FingerprintResolver.
// Version keys are answered from cache after the first lookup; draft keys
// are re-resolved on every call.
func (c *Cached) ResolveFingerprint(ctx context.Context, key ir.DefinitionKey) (ir.Fingerprint, error) {
	files, err := c.ListFiles(ctx, key.BundleUUID, RevisionOf(key))
	if err != nil {
		return "", notFound(key, err)
	}
	return findFingerprint(key, files)
}

// ReadFile returns the definition content for key.
func (c *Cached) ReadFile(ctx context.Context, key ir.DefinitionKey) ([]byte, ir.Fingerprint, error) {
	fp, err := c.ResolveFingerprint(ctx, key)
	if err != nil {
		return nil, "", err
	}
	content, err := c.store.ReadBlob(ctx, fp)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", key, err)
	}
	return content, fp, nil
}

// CachedVersions returns how many version file lists are cached.
func (c *Cached) CachedVersions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}
