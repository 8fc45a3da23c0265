package blockstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Othello1111/edx-platform/internal/ir"
)

// Errors reported by the store. Callers match with errors.Is.
var (
	ErrBundleNotFound     = errors.New("bundle not found")
	ErrVersionNotFound    = errors.New("bundle version not found")
	ErrDraftNotFound      = errors.New("draft not found")
	ErrDefinitionNotFound = errors.New("definition not found")
	ErrDraftExists        = errors.New("draft already exists")
)

// Bundle is a versioned collection of files.
type Bundle struct {
	UUID          string `json:"uuid"`
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	LatestVersion int64  `json:"latest_version"`
}

// FileEntry describes one file in a bundle revision.
type FileEntry struct {
	Path string         `json:"path"`
	Hash ir.Fingerprint `json:"hash_digest"`
	Size int64          `json:"size"`
}

// Link is a named reference to a pinned version of another bundle.
type Link struct {
	ID         string `json:"id"`
	BundleUUID string `json:"bundle_uuid"`
	Version    int64  `json:"version"`
}

// Revision selects either a version or a draft of a bundle.
type Revision struct {
	Version   int64
	DraftName string
}

// RevisionOf returns the revision a definition key points at.
func RevisionOf(key ir.DefinitionKey) Revision {
	return Revision{Version: key.BundleVersion, DraftName: key.DraftName}
}

// IsDraft reports whether the revision is a mutable draft.
func (r Revision) IsDraft() bool {
	return r.DraftName != ""
}

func (r Revision) String() string {
	if r.IsDraft() {
		return "draft:" + r.DraftName
	}
	return fmt.Sprintf("version:%d", r.Version)
}

// IDGenerator produces bundle UUIDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 bundle IDs.
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined IDs, for deterministic tests.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
// Panics once all IDs are consumed, to catch test misconfiguration.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
