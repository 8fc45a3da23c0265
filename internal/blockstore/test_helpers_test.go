package blockstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

// createTestStore creates a store in a temp directory with fixed bundle IDs.
func createTestStore(t *testing.T, ids ...string) *Store {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"bundle-1", "bundle-2", "bundle-3"}
	}
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(NewFixedGenerator(ids...)))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestDraft creates a bundle with a draft holding files.
func createTestDraft(t *testing.T, s *Store, slug, draft string, files map[string]string) Bundle {
	t.Helper()
	ctx := context.Background()
	b, err := s.CreateBundle(ctx, slug, slug)
	if err != nil {
		t.Fatalf("CreateBundle() failed: %v", err)
	}
	if err := s.CreateDraft(ctx, b.UUID, draft); err != nil {
		t.Fatalf("CreateDraft() failed: %v", err)
	}
	for p, content := range files {
		if _, err := s.WriteDraftFile(ctx, b.UUID, draft, p, []byte(content)); err != nil {
			t.Fatalf("WriteDraftFile(%s) failed: %v", p, err)
		}
	}
	return b
}

// verifyPragma checks that a pragma is set to the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
