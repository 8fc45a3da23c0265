package blockstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Othello1111/edx-platform/internal/ir"
)

// GetBundle returns a bundle by UUID.
func (s *Store) GetBundle(ctx context.Context, bundleUUID string) (Bundle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT uuid, slug, title, latest_version FROM bundles WHERE uuid = ?
	`, bundleUUID)
	return scanBundle(row, bundleUUID)
}

// GetBundleBySlug returns a bundle by its unique slug.
func (s *Store) GetBundleBySlug(ctx context.Context, slug string) (Bundle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT uuid, slug, title, latest_version FROM bundles WHERE slug = ?
	`, slug)
	return scanBundle(row, slug)
}

func scanBundle(row *sql.Row, ref string) (Bundle, error) {
	var b Bundle
	err := row.Scan(&b.UUID, &b.Slug, &b.Title, &b.LatestVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return Bundle{}, fmt.Errorf("%w: %s", ErrBundleNotFound, ref)
	}
	if err != nil {
		return Bundle{}, fmt.Errorf("scan bundle: %w", err)
	}
	return b, nil
}

// ListFiles returns the files of a bundle revision ordered by path.
// Returns an empty slice (not nil) for an empty revision.
func (s *Store) ListFiles(ctx context.Context, bundleUUID string, rev Revision) ([]FileEntry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if rev.IsDraft() {
		if err := requireDraft(ctx, s.db, bundleUUID, rev.DraftName); err != nil {
			return nil, err
		}
		rows, err = s.db.QueryContext(ctx, `
			SELECT f.path, f.hash, length(b.content)
			FROM draft_files f JOIN blobs b ON b.hash = f.hash
			WHERE f.bundle_uuid = ? AND f.draft_name = ?
			ORDER BY f.path COLLATE BINARY ASC
		`, bundleUUID, rev.DraftName)
	} else {
		if err := requireVersion(ctx, s.db, bundleUUID, rev.Version); err != nil {
			return nil, err
		}
		rows, err = s.db.QueryContext(ctx, `
			SELECT f.path, f.hash, length(b.content)
			FROM version_files f JOIN blobs b ON b.hash = f.hash
			WHERE f.bundle_uuid = ? AND f.version = ?
			ORDER BY f.path COLLATE BINARY ASC
		`, bundleUUID, rev.Version)
	}
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	files := []FileEntry{}
	for rows.Next() {
		var (
			f    FileEntry
			hash string
		)
		if err := rows.Scan(&f.Path, &hash, &f.Size); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.Hash = ir.Fingerprint(hash)
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return files, nil
}

// DirectLinks returns the links declared by a bundle revision, keyed by
// link ID.
func (s *Store) DirectLinks(ctx context.Context, bundleUUID string, rev Revision) (map[string]Link, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if rev.IsDraft() {
		if err := requireDraft(ctx, s.db, bundleUUID, rev.DraftName); err != nil {
			return nil, err
		}
		rows, err = s.db.QueryContext(ctx, `
			SELECT link_id, target_bundle_uuid, target_version FROM draft_links
			WHERE bundle_uuid = ? AND draft_name = ?
		`, bundleUUID, rev.DraftName)
	} else {
		if err := requireVersion(ctx, s.db, bundleUUID, rev.Version); err != nil {
			return nil, err
		}
		rows, err = s.db.QueryContext(ctx, `
			SELECT link_id, target_bundle_uuid, target_version FROM version_links
			WHERE bundle_uuid = ? AND version = ?
		`, bundleUUID, rev.Version)
	}
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := make(map[string]Link)
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.ID, &l.BundleUUID, &l.Version); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links[l.ID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return links, nil
}

// ResolveFingerprint returns the content hash of the file a definition key
// points at, as of now. Fails with ErrDefinitionNotFound when the bundle
// revision has no file at the key's path.
func (s *Store) ResolveFingerprint(ctx context.Context, key ir.DefinitionKey) (ir.Fingerprint, error) {
	files, err := s.ListFiles(ctx, key.BundleUUID, RevisionOf(key))
	if err != nil {
		return "", notFound(key, err)
	}
	return findFingerprint(key, files)
}

// ReadFile returns the content of the file a definition key points at,
// together with its fingerprint.
func (s *Store) ReadFile(ctx context.Context, key ir.DefinitionKey) ([]byte, ir.Fingerprint, error) {
	fp, err := s.ResolveFingerprint(ctx, key)
	if err != nil {
		return nil, "", err
	}
	content, err := s.ReadBlob(ctx, fp)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", key, err)
	}
	return content, fp, nil
}

// ReadBlob returns content by hash.
func (s *Store) ReadBlob(ctx context.Context, hash ir.Fingerprint) ([]byte, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM blobs WHERE hash = ?`, string(hash)).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("blob %s: %w", hash.Short(), ErrDefinitionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return content, nil
}

func findFingerprint(key ir.DefinitionKey, files []FileEntry) (ir.Fingerprint, error) {
	for _, f := range files {
		if f.Path == key.OLXPath {
			return f.Hash, nil
		}
	}
	return "", fmt.Errorf("%w: could not load OLX file for key %s", ErrDefinitionNotFound, key)
}

// notFound folds a missing bundle, version or draft into
// ErrDefinitionNotFound while keeping the original cause.
func notFound(key ir.DefinitionKey, err error) error {
	if errors.Is(err, ErrBundleNotFound) || errors.Is(err, ErrVersionNotFound) || errors.Is(err, ErrDraftNotFound) {
		return fmt.Errorf("%w: %s: %w", ErrDefinitionNotFound, key, err)
	}
	return err
}
