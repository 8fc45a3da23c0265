package blockstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/Othello1111/edx-platform/internal/ir"
)

// CreateBundle registers a new, empty bundle (latest version 0).
func (s *Store) CreateBundle(ctx context.Context, slug, title string) (Bundle, error) {
	if slug == "" {
		return Bundle{}, fmt.Errorf("create bundle: slug is required")
	}
	b := Bundle{UUID: s.idGen.Generate(), Slug: slug, Title: title}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bundles (uuid, slug, title, latest_version)
		VALUES (?, ?, ?, 0)
	`, b.UUID, b.Slug, b.Title)
	if err != nil {
		return Bundle{}, fmt.Errorf("create bundle: %w", err)
	}
	return b, nil
}

// CreateDraft opens a draft on a bundle, seeded with the files and links
// of the bundle's latest version.
func (s *Store) CreateDraft(ctx context.Context, bundleUUID, name string) error {
	if name == "" {
		return fmt.Errorf("create draft: name is required")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		latest, err := latestVersion(ctx, tx, bundleUUID)
		if err != nil {
			return fmt.Errorf("create draft: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO drafts (bundle_uuid, name) VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, bundleUUID, name)
		if err != nil {
			return fmt.Errorf("create draft: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("create draft %q: %w", name, ErrDraftExists)
		}

		if latest == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO draft_files (bundle_uuid, draft_name, path, hash)
			SELECT bundle_uuid, ?, path, hash FROM version_files
			WHERE bundle_uuid = ? AND version = ?
		`, name, bundleUUID, latest); err != nil {
			return fmt.Errorf("create draft: copy files: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO draft_links (bundle_uuid, draft_name, link_id, target_bundle_uuid, target_version)
			SELECT bundle_uuid, ?, link_id, target_bundle_uuid, target_version FROM version_links
			WHERE bundle_uuid = ? AND version = ?
		`, name, bundleUUID, latest); err != nil {
			return fmt.Errorf("create draft: copy links: %w", err)
		}
		return nil
	})
}

// WriteDraftFile stores content at path in the draft, replacing any
// previous file. Returns the content fingerprint.
func (s *Store) WriteDraftFile(ctx context.Context, bundleUUID, draft, filePath string, content []byte) (ir.Fingerprint, error) {
	clean, err := cleanPath(filePath)
	if err != nil {
		return "", fmt.Errorf("write draft file: %w", err)
	}
	hash := ir.ContentHash(content)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireDraft(ctx, tx, bundleUUID, draft); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO blobs (hash, content) VALUES (?, ?)
			ON CONFLICT(hash) DO NOTHING
		`, string(hash), content); err != nil {
			return fmt.Errorf("insert blob: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO draft_files (bundle_uuid, draft_name, path, hash)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(bundle_uuid, draft_name, path) DO UPDATE SET hash = excluded.hash
		`, bundleUUID, draft, clean, string(hash)); err != nil {
			return fmt.Errorf("upsert draft file: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("write draft file %s: %w", clean, err)
	}
	return hash, nil
}

// DeleteDraftFile removes a file from the draft. Deleting a missing file
// is not an error.
func (s *Store) DeleteDraftFile(ctx context.Context, bundleUUID, draft, filePath string) error {
	clean, err := cleanPath(filePath)
	if err != nil {
		return fmt.Errorf("delete draft file: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireDraft(ctx, tx, bundleUUID, draft); err != nil {
			return fmt.Errorf("delete draft file: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM draft_files WHERE bundle_uuid = ? AND draft_name = ? AND path = ?
		`, bundleUUID, draft, clean)
		if err != nil {
			return fmt.Errorf("delete draft file: %w", err)
		}
		return nil
	})
}

// SetDraftLink points linkID at a committed version of another bundle.
func (s *Store) SetDraftLink(ctx context.Context, bundleUUID, draft, linkID, targetBundle string, targetVersion int64) error {
	if linkID == "" {
		return fmt.Errorf("set draft link: link id is required")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireDraft(ctx, tx, bundleUUID, draft); err != nil {
			return fmt.Errorf("set draft link: %w", err)
		}
		if err := requireVersion(ctx, tx, targetBundle, targetVersion); err != nil {
			return fmt.Errorf("set draft link %q: %w", linkID, err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO draft_links (bundle_uuid, draft_name, link_id, target_bundle_uuid, target_version)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(bundle_uuid, draft_name, link_id) DO UPDATE SET
				target_bundle_uuid = excluded.target_bundle_uuid,
				target_version = excluded.target_version
		`, bundleUUID, draft, linkID, targetBundle, targetVersion)
		if err != nil {
			return fmt.Errorf("set draft link: %w", err)
		}
		return nil
	})
}

// CommitDraft freezes the draft's current files and links into a new
// immutable version and returns its number. The draft stays open.
func (s *Store) CommitDraft(ctx context.Context, bundleUUID, draft, description string) (int64, error) {
	var version int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireDraft(ctx, tx, bundleUUID, draft); err != nil {
			return err
		}
		latest, err := latestVersion(ctx, tx, bundleUUID)
		if err != nil {
			return err
		}
		version = latest + 1

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bundle_versions (bundle_uuid, version, change_description)
			VALUES (?, ?, ?)
		`, bundleUUID, version, description); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO version_files (bundle_uuid, version, path, hash)
			SELECT bundle_uuid, ?, path, hash FROM draft_files
			WHERE bundle_uuid = ? AND draft_name = ?
		`, version, bundleUUID, draft); err != nil {
			return fmt.Errorf("copy files: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO version_links (bundle_uuid, version, link_id, target_bundle_uuid, target_version)
			SELECT bundle_uuid, ?, link_id, target_bundle_uuid, target_version FROM draft_links
			WHERE bundle_uuid = ? AND draft_name = ?
		`, version, bundleUUID, draft); err != nil {
			return fmt.Errorf("copy links: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE bundles SET latest_version = ? WHERE uuid = ?
		`, version, bundleUUID); err != nil {
			return fmt.Errorf("bump latest version: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("commit draft %q: %w", draft, err)
	}
	return version, nil
}

// queryRower is satisfied by both *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func latestVersion(ctx context.Context, q queryRower, bundleUUID string) (int64, error) {
	var latest int64
	err := q.QueryRowContext(ctx, `SELECT latest_version FROM bundles WHERE uuid = ?`, bundleUUID).Scan(&latest)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrBundleNotFound, bundleUUID)
	}
	if err != nil {
		return 0, fmt.Errorf("read latest version: %w", err)
	}
	return latest, nil
}

func requireDraft(ctx context.Context, q queryRower, bundleUUID, draft string) error {
	var one int
	err := q.QueryRowContext(ctx, `
		SELECT 1 FROM drafts WHERE bundle_uuid = ? AND name = ?
	`, bundleUUID, draft).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", ErrDraftNotFound, bundleUUID, draft)
	}
	if err != nil {
		return fmt.Errorf("lookup draft: %w", err)
	}
	return nil
}

func requireVersion(ctx context.Context, q queryRower, bundleUUID string, version int64) error {
	var one int
	err := q.QueryRowContext(ctx, `
		SELECT 1 FROM bundle_versions WHERE bundle_uuid = ? AND version = ?
	`, bundleUUID, version).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s@%d", ErrVersionNotFound, bundleUUID, version)
	}
	if err != nil {
		return fmt.Errorf("lookup version: %w", err)
	}
	return nil
}

// cleanPath normalizes a bundle-relative file path.
func cleanPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path is required")
	}
	clean := path.Clean(strings.TrimPrefix(p, "/"))
	if clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", fmt.Errorf("invalid path %q", p)
	}
	return clean, nil
}
