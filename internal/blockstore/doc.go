// Package blockstore provides the SQLite-backed versioned content store that
// block definitions (OLX files) are read from.
//
// Content is organized as:
//   - Bundles: a named collection of files, identified by a UUID
//   - Versions: immutable snapshots of a bundle, numbered 1, 2, 3...
//   - Drafts: mutable working copies, committed into a new version
//   - Links: named references from a bundle revision to a pinned version
//     of another bundle
//
// File content is stored once per distinct content hash (ir.ContentHash).
// The hash is reported as the file's fingerprint, so two definitions with
// identical bytes share one fingerprint.
//
// Cached wraps a Store: version lookups are cached forever since versions
// never change, draft lookups always hit the database.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package blockstore
