// Package ir provides the foundation types shared by the runtime: field
// values, definition and usage keys, fingerprints and field scopes.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - no float values; numbers are int64
//   - keys have a stable String form that round-trips through Parse*
//   - fingerprints are content hashes with domain separation (hash.go)
package ir
