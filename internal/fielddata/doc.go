// Package fielddata caches block field values read out of the blockstore.
//
// Two maps are kept:
//
//   - Loaded definitions: field values parsed from one definition file,
//     keyed by the file's fingerprint. Entries are immutable once stored
//     and shared by every block instance whose definition resolves to the
//     same fingerprint.
//   - Active blocks: per-instance state holding the instance's fingerprint
//     and its overrides (values set or reset since the instance was
//     loaded). Keyed weakly by the instance's *InstanceKey, so the state is
//     dropped once the key is unreachable. Release drops it eagerly.
//
// Reads consult overrides first, then the loaded definition. When neither
// has a value the read fails with ErrUseDefault and the caller applies
// the field's schema default.
//
// The loaded map is bounded. When a commit pushes it above the ceiling,
// unreferenced entries are evicted oldest first until at most half the
// ceiling remains. An entry referenced by a live active block is never
// evicted.
package fielddata
