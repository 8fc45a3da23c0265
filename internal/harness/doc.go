// Package harness runs YAML scenarios against the block runtime and its
// field data cache, recording a deterministic trace of every step.
//
// Each run gets a fresh in-memory blockstore, field cache and runtime.
// Bundles are seeded from the scenario, contexts registered over them,
// and the steps executed in order. The trace is compared against golden
// files and checked by assertions.
//
// # Scenario Format
//
//	name: edit_and_save
//	description: "Edits stay local to the instance until saved"
//	max_definitions: 10
//	bundles:
//	  - slug: lib1
//	    files:
//	      html/intro/definition.xml: '<html display_name="Intro"/>'
//	    commit: false
//	contexts:
//	  - key: lib1
//	    bundle: lib1
//	    editors: [10]
//	steps:
//	  - op: load
//	    block: a
//	    usage: lb:lib1:html:intro
//	    user: 10
//	  - op: set
//	    block: a
//	    field: display_name
//	    value: Renamed
//	  - op: has_changes
//	    block: a
//	    expect: true
//	  - op: get
//	    block: a
//	    field: editor
//	    expect_error: use_default
//	assertions:
//	  - type: trace_count
//	    op: load
//	    count: 1
//	  - type: final_stats
//	    loaded: 1
//	    active: 1
//
// # Operations
//
//   - load: load usage as user under the alias block
//   - get: read a field straight from the cache (no defaults)
//   - field: read a field with its schema default applied
//   - set, delete: override or reset a field on the instance
//   - commit: commit the instance's overrides as the loaded definition
//   - save: write the block back to its draft and reload it
//   - has_changes, has_cached, children: inspect the instance
//   - release: drop the instance's state
//   - evict: evict unreferenced definitions; the result is the count
//   - stats: cache sizes as {loaded, active, max}
//   - write_file, commit_bundle: edit bundle content between steps
//
// # Golden Files
//
// The trace is written one canonical JSON object per line. Fingerprints
// and instance IDs never appear, so golden files are stable and can be
// written by hand.
package harness
