package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// DraftName is the draft every scenario bundle is edited through.
const DraftName = "studio_draft"

// Scenario describes bundle content, the learning contexts over it, and a
// sequence of block and field cache operations whose trace is checked.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// MaxDefinitions overrides the field cache ceiling when positive.
	MaxDefinitions int `yaml:"max_definitions,omitempty"`

	// Bundles are created in order, each with one open draft.
	Bundles []BundleSpec `yaml:"bundles"`

	// Contexts are registered with the runtime before the first step.
	Contexts []ContextSpec `yaml:"contexts"`

	// Steps run in order. A failing step is recorded and the run continues.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and cache sizes.
	// Supported types: trace_contains, trace_order, trace_count, final_stats
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// BundleSpec seeds one bundle.
type BundleSpec struct {
	Slug  string `yaml:"slug"`
	Title string `yaml:"title,omitempty"`

	// Files maps a bundle-relative path to its content.
	Files map[string]string `yaml:"files"`

	// Links maps a link ID to the slug of an earlier bundle. The link is
	// pinned to that bundle's latest version.
	Links map[string]string `yaml:"links,omitempty"`

	// Commit freezes the draft into version 1 after files and links are
	// written.
	Commit bool `yaml:"commit,omitempty"`
}

// ContextSpec registers a bundle as a learning context.
type ContextSpec struct {
	Key    string `yaml:"key"`
	Bundle string `yaml:"bundle"`

	// Version pins the context to a committed version. Zero means the
	// bundle's draft.
	Version int64 `yaml:"version,omitempty"`

	Public  bool    `yaml:"public,omitempty"`
	Editors []int64 `yaml:"editors,omitempty"`
	Viewers []int64 `yaml:"viewers,omitempty"`
}

// Step is one operation against the runtime or field cache.
type Step struct {
	// Op selects the operation; see the Op constants.
	Op string `yaml:"op"`

	// Block is the alias a loaded block is kept under.
	Block string `yaml:"block,omitempty"`

	// Usage is the usage key a load step loads.
	Usage string `yaml:"usage,omitempty"`

	// User is the user a load step loads as. Zero is anonymous.
	User int64 `yaml:"user,omitempty"`

	Field string `yaml:"field,omitempty"`

	// Value is the value a set step writes. A zero Kind means absent.
	Value yaml.Node `yaml:"value,omitempty"`

	// Bundle, Path and Content are used by write_file and commit_bundle.
	Bundle  string `yaml:"bundle,omitempty"`
	Path    string `yaml:"path,omitempty"`
	Content string `yaml:"content,omitempty"`

	// Expect is compared with the step's result when present.
	Expect yaml.Node `yaml:"expect,omitempty"`

	// ExpectError is the error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step operations.
const (
	OpLoad         = "load"
	OpGet          = "get"
	OpField        = "field"
	OpSet          = "set"
	OpDelete       = "delete"
	OpCommit       = "commit"
	OpSave         = "save"
	OpHasChanges   = "has_changes"
	OpHasCached    = "has_cached"
	OpChildren     = "children"
	OpRelease      = "release"
	OpEvict        = "evict"
	OpStats        = "stats"
	OpWriteFile    = "write_file"
	OpCommitBundle = "commit_bundle"
)

// blockOps operate on a previously loaded block.
var blockOps = []string{
	OpGet, OpField, OpSet, OpDelete, OpCommit, OpSave,
	OpHasChanges, OpHasCached, OpChildren, OpRelease,
}

// fieldOps additionally name a field.
var fieldOps = []string{OpGet, OpField, OpSet, OpDelete}

// Assertion validates the trace or final cache sizes.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event matching op, block, field and error exists
	// - "trace_order": ops first appear in the given order
	// - "trace_count": op appears exactly Count times
	// - "final_stats": cache sizes at the end of the run
	Type string `yaml:"type"`

	Op    string `yaml:"op,omitempty"`
	Block string `yaml:"block,omitempty"`
	Field string `yaml:"field,omitempty"`

	// Error is the error code the matched event must carry (trace_contains).
	Error string `yaml:"error,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Ops is the expected op order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Loaded and Active are the expected cache sizes (final_stats).
	Loaded *int `yaml:"loaded,omitempty"`
	Active *int `yaml:"active,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalStats    = "final_stats"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is inconsistent.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that
// every reference points at something declared earlier.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.MaxDefinitions < 0 {
		return fmt.Errorf("max_definitions must not be negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	bundles := make(map[string]bool)
	for i, b := range s.Bundles {
		if b.Slug == "" {
			return fmt.Errorf("bundles[%d]: slug is required", i)
		}
		if bundles[b.Slug] {
			return fmt.Errorf("bundles[%d]: duplicate slug %q", i, b.Slug)
		}
		for id, target := range b.Links {
			if !bundles[target] {
				return fmt.Errorf("bundles[%d]: link %q targets undeclared bundle %q", i, id, target)
			}
		}
		bundles[b.Slug] = true
	}

	contexts := make(map[string]bool)
	for i, c := range s.Contexts {
		if c.Key == "" {
			return fmt.Errorf("contexts[%d]: key is required", i)
		}
		if contexts[c.Key] {
			return fmt.Errorf("contexts[%d]: duplicate key %q", i, c.Key)
		}
		if !bundles[c.Bundle] {
			return fmt.Errorf("contexts[%d]: undeclared bundle %q", i, c.Bundle)
		}
		if c.Version < 0 {
			return fmt.Errorf("contexts[%d]: version must not be negative", i)
		}
		contexts[c.Key] = true
	}

	loaded := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(step, bundles, loaded); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.Op == OpLoad {
			loaded[step.Block] = true
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step, bundles, loaded map[string]bool) error {
	switch {
	case step.Op == OpLoad:
		if step.Block == "" || step.Usage == "" {
			return fmt.Errorf("load requires block and usage")
		}
	case slices.Contains(blockOps, step.Op):
		if step.Block == "" {
			return fmt.Errorf("%s requires block", step.Op)
		}
		if !loaded[step.Block] {
			return fmt.Errorf("%s: block %q is not loaded by an earlier step", step.Op, step.Block)
		}
		if slices.Contains(fieldOps, step.Op) && step.Field == "" {
			return fmt.Errorf("%s requires field", step.Op)
		}
		if step.Op == OpSet && step.Value.IsZero() {
			return fmt.Errorf("set requires value")
		}
	case step.Op == OpWriteFile, step.Op == OpCommitBundle:
		if !bundles[step.Bundle] {
			return fmt.Errorf("%s: undeclared bundle %q", step.Op, step.Bundle)
		}
		if step.Op == OpWriteFile && step.Path == "" {
			return fmt.Errorf("write_file requires path")
		}
	case step.Op == OpEvict, step.Op == OpStats:
	case step.Op == "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if !step.Expect.IsZero() && step.ExpectError != "" {
		return fmt.Errorf("expect and expect_error are mutually exclusive")
	}
	if step.ExpectError != "" && !slices.Contains(errorCodes, step.ExpectError) {
		return fmt.Errorf("unknown error code %q", step.ExpectError)
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceContains, AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("%s requires op", a.Type)
		}
	case AssertTraceOrder:
		if len(a.Ops) < 2 {
			return fmt.Errorf("trace_order requires at least two ops")
		}
	case AssertFinalStats:
		if a.Loaded == nil && a.Active == nil {
			return fmt.Errorf("final_stats requires loaded or active")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
