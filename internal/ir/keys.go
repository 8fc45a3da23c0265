package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Fingerprint is the content hash of one revision of a definition file, as
// reported by the store. It is the cache key for loaded field values.
type Fingerprint string

// Short returns the first 12 characters, for logs.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// DefinitionKey identifies one OLX file at one revision: a path inside a
// bundle, pinned to either an immutable version or a mutable draft.
// Exactly one of BundleVersion and DraftName is set.
type DefinitionKey struct {
	BundleUUID    string `json:"bundle_uuid" yaml:"bundle_uuid"`
	BlockType     string `json:"block_type" yaml:"block_type"`
	OLXPath       string `json:"olx_path" yaml:"olx_path"`
	BundleVersion int64  `json:"bundle_version,omitempty" yaml:"bundle_version,omitempty"`
	DraftName     string `json:"draft_name,omitempty" yaml:"draft_name,omitempty"`
}

// IsDraft reports whether the key points at mutable draft content.
func (k DefinitionKey) IsDraft() bool {
	return k.DraftName != ""
}

// Validate checks that exactly one of version and draft is set.
func (k DefinitionKey) Validate() error {
	if k.BundleUUID == "" {
		return fmt.Errorf("definition key: bundle uuid is required")
	}
	if k.OLXPath == "" {
		return fmt.Errorf("definition key: olx path is required")
	}
	if (k.BundleVersion > 0) == k.IsDraft() {
		return fmt.Errorf("definition key: exactly one of bundle version and draft name must be set")
	}
	return nil
}

// String renders the key as bundle-olx:<uuid>:<version|draft>:<type>:<path>.
func (k DefinitionKey) String() string {
	rev := k.DraftName
	if !k.IsDraft() {
		rev = strconv.FormatInt(k.BundleVersion, 10)
	}
	return fmt.Sprintf("bundle-olx:%s:%s:%s:%s", k.BundleUUID, rev, k.BlockType, k.OLXPath)
}

// ParseDefinitionKey parses the String form of a DefinitionKey.
// A purely numeric revision is a version; anything else is a draft name.
func ParseDefinitionKey(s string) (DefinitionKey, error) {
	parts := strings.SplitN(s, ":", 5)
	if len(parts) != 5 || parts[0] != "bundle-olx" {
		return DefinitionKey{}, fmt.Errorf("invalid definition key %q", s)
	}
	key := DefinitionKey{
		BundleUUID: parts[1],
		BlockType:  parts[3],
		OLXPath:    parts[4],
	}
	if n, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
		key.BundleVersion = n
	} else {
		key.DraftName = parts[2]
	}
	if err := key.Validate(); err != nil {
		return DefinitionKey{}, err
	}
	return key, nil
}

// OLXPathFor returns the conventional definition path for a block.
func OLXPathFor(blockType, definitionID string) string {
	return fmt.Sprintf("%s/%s/definition.xml", blockType, definitionID)
}

// UsageKey identifies one use of a block inside a learning context.
// String form: lb:<context>:<block type>:<usage id>.
type UsageKey struct {
	ContextKey string
	BlockType  string
	UsageID    string
}

// String renders the usage key.
func (u UsageKey) String() string {
	return fmt.Sprintf("lb:%s:%s:%s", u.ContextKey, u.BlockType, u.UsageID)
}

// ParseUsageKey parses "lb:<context>:<type>:<usage id>".
func ParseUsageKey(s string) (UsageKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 || parts[0] != "lb" {
		return UsageKey{}, fmt.Errorf("invalid usage key %q", s)
	}
	for _, p := range parts[1:] {
		if p == "" {
			return UsageKey{}, fmt.Errorf("invalid usage key %q: empty component", s)
		}
	}
	return UsageKey{ContextKey: parts[1], BlockType: parts[2], UsageID: parts[3]}, nil
}
