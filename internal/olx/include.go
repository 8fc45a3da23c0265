package olx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Othello1111/edx-platform/internal/blockstore"
	"github.com/Othello1111/edx-platform/internal/ir"
)

// IncludeElement is the element name of a child include.
const IncludeElement = "xblock-include"

// ErrMalformedInclude reports an include element that cannot be resolved.
var ErrMalformedInclude = errors.New("malformed xblock-include")

// IncludeError carries the offending value of a malformed include.
type IncludeError struct {
	Value   string
	Message string
}

func (e *IncludeError) Error() string {
	if e.Value == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %q", e.Message, e.Value)
}

// Unwrap makes errors.Is(err, ErrMalformedInclude) hold.
func (e *IncludeError) Unwrap() error {
	return ErrMalformedInclude
}

// Include is a parsed <xblock-include source="link" definition="type/id"
// usage="hint" /> element. LinkID and UsageHint are optional.
type Include struct {
	LinkID       string `json:"link_id,omitempty"`
	BlockType    string `json:"block_type"`
	DefinitionID string `json:"definition_id"`
	UsageHint    string `json:"usage_hint,omitempty"`
}

// ParseInclude parses an include element.
func ParseInclude(n *Node) (Include, error) {
	def, ok := n.Attr("definition")
	if !ok {
		return Include{}, &IncludeError{Message: `<xblock-include> is missing the required definition="..." attribute`}
	}
	blockType, defID, ok := strings.Cut(def, "/")
	if !ok || blockType == "" || defID == "" || strings.Contains(defID, "/") {
		return Include{}, &IncludeError{Value: def, Message: "invalid definition attribute"}
	}
	inc := Include{BlockType: blockType, DefinitionID: defID}
	inc.LinkID, _ = n.Attr("source")
	inc.UsageHint, _ = n.Attr("usage")
	return inc, nil
}

// Includes parses every include directly under n, in document order.
func Includes(n *Node) ([]Include, error) {
	var out []Include
	for _, c := range n.ChildrenNamed(IncludeElement) {
		inc, err := ParseInclude(c)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, nil
}

// LinkSource lists the bundle links declared by a bundle revision.
type LinkSource interface {
	DirectLinks(ctx context.Context, bundleUUID string, rev blockstore.Revision) (map[string]blockstore.Link, error)
}

// DefinitionForInclude returns the definition an include points at, given
// the definition of the element that contains it. Linked includes resolve
// into the pinned version of the linked bundle; local includes stay in the
// parent's bundle revision.
func DefinitionForInclude(ctx context.Context, links LinkSource, inc Include, parent ir.DefinitionKey) (ir.DefinitionKey, error) {
	path := ir.OLXPathFor(inc.BlockType, inc.DefinitionID)
	if inc.LinkID == "" {
		return ir.DefinitionKey{
			BundleUUID:    parent.BundleUUID,
			BlockType:     inc.BlockType,
			OLXPath:       path,
			BundleVersion: parent.BundleVersion,
			DraftName:     parent.DraftName,
		}, nil
	}

	all, err := links.DirectLinks(ctx, parent.BundleUUID, blockstore.RevisionOf(parent))
	if err != nil {
		return ir.DefinitionKey{}, fmt.Errorf("links of %s: %w", parent, err)
	}
	link, ok := all[inc.LinkID]
	if !ok {
		return ir.DefinitionKey{}, &IncludeError{Value: inc.LinkID, Message: "link not found"}
	}
	return ir.DefinitionKey{
		BundleUUID:    link.BundleUUID,
		BlockType:     inc.BlockType,
		OLXPath:       path,
		BundleVersion: link.Version,
	}, nil
}
