package blocktype

import (
	"fmt"
	"strconv"

	"github.com/Othello1111/edx-platform/internal/ir"
	"github.com/Othello1111/edx-platform/internal/olx"
)

// ParseFields reads field values out of a definition's root element.
// Attributes set fields of the same name; the element text sets the
// content field. Unknown attributes and children are ignored, as are
// fields whose scope cannot live in a definition file.
func (bt *BlockType) ParseFields(n *olx.Node) (ir.Dict, error) {
	if n.Name != bt.Name {
		return nil, fmt.Errorf("definition root is <%s>, expected <%s>", n.Name, bt.Name)
	}

	out := make(ir.Dict)
	for _, f := range bt.Fields {
		if !storedInDefinition(f.Scope) {
			continue
		}
		raw, ok := n.Attr(f.Name)
		if !ok {
			continue
		}
		v, err := ParseValue(f.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", f.Name, err)
		}
		out[f.Name] = v
	}
	if bt.ContentField != "" && n.Text != "" {
		out[bt.ContentField] = ir.String(n.Text)
	}
	return out, nil
}

func storedInDefinition(s ir.Scope) bool {
	return s == ir.ScopeContent || s == ir.ScopeSettings
}

// ParseValue converts an attribute string into a value of the given type.
// Lists and dicts are JSON.
func ParseValue(typ, raw string) (ir.Value, error) {
	switch typ {
	case TypeString:
		return ir.String(raw), nil
	case TypeInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid int %q", raw)
		}
		return ir.Int(i), nil
	case TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q", raw)
		}
		return ir.Bool(b), nil
	case TypeList, TypeDict:
		v, err := ir.UnmarshalValue([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", typ, err)
		}
		if !typeMatches(typ, v) {
			return nil, fmt.Errorf("expected %s, got %q", typ, raw)
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown field type %q", typ)
}

// CheckValue reports whether v is acceptable for field f.
func (f Field) CheckValue(v ir.Value) error {
	if !typeMatches(f.Type, v) {
		return fmt.Errorf("field %s: expected %s", f.Name, f.Type)
	}
	return nil
}
