package runtime

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/Othello1111/edx-platform/internal/blocktype"
	"github.com/Othello1111/edx-platform/internal/ir"
	"github.com/Othello1111/edx-platform/internal/olx"
)

// SaveBlock writes b's current field values back to its definition file
// and returns a fresh instance bound to the new content. b is released.
// Only definitions in a draft can be saved.
func (r *Runtime) SaveBlock(ctx context.Context, b *Block) (*Block, error) {
	if r.writer == nil {
		return nil, errors.New("save block: no writer configured")
	}
	if !b.def.IsDraft() {
		return nil, fmt.Errorf("save %s: %w", b.usage, ErrReadOnlyRevision)
	}

	content, _, err := r.source.ReadFile(ctx, b.def)
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", b.usage, err)
	}
	node, err := olx.ParseDefinition(content)
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", b.usage, err)
	}

	out, err := r.serialize(ctx, b, node.ChildrenNamed(olx.IncludeElement))
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", b.usage, err)
	}
	fp, err := r.writer.WriteDraftFile(ctx, b.def.BundleUUID, b.def.DraftName, b.def.OLXPath, out)
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", b.usage, err)
	}
	r.logger.Info("saved block", "usage", b.usage, "fingerprint", fp.Short())

	b.Release()
	return r.load(ctx, b.lc, b.usage, b.def, b.user)
}

// serialize renders b as a definition document. Fields equal to their
// default are omitted. Include elements are carried over unchanged.
func (r *Runtime) serialize(ctx context.Context, b *Block, includes []*olx.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "    ")

	start := xml.StartElement{Name: xml.Name{Local: b.bt.Name}}
	var text string
	for _, f := range b.bt.Fields {
		if f.Scope != ir.ScopeContent && f.Scope != ir.ScopeSettings {
			continue
		}
		v, err := b.Field(ctx, f.Name)
		if err != nil {
			return nil, err
		}
		if ir.Equal(v, f.Default) {
			continue
		}
		if f.Name == b.bt.ContentField {
			s, _ := v.(ir.String)
			text = string(s)
			continue
		}
		raw, err := formatValue(f, v)
		if err != nil {
			return nil, err
		}
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: f.Name}, Value: raw})
	}

	if err := enc.EncodeToken(start); err != nil {
		return nil, err
	}
	if text != "" {
		if err := enc.EncodeToken(xml.CharData(text)); err != nil {
			return nil, err
		}
	}
	for _, inc := range includes {
		el := xml.StartElement{Name: xml.Name{Local: olx.IncludeElement}}
		names := make([]string, 0, len(inc.Attrs))
		for name := range inc.Attrs {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			el.Attr = append(el.Attr, xml.Attr{Name: xml.Name{Local: name}, Value: inc.Attrs[name]})
		}
		if err := enc.EncodeToken(el); err != nil {
			return nil, err
		}
		if err := enc.EncodeToken(el.End()); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeToken(start.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func formatValue(f blocktype.Field, v ir.Value) (string, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return strconv.FormatInt(int64(val), 10), nil
	case ir.Bool:
		return strconv.FormatBool(bool(val)), nil
	case ir.Null:
		return "", fmt.Errorf("field %s: null cannot be stored as an attribute", f.Name)
	default:
		raw, err := ir.MarshalCanonical(v)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}
