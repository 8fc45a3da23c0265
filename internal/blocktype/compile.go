package blocktype

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/Othello1111/edx-platform/internal/ir"
)

// Field types.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeBool   = "bool"
	TypeList   = "list"
	TypeDict   = "dict"
)

// Field is one declared field of a block type.
type Field struct {
	Name    string   `json:"name"`
	Scope   ir.Scope `json:"scope"`
	Type    string   `json:"type"`
	Default ir.Value `json:"default"`
	Help    string   `json:"help,omitempty"`
}

// BlockType is a compiled block type declaration.
type BlockType struct {
	Name         string  `json:"name"`
	DisplayName  string  `json:"display_name"`
	HasChildren  bool    `json:"has_children"`
	ContentField string  `json:"content_field,omitempty"`
	Fields       []Field `json:"fields"`

	index map[string]int
}

// Field returns a declared field by name.
func (bt *BlockType) Field(name string) (Field, bool) {
	i, ok := bt.index[name]
	if !ok {
		return Field{}, false
	}
	return bt.Fields[i], true
}

// Compile parses a CUE value into a BlockType. The value should be the
// block struct itself, e.g. the result of LookupPath("block.html").
func Compile(v cue.Value) (*BlockType, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	bt := &BlockType{index: make(map[string]int)}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		bt.Name = labels[len(labels)-1].Unquoted()
	}

	name, err := v.LookupPath(cue.ParsePath("display_name")).String()
	if err != nil {
		return nil, &CompileError{Field: "display_name", Message: "display_name is required", Pos: v.Pos()}
	}
	bt.DisplayName = name

	if hc := v.LookupPath(cue.ParsePath("has_children")); hc.Exists() {
		if bt.HasChildren, err = hc.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{Field: "fields", Message: "fields are required", Pos: v.Pos()}
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		f, err := compileField(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		if f.Scope == ir.ScopeChildren {
			return nil, &CompileError{
				Field:   "fields." + f.Name,
				Message: "children scope is reserved, use has_children",
				Pos:     iter.Value().Pos(),
			}
		}
		bt.add(f)
	}

	if bt.HasChildren {
		bt.add(Field{Name: "children", Scope: ir.ScopeChildren, Type: TypeList, Default: ir.List{}})
	}

	if cf := v.LookupPath(cue.ParsePath("content_field")); cf.Exists() {
		if bt.ContentField, err = cf.String(); err != nil {
			return nil, formatCUEError(err)
		}
		f, ok := bt.Field(bt.ContentField)
		if !ok || f.Type != TypeString {
			return nil, &CompileError{
				Field:   "content_field",
				Message: fmt.Sprintf("content_field %q must name a string field", bt.ContentField),
				Pos:     cf.Pos(),
			}
		}
	}

	return bt, nil
}

func (bt *BlockType) add(f Field) {
	bt.index[f.Name] = len(bt.Fields)
	bt.Fields = append(bt.Fields, f)
}

func compileField(name string, v cue.Value) (Field, error) {
	path := "fields." + name
	f := Field{Name: name}

	scopeName, err := v.LookupPath(cue.ParsePath("scope")).String()
	if err != nil {
		return Field{}, &CompileError{Field: path + ".scope", Message: "scope is required", Pos: v.Pos()}
	}
	if f.Scope, err = ir.LookupScope(scopeName); err != nil {
		return Field{}, &CompileError{Field: path + ".scope", Message: err.Error(), Pos: v.Pos()}
	}

	if f.Type, err = v.LookupPath(cue.ParsePath("type")).String(); err != nil {
		return Field{}, &CompileError{Field: path + ".type", Message: "type is required", Pos: v.Pos()}
	}

	if help := v.LookupPath(cue.ParsePath("help")); help.Exists() {
		if f.Help, err = help.String(); err != nil {
			return Field{}, formatCUEError(err)
		}
	}

	f.Default = zeroValue(f.Type)
	if def := v.LookupPath(cue.ParsePath("default")); def.Exists() {
		val, err := cueToValue(def)
		if err != nil {
			return Field{}, err
		}
		if !typeMatches(f.Type, val) {
			return Field{}, &CompileError{
				Field:   path + ".default",
				Message: fmt.Sprintf("default does not match type %s", f.Type),
				Pos:     def.Pos(),
			}
		}
		f.Default = val
	}
	return f, nil
}

// cueToValue converts a concrete CUE value into a field value.
// Floats are rejected: field values are integers only.
func cueToValue(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(i), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := ir.List{}
		for iter.Next() {
			elem, err := cueToValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := ir.Dict{}
		for iter.Next() {
			elem, err := cueToValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Selector().Unquoted()] = elem
		}
		return out, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{Field: "default", Message: "float values are not supported, use int", Pos: v.Pos()}
	default:
		return nil, &CompileError{Field: "default", Message: fmt.Sprintf("default must be concrete, got %v", v.IncompleteKind()), Pos: v.Pos()}
	}
}

func zeroValue(typ string) ir.Value {
	switch typ {
	case TypeString:
		return ir.String("")
	case TypeInt:
		return ir.Int(0)
	case TypeBool:
		return ir.Bool(false)
	case TypeList:
		return ir.List{}
	case TypeDict:
		return ir.Dict{}
	}
	return ir.Null{}
}

func typeMatches(typ string, v ir.Value) bool {
	if _, ok := v.(ir.Null); ok {
		return true
	}
	switch typ {
	case TypeString:
		_, ok := v.(ir.String)
		return ok
	case TypeInt:
		_, ok := v.(ir.Int)
		return ok
	case TypeBool:
		_, ok := v.(ir.Bool)
		return ok
	case TypeList:
		_, ok := v.(ir.List)
		return ok
	case TypeDict:
		_, ok := v.(ir.Dict)
		return ok
	}
	return false
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
