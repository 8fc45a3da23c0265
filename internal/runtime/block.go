package runtime

import (
	"context"
	"fmt"

	"github.com/Othello1111/edx-platform/internal/blocktype"
	"github.com/Othello1111/edx-platform/internal/fielddata"
	"github.com/Othello1111/edx-platform/internal/ir"
)

// Block is one loaded block instance.
type Block struct {
	rt    *Runtime
	lc    LearningContext
	usage ir.UsageKey
	def   ir.DefinitionKey
	bt    *blocktype.BlockType
	user  User
	key   *fielddata.InstanceKey
}

// InstanceKey implements fielddata.Block.
func (b *Block) InstanceKey() *fielddata.InstanceKey { return b.key }

// DefinitionKey implements fielddata.Block.
func (b *Block) DefinitionKey() ir.DefinitionKey { return b.def }

// FieldScope implements fielddata.Block.
func (b *Block) FieldScope(name string) (ir.Scope, bool) {
	f, ok := b.bt.Field(name)
	return f.Scope, ok
}

func (b *Block) UsageKey() ir.UsageKey { return b.usage }
func (b *Block) Type() *blocktype.BlockType { return b.bt }
func (b *Block) User() User { return b.user }
func (b *Block) Context() LearningContext { return b.lc }

// Field returns a field's value, falling back to its schema default.
func (b *Block) Field(ctx context.Context, name string) (ir.Value, error) {
	v, err := b.rt.fields.Get(ctx, b, name)
	if fielddata.IsUseDefault(err) {
		f, _ := b.bt.Field(name)
		return ir.Clone(f.Default), nil
	}
	return v, err
}

// SetField overrides a field on this instance.
func (b *Block) SetField(ctx context.Context, name string, v ir.Value) error {
	f, ok := b.bt.Field(name)
	if !ok {
		return fmt.Errorf("%w: %q", fielddata.ErrUnknownField, name)
	}
	if err := f.CheckValue(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFieldValue, err)
	}
	return b.rt.fields.Set(ctx, b, name, v)
}

// ResetField resets a field to its schema default on this instance.
func (b *Block) ResetField(ctx context.Context, name string) error {
	return b.rt.fields.Delete(ctx, b, name)
}

// Children returns the usage keys of the block's children in order.
func (b *Block) Children(ctx context.Context) ([]ir.UsageKey, error) {
	if !b.bt.HasChildren {
		return nil, nil
	}
	v, err := b.Field(ctx, fielddata.ChildrenField)
	if err != nil {
		return nil, err
	}
	list, _ := v.(ir.List)
	out := make([]ir.UsageKey, 0, len(list))
	for _, item := range list {
		s, ok := item.(ir.String)
		if !ok {
			return nil, fmt.Errorf("children of %s: non-string entry", b.usage)
		}
		u, err := ir.ParseUsageKey(string(s))
		if err != nil {
			return nil, fmt.Errorf("children of %s: %w", b.usage, err)
		}
		out = append(out, u)
	}
	return out, nil
}

// LoadChild loads the i'th child for the same user.
func (b *Block) LoadChild(ctx context.Context, i int) (*Block, error) {
	children, err := b.Children(ctx)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(children) {
		return nil, fmt.Errorf("%w: child %d of %s", ErrBlockNotFound, i, b.usage)
	}
	return b.rt.LoadBlock(ctx, children[i], b.user)
}

// DisplayName returns the display_name field, or the block type's name
// when the field is empty or absent.
func (b *Block) DisplayName(ctx context.Context) (string, error) {
	if _, ok := b.bt.Field("display_name"); ok {
		v, err := b.Field(ctx, "display_name")
		if err != nil {
			return "", err
		}
		if s, ok := v.(ir.String); ok && s != "" {
			return string(s), nil
		}
	}
	return b.bt.DisplayName, nil
}

// Metadata describes a block for API consumers.
type Metadata struct {
	BlockID     string `json:"block_id"`
	BlockType   string `json:"block_type"`
	DisplayName string `json:"display_name"`
}

// Metadata returns the block's metadata.
func (b *Block) Metadata(ctx context.Context) (Metadata, error) {
	name, err := b.DisplayName(ctx)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{
		BlockID:     b.usage.String(),
		BlockType:   b.usage.BlockType,
		DisplayName: name,
	}, nil
}

// HasUncommittedChanges reports whether the instance has unsaved edits.
func (b *Block) HasUncommittedChanges(ctx context.Context) (bool, error) {
	return b.rt.fields.HasUncommittedChanges(ctx, b)
}

// Release drops the instance's cached state. The block must not be used
// afterwards.
func (b *Block) Release() {
	b.rt.fields.Release(b)
}

// StoredFields returns the values of every field the field cache can
// hold, defaults applied, keyed by name.
func (b *Block) StoredFields(ctx context.Context) (ir.Dict, error) {
	out := make(ir.Dict)
	for _, f := range b.bt.Fields {
		if b.rt.fields.ValidateFieldAccess(b, f.Name) != nil {
			continue
		}
		v, err := b.Field(ctx, f.Name)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}
