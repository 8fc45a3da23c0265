package blocktype

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

//go:embed schema.cue
var schemaCUE string

//go:embed catalog.cue
var catalogCUE string

// Registry holds compiled block types by name.
//
// Thread-safety: Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*BlockType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*BlockType)}
}

// Builtin returns a registry holding the embedded catalog.
func Builtin() (*Registry, error) {
	r := NewRegistry()
	if err := r.LoadSource("catalog.cue", []byte(catalogCUE)); err != nil {
		return nil, fmt.Errorf("builtin catalog: %w", err)
	}
	return r, nil
}

// MustBuiltin is Builtin for package-level initialization and tests.
func MustBuiltin() *Registry {
	r, err := Builtin()
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds or replaces a block type.
func (r *Registry) Register(bt *BlockType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[bt.Name] = bt
}

// Lookup returns the block type with the given name.
func (r *Registry) Lookup(name string) (*BlockType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bt, ok := r.types[name]
	return bt, ok
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LoadSource compiles CUE source text and registers every block it
// declares. Nothing is registered if any block fails to compile.
func (r *Registry) LoadSource(filename string, src []byte) error {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return formatCUEError(err)
	}
	return r.register(ctx, v)
}

// LoadDir loads the CUE package in dir and registers every block it
// declares.
func (r *Registry) LoadDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("block types directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return fmt.Errorf("loading CUE files: %w", inst.Err)
	}
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return formatCUEError(err)
	}
	return r.register(ctx, v)
}

func (r *Registry) register(ctx *cue.Context, v cue.Value) error {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return formatCUEError(err)
	}
	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}

	blocks := v.LookupPath(cue.ParsePath("block"))
	if !blocks.Exists() {
		return &CompileError{Field: "block", Message: "no block types declared", Pos: v.Pos()}
	}
	iter, err := blocks.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	var compiled []*BlockType
	for iter.Next() {
		bt, err := Compile(iter.Value())
		if err != nil {
			return fmt.Errorf("block %s: %w", iter.Selector().Unquoted(), err)
		}
		compiled = append(compiled, bt)
	}
	if len(compiled) == 0 {
		return &CompileError{Field: "block", Message: "no block types declared", Pos: v.Pos()}
	}
	for _, bt := range compiled {
		r.Register(bt)
	}
	return nil
}
