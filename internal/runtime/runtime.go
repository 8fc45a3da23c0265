package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Othello1111/edx-platform/internal/blockstore"
	"github.com/Othello1111/edx-platform/internal/blocktype"
	"github.com/Othello1111/edx-platform/internal/fielddata"
	"github.com/Othello1111/edx-platform/internal/ir"
	"github.com/Othello1111/edx-platform/internal/olx"
)

// DefinitionSource reads definition files and bundle links.
// *blockstore.Cached satisfies it.
type DefinitionSource interface {
	ReadFile(ctx context.Context, key ir.DefinitionKey) ([]byte, ir.Fingerprint, error)
	DirectLinks(ctx context.Context, bundleUUID string, rev blockstore.Revision) (map[string]blockstore.Link, error)
}

// DefinitionWriter writes definition files into drafts.
// *blockstore.Store satisfies it.
type DefinitionWriter interface {
	WriteDraftFile(ctx context.Context, bundleUUID, draft, path string, content []byte) (ir.Fingerprint, error)
}

// Runtime loads blocks and dispatches their handlers.
//
// Thread-safety: Runtime is safe for concurrent use. Blocks it returns
// are meant for one request at a time.
type Runtime struct {
	source DefinitionSource
	writer DefinitionWriter
	fields *fielddata.FieldData
	types  *blocktype.Registry
	logger *slog.Logger

	mu       sync.RWMutex
	contexts map[string]LearningContext
	handlers map[handlerKey]HandlerFunc
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the runtime's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithWriter enables saving blocks back to their draft.
func WithWriter(w DefinitionWriter) Option {
	return func(r *Runtime) {
		r.writer = w
	}
}

// New creates a runtime. The field cache must resolve fingerprints
// against the same store source reads from.
func New(source DefinitionSource, fields *fielddata.FieldData, types *blocktype.Registry, opts ...Option) *Runtime {
	r := &Runtime{
		source:   source,
		fields:   fields,
		types:    types,
		logger:   slog.Default(),
		contexts: make(map[string]LearningContext),
		handlers: make(map[handlerKey]HandlerFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.registerBuiltinHandlers()
	return r
}

// Fields returns the runtime's field cache.
func (r *Runtime) Fields() *fielddata.FieldData {
	return r.fields
}

// AddContext registers a learning context under key.
func (r *Runtime) AddContext(key string, lc LearningContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[key] = lc
}

// Context returns the learning context registered under key.
func (r *Runtime) Context(key string) (LearningContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lc, ok := r.contexts[key]
	return lc, ok
}

// LoadBlock loads the block at usage for user. Fails with
// ErrPermissionDenied when the context does not let user view it.
func (r *Runtime) LoadBlock(ctx context.Context, usage ir.UsageKey, user User) (*Block, error) {
	lc, ok := r.Context(usage.ContextKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContextNotFound, usage.ContextKey)
	}
	allowed, err := lc.CanViewBlock(ctx, user, usage)
	if err != nil {
		return nil, fmt.Errorf("check view permission: %w", err)
	}
	if !allowed {
		return nil, fmt.Errorf("%w: user %d cannot view %s", ErrPermissionDenied, user.ID, usage)
	}
	def, ok, err := lc.DefinitionForUsage(ctx, usage)
	if err != nil {
		return nil, fmt.Errorf("definition for %s: %w", usage, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, usage)
	}
	return r.load(ctx, lc, usage, def, user)
}

// maxLoadAttempts bounds how often a load restarts because the draft
// changed between binding and reading.
const maxLoadAttempts = 3

func (r *Runtime) load(ctx context.Context, lc LearningContext, usage ir.UsageKey, def ir.DefinitionKey, user User) (*Block, error) {
	bt, ok := r.types.Lookup(def.BlockType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlockType, def.BlockType)
	}
	b := &Block{
		rt:    r,
		lc:    lc,
		usage: usage,
		def:   def,
		bt:    bt,
		user:  user,
		key:   fielddata.NewInstanceKey(usage.String()),
	}

	// Binding the instance first keeps its fingerprint referenced, so
	// eviction cannot drop the loaded definition before the first read.
	for attempt := 1; ; attempt++ {
		fp, err := r.fields.Fingerprint(ctx, b)
		if err != nil {
			return nil, r.notFound(usage, err)
		}
		if r.fields.HasFingerprint(fp) {
			r.logger.Debug("block definition cached", "usage", usage, "fingerprint", fp.Short())
			return b, nil
		}
		err = r.parse(ctx, b, fp)
		if err == nil {
			return b, nil
		}
		r.fields.Release(b)
		if !errors.Is(err, ErrRevisionChanged) || attempt == maxLoadAttempts {
			return nil, r.notFound(usage, err)
		}
		r.logger.Debug("definition changed during load, retrying", "usage", usage, "attempt", attempt)
	}
}

func (r *Runtime) notFound(usage ir.UsageKey, err error) error {
	if errors.Is(err, blockstore.ErrDefinitionNotFound) {
		return fmt.Errorf("%w: %s: %w", ErrBlockNotFound, usage, err)
	}
	return err
}

// parse reads b's definition, writes the parsed values through the field
// cache and commits them under fp, the fingerprint b is bound to. Fails
// with ErrRevisionChanged when the file read is not the content fp names.
func (r *Runtime) parse(ctx context.Context, b *Block, fp ir.Fingerprint) error {
	content, readFP, err := r.source.ReadFile(ctx, b.def)
	if err != nil {
		return err
	}
	if readFP != fp {
		return fmt.Errorf("%w: %s is %s, instance bound to %s", ErrRevisionChanged, b.def, readFP.Short(), fp.Short())
	}
	node, err := olx.ParseDefinition(content)
	if err != nil {
		return fmt.Errorf("%s: %w", b.def, err)
	}
	values, err := b.bt.ParseFields(node)
	if err != nil {
		return fmt.Errorf("%s: %w", b.def, err)
	}
	for _, name := range values.SortedKeys() {
		if err := r.fields.Set(ctx, b, name, values[name]); err != nil {
			return err
		}
	}

	if b.bt.HasChildren {
		includes, err := olx.Includes(node)
		if err != nil {
			return fmt.Errorf("%s: %w", b.def, err)
		}
		for _, inc := range includes {
			if err := r.addChild(ctx, b, inc); err != nil {
				return err
			}
		}
	}

	if err := r.fields.CommitParsedValues(ctx, b); err != nil {
		return err
	}
	r.logger.Debug("parsed block definition",
		"usage", b.usage,
		"fingerprint", fp.Short(),
		"fields", len(values))
	return nil
}

// addChild appends the child usage of inc to b's children. The children
// list is read back through the cache each time, so it starts empty
// before b's definition has been committed.
func (r *Runtime) addChild(ctx context.Context, b *Block, inc olx.Include) error {
	childDef, err := olx.DefinitionForInclude(ctx, r.source, inc, b.def)
	if err != nil {
		return err
	}
	childUsage, err := b.lc.UsageForChildInclude(ctx, b.usage, childDef, inc)
	if err != nil {
		return fmt.Errorf("usage for child %s/%s: %w", inc.BlockType, inc.DefinitionID, err)
	}
	current, err := r.fields.Get(ctx, b, fielddata.ChildrenField)
	if err != nil {
		return err
	}
	children, _ := current.(ir.List)
	return r.fields.Set(ctx, b, fielddata.ChildrenField, append(children, ir.String(childUsage.String())))
}
