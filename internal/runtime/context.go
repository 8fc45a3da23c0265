package runtime

import (
	"context"
	"sync"

	"github.com/Othello1111/edx-platform/internal/blockstore"
	"github.com/Othello1111/edx-platform/internal/ir"
	"github.com/Othello1111/edx-platform/internal/olx"
)

// User is the caller a block is loaded for. The zero value is anonymous.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Anonymous is the unauthenticated user.
var Anonymous = User{}

// IsAuthenticated reports whether u is a real user.
func (u User) IsAuthenticated() bool {
	return u.ID != 0
}

// LearningContext is a course, library or other collection of blocks.
// It owns permissions and maps usages to definitions.
type LearningContext interface {
	// CanViewBlock reports whether user may view and interact with the
	// usage (call handlers, read fields).
	CanViewBlock(ctx context.Context, user User, usage ir.UsageKey) (bool, error)

	// CanEditBlock reports whether user may change the usage's definition.
	CanEditBlock(ctx context.Context, user User, usage ir.UsageKey) (bool, error)

	// DefinitionForUsage returns the definition a usage is loaded from,
	// false if the usage does not belong to this context.
	DefinitionForUsage(ctx context.Context, usage ir.UsageKey) (ir.DefinitionKey, bool, error)

	// UsageForChildInclude returns the usage key of a child pulled in by
	// an include element of parent. childDef is the include's resolved
	// definition.
	UsageForChildInclude(ctx context.Context, parent ir.UsageKey, childDef ir.DefinitionKey, inc olx.Include) (ir.UsageKey, error)
}

// BundleContext is a content library: a learning context backed by one
// revision of one bundle.
//
// Usage IDs are definition IDs, so lb:lib:html:intro is loaded from
// html/intro/definition.xml in the bundle. Children included under a
// usage hint or through a bundle link are remembered when first seen so
// their usages can be loaded directly afterwards.
//
// Thread-safety: BundleContext is safe for concurrent use.
type BundleContext struct {
	key        string
	bundleUUID string
	rev        blockstore.Revision
	public     bool
	editors    map[int64]struct{}
	viewers    map[int64]struct{}

	mu      sync.RWMutex
	aliases map[string]ir.DefinitionKey
}

// ContextOption configures a BundleContext.
type ContextOption func(*BundleContext)

// WithPublic lets anyone, including anonymous users, view blocks.
func WithPublic(public bool) ContextOption {
	return func(c *BundleContext) {
		c.public = public
	}
}

// WithEditors grants view and edit permission to the given user IDs.
func WithEditors(ids ...int64) ContextOption {
	return func(c *BundleContext) {
		for _, id := range ids {
			c.editors[id] = struct{}{}
		}
	}
}

// WithViewers grants view permission to the given user IDs.
func WithViewers(ids ...int64) ContextOption {
	return func(c *BundleContext) {
		for _, id := range ids {
			c.viewers[id] = struct{}{}
		}
	}
}

// NewBundleContext creates a context named key over a bundle revision.
func NewBundleContext(key, bundleUUID string, rev blockstore.Revision, opts ...ContextOption) *BundleContext {
	c := &BundleContext{
		key:        key,
		bundleUUID: bundleUUID,
		rev:        rev,
		editors:    make(map[int64]struct{}),
		viewers:    make(map[int64]struct{}),
		aliases:    make(map[string]ir.DefinitionKey),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the context key used in usage keys.
func (c *BundleContext) Key() string {
	return c.key
}

func (c *BundleContext) CanViewBlock(ctx context.Context, user User, usage ir.UsageKey) (bool, error) {
	if usage.ContextKey != c.key {
		return false, nil
	}
	if c.public {
		return true, nil
	}
	if !user.IsAuthenticated() {
		return false, nil
	}
	_, viewer := c.viewers[user.ID]
	_, editor := c.editors[user.ID]
	return viewer || editor, nil
}

func (c *BundleContext) CanEditBlock(ctx context.Context, user User, usage ir.UsageKey) (bool, error) {
	if usage.ContextKey != c.key || !user.IsAuthenticated() {
		return false, nil
	}
	_, editor := c.editors[user.ID]
	return editor, nil
}

func (c *BundleContext) DefinitionForUsage(ctx context.Context, usage ir.UsageKey) (ir.DefinitionKey, bool, error) {
	if usage.ContextKey != c.key {
		return ir.DefinitionKey{}, false, nil
	}
	c.mu.RLock()
	def, ok := c.aliases[usage.UsageID]
	c.mu.RUnlock()
	if ok && def.BlockType == usage.BlockType {
		return def, true, nil
	}
	return ir.DefinitionKey{
		BundleUUID:    c.bundleUUID,
		BlockType:     usage.BlockType,
		OLXPath:       ir.OLXPathFor(usage.BlockType, usage.UsageID),
		BundleVersion: c.rev.Version,
		DraftName:     c.rev.DraftName,
	}, true, nil
}

func (c *BundleContext) UsageForChildInclude(ctx context.Context, parent ir.UsageKey, childDef ir.DefinitionKey, inc olx.Include) (ir.UsageKey, error) {
	id := inc.UsageHint
	if id == "" {
		id = inc.DefinitionID
	}
	if inc.LinkID != "" || id != inc.DefinitionID {
		c.mu.Lock()
		c.aliases[id] = childDef
		c.mu.Unlock()
	}
	return ir.UsageKey{ContextKey: parent.ContextKey, BlockType: inc.BlockType, UsageID: id}, nil
}
