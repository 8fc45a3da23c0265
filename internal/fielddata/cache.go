package fielddata

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"weak"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Othello1111/edx-platform/internal/ir"
)

// ChildrenField is the one field allowed to use the children scope.
const ChildrenField = "children"

// DefaultMaxDefinitions is the default ceiling on loaded definitions.
const DefaultMaxDefinitions = 100

// override is either a value set on the instance or a reset to default.
type override struct {
	value ir.Value
	reset bool
}

type activeState struct {
	fingerprint ir.Fingerprint
	overrides   map[string]override
	cleanup     runtime.Cleanup
	label       string
}

type loadedEntry struct {
	fields ir.Dict
	seq    uint64
}

// FieldData is the definition field cache.
//
// Thread-safety: FieldData is safe for concurrent use. Overrides of a
// single instance are expected to be written by one goroutine at a time.
type FieldData struct {
	resolver       FingerprintResolver
	maxDefinitions int
	logger         *slog.Logger
	metrics        *cacheMetrics

	mu     sync.RWMutex
	loaded map[ir.Fingerprint]loadedEntry
	seq    uint64
	active map[weak.Pointer[InstanceKey]]*activeState
}

// Option configures a FieldData.
type Option func(*FieldData)

// WithMaxDefinitions sets the ceiling on loaded definitions.
func WithMaxDefinitions(n int) Option {
	return func(fd *FieldData) {
		if n > 0 {
			fd.maxDefinitions = n
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(fd *FieldData) {
		fd.logger = l
	}
}

// WithMetricsComponent sets the component label on exported metrics.
func WithMetricsComponent(name string) Option {
	return func(fd *FieldData) {
		fd.metrics = newCacheMetrics(name)
	}
}

// New creates a field cache resolving fingerprints through resolver.
func New(resolver FingerprintResolver, opts ...Option) *FieldData {
	fd := &FieldData{
		resolver:       resolver,
		maxDefinitions: DefaultMaxDefinitions,
		logger:         slog.Default(),
		loaded:         make(map[ir.Fingerprint]loadedEntry),
		active:         make(map[weak.Pointer[InstanceKey]]*activeState),
	}
	for _, opt := range opts {
		opt(fd)
	}
	if fd.metrics == nil {
		fd.metrics = newCacheMetrics("default")
	}
	return fd
}

// Collectors returns the cache's Prometheus collectors for registration.
func (fd *FieldData) Collectors() []prometheus.Collector {
	return fd.metrics.collectors()
}

// MaxDefinitions returns the configured ceiling.
func (fd *FieldData) MaxDefinitions() int {
	return fd.maxDefinitions
}

// ValidateFieldAccess checks that this cache can hold the named field of b.
func (fd *FieldData) ValidateFieldAccess(b Block, name string) error {
	scope, ok := b.FieldScope(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	switch scope.Name {
	case ir.ScopeChildren.Name:
		if name != ChildrenField {
			return &ScopeError{Field: name, Scope: scope.Name, Reason: "children scope is only allowed for the field named 'children'"}
		}
		return nil
	case ir.ScopeParent.Name:
		return &ScopeError{Field: name, Scope: scope.Name, Reason: "parent scope is not supported"}
	}
	if scope.User != ir.UserScopeNone {
		return &ScopeError{Field: name, Scope: scope.Name, Reason: "only user scope 'none' is supported"}
	}
	if scope.Block != ir.BlockScopeDefinition && scope.Block != ir.BlockScopeUsage {
		return &ScopeError{Field: name, Scope: scope.Name, Reason: fmt.Sprintf("block scope %q is not supported", scope.Block)}
	}
	return nil
}

// Get returns the value of a field: the instance's override if there is
// one, else the loaded definition's value. Fails with ErrUseDefault when
// neither exists or the field was reset.
func (fd *FieldData) Get(ctx context.Context, b Block, name string) (ir.Value, error) {
	if err := fd.ValidateFieldAccess(b, name); err != nil {
		return nil, err
	}
	st, err := fd.state(ctx, b)
	if err != nil {
		return nil, err
	}

	fd.mu.RLock()
	defer fd.mu.RUnlock()

	if ov, ok := st.overrides[name]; ok {
		if ov.reset {
			return nil, fmt.Errorf("%q was reset: %w", name, ErrUseDefault)
		}
		return ir.Clone(ov.value), nil
	}

	def, ok := fd.loaded[st.fingerprint]
	if !ok {
		if name == ChildrenField {
			// Children are appended while the parent is still parsing.
			return ir.List{}, nil
		}
		fd.metrics.earlyReads.Inc()
		fd.logger.Warn("field read before definition was loaded",
			"block", st.label,
			"field", name,
			"fingerprint", st.fingerprint.Short())
		return nil, fmt.Errorf("%q read before load: %w", name, ErrUseDefault)
	}

	v, ok := def.fields[name]
	if !ok {
		fd.metrics.misses.Inc()
		return nil, ErrUseDefault
	}
	fd.metrics.hits.Inc()
	return ir.Clone(v), nil
}

// Set records value as an override on the instance. The loaded
// definition is not touched.
func (fd *FieldData) Set(ctx context.Context, b Block, name string, value ir.Value) error {
	if value == nil {
		value = ir.Null{}
	}
	return fd.setOverride(ctx, b, name, override{value: ir.Clone(value)})
}

// Delete resets a field to its schema default on the instance.
func (fd *FieldData) Delete(ctx context.Context, b Block, name string) error {
	return fd.setOverride(ctx, b, name, override{reset: true})
}

// Default never supplies a value; the schema default always applies.
func (fd *FieldData) Default(b Block, name string) (ir.Value, error) {
	return nil, ErrUseDefault
}

func (fd *FieldData) setOverride(ctx context.Context, b Block, name string, ov override) error {
	if err := fd.ValidateFieldAccess(b, name); err != nil {
		return err
	}
	st, err := fd.state(ctx, b)
	if err != nil {
		return err
	}
	fd.mu.Lock()
	st.overrides[name] = ov
	fd.mu.Unlock()
	return nil
}

// CommitParsedValues is called once a block has finished parsing its
// definition and written the parsed values as overrides. The overrides
// become the loaded definition for the block's fingerprint and the
// instance is left with no overrides. Resets are dropped.
func (fd *FieldData) CommitParsedValues(ctx context.Context, b Block) error {
	st, err := fd.state(ctx, b)
	if err != nil {
		return err
	}

	fd.mu.Lock()
	defer fd.mu.Unlock()

	fields := make(ir.Dict, len(st.overrides))
	for name, ov := range st.overrides {
		if !ov.reset {
			fields[name] = ov.value
		}
	}
	fd.seq++
	fd.loaded[st.fingerprint] = loadedEntry{fields: fields, seq: fd.seq}
	clear(st.overrides)
	fd.metrics.commits.Inc()

	fd.logger.Debug("committed parsed values",
		"block", st.label,
		"fingerprint", st.fingerprint.Short(),
		"fields", len(fields))

	if len(fd.loaded) > fd.maxDefinitions {
		fd.evictLocked()
	}
	fd.metrics.updateSizes(len(fd.loaded), len(fd.active))
	return nil
}

// HasUncommittedChanges reports whether the instance has any overrides.
func (fd *FieldData) HasUncommittedChanges(ctx context.Context, b Block) (bool, error) {
	st, err := fd.state(ctx, b)
	if err != nil {
		return false, err
	}
	fd.mu.RLock()
	defer fd.mu.RUnlock()
	return len(st.overrides) > 0, nil
}

// HasCached reports whether the current content of key is loaded.
func (fd *FieldData) HasCached(ctx context.Context, key ir.DefinitionKey) (bool, error) {
	fp, err := fd.resolver.ResolveFingerprint(ctx, key)
	if err != nil {
		return false, err
	}
	return fd.HasFingerprint(fp), nil
}

// HasFingerprint reports whether fp has a loaded definition.
func (fd *FieldData) HasFingerprint(fp ir.Fingerprint) bool {
	fd.mu.RLock()
	defer fd.mu.RUnlock()
	_, ok := fd.loaded[fp]
	return ok
}

// EvictUnused removes loaded definitions no live instance references,
// oldest first, until at most half the ceiling remain or nothing more can
// be removed. Returns the number removed.
func (fd *FieldData) EvictUnused() int {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	n := fd.evictLocked()
	fd.metrics.updateSizes(len(fd.loaded), len(fd.active))
	return n
}

func (fd *FieldData) evictLocked() int {
	referenced := make(map[ir.Fingerprint]struct{}, len(fd.active))
	for _, st := range fd.active {
		referenced[st.fingerprint] = struct{}{}
	}

	type candidate struct {
		fp  ir.Fingerprint
		seq uint64
	}
	var candidates []candidate
	for fp, e := range fd.loaded {
		if _, ok := referenced[fp]; !ok {
			candidates = append(candidates, candidate{fp, e.seq})
		}
	}
	slices.SortFunc(candidates, func(a, b candidate) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	target := fd.maxDefinitions / 2
	evicted := 0
	for _, c := range candidates {
		if len(fd.loaded) <= target {
			break
		}
		delete(fd.loaded, c.fp)
		evicted++
	}
	if evicted > 0 {
		fd.metrics.evictions.Add(float64(evicted))
		fd.logger.Debug("evicted loaded definitions",
			"evicted", evicted,
			"remaining", len(fd.loaded),
			"referenced", len(referenced))
	}
	return evicted
}

// Release drops the instance's state now instead of waiting for its key
// to become unreachable. Uncommitted overrides are discarded.
func (fd *FieldData) Release(b Block) {
	key := b.InstanceKey()
	if key == nil {
		return
	}
	wp := weak.Make(key)

	fd.mu.Lock()
	defer fd.mu.Unlock()
	if st, ok := fd.active[wp]; ok {
		st.cleanup.Stop()
		delete(fd.active, wp)
		fd.metrics.updateSizes(len(fd.loaded), len(fd.active))
	}
}

// Stats is a snapshot of cache sizes.
type Stats struct {
	LoadedDefinitions int `json:"loaded_definitions"`
	ActiveBlocks      int `json:"active_blocks"`
	MaxDefinitions    int `json:"max_definitions"`
}

// Stats returns current cache sizes.
func (fd *FieldData) Stats() Stats {
	fd.mu.RLock()
	defer fd.mu.RUnlock()
	return Stats{
		LoadedDefinitions: len(fd.loaded),
		ActiveBlocks:      len(fd.active),
		MaxDefinitions:    fd.maxDefinitions,
	}
}

// Fingerprint returns the fingerprint the instance was bound to on first
// access, resolving it now if the instance is new.
func (fd *FieldData) Fingerprint(ctx context.Context, b Block) (ir.Fingerprint, error) {
	st, err := fd.state(ctx, b)
	if err != nil {
		return "", err
	}
	return st.fingerprint, nil
}

// state returns the instance's active state, creating it on first access.
// The fingerprint is resolved outside the lock since it may do I/O.
func (fd *FieldData) state(ctx context.Context, b Block) (*activeState, error) {
	key := b.InstanceKey()
	if key == nil {
		return nil, ErrNoInstanceKey
	}
	wp := weak.Make(key)

	fd.mu.RLock()
	st, ok := fd.active[wp]
	fd.mu.RUnlock()
	if ok {
		return st, nil
	}

	fp, err := fd.resolver.ResolveFingerprint(ctx, b.DefinitionKey())
	if err != nil {
		return nil, fmt.Errorf("resolve fingerprint for %s: %w", key, err)
	}

	fd.mu.Lock()
	defer fd.mu.Unlock()
	if st, ok := fd.active[wp]; ok {
		return st, nil
	}
	st = &activeState{
		fingerprint: fp,
		overrides:   make(map[string]override),
		label:       key.label,
	}
	st.cleanup = runtime.AddCleanup(key, fd.forget, wp)
	fd.active[wp] = st
	fd.metrics.updateSizes(len(fd.loaded), len(fd.active))
	return st, nil
}

// forget runs once an instance key has been collected.
func (fd *FieldData) forget(wp weak.Pointer[InstanceKey]) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	delete(fd.active, wp)
	fd.metrics.updateSizes(len(fd.loaded), len(fd.active))
}
