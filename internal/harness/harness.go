package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/Othello1111/edx-platform/internal/blockstore"
	"github.com/Othello1111/edx-platform/internal/blocktype"
	"github.com/Othello1111/edx-platform/internal/fielddata"
	"github.com/Othello1111/edx-platform/internal/ir"
	"github.com/Othello1111/edx-platform/internal/runtime"
)

// Harness runs one scenario against a fresh store, field cache and
// runtime.
type Harness struct {
	store   *blockstore.Store
	fields  *fielddata.FieldData
	rt      *runtime.Runtime
	logger  *slog.Logger
	bundles map[string]blockstore.Bundle
	blocks  map[string]*runtime.Block
	seq     int64
}

// Option configures a run.
type Option func(*options)

type options struct {
	types  *blocktype.Registry
	logger *slog.Logger
}

// WithBlockTypes runs the scenario against types instead of the built-in
// registry.
func WithBlockTypes(types *blocktype.Registry) Option {
	return func(o *options) {
		o.types = types
	}
}

// WithLogger routes store, cache and runtime logs to l. Logs are
// discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. Bundle
// UUIDs are derived from slugs so traces are reproducible. An error is
// returned only when the scenario cannot be set up; step failures are
// reported in the result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	if o.types == nil {
		types, err := blocktype.Builtin()
		if err != nil {
			return nil, fmt.Errorf("load block types: %w", err)
		}
		o.types = types
	}

	ids := make([]string, len(scenario.Bundles))
	for i, b := range scenario.Bundles {
		ids[i] = b.Slug + "-uuid"
	}
	st, err := blockstore.Open(":memory:", blockstore.WithIDGenerator(blockstore.NewFixedGenerator(ids...)))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	cached := blockstore.NewCached(st)
	fieldOpts := []fielddata.Option{fielddata.WithLogger(o.logger)}
	if scenario.MaxDefinitions > 0 {
		fieldOpts = append(fieldOpts, fielddata.WithMaxDefinitions(scenario.MaxDefinitions))
	}
	fields := fielddata.New(cached, fieldOpts...)

	h := &Harness{
		store:   st,
		fields:  fields,
		rt:      runtime.New(cached, fields, o.types, runtime.WithWriter(st), runtime.WithLogger(o.logger)),
		logger:  o.logger,
		bundles: make(map[string]blockstore.Bundle),
		blocks:  make(map[string]*runtime.Block),
	}
	defer h.releaseAll()

	if err := h.setup(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to set up scenario %q: %w", scenario.Name, err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h.execute(ctx, i, step, result)
	}
	result.Stats = fields.Stats()

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// setup creates the scenario's bundles and registers its contexts.
func (h *Harness) setup(ctx context.Context, s *Scenario) error {
	for _, bs := range s.Bundles {
		title := bs.Title
		if title == "" {
			title = bs.Slug
		}
		b, err := h.store.CreateBundle(ctx, bs.Slug, title)
		if err != nil {
			return err
		}
		if err := h.store.CreateDraft(ctx, b.UUID, DraftName); err != nil {
			return err
		}
		for _, path := range slices.Sorted(maps.Keys(bs.Files)) {
			if _, err := h.store.WriteDraftFile(ctx, b.UUID, DraftName, path, []byte(bs.Files[path])); err != nil {
				return err
			}
		}
		for _, id := range slices.Sorted(maps.Keys(bs.Links)) {
			target := h.bundles[bs.Links[id]]
			if target.LatestVersion == 0 {
				return fmt.Errorf("bundle %q: link %q: bundle %q has no committed version", bs.Slug, id, target.Slug)
			}
			if err := h.store.SetDraftLink(ctx, b.UUID, DraftName, id, target.UUID, target.LatestVersion); err != nil {
				return err
			}
		}
		if bs.Commit {
			v, err := h.store.CommitDraft(ctx, b.UUID, DraftName, "initial")
			if err != nil {
				return err
			}
			b.LatestVersion = v
		}
		h.bundles[bs.Slug] = b
	}

	for _, c := range s.Contexts {
		b := h.bundles[c.Bundle]
		rev := blockstore.Revision{DraftName: DraftName}
		if c.Version > 0 {
			rev = blockstore.Revision{Version: c.Version}
		}
		h.rt.AddContext(c.Key, runtime.NewBundleContext(c.Key, b.UUID, rev,
			runtime.WithPublic(c.Public),
			runtime.WithEditors(c.Editors...),
			runtime.WithViewers(c.Viewers...)))
	}
	return nil
}

// execute runs one step, appends its trace event and checks its
// expectations.
func (h *Harness) execute(ctx context.Context, i int, step Step, result *Result) {
	h.seq++
	ev := TraceEvent{
		Seq:    h.seq,
		Op:     step.Op,
		Block:  step.Block,
		Usage:  step.Usage,
		Field:  step.Field,
		Bundle: step.Bundle,
		Path:   step.Path,
	}

	res, err := h.apply(ctx, step, &ev)
	ev.Result = res
	ev.Error = ErrorCode(err)
	result.Trace = append(result.Trace, ev)

	where := fmt.Sprintf("step %d (%s)", i+1, step.Op)
	switch {
	case step.ExpectError != "":
		if ev.Error != step.ExpectError {
			got := ev.Error
			if got == "" {
				got = "no error"
			}
			result.AddError(fmt.Sprintf("%s: expected error %s, got %s", where, step.ExpectError, got))
		}
		return
	case err != nil:
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", where, err))
		return
	}

	if !step.Expect.IsZero() {
		want, err := nodeValue(&step.Expect)
		if err != nil {
			result.AddError(fmt.Sprintf("%s: expect: %v", where, err))
			return
		}
		if !ir.Equal(want, res) {
			result.AddError(fmt.Sprintf("%s: expected %s, got %s", where, canonicalString(want), canonicalString(res)))
		}
	}
}

// apply performs the step's operation and returns its result value.
func (h *Harness) apply(ctx context.Context, step Step, ev *TraceEvent) (ir.Value, error) {
	switch step.Op {
	case OpLoad:
		return nil, h.load(ctx, step)
	case OpEvict:
		return ir.Int(h.fields.EvictUnused()), nil
	case OpStats:
		s := h.fields.Stats()
		return ir.Dict{
			"loaded": ir.Int(s.LoadedDefinitions),
			"active": ir.Int(s.ActiveBlocks),
			"max":    ir.Int(s.MaxDefinitions),
		}, nil
	case OpWriteFile:
		b := h.bundles[step.Bundle]
		_, err := h.store.WriteDraftFile(ctx, b.UUID, DraftName, step.Path, []byte(step.Content))
		return nil, err
	case OpCommitBundle:
		b := h.bundles[step.Bundle]
		v, err := h.store.CommitDraft(ctx, b.UUID, DraftName, fmt.Sprintf("step %d", ev.Seq))
		if err != nil {
			return nil, err
		}
		b.LatestVersion = v
		h.bundles[step.Bundle] = b
		return ir.Int(v), nil
	}

	b, ok := h.blocks[step.Block]
	if !ok {
		return nil, fmt.Errorf("%w %q", errNoBlock, step.Block)
	}

	switch step.Op {
	case OpGet:
		return h.fields.Get(ctx, b, step.Field)
	case OpField:
		return b.Field(ctx, step.Field)
	case OpSet:
		v, err := nodeValue(&step.Value)
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		ev.Value = v
		return nil, b.SetField(ctx, step.Field, v)
	case OpDelete:
		return nil, b.ResetField(ctx, step.Field)
	case OpCommit:
		return nil, h.fields.CommitParsedValues(ctx, b)
	case OpSave:
		saved, err := h.rt.SaveBlock(ctx, b)
		if err != nil {
			return nil, err
		}
		h.blocks[step.Block] = saved
		return nil, nil
	case OpHasChanges:
		changed, err := b.HasUncommittedChanges(ctx)
		return ir.Bool(changed), err
	case OpHasCached:
		cached, err := h.fields.HasCached(ctx, b.DefinitionKey())
		return ir.Bool(cached), err
	case OpChildren:
		children, err := b.Children(ctx)
		if err != nil {
			return nil, err
		}
		out := make(ir.List, len(children))
		for i, c := range children {
			out[i] = ir.String(c.String())
		}
		return out, nil
	case OpRelease:
		b.Release()
		delete(h.blocks, step.Block)
		return nil, nil
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

// load loads a block under its alias, releasing whatever the alias held.
func (h *Harness) load(ctx context.Context, step Step) error {
	usage, err := ir.ParseUsageKey(step.Usage)
	if err != nil {
		return err
	}
	if prev, ok := h.blocks[step.Block]; ok {
		prev.Release()
		delete(h.blocks, step.Block)
	}
	user := runtime.Anonymous
	if step.User != 0 {
		user = runtime.User{ID: step.User, Username: fmt.Sprintf("user%d", step.User)}
	}
	b, err := h.rt.LoadBlock(ctx, usage, user)
	if err != nil {
		return err
	}
	h.blocks[step.Block] = b
	return nil
}

func (h *Harness) releaseAll() {
	for _, alias := range slices.Sorted(maps.Keys(h.blocks)) {
		h.blocks[alias].Release()
	}
	clear(h.blocks)
}

// nodeValue decodes a YAML node into a Value.
func nodeValue(n *yaml.Node) (ir.Value, error) {
	var raw any
	if err := n.Decode(&raw); err != nil {
		return nil, err
	}
	return ir.FromAny(raw)
}

func canonicalString(v ir.Value) string {
	if v == nil {
		return "nothing"
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
