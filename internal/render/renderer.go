// Package render projects a working model configuration onto a canvas: it
// sizes nodes from their visible fields, lays them out, derives ports and
// edges from the joins, and writes the result either as a full reset or as
// a diff/patch.
package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dimgraph/dimgraph/internal/layout"
	"github.com/dimgraph/dimgraph/internal/metacache"
	"github.com/dimgraph/dimgraph/internal/model"
	"github.com/dimgraph/dimgraph/internal/port"
	"github.com/dimgraph/dimgraph/internal/scene"
	"github.com/dimgraph/dimgraph/internal/translate"
)

// ErrUnknownNode is returned by view operations on a node the canvas does
// not hold
var ErrUnknownNode = errors.New("unknown node")

// ErrUnknownField is returned by Reveal for a field the node does not have
var ErrUnknownField = errors.New("unknown field")

// FieldSource provides table columns. metacache.Service implements it.
type FieldSource interface {
	Columns(ctx context.Context, tableID string) (metacache.Columns, error)
}

// Snapshot describes the outcome of one render pass
type Snapshot struct {
	Working  translate.Working `json:"working"`
	Cells    []scene.Cell      `json:"cells"`
	Stale    []StaleRef        `json:"stale"`
	Bounds   layout.Rect       `json:"bounds"`
	Viewport *scene.Viewport   `json:"viewport,omitempty"`
	Diff     *scene.Result     `json:"diff,omitempty"`

	layout *layout.Result
}

// Layout returns the computed positions
func (s *Snapshot) Layout() *layout.Result {
	return s.layout
}

// Renderer renders model configurations. It holds no per-canvas state and
// may be shared.
type Renderer struct {
	opts   Options
	fields FieldSource
	logger *zap.Logger
	newID  func() string
}

// Option configures a Renderer
type Option func(*Renderer)

// WithOptions replaces the layout, port and sizing settings
func WithOptions(opts Options) Option {
	return func(r *Renderer) { r.opts = opts }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithIDGenerator sets the generator used for dimensions without a table
func WithIDGenerator(fn func() string) Option {
	return func(r *Renderer) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// New creates a Renderer. A nil source derives each table's fields from the
// join configuration.
func New(fields FieldSource, opts ...Option) *Renderer {
	r := &Renderer{
		opts:   DefaultOptions(),
		fields: fields,
		logger: zap.NewNop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Options returns the renderer settings
func (r *Renderer) Options() Options {
	return r.opts
}

// RenderFromConfig replaces the canvas content with the projection of cfg
// and centres the viewport on it. A nil canvas or a fact without id is a
// no-op and returns a nil snapshot.
func (r *Renderer) RenderFromConfig(ctx context.Context, c scene.Canvas, cfg translate.Working) (*Snapshot, error) {
	if c == nil || cfg.Fact.ID == "" {
		r.logger.Debug("skipping render", zap.Bool("canvas", c != nil), zap.String("fact", cfg.Fact.ID))
		return nil, nil
	}

	p, err := r.project(ctx, cfg, readState(c))
	if err != nil {
		return nil, err
	}

	c.Reset(p.cells)
	vp := c.CenterContent()

	r.logger.Debug("rendered model",
		zap.String("fact", p.working.Fact.ID),
		zap.Int("dimensions", len(p.working.Dims)),
		zap.Int("cells", len(p.cells)),
		zap.Int("stale", len(p.stale)),
	)
	snap := r.snapshot(p)
	snap.Viewport = &vp
	return snap, nil
}

// Sync brings the canvas to the projection of cfg through a diff and patch,
// leaving the viewport alone
func (r *Renderer) Sync(ctx context.Context, c scene.Canvas, cfg translate.Working) (*Snapshot, error) {
	if c == nil || cfg.Fact.ID == "" {
		return nil, nil
	}
	return r.apply(ctx, c, cfg, readState(c))
}

// SetExpand expands or collapses one node and syncs the canvas
func (r *Renderer) SetExpand(ctx context.Context, c scene.Canvas, cfg translate.Working, nodeID string, expand bool) (*Snapshot, error) {
	return r.update(ctx, c, cfg, nodeID, func(v *viewState) {
		v.expand = expand
		v.hasExpand = true
	})
}

// SetPage moves the field page of one node. The offset is clamped to the
// field list.
func (r *Renderer) SetPage(ctx context.Context, c scene.Canvas, cfg translate.Working, nodeID string, pageOffset int) (*Snapshot, error) {
	return r.update(ctx, c, cfg, nodeID, func(v *viewState) {
		v.pageOffset = pageOffset
	})
}

// SetSide pins a dimension to one side of the fact node, or unpins it with
// model.SideAuto. A side in cfg takes precedence.
func (r *Renderer) SetSide(ctx context.Context, c scene.Canvas, cfg translate.Working, nodeID string, side model.Side) (*Snapshot, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("unknown side %q", side)
	}
	return r.update(ctx, c, cfg, nodeID, func(v *viewState) {
		v.pinned = side
	})
}

// Reveal pages the node so that fieldID is visible, expanding it if needed
func (r *Renderer) Reveal(ctx context.Context, c scene.Canvas, cfg translate.Working, nodeID, fieldID string) (*Snapshot, error) {
	if c == nil || cfg.Fact.ID == "" {
		return nil, nil
	}

	state := readState(c)
	if _, ok := state[nodeID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}

	current, err := r.project(ctx, cfg, state)
	if err != nil {
		return nil, err
	}
	v, ok := current.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}

	loc := port.Locate(v.all, fieldID, 0, 0)
	if loc.Kind == port.Missing {
		return nil, fmt.Errorf("%w: %s on node %s", ErrUnknownField, fieldID, nodeID)
	}

	st := state[nodeID]
	st.expand, st.hasExpand = true, true
	st.pageOffset = port.PageFor(loc.Index, r.opts.Sizing.PageSize)
	state[nodeID] = st
	return r.apply(ctx, c, current.working, state)
}

func (r *Renderer) update(ctx context.Context, c scene.Canvas, cfg translate.Working, nodeID string, fn func(v *viewState)) (*Snapshot, error) {
	if c == nil || cfg.Fact.ID == "" {
		return nil, nil
	}

	state := readState(c)
	v, ok := state[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}
	fn(&v)
	state[nodeID] = v
	return r.apply(ctx, c, cfg, state)
}

func (r *Renderer) apply(ctx context.Context, c scene.Canvas, cfg translate.Working, state map[string]viewState) (*Snapshot, error) {
	p, err := r.project(ctx, cfg, state)
	if err != nil {
		return nil, err
	}

	diff := scene.DiffCanvas(c, p.cells)
	if err := scene.Patch(c, diff); err != nil {
		return nil, fmt.Errorf("failed to patch canvas: %w", err)
	}

	r.logger.Debug("synced model",
		zap.String("fact", p.working.Fact.ID),
		zap.Int("create", len(diff.Create)),
		zap.Int("update", len(diff.Update)),
		zap.Int("remove", len(diff.Remove)),
	)
	snap := r.snapshot(p)
	snap.Diff = &diff
	return snap, nil
}

func (r *Renderer) snapshot(p *projection) *Snapshot {
	stale := p.stale
	if stale == nil {
		stale = []StaleRef{}
	}
	return &Snapshot{
		Working: p.working,
		Cells:   p.cells,
		Stale:   stale,
		Bounds:  p.layout.Bounds(),
		layout:  p.layout,
	}
}
