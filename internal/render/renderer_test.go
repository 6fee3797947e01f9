package render

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dimgraph/dimgraph/internal/metacache"
	"github.com/dimgraph/dimgraph/internal/model"
	"github.com/dimgraph/dimgraph/internal/scene"
	"github.com/dimgraph/dimgraph/internal/translate"
)

type stubSource map[string][]model.FieldRef

func (s stubSource) Columns(ctx context.Context, tableID string) (metacache.Columns, error) {
	fields, ok := s[tableID]
	return metacache.Columns{TableID: tableID, Exists: ok, Fields: fields}, nil
}

func fields(ids ...string) []model.FieldRef {
	out := make([]model.FieldRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.FieldRef{ID: id, Name: id, DataType: "BIGINT"})
	}
	return out
}

func source() stubSource {
	return stubSource{
		"ods:orders": fields("id", "user_id", "city_id", "amount"),
		"ods:user":   fields("id", "name"),
		"dim:city":   fields("city_id", "city_name"),
	}
}

func working() translate.Working {
	return translate.Working{
		Fact: translate.FactConf{ID: "ods:orders", CNName: "订单"},
		Dims: []translate.DimConf{
			{ID: "ods:user", CNName: "用户", DimFieldID: "id", DimFieldCNName: "编号", FactFieldID: "user_id"},
			{ID: "dim:city", CNName: "城市", DimFieldID: "city_id", DimFieldCNName: "城市", FactFieldID: "city_id"},
		},
	}
}

func newRenderer(t *testing.T, src FieldSource, opts ...Option) *Renderer {
	t.Helper()
	return New(src, append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
}

func portsOf(t *testing.T, c *scene.MemoryCanvas, id string) map[string]map[string]any {
	t.Helper()
	cell, ok := c.Cell(id)
	require.True(t, ok, "cell %s", id)
	out := map[string]map[string]any{}
	for _, p := range cell.Props[PropPorts].([]any) {
		m := p.(map[string]any)
		out[m["id"].(string)] = m
	}
	return out
}

func TestRenderFromConfig(t *testing.T) {
	r := newRenderer(t, source())
	c := scene.NewMemoryCanvas()

	snap, err := r.RenderFromConfig(context.Background(), c, working())
	require.NoError(t, err)
	require.NotNil(t, snap)

	cells := c.Cells()
	require.Len(t, cells, 5)
	assert.Equal(t, "ods_orders", cells[0].ID)
	assert.Equal(t, scene.KindNode, cells[0].Kind)
	assert.Equal(t, scene.KindEdge, cells[3].Kind)
	assert.Equal(t, "ods_orders:user_id::ods_user:id", cells[3].ID)
	assert.Equal(t, "ods_orders:city_id::dim_city:city_id", cells[4].ID)

	// first dimension goes right, second left
	user, _ := c.Cell("ods_user")
	city, _ := c.Cell("dim_city")
	assert.Equal(t, "right", user.Props[PropSide])
	assert.Equal(t, "left", city.Props[PropSide])

	fact, _ := c.Cell("ods_orders")
	assert.Equal(t, 164.0, fact.Props[PropHeight])
	assert.Equal(t, 280.0, fact.Props[PropWidth])
	assert.Equal(t, 104.0, user.Props[PropHeight])

	factPorts := portsOf(t, c, "ods_orders")
	assert.Equal(t, "100%", factPorts["ods_orders:user_id"]["x"])
	assert.Equal(t, 89.0, factPorts["ods_orders:user_id"]["y"])
	assert.Equal(t, "0", factPorts["ods_orders:city_id"]["x"])
	assert.Equal(t, 119.0, factPorts["ods_orders:city_id"]["y"])

	userPorts := portsOf(t, c, "ods_user")
	assert.Equal(t, "0", userPorts["ods_user:id"]["x"])
	assert.Equal(t, 59.0, userPorts["ods_user:id"]["y"])
	assert.Equal(t, "on_page", userPorts["ods_user:id"]["location"])

	edge, _ := c.Cell("ods_orders:user_id::ods_user:id")
	assert.Equal(t, map[string]any{"cell": "ods_orders", "port": "ods_orders:user_id"}, edge.Props[PropSource])
	assert.Equal(t, map[string]any{"cell": "ods_user", "port": "ods_user:id"}, edge.Props[PropTarget])

	require.NotNil(t, snap.Viewport)
	assert.InDelta(t, snap.Bounds.X+snap.Bounds.Width/2, snap.Viewport.CenterX, 1e-9)
	assert.InDelta(t, snap.Bounds.Y+snap.Bounds.Height/2, snap.Viewport.CenterY, 1e-9)
	assert.Empty(t, snap.Stale)
	assert.Equal(t, "ods_user", snap.Working.Dims[0].NodeID)
}

func TestRenderFromConfig_Guards(t *testing.T) {
	r := newRenderer(t, source())

	snap, err := r.RenderFromConfig(context.Background(), nil, working())
	assert.NoError(t, err)
	assert.Nil(t, snap)

	c := scene.NewMemoryCanvas()
	c.Reset([]scene.Cell{{ID: "keep", Kind: scene.KindNode}})

	cfg := working()
	cfg.Fact.ID = ""
	snap, err = r.RenderFromConfig(context.Background(), c, cfg)
	assert.NoError(t, err)
	assert.Nil(t, snap)
	assert.Len(t, c.Cells(), 1)
}

func TestRenderFromConfig_Idempotent(t *testing.T) {
	r := newRenderer(t, source())
	c := scene.NewMemoryCanvas()
	ctx := context.Background()

	first, err := r.RenderFromConfig(ctx, c, working())
	require.NoError(t, err)
	second, err := r.RenderFromConfig(ctx, c, working())
	require.NoError(t, err)
	assert.Equal(t, first.Cells, second.Cells)

	snap, err := r.Sync(ctx, c, working())
	require.NoError(t, err)
	assert.Empty(t, snap.Diff.Create)
	assert.Empty(t, snap.Diff.Remove)
	for _, u := range snap.Diff.Update {
		assert.Equal(t, scene.KindEdge, u.Kind)
	}
}

func TestSync_AddAndRemoveDimension(t *testing.T) {
	r := newRenderer(t, source())
	c := scene.NewMemoryCanvas()
	ctx := context.Background()

	cfg := working()
	one := cfg
	one.Dims = cfg.Dims[:1]

	_, err := r.RenderFromConfig(ctx, c, one)
	require.NoError(t, err)

	snap, err := r.Sync(ctx, c, cfg)
	require.NoError(t, err)
	var created []string
	for _, cell := range snap.Diff.Create {
		created = append(created, cell.ID)
	}
	assert.ElementsMatch(t, []string{"dim_city", "ods_orders:city_id::dim_city:city_id"}, created)

	snap, err = r.Sync(ctx, c, one)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dim_city", "ods_orders:city_id::dim_city:city_id"}, snap.Diff.Remove)
	assert.Len(t, c.Cells(), 3)
}

func TestRender_StaleReferences(t *testing.T) {
	src := source()
	delete(src, "dim:city")
	r := newRenderer(t, src)
	c := scene.NewMemoryCanvas()

	cfg := working()
	cfg.Dims[0].DimFieldID = "gone"
	cfg.Dims = append(cfg.Dims, translate.DimConf{
		ID: "ods:user", DimFieldID: "name", DimFieldType: "STRING", FactFieldID: "id",
	})

	snap, err := r.RenderFromConfig(context.Background(), c, cfg)
	require.NoError(t, err)

	reasons := map[string]StaleReason{}
	for _, s := range snap.Stale {
		reasons[s.NodeID+":"+s.FieldID] = s.Reason
	}
	assert.Equal(t, MissingField, reasons["ods_user:gone"])
	assert.Equal(t, MissingTable, reasons["dim_city:city_id"])
	assert.Equal(t, TypeMismatch, reasons["ods_user#2:name"])

	// only the type mismatch keeps its edge
	var edges []string
	for _, cell := range c.Cells() {
		if cell.Kind == scene.KindEdge {
			edges = append(edges, cell.ID)
		}
	}
	assert.Equal(t, []string{"ods_orders:id::ods_user#2:name"}, edges)

	_, ok := c.Cell("dim_city")
	assert.True(t, ok, "node of a missing table is still rendered")
	assert.NotContains(t, portsOf(t, c, "ods_user"), "ods_user:gone")
}

func TestSetExpand_Collapse(t *testing.T) {
	r := newRenderer(t, source())
	c := scene.NewMemoryCanvas()
	ctx := context.Background()

	_, err := r.RenderFromConfig(ctx, c, working())
	require.NoError(t, err)

	snap, err := r.SetExpand(ctx, c, working(), "ods_orders", false)
	require.NoError(t, err)
	require.NotNil(t, snap.Diff)

	fact, _ := c.Cell("ods_orders")
	assert.Equal(t, false, fact.Props[PropExpand])
	assert.Equal(t, 104.0, fact.Props[PropHeight])
	assert.Len(t, fact.Props[PropFields], 2)

	ports := portsOf(t, c, "ods_orders")
	assert.Equal(t, 59.0, ports["ods_orders:user_id"]["y"])
	assert.Equal(t, 89.0, ports["ods_orders:city_id"]["y"])

	// state survives a full re-render
	_, err = r.RenderFromConfig(ctx, c, working())
	require.NoError(t, err)
	fact, _ = c.Cell("ods_orders")
	assert.Equal(t, false, fact.Props[PropExpand])
}

func TestSetPage_PortsOffPage(t *testing.T) {
	opts := DefaultOptions()
	opts.Sizing.PageSize = 2
	r := newRenderer(t, source(), WithOptions(opts))
	c := scene.NewMemoryCanvas()
	ctx := context.Background()

	_, err := r.RenderFromConfig(ctx, c, working())
	require.NoError(t, err)

	_, err = r.SetPage(ctx, c, working(), "ods_orders", 2)
	require.NoError(t, err)

	fact, _ := c.Cell("ods_orders")
	assert.Equal(t, 2, fact.Props[PropPageOffset])
	ports := portsOf(t, c, "ods_orders")
	assert.Equal(t, "above", ports["ods_orders:user_id"]["location"])
	assert.Equal(t, 26.5, ports["ods_orders:user_id"]["y"])
	assert.Equal(t, "on_page", ports["ods_orders:city_id"]["location"])
	assert.Equal(t, 59.0, ports["ods_orders:city_id"]["y"])

	// past the end clamps to the last page
	_, err = r.SetPage(ctx, c, working(), "ods_orders", 99)
	require.NoError(t, err)
	fact, _ = c.Cell("ods_orders")
	assert.Equal(t, 2, fact.Props[PropPageOffset])
}

func TestReveal(t *testing.T) {
	opts := DefaultOptions()
	opts.Sizing.PageSize = 2
	opts.Sizing.Expanded = false
	r := newRenderer(t, source(), WithOptions(opts))
	c := scene.NewMemoryCanvas()
	ctx := context.Background()

	_, err := r.RenderFromConfig(ctx, c, working())
	require.NoError(t, err)

	_, err = r.Reveal(ctx, c, working(), "ods_orders", "amount")
	require.NoError(t, err)

	fact, _ := c.Cell("ods_orders")
	assert.Equal(t, true, fact.Props[PropExpand])
	assert.Equal(t, 2, fact.Props[PropPageOffset])

	_, err = r.Reveal(ctx, c, working(), "ods_orders", "nope")
	assert.Error(t, err)
}

func TestSetSide(t *testing.T) {
	r := newRenderer(t, source())
	c := scene.NewMemoryCanvas()
	ctx := context.Background()

	_, err := r.RenderFromConfig(ctx, c, working())
	require.NoError(t, err)

	_, err = r.SetSide(ctx, c, working(), "ods_user", model.SideLeft)
	require.NoError(t, err)

	user, _ := c.Cell("ods_user")
	assert.Equal(t, "left", user.Props[PropSide])
	assert.Equal(t, "left", user.Props[PropPinnedSide])
	assert.Equal(t, "100%", portsOf(t, c, "ods_user")["ods_user:id"]["x"])

	_, err = r.SetSide(ctx, c, working(), "ods_user", model.Side("up"))
	assert.Error(t, err)
}

func TestViewOps_UnknownNode(t *testing.T) {
	r := newRenderer(t, source())
	c := scene.NewMemoryCanvas()
	ctx := context.Background()

	_, err := r.RenderFromConfig(ctx, c, working())
	require.NoError(t, err)

	_, err = r.SetExpand(ctx, c, working(), "nope", true)
	assert.ErrorIs(t, err, ErrUnknownNode)
	_, err = r.SetPage(ctx, c, working(), "nope", 0)
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestRender_KeepsUserWidth(t *testing.T) {
	r := newRenderer(t, source())
	c := scene.NewMemoryCanvas()
	ctx := context.Background()

	_, err := r.RenderFromConfig(ctx, c, working())
	require.NoError(t, err)

	require.NoError(t, c.Batch(func(b scene.Batch) error {
		return b.SetProp("ods_user", PropWidth, 400.0)
	}))

	_, err = r.RenderFromConfig(ctx, c, working())
	require.NoError(t, err)
	user, _ := c.Cell("ods_user")
	assert.Equal(t, 400.0, user.Props[PropWidth])
}

func TestRender_WithoutFieldSource(t *testing.T) {
	r := newRenderer(t, nil)
	c := scene.NewMemoryCanvas()

	snap, err := r.RenderFromConfig(context.Background(), c, working())
	require.NoError(t, err)
	assert.Empty(t, snap.Stale)

	fact, _ := c.Cell("ods_orders")
	assert.Equal(t, 2, fact.Props[PropTotal])
	assert.Len(t, c.Cells(), 5)
}

func TestRender_FieldSourceError(t *testing.T) {
	boom := errors.New("metadata unavailable")
	src := sourceFunc(func(ctx context.Context, tableID string) (metacache.Columns, error) {
		return metacache.Columns{}, boom
	})
	r := newRenderer(t, src)

	_, err := r.RenderFromConfig(context.Background(), scene.NewMemoryCanvas(), working())
	assert.ErrorIs(t, err, boom)
}

func TestRender_GeneratedDimensionID(t *testing.T) {
	r := newRenderer(t, source(), WithIDGenerator(func() string { return "fixed" }))
	c := scene.NewMemoryCanvas()

	cfg := working()
	cfg.Dims = append(cfg.Dims, translate.DimConf{})

	snap, err := r.RenderFromConfig(context.Background(), c, cfg)
	require.NoError(t, err)
	assert.Equal(t, "dim_fixed", snap.Working.Dims[2].NodeID)
	_, ok := c.Cell("dim_fixed")
	assert.True(t, ok)
}

func TestRender_InvalidSide(t *testing.T) {
	r := newRenderer(t, source())
	cfg := working()
	cfg.Dims[0].Side = model.Side("top")

	_, err := r.RenderFromConfig(context.Background(), scene.NewMemoryCanvas(), cfg)
	var gerr *model.GraphError
	assert.ErrorAs(t, err, &gerr)
}

type sourceFunc func(ctx context.Context, tableID string) (metacache.Columns, error)

func (f sourceFunc) Columns(ctx context.Context, tableID string) (metacache.Columns, error) {
	return f(ctx, tableID)
}

func TestRender_SharedFactFieldOnBothSides(t *testing.T) {
	r := newRenderer(t, source())
	c := scene.NewMemoryCanvas()
	cfg := working()
	cfg.Dims[1].FactFieldID = "user_id"
	cfg.Dims[1].DimFieldID = "city_id"

	_, err := r.RenderFromConfig(context.Background(), c, cfg)
	require.NoError(t, err)

	factPorts := portsOf(t, c, "ods_orders")
	require.Len(t, factPorts, 2)
	assert.Equal(t, "right", factPorts["ods_orders:user_id"]["group"])
	assert.Equal(t, "100%", factPorts["ods_orders:user_id"]["x"])
	assert.Equal(t, "left", factPorts["ods_orders:user_id@left"]["group"])
	assert.Equal(t, "0", factPorts["ods_orders:user_id@left"]["x"])

	edge, ok := c.Cell("ods_orders:user_id@left::dim_city:city_id")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"cell": "ods_orders", "port": "ods_orders:user_id@left"}, edge.Props[PropSource])
}

func TestRender_SanitizesCallerNodeIDs(t *testing.T) {
	r := newRenderer(t, source())
	c := scene.NewMemoryCanvas()
	cfg := working()
	cfg.Dims[0].NodeID = "a:b"
	cfg.Dims[1].NodeID = "a_b"

	snap, err := r.RenderFromConfig(context.Background(), c, cfg)
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, "a_b", snap.Working.Dims[0].NodeID)
	assert.Equal(t, "dim_city", snap.Working.Dims[1].NodeID)
	_, ok := c.Cell("a_b")
	assert.True(t, ok)
	_, ok = c.Cell("dim_city")
	assert.True(t, ok)
}
