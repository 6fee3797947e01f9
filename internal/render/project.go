package render

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dimgraph/dimgraph/internal/layout"
	"github.com/dimgraph/dimgraph/internal/metacache"
	"github.com/dimgraph/dimgraph/internal/model"
	"github.com/dimgraph/dimgraph/internal/port"
	"github.com/dimgraph/dimgraph/internal/scene"
	"github.com/dimgraph/dimgraph/internal/translate"
)

// Cell property keys written by the renderer
const (
	PropX          = "x"
	PropY          = "y"
	PropWidth      = "width"
	PropHeight     = "height"
	PropNodeType   = "nodeType"
	PropSide       = "side"
	PropPinnedSide = "pinnedSide"
	PropExpand     = "expand"
	PropPageOffset = "pageOffset"
	PropPageSize   = "pageSize"
	PropTotal      = "total"
	PropData       = "data"
	PropFields     = "fields"
	PropPorts      = "ports"
	PropSource     = "source"
	PropTarget     = "target"
)

// StaleReason explains why a join reference could not be honoured
type StaleReason string

const (
	MissingTable StaleReason = "missing_table"
	MissingField StaleReason = "missing_field"
	TypeMismatch StaleReason = "type_mismatch"
)

// StaleRef is a join field that the current table schema no longer backs.
// Missing references are not rendered; type mismatches are.
type StaleRef struct {
	NodeID   string      `json:"nodeId"`
	TableID  string      `json:"tableId"`
	FieldID  string      `json:"fieldId"`
	Reason   StaleReason `json:"reason"`
	Expected string      `json:"expected,omitempty"`
	Actual   string      `json:"actual,omitempty"`
}

// viewState is the per-node canvas state that survives re-rendering
type viewState struct {
	width      float64
	expand     bool
	hasExpand  bool
	pageOffset int
	pinned     model.Side
}

// readState collects view state from the node cells of a canvas
func readState(c scene.Canvas) map[string]viewState {
	state := make(map[string]viewState)
	for _, cell := range c.Cells() {
		if cell.Kind != scene.KindNode {
			continue
		}
		var v viewState
		if w, ok := cell.Props.Float(PropWidth); ok && w > 0 {
			v.width = w
		}
		v.expand, v.hasExpand = cell.Props.Bool(PropExpand)
		if off, ok := cell.Props.Int(PropPageOffset); ok {
			v.pageOffset = off
		}
		if s, ok := cell.Props.String(PropPinnedSide); ok && model.Side(s).Valid() {
			v.pinned = model.Side(s)
		}
		state[cell.ID] = v
	}
	return state
}

// nodeView is one table ready for layout
type nodeView struct {
	id       string
	tableID  string
	nodeType model.NodeType
	data     map[string]any
	all      []model.FieldRef
	visible  []model.FieldRef
	missing  map[string]bool
	expand   bool
	offset   int
	width    float64
	height   float64
	pinned   model.Side
}

// projection is the desired scene for one configuration
type projection struct {
	working translate.Working
	nodes   map[string]*nodeView
	layout  *layout.Result
	cells   []scene.Cell
	stale   []StaleRef
}

// project turns a working configuration and the current view state into the
// cells the canvas should hold
func (r *Renderer) project(ctx context.Context, cfg translate.Working, state map[string]viewState) (*projection, error) {
	cfg = r.assignIDs(cfg)
	factID := cfg.FactNodeID()

	columns, err := r.fetchColumns(ctx, cfg)
	if err != nil {
		return nil, err
	}

	p := &projection{working: cfg, nodes: make(map[string]*nodeView, len(cfg.Dims)+1)}

	var factLinked []string
	seen := make(map[string]bool)
	for _, d := range cfg.Dims {
		if d.FactFieldID != "" && !seen[d.FactFieldID] {
			seen[d.FactFieldID] = true
			factLinked = append(factLinked, d.FactFieldID)
		}
	}

	fact := r.view(factID, cfg.Fact.ID, model.Fact, columns[cfg.Fact.ID], factLinked, state[factID])
	fact.data = map[string]any{
		"tableId": cfg.Fact.ID,
		"cnName":  cfg.Fact.CNName,
		"enName":  cfg.Fact.ENName,
		"path":    cfg.Fact.Path,
		"exists":  columns[cfg.Fact.ID].Exists,
	}
	p.nodes[factID] = fact

	b := model.NewBuilder().SetFact(model.Node{
		ID:         factID,
		Data:       fact.data,
		Width:      fact.width,
		Height:     fact.height,
		Expand:     fact.expand,
		PageOffset: fact.offset,
	})

	for _, d := range cfg.Dims {
		var linked []string
		if d.DimFieldID != "" {
			linked = []string{d.DimFieldID}
		}
		st := state[d.NodeID]
		v := r.view(d.NodeID, d.ID, model.Dimension, columns[d.ID], linked, st)
		v.pinned = st.pinned
		if d.Side != model.SideAuto {
			v.pinned = d.Side
		}
		v.data = map[string]any{
			"tableId": d.ID,
			"cnName":  d.CNName,
			"enName":  d.ENName,
			"path":    d.Path,
			"exists":  columns[d.ID].Exists,
		}
		p.nodes[d.NodeID] = v

		var links map[model.PortID]model.PortID
		if d.DimFieldID != "" && d.FactFieldID != "" {
			links = map[model.PortID]model.PortID{
				model.NewPortID(d.NodeID, d.DimFieldID): model.NewPortID(factID, d.FactFieldID),
			}
		}
		b.AddDimension(model.Node{
			ID:         d.NodeID,
			Data:       v.data,
			LinkMap:    links,
			Width:      v.width,
			Height:     v.height,
			Side:       v.pinned,
			Expand:     v.expand,
			PageOffset: v.offset,
		})
	}

	g, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid model configuration: %w", err)
	}

	p.stale = r.staleRefs(cfg, columns, p.nodes)
	p.layout = layout.Compute(g, r.opts.Layout)
	p.cells = r.cells(g, p)
	return p, nil
}

// assignIDs gives every dimension a node id. Dimensions that have no table
// yet get a generated one.
func (r *Renderer) assignIDs(cfg translate.Working) translate.Working {
	dims := make([]translate.DimConf, len(cfg.Dims))
	copy(dims, cfg.Dims)
	cfg.Dims = dims
	used := map[string]bool{cfg.FactNodeID(): true}
	for i := range cfg.Dims {
		d := &cfg.Dims[i]
		if d.NodeID != "" {
			// caller ids must not carry the port separator or repeat
			d.NodeID = translate.NodeID(d.NodeID)
			if used[d.NodeID] {
				r.logger.Debug("replacing duplicate node id", zap.String("node", d.NodeID))
				d.NodeID = ""
			} else {
				used[d.NodeID] = true
			}
		}
		if d.NodeID == "" && d.ID == "" {
			d.NodeID = "dim_" + r.newID()
			used[d.NodeID] = true
		}
	}
	translate.AssignNodeIDs(&cfg)
	return cfg
}

// fetchColumns loads the columns of every table in the configuration once
func (r *Renderer) fetchColumns(ctx context.Context, cfg translate.Working) (map[string]metacache.Columns, error) {
	out := make(map[string]metacache.Columns)
	if r.fields == nil {
		return fallbackColumns(cfg), nil
	}

	tables := []string{cfg.Fact.ID}
	for _, d := range cfg.Dims {
		tables = append(tables, d.ID)
	}
	for _, id := range tables {
		if id == "" {
			continue
		}
		if _, ok := out[id]; ok {
			continue
		}
		cols, err := r.fields.Columns(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load columns of %s: %w", id, err)
		}
		out[id] = cols
	}
	return out, nil
}

// fallbackColumns derives field lists from the join configuration alone
func fallbackColumns(cfg translate.Working) map[string]metacache.Columns {
	out := make(map[string]metacache.Columns)
	add := func(tableID string, f model.FieldRef) {
		if tableID == "" {
			return
		}
		cols := out[tableID]
		cols.TableID = tableID
		cols.Exists = true
		if f.ID != "" {
			for _, have := range cols.Fields {
				if have.ID == f.ID {
					out[tableID] = cols
					return
				}
			}
			cols.Fields = append(cols.Fields, f)
		}
		out[tableID] = cols
	}

	add(cfg.Fact.ID, model.FieldRef{})
	for _, d := range cfg.Dims {
		add(cfg.Fact.ID, model.FieldRef{ID: d.FactFieldID, Name: d.FactFieldCNName, DataType: d.FactFieldType})
		add(d.ID, model.FieldRef{ID: d.DimFieldID, Name: d.DimFieldCNName, DataType: d.DimFieldType})
	}
	return out
}

// view sizes one node. Expanded nodes show the current page of all fields;
// collapsed nodes show only the linked fields that still exist.
func (r *Renderer) view(id, tableID string, typ model.NodeType, cols metacache.Columns, linked []string, st viewState) *nodeView {
	v := &nodeView{
		id:       id,
		tableID:  tableID,
		nodeType: typ,
		all:      cols.Fields,
		missing:  make(map[string]bool),
		expand:   r.opts.Sizing.Expanded,
		width:    r.opts.Sizing.Width,
	}
	if st.hasExpand {
		v.expand = st.expand
	}
	if st.width > 0 {
		v.width = st.width
	}

	present := make(map[string]bool, len(cols.Fields))
	for _, f := range cols.Fields {
		present[f.ID] = true
	}
	keep := make(map[string]bool, len(linked))
	for _, id := range linked {
		if present[id] {
			keep[id] = true
		} else {
			v.missing[id] = true
		}
	}

	if v.expand {
		v.offset = port.ClampOffset(len(v.all), st.pageOffset, r.opts.Sizing.PageSize)
		v.visible = port.Window(v.all, v.offset, r.opts.Sizing.PageSize)
	} else {
		for _, f := range v.all {
			if keep[f.ID] {
				v.visible = append(v.visible, f)
			}
		}
	}
	v.height = r.opts.height(len(v.visible))
	return v
}

func (r *Renderer) staleRefs(cfg translate.Working, columns map[string]metacache.Columns, nodes map[string]*nodeView) []StaleRef {
	var out []StaleRef
	check := func(nodeID, tableID, fieldID, wantType string) {
		if tableID == "" || fieldID == "" {
			return
		}
		cols := columns[tableID]
		if !cols.Exists {
			out = append(out, StaleRef{NodeID: nodeID, TableID: tableID, FieldID: fieldID, Reason: MissingTable})
			return
		}
		if nodes[nodeID].missing[fieldID] {
			out = append(out, StaleRef{NodeID: nodeID, TableID: tableID, FieldID: fieldID, Reason: MissingField})
			return
		}
		if wantType == "" {
			return
		}
		for _, f := range cols.Fields {
			if f.ID == fieldID && f.DataType != "" && f.DataType != wantType {
				out = append(out, StaleRef{
					NodeID: nodeID, TableID: tableID, FieldID: fieldID,
					Reason: TypeMismatch, Expected: wantType, Actual: f.DataType,
				})
			}
		}
	}

	factID := cfg.FactNodeID()
	for _, d := range cfg.Dims {
		check(factID, cfg.Fact.ID, d.FactFieldID, d.FactFieldType)
		check(d.NodeID, d.ID, d.DimFieldID, d.DimFieldType)
	}
	if len(out) > 0 {
		r.logger.Debug("stale join references", zap.Int("count", len(out)))
	}
	return out
}

// cells builds node cells depth first from the layout, then one edge per
// dimension join whose fields both exist
func (r *Renderer) cells(g *model.Graph, p *projection) []scene.Cell {
	factID := g.Root()
	fact := p.nodes[factID]

	type edge struct {
		id             string
		source, target model.PortID
		dimID          string
	}
	var edges []edge
	ports := make(map[string][]any)
	type sidePort struct {
		field string
		side  model.Side
	}
	factPorts := make(map[sidePort]model.PortID)
	factPortIDs := make(map[model.PortID]bool)

	for _, d := range p.working.Dims {
		if d.FactFieldID == "" || d.DimFieldID == "" {
			continue
		}
		dim := p.nodes[d.NodeID]
		if fact.missing[d.FactFieldID] || dim.missing[d.DimFieldID] {
			continue
		}

		pos, _ := p.layout.Position(d.NodeID)
		side := pos.Side
		if side == model.SideAuto {
			side = model.SideRight
		}

		// one fact port per field and side; the second side gets a suffixed id
		key := sidePort{field: d.FactFieldID, side: side}
		src, ok := factPorts[key]
		if !ok {
			src = model.NewPortID(factID, d.FactFieldID)
			if factPortIDs[src] {
				src = model.PortID(string(src) + "@" + string(side))
			}
			factPorts[key] = src
			factPortIDs[src] = true
			ports[factID] = append(ports[factID], r.portProps(fact, src, d.FactFieldID, side))
		}
		dst := model.NewPortID(d.NodeID, d.DimFieldID)
		ports[d.NodeID] = append(ports[d.NodeID], r.portProps(dim, dst, d.DimFieldID, side.Opposite()))
		edges = append(edges, edge{id: string(src) + "::" + string(dst), source: src, target: dst, dimID: d.NodeID})
	}

	var out []scene.Cell
	var walk func(lr layout.LayoutResult)
	walk = func(lr layout.LayoutResult) {
		v := p.nodes[lr.ID]
		props := scene.Props{
			PropX:          lr.X,
			PropY:          lr.Y,
			PropWidth:      lr.Width,
			PropHeight:     lr.Height,
			PropNodeType:   string(v.nodeType),
			PropSide:       string(lr.Side),
			PropPinnedSide: string(v.pinned),
			PropExpand:     v.expand,
			PropPageOffset: v.offset,
			PropPageSize:   r.opts.Sizing.PageSize,
			PropTotal:      len(v.all),
			PropData:       cloneData(v.data),
			PropFields:     fieldList(v.visible),
			PropPorts:      portList(ports[lr.ID]),
		}
		out = append(out, scene.Cell{ID: lr.ID, Kind: scene.KindNode, Props: props})
		for _, c := range lr.Children {
			walk(c)
		}
	}
	walk(p.layout.Root)

	for _, e := range edges {
		out = append(out, scene.Cell{
			ID:   e.id,
			Kind: scene.KindEdge,
			Props: scene.Props{
				PropSource: map[string]any{"cell": factID, "port": string(e.source)},
				PropTarget: map[string]any{"cell": e.dimID, "port": string(e.target)},
			},
		})
	}
	return out
}

// portProps resolves where a port sits on its node
func (r *Renderer) portProps(v *nodeView, id model.PortID, fieldID string, side model.Side) map[string]any {
	var loc port.Location
	if v.expand {
		loc = port.Locate(v.all, fieldID, v.offset, r.opts.Sizing.PageSize)
	} else {
		loc = port.Locate(v.visible, fieldID, 0, 0)
	}
	off := r.opts.Port.Offset(v.visible, fieldID, side)
	return map[string]any{
		"id":       string(id),
		"fieldId":  fieldID,
		"group":    string(side),
		"x":        string(off.X),
		"y":        off.Y,
		"location": string(loc.Kind),
	}
}

func fieldList(fields []model.FieldRef) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, map[string]any{"id": f.ID, "name": f.Name, "dataType": f.DataType})
	}
	return out
}

func portList(ports []any) []any {
	if ports == nil {
		return []any{}
	}
	return ports
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
