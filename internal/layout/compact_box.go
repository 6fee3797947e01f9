// Package layout positions a model graph with a horizontal compact-box tree
// layout: the fact node sits at the origin and dimension subtrees extend to
// its left and right.
package layout

import (
	"math"

	"github.com/dimgraph/dimgraph/internal/model"
)

const (
	// DefaultHGap is the horizontal gap between a parent and its children
	DefaultHGap = 80
	// DefaultVGap is the vertical gap between sibling subtrees
	DefaultVGap = 10
)

// Options configures the layout
type Options struct {
	HGap float64 `mapstructure:"hgap" json:"hgap"`
	VGap float64 `mapstructure:"vgap" json:"vgap"`
}

// DefaultOptions returns the standard gaps
func DefaultOptions() Options {
	return Options{HGap: DefaultHGap, VGap: DefaultVGap}
}

// LayoutResult is one positioned node. X and Y are the top-left corner.
type LayoutResult struct {
	ID       string         `json:"id"`
	X        float64        `json:"x"`
	Y        float64        `json:"y"`
	Width    float64        `json:"width"`
	Height   float64        `json:"height"`
	Side     model.Side     `json:"side,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Children []LayoutResult `json:"children,omitempty"`
}

// Rect is an axis aligned bounding box
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Result is the output of Compute
type Result struct {
	Root  LayoutResult
	byID  map[string]LayoutResult
	order []string
}

// Position returns the layout of a single node
func (r *Result) Position(id string) (LayoutResult, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// IDs returns node ids in depth-first order
func (r *Result) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Bounds returns the box enclosing every node
func (r *Result) Bounds() Rect {
	if len(r.order) == 0 {
		return Rect{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, id := range r.order {
		p := r.byID[id]
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X+p.Width)
		maxY = math.Max(maxY, p.Y+p.Height)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// box is the working state of one node during layout
type box struct {
	id       string
	w, h     float64
	side     model.Side
	data     map[string]any
	children []*box

	// extent is the vertical space the subtree needs
	extent float64
	// block is the height of the stacked children
	block  float64
	cx, cy float64
}

// Compute lays out g. A nil or empty graph yields an empty result.
func Compute(g *model.Graph, opts Options) *Result {
	res := &Result{byID: make(map[string]LayoutResult)}
	if g == nil || g.Root() == "" {
		return res
	}

	root := buildBox(g, g.Root())
	root.side = model.SideAuto
	right, left := splitSides(root)

	// Each half is stacked on its own, both centred on the root.
	rightBlock := measureChildren(right, opts)
	leftBlock := measureChildren(left, opts)
	placeChildren(root, right, rightBlock, 1, opts)
	placeChildren(root, left, leftBlock, -1, opts)

	for _, c := range right {
		assignSide(c, model.SideRight)
	}
	for _, c := range left {
		assignSide(c, model.SideLeft)
	}

	// Keep the caller's child order in the output tree.
	res.Root = res.collect(root)
	return res
}

func buildBox(g *model.Graph, id string) *box {
	n, _ := g.Node(id)
	b := &box{
		id:   n.ID,
		w:    nonNegative(n.Width),
		h:    nonNegative(n.Height),
		side: n.Side,
		data: n.Data,
	}
	for _, c := range g.Children(id) {
		b.children = append(b.children, buildBox(g, c))
	}
	return b
}

// splitSides honours pinned sides and otherwise sends the first half of the
// children (rounded up) to the right.
func splitSides(root *box) (right, left []*box) {
	rightCount := int(math.Round(float64(len(root.children)) / 2))
	for i, c := range root.children {
		side := c.side
		if side == model.SideAuto {
			if i < rightCount {
				side = model.SideRight
			} else {
				side = model.SideLeft
			}
		}
		if side == model.SideRight {
			right = append(right, c)
		} else {
			left = append(left, c)
		}
	}
	return right, left
}

// measure computes the vertical extent of a subtree bottom-up
func measure(b *box, opts Options) float64 {
	b.block = measureChildren(b.children, opts)
	b.extent = math.Max(b.h, b.block)
	return b.extent
}

func measureChildren(children []*box, opts Options) float64 {
	if len(children) == 0 {
		return 0
	}
	total := 0.0
	for _, c := range children {
		total += measure(c, opts)
	}
	return total + opts.VGap*float64(len(children)-1)
}

// placeChildren stacks children top to bottom, the block centred on the parent
func placeChildren(parent *box, children []*box, block float64, dir float64, opts Options) {
	top := parent.cy - block/2
	for _, c := range children {
		c.cx = parent.cx + dir*(opts.HGap+parent.w/2+c.w/2)
		c.cy = top + c.extent/2
		placeChildren(c, c.children, c.block, dir, opts)
		top += c.extent + opts.VGap
	}
}

func assignSide(b *box, side model.Side) {
	b.side = side
	for _, c := range b.children {
		assignSide(c, side)
	}
}

func (r *Result) collect(b *box) LayoutResult {
	lr := LayoutResult{
		ID:     b.id,
		X:      b.cx - b.w/2,
		Y:      b.cy - b.h/2,
		Width:  b.w,
		Height: b.h,
		Side:   b.side,
		Data:   b.data,
	}
	r.byID[b.id] = lr
	r.order = append(r.order, b.id)
	for _, c := range b.children {
		lr.Children = append(lr.Children, r.collect(c))
	}
	r.byID[b.id] = lr
	return lr
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
