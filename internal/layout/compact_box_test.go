package layout

import (
	"fmt"
	"testing"

	"github.com/dimgraph/dimgraph/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildStar(t *testing.T, dims ...model.Node) *model.Graph {
	t.Helper()
	b := model.NewBuilder().SetFact(model.Node{ID: "fact", Width: 280, Height: 75})
	for _, d := range dims {
		b.AddDimension(d)
	}
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func sized(id string, w, h float64, side model.Side) model.Node {
	return model.Node{ID: id, Width: w, Height: h, Side: side}
}

func TestCompute_TwoDimensions(t *testing.T) {
	g := buildStar(t, sized("d1", 280, 75, ""), sized("d2", 280, 75, ""))
	res := Compute(g, DefaultOptions())

	fact, ok := res.Position("fact")
	require.True(t, ok)
	assert.Equal(t, -140.0, fact.X)
	assert.Equal(t, -37.5, fact.Y)

	d1, _ := res.Position("d1")
	d2, _ := res.Position("d2")
	assert.Equal(t, model.SideRight, d1.Side)
	assert.Equal(t, model.SideLeft, d2.Side)

	// centre distance is gap plus both half widths
	assert.Equal(t, 220.0, d1.X)
	assert.Equal(t, -500.0, d2.X)
	assert.Equal(t, -37.5, d1.Y)
	assert.GreaterOrEqual(t, d1.X-(fact.X+fact.Width), float64(DefaultHGap))
	assert.GreaterOrEqual(t, fact.X-(d2.X+d2.Width), float64(DefaultHGap))
}

func TestCompute_StacksSameSideSiblings(t *testing.T) {
	g := buildStar(t,
		sized("d1", 280, 75, ""),
		sized("d2", 280, 75, ""),
		sized("d3", 280, 75, ""),
		sized("d4", 280, 75, ""),
	)
	res := Compute(g, DefaultOptions())

	d1, _ := res.Position("d1")
	d2, _ := res.Position("d2")
	assert.Equal(t, model.SideRight, d1.Side)
	assert.Equal(t, model.SideRight, d2.Side)
	assert.Equal(t, -80.0, d1.Y)
	assert.Equal(t, 5.0, d2.Y)
	assert.Equal(t, float64(DefaultVGap), d2.Y-(d1.Y+d1.Height))

	d3, _ := res.Position("d3")
	d4, _ := res.Position("d4")
	assert.Equal(t, model.SideLeft, d3.Side)
	assert.Equal(t, model.SideLeft, d4.Side)
}

func TestCompute_OddCountFavoursRight(t *testing.T) {
	g := buildStar(t, sized("d1", 100, 50, ""), sized("d2", 100, 50, ""), sized("d3", 100, 50, ""))
	res := Compute(g, DefaultOptions())

	var right, left int
	for _, id := range []string{"d1", "d2", "d3"} {
		p, _ := res.Position(id)
		if p.Side == model.SideRight {
			right++
		} else {
			left++
		}
	}
	assert.Equal(t, 2, right)
	assert.Equal(t, 1, left)
}

func TestCompute_PinnedSide(t *testing.T) {
	g := buildStar(t,
		sized("d1", 280, 75, model.SideLeft),
		sized("d2", 280, 75, model.SideLeft),
	)
	res := Compute(g, DefaultOptions())

	for _, id := range []string{"d1", "d2"} {
		p, _ := res.Position(id)
		assert.Equal(t, model.SideLeft, p.Side, id)
		assert.Less(t, p.X, 0.0, id)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	var dims []model.Node
	for i := 0; i < 7; i++ {
		dims = append(dims, sized(fmt.Sprintf("d%d", i), float64(200+i*10), float64(75+i*30), ""))
	}
	g := buildStar(t, dims...)

	first := Compute(g, DefaultOptions())
	second := Compute(g, DefaultOptions())
	assert.Equal(t, first.Root, second.Root)
}

func TestCompute_NoVerticalOverlap(t *testing.T) {
	var dims []model.Node
	for i := 0; i < 9; i++ {
		dims = append(dims, sized(fmt.Sprintf("d%d", i), 280, float64(75+(i%3)*60), ""))
	}
	g := buildStar(t, dims...)
	res := Compute(g, DefaultOptions())

	for _, side := range []model.Side{model.SideLeft, model.SideRight} {
		var boxes []LayoutResult
		for _, c := range res.Root.Children {
			if c.Side == side {
				boxes = append(boxes, c)
			}
		}
		for i := 1; i < len(boxes); i++ {
			prev, cur := boxes[i-1], boxes[i]
			assert.GreaterOrEqual(t, cur.Y-(prev.Y+prev.Height), float64(DefaultVGap)-1e-9)
		}
	}
}

func TestCompute_ParentCentredOnChildren(t *testing.T) {
	g := buildStar(t, sized("d1", 280, 300, model.SideRight), sized("d2", 280, 100, model.SideRight))
	res := Compute(g, DefaultOptions())

	d1, _ := res.Position("d1")
	d2, _ := res.Position("d2")
	top := d1.Y
	bottom := d2.Y + d2.Height
	assert.InDelta(t, 0.0, (top+bottom)/2, 1e-9)
}

func TestCompute_MissingSizeIsZero(t *testing.T) {
	g := buildStar(t, sized("d1", -5, 0, ""))
	res := Compute(g, DefaultOptions())

	d1, ok := res.Position("d1")
	require.True(t, ok)
	assert.Equal(t, 0.0, d1.Width)
	assert.Equal(t, 0.0, d1.Height)
	assert.Equal(t, 220.0, d1.X)
}

func TestCompute_NilGraph(t *testing.T) {
	res := Compute(nil, DefaultOptions())
	assert.Empty(t, res.IDs())
	assert.Equal(t, Rect{}, res.Bounds())
}

func TestResult_Bounds(t *testing.T) {
	g := buildStar(t, sized("d1", 280, 75, ""), sized("d2", 280, 75, ""))
	res := Compute(g, DefaultOptions())

	b := res.Bounds()
	assert.Equal(t, -500.0, b.X)
	assert.Equal(t, -37.5, b.Y)
	assert.Equal(t, 1000.0, b.Width)
	assert.Equal(t, 75.0, b.Height)
	assert.Equal(t, []string{"fact", "d1", "d2"}, res.IDs())
}
