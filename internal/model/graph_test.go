package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dim(id, field, factField string) Node {
	return Node{
		ID:      id,
		LinkMap: map[PortID]PortID{NewPortID(id, field): NewPortID("fact", factField)},
	}
}

func TestBuilder_Build(t *testing.T) {
	g, err := NewBuilder().
		SetFact(Node{ID: "fact", Width: 280, Height: 75}).
		AddDimension(dim("d1", "user_id", "uid")).
		AddDimension(dim("d2", "shop_id", "sid")).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "fact", g.Root())
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []string{"d1", "d2"}, g.Children("fact"))

	d1, ok := g.Node("d1")
	require.True(t, ok)
	assert.Equal(t, Dimension, d1.Type)
	assert.Equal(t, "fact", d1.ParentID)
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name string
		b    *Builder
	}{
		{"no fact", NewBuilder().AddDimension(dim("d1", "a", "b"))},
		{"fact without id", NewBuilder().SetFact(Node{})},
		{"duplicate id", NewBuilder().SetFact(Node{ID: "fact"}).AddDimension(dim("fact", "a", "b"))},
		{"dimension without id", NewBuilder().SetFact(Node{ID: "fact"}).AddDimension(Node{})},
		{"link to non-fact", NewBuilder().SetFact(Node{ID: "fact"}).AddDimension(Node{
			ID:      "d1",
			LinkMap: map[PortID]PortID{"d1:a": "other:b"},
		})},
		{"two links", NewBuilder().SetFact(Node{ID: "fact"}).AddDimension(Node{
			ID:      "d1",
			LinkMap: map[PortID]PortID{"d1:a": "fact:b", "d1:c": "fact:d"},
		})},
		{"bad side", NewBuilder().SetFact(Node{ID: "fact"}).AddDimension(Node{ID: "d1", Side: "up"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.b.Build()
			var gerr *GraphError
			assert.ErrorAs(t, err, &gerr)
		})
	}
}

func TestGraph_WithNodeIsSnapshot(t *testing.T) {
	g, err := NewBuilder().SetFact(Node{ID: "fact", Width: 100}).AddDimension(dim("d1", "a", "b")).Build()
	require.NoError(t, err)

	next := g.WithNode(Node{ID: "d1", Width: 300, Type: Fact})

	before, _ := g.Node("d1")
	after, _ := next.Node("d1")
	assert.Equal(t, 0.0, before.Width)
	assert.Equal(t, 300.0, after.Width)
	assert.Equal(t, Dimension, after.Type)
	assert.Equal(t, "fact", after.ParentID)
}

func TestGraph_NodeReturnsCopy(t *testing.T) {
	g, err := NewBuilder().SetFact(Node{ID: "fact", Data: map[string]any{"name": "orders"}}).Build()
	require.NoError(t, err)

	n, _ := g.Node("fact")
	n.Data["name"] = "mutated"

	again, _ := g.Node("fact")
	assert.Equal(t, "orders", again.Data["name"])
}

func TestGraph_Walk(t *testing.T) {
	g, err := NewBuilder().SetFact(Node{ID: "fact"}).
		AddDimension(dim("d1", "a", "b")).
		AddDimension(dim("d2", "a", "c")).
		Build()
	require.NoError(t, err)

	var visited []string
	var depths []int
	g.Walk(func(n Node, depth int) {
		visited = append(visited, n.ID)
		depths = append(depths, depth)
	})
	assert.Equal(t, []string{"fact", "d1", "d2"}, visited)
	assert.Equal(t, []int{0, 1, 1}, depths)
}

func TestPortID_Split(t *testing.T) {
	node, field, ok := NewPortID("n1", "schema:col").Split()
	assert.True(t, ok)
	assert.Equal(t, "n1", node)
	assert.Equal(t, "schema:col", field)

	_, _, ok = PortID("bare").Split()
	assert.False(t, ok)
}

func TestSide_Opposite(t *testing.T) {
	assert.Equal(t, SideRight, SideLeft.Opposite())
	assert.Equal(t, SideLeft, SideRight.Opposite())
	assert.Equal(t, SideAuto, SideAuto.Opposite())
}
