package scene

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCanvas_ResetKeepsOrder(t *testing.T) {
	c := NewMemoryCanvas()
	c.Reset([]Cell{node("b", nil), node("a", nil), edge("a::b", nil)})

	var ids []string
	for _, cell := range c.Cells() {
		ids = append(ids, cell.ID)
	}
	assert.Equal(t, []string{"b", "a", "a::b"}, ids)
}

func TestMemoryCanvas_BatchErrors(t *testing.T) {
	c := NewMemoryCanvas()
	c.Reset([]Cell{node("a", nil)})

	err := c.Batch(func(b Batch) error { return b.Add(node("a", nil)) })
	assert.ErrorIs(t, err, ErrDuplicateCell)

	err = c.Batch(func(b Batch) error { return b.SetProp("missing", "x", 1) })
	assert.ErrorIs(t, err, ErrUnknownCell)

	err = c.Batch(func(b Batch) error { return b.Remove("missing") })
	assert.ErrorIs(t, err, ErrUnknownCell)
}

func TestMemoryCanvas_BatchDoesNotLeakOnError(t *testing.T) {
	c := NewMemoryCanvas()
	c.Reset([]Cell{node("a", Props{"x": 1.0})})

	err := c.Batch(func(b Batch) error {
		require.NoError(t, b.SetProp("a", "x", 9.0))
		require.NoError(t, b.Add(node("b", nil)))
		return b.Remove("nope")
	})
	require.Error(t, err)

	cell, _ := c.Cell("a")
	assert.Equal(t, 1.0, cell.Props["x"])
	_, ok := c.Cell("b")
	assert.False(t, ok)
}

func TestMemoryCanvas_Observer(t *testing.T) {
	c := NewMemoryCanvas()
	var changes []Change
	c.Observe(func(ch Change) { changes = append(changes, ch) })

	c.Reset([]Cell{node("a", Props{"x": 1.0}), node("b", nil)})
	require.NoError(t, c.Batch(func(b Batch) error {
		if err := b.SetProp("a", "x", 2.0); err != nil {
			return err
		}
		return b.Remove("b")
	}))
	c.CenterContent()

	require.Len(t, changes, 3)
	assert.Equal(t, ChangeReset, changes[0].Type)
	assert.Len(t, changes[0].Cells, 2)
	assert.Equal(t, ChangePatch, changes[1].Type)
	require.Len(t, changes[1].Cells, 1)
	assert.Equal(t, 2.0, changes[1].Cells[0].Props["x"])
	assert.Equal(t, []string{"b"}, changes[1].Removed)
	assert.Equal(t, ChangeViewport, changes[2].Type)
}

func TestMemoryCanvas_CenterContent(t *testing.T) {
	c := NewMemoryCanvas()
	c.Reset([]Cell{
		node("a", Props{"x": -100.0, "y": -50.0, "width": 100.0, "height": 50.0}),
		node("b", Props{"x": 300, "y": 0, "width": 100, "height": 150}),
		edge("a::b", Props{"x": 9999.0, "y": 9999.0}),
	})

	vp := c.CenterContent()
	assert.Equal(t, 150.0, vp.CenterX)
	assert.Equal(t, 50.0, vp.CenterY)
	assert.Equal(t, 1.0, vp.Zoom)
	assert.Equal(t, vp, c.Viewport())
}

func TestProps_Readers(t *testing.T) {
	var p Props
	require.NoError(t, json.Unmarshal([]byte(`{"w":280,"expand":true,"side":"left"}`), &p))

	w, ok := p.Float("w")
	assert.True(t, ok)
	assert.Equal(t, 280.0, w)

	n, ok := p.Int("w")
	assert.True(t, ok)
	assert.Equal(t, 280, n)

	b, ok := p.Bool("expand")
	assert.True(t, ok)
	assert.True(t, b)

	s, ok := p.String("side")
	assert.True(t, ok)
	assert.Equal(t, "left", s)

	_, ok = p.Float("side")
	assert.False(t, ok)
}
