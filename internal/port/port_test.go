package port

import (
	"math"
	"testing"

	"github.com/dimgraph/dimgraph/internal/model"
	"github.com/stretchr/testify/assert"
)

func fields(ids ...string) []model.FieldRef {
	out := make([]model.FieldRef, len(ids))
	for i, id := range ids {
		out[i] = model.FieldRef{ID: id}
	}
	return out
}

func TestOffset_RightSideRow(t *testing.T) {
	off := ComputeOffset(fields("f1", "f2", "f3"), "f2", model.SideRight)
	assert.Equal(t, AnchorRight, off.X)
	assert.Equal(t, 89.0, off.Y)
}

func TestOffset_FirstRowLeft(t *testing.T) {
	off := ComputeOffset(fields("f1", "f2"), "f1", model.SideLeft)
	assert.Equal(t, AnchorLeft, off.X)
	assert.Equal(t, 59.0, off.Y)
}

func TestOffset_EmptyFallsBackToHeader(t *testing.T) {
	off := ComputeOffset(nil, "anything", model.SideLeft)
	assert.Equal(t, AnchorLeft, off.X)
	assert.Equal(t, 26.5, off.Y)
	assert.False(t, math.IsNaN(off.Y))
}

func TestOffset_CustomGeometry(t *testing.T) {
	g := Geometry{HeaderTopOffset: 0, HeaderHeight: 20, RowHeight: 10}
	off := g.Offset(fields("a", "b", "c"), "c", model.SideAuto)
	assert.Equal(t, AnchorLeft, off.X)
	assert.Equal(t, 45.0, off.Y)
}

func TestAnchor_Resolve(t *testing.T) {
	assert.Equal(t, 0.0, AnchorLeft.Resolve(280))
	assert.Equal(t, 280.0, AnchorRight.Resolve(280))
}

func TestLocate(t *testing.T) {
	all := fields("a", "b", "c", "d", "e", "f", "g")

	tests := []struct {
		name   string
		target string
		offset int
		size   int
		want   Location
	}{
		{"on first page", "b", 0, 3, Location{Kind: OnPage, Index: 1}},
		{"below first page", "e", 0, 3, Location{Kind: BelowPage, Index: 4}},
		{"above second page", "a", 3, 3, Location{Kind: AbovePage, Index: 0}},
		{"on second page", "e", 3, 3, Location{Kind: OnPage, Index: 1}},
		{"last short page", "g", 6, 3, Location{Kind: OnPage, Index: 0}},
		{"offset past end clamps", "g", 40, 3, Location{Kind: OnPage, Index: 0}},
		{"missing", "zz", 0, 3, Location{Kind: Missing, Index: -1}},
		{"unbounded page", "g", 0, 0, Location{Kind: OnPage, Index: 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Locate(all, tt.target, tt.offset, tt.size))
		})
	}
}

func TestWindow(t *testing.T) {
	all := fields("a", "b", "c", "d", "e")
	assert.Equal(t, fields("c", "d"), Window(all, 2, 2))
	assert.Equal(t, fields("e"), Window(all, 4, 2))
	assert.Equal(t, all, Window(all, 0, 0))
	assert.Empty(t, Window(nil, 0, 10))
}

func TestPageFor(t *testing.T) {
	assert.Equal(t, 0, PageFor(4, 5))
	assert.Equal(t, 5, PageFor(5, 5))
	assert.Equal(t, 10, PageFor(12, 5))
	assert.Equal(t, 0, PageFor(3, 0))
	assert.Equal(t, 0, ClampOffset(0, 20, 5))
	assert.Equal(t, 5, ClampOffset(7, 20, 5))
}
