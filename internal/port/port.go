// Package port computes where an edge attaches to a table node
package port

import (
	"github.com/dimgraph/dimgraph/internal/model"
)

// Anchor is the horizontal attachment of a port relative to the node width
type Anchor string

const (
	// AnchorLeft attaches to the left border
	AnchorLeft Anchor = "0"
	// AnchorRight attaches to the right border
	AnchorRight Anchor = "100%"
)

// AnchorFor returns the anchor of a side. Anything but right is left.
func AnchorFor(side model.Side) Anchor {
	if side == model.SideRight {
		return AnchorRight
	}
	return AnchorLeft
}

// Resolve turns the anchor into a pixel offset for a node of the given width
func (a Anchor) Resolve(width float64) float64 {
	if a == AnchorRight {
		return width
	}
	return 0
}

// Geometry describes the vertical structure of a rendered table node
type Geometry struct {
	HeaderTopOffset float64 `mapstructure:"header_top" json:"headerTopOffset"`
	HeaderHeight    float64 `mapstructure:"header_height" json:"headerHeight"`
	RowHeight       float64 `mapstructure:"row_height" json:"rowHeight"`
}

// DefaultGeometry matches the stock table node
func DefaultGeometry() Geometry {
	return Geometry{
		HeaderTopOffset: 9,
		HeaderHeight:    35,
		RowHeight:       30,
	}
}

// Offset is the attachment point of a port inside its node
type Offset struct {
	X Anchor  `json:"x"`
	Y float64 `json:"y"`
}

// Offset computes the port position of target within the visible rows. A
// target that is not visible points at the header centre.
func (g Geometry) Offset(visible []model.FieldRef, target string, side model.Side) Offset {
	off := Offset{X: AnchorFor(side)}
	idx := indexOf(visible, target)
	if idx < 0 {
		off.Y = g.HeaderTopOffset + g.HeaderHeight/2
		return off
	}
	off.Y = g.HeaderTopOffset + g.HeaderHeight + float64(idx)*g.RowHeight + g.RowHeight/2
	return off
}

// ComputeOffset computes a port position with the default geometry
func ComputeOffset(visible []model.FieldRef, target string, side model.Side) Offset {
	return DefaultGeometry().Offset(visible, target, side)
}

func indexOf(fields []model.FieldRef, id string) int {
	for i, f := range fields {
		if f.ID == id {
			return i
		}
	}
	return -1
}
