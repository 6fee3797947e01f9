package render

import (
	"github.com/dimgraph/dimgraph/internal/layout"
	"github.com/dimgraph/dimgraph/internal/port"
)

// Sizing controls node dimensions before layout
type Sizing struct {
	Width     float64 `mapstructure:"width" json:"width"`
	MinHeight float64 `mapstructure:"min_height" json:"minHeight"`
	PageSize  int     `mapstructure:"page_size" json:"pageSize"`
	Expanded  bool    `mapstructure:"expanded" json:"expanded"`
}

// DefaultSizing returns the standard node size: 280 wide, at least 75 tall,
// ten rows per page, expanded
func DefaultSizing() Sizing {
	return Sizing{
		Width:     280,
		MinHeight: 75,
		PageSize:  10,
		Expanded:  true,
	}
}

// Options bundles every tunable of the renderer
type Options struct {
	Layout layout.Options `mapstructure:"layout"`
	Port   port.Geometry  `mapstructure:"port"`
	Sizing Sizing         `mapstructure:"sizing"`
}

// DefaultOptions returns the standard renderer settings
func DefaultOptions() Options {
	return Options{
		Layout: layout.DefaultOptions(),
		Port:   port.DefaultGeometry(),
		Sizing: DefaultSizing(),
	}
}

// height returns the node height for the given number of visible rows
func (o Options) height(rows int) float64 {
	h := o.Port.HeaderTopOffset + o.Port.HeaderHeight + float64(rows)*o.Port.RowHeight
	if h < o.Sizing.MinHeight {
		return o.Sizing.MinHeight
	}
	return h
}
