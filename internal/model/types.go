// Package model holds the working representation of a dimension model graph:
// one fact table node and any number of dimension table nodes joined to it.
package model

import (
	"fmt"
	"strings"
)

// NodeType distinguishes the central fact table from its dimensions
type NodeType string

const (
	// Fact is the single central table of a model
	Fact NodeType = "fact"
	// Dimension is a satellite table joined to the fact table
	Dimension NodeType = "dimension"
)

// Side pins a dimension to one half-plane of the fact node
type Side string

const (
	// SideAuto lets the layout decide
	SideAuto Side = ""
	// SideLeft places the node left of its parent
	SideLeft Side = "left"
	// SideRight places the node right of its parent
	SideRight Side = "right"
)

// Valid reports whether s is one of the known sides
func (s Side) Valid() bool {
	return s == SideAuto || s == SideLeft || s == SideRight
}

// Opposite returns the mirrored side. SideAuto has no opposite.
func (s Side) Opposite() Side {
	switch s {
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	default:
		return SideAuto
	}
}

// PortID names a connection point on a node: "<nodeId>:<fieldId>"
type PortID string

// NewPortID builds the port id for a field of a node
func NewPortID(nodeID, fieldID string) PortID {
	return PortID(nodeID + ":" + fieldID)
}

// Split returns the node id and field id of the port. Node ids may not
// contain ':' but field ids may.
func (p PortID) Split() (nodeID, fieldID string, ok bool) {
	nodeID, fieldID, ok = strings.Cut(string(p), ":")
	return
}

// FieldRef is one column of a table as the canvas shows it
type FieldRef struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	DataType string `json:"dataType,omitempty" yaml:"dataType,omitempty"`
}

// Node is one table in the graph
type Node struct {
	ID         string            `json:"id"`
	Type       NodeType          `json:"nodeType"`
	Data       map[string]any    `json:"dataInfo,omitempty"`
	LinkMap    map[PortID]PortID `json:"linkMap,omitempty"`
	ParentID   string            `json:"parentId,omitempty"`
	Width      float64           `json:"width"`
	Height     float64           `json:"height"`
	Side       Side              `json:"side,omitempty"`
	Expand     bool              `json:"expand"`
	PageOffset int               `json:"pageOffset,omitempty"`
}

// clone returns a copy that shares no maps with n
func (n Node) clone() Node {
	out := n
	if n.Data != nil {
		out.Data = make(map[string]any, len(n.Data))
		for k, v := range n.Data {
			out.Data[k] = v
		}
	}
	if n.LinkMap != nil {
		out.LinkMap = make(map[PortID]PortID, len(n.LinkMap))
		for k, v := range n.LinkMap {
			out.LinkMap[k] = v
		}
	}
	return out
}

// GraphError describes a structural problem found while building a graph
type GraphError struct {
	NodeID string
	Reason string
}

func (e *GraphError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("invalid graph: %s", e.Reason)
	}
	return fmt.Sprintf("invalid graph: node %q: %s", e.NodeID, e.Reason)
}
