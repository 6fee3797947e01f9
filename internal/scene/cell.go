// Package scene keeps the projected canvas in step with the desired set of
// node and edge cells.
package scene

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is the type of a cell
type Kind string

const (
	// KindNode is a table node
	KindNode Kind = "node"
	// KindEdge is a join edge between two ports
	KindEdge Kind = "edge"
)

// Props is the property bag of a cell
type Props map[string]any

// Cell is the canvas representation of a node or an edge
type Cell struct {
	ID    string `json:"id"`
	Kind  Kind   `json:"kind"`
	Props Props  `json:"prop,omitempty"`
}

// Clone returns a deep copy of the cell
func (c Cell) Clone() Cell {
	c.Props = c.Props.Clone()
	return c
}

// Clone deep copies the bag including nested maps and slices
func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Props:
		return t.Clone()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

// Float reads a numeric property regardless of how it was decoded
func (p Props) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Int reads an integer property
func (p Props) Int(key string) (int, bool) {
	f, ok := p.Float(key)
	return int(f), ok
}

// Bool reads a boolean property
func (p Props) Bool(key string) (bool, bool) {
	b, ok := p[key].(bool)
	return b, ok
}

// String reads a string property
func (p Props) String(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok
}

var (
	// ErrUnknownCell is returned when a batch touches a cell that does not exist
	ErrUnknownCell = errors.New("unknown cell")
	// ErrDuplicateCell is returned when a batch adds an id that already exists
	ErrDuplicateCell = errors.New("duplicate cell")
)

func cellError(err error, id string) error {
	return fmt.Errorf("%w: %s", err, id)
}
