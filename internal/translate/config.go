// Package translate maps between the persisted dimension join records and the
// working configuration edited on the canvas.
package translate

import (
	"fmt"
	"strings"

	"github.com/dimgraph/dimgraph/internal/model"
)

// DimJoinConfig is one persisted join between the fact table and a dimension
type DimJoinConfig struct {
	FactTableID                  string `json:"fact_table_id" yaml:"fact_table_id"`
	FactTableCNName              string `json:"fact_table_cn_name" yaml:"fact_table_cn_name"`
	FactTableENName              string `json:"fact_table_en_name" yaml:"fact_table_en_name"`
	FactTablePath                string `json:"fact_table_path" yaml:"fact_table_path"`
	FactTableJoinFieldID         string `json:"fact_table_join_field_id" yaml:"fact_table_join_field_id"`
	FactTableJoinFieldCNName     string `json:"fact_table_join_field_cn_name" yaml:"fact_table_join_field_cn_name"`
	FactTableJoinFieldENName     string `json:"fact_table_join_field_en_name" yaml:"fact_table_join_field_en_name"`
	FactTableJoinFieldDataFormat string `json:"fact_table_join_field_data_format" yaml:"fact_table_join_field_data_format"`

	DimTableID                  string `json:"dim_table_id" yaml:"dim_table_id"`
	DimTableCNName              string `json:"dim_table_cn_name" yaml:"dim_table_cn_name"`
	DimTableENName              string `json:"dim_table_en_name" yaml:"dim_table_en_name"`
	DimTablePath                string `json:"dim_table_path" yaml:"dim_table_path"`
	DimTableJoinFieldID         string `json:"dim_table_join_field_id" yaml:"dim_table_join_field_id"`
	DimTableJoinFieldCNName     string `json:"dim_table_join_field_cn_name" yaml:"dim_table_join_field_cn_name"`
	DimTableJoinFieldENName     string `json:"dim_table_join_field_en_name" yaml:"dim_table_join_field_en_name"`
	DimTableJoinFieldDataFormat string `json:"dim_table_join_field_data_format" yaml:"dim_table_join_field_data_format"`
}

// FactConf is the working form of the fact table
type FactConf struct {
	ID     string `json:"id" yaml:"id"`
	CNName string `json:"cnName" yaml:"cnName"`
	ENName string `json:"enName" yaml:"enName"`
	Path   string `json:"path" yaml:"path"`
}

// DimConf is the working form of one dimension join. NodeID and Side are
// canvas state and are never persisted.
type DimConf struct {
	NodeID string     `json:"nodeId,omitempty" yaml:"nodeId,omitempty"`
	Side   model.Side `json:"side,omitempty" yaml:"side,omitempty"`

	ID     string `json:"id" yaml:"id"`
	CNName string `json:"cnName" yaml:"cnName"`
	ENName string `json:"enName" yaml:"enName"`
	Path   string `json:"path" yaml:"path"`

	DimFieldID     string `json:"dimFieldId" yaml:"dimFieldId"`
	DimFieldCNName string `json:"dimFieldCNName" yaml:"dimFieldCNName"`
	DimFieldENName string `json:"dimFieldENName" yaml:"dimFieldENName"`
	DimFieldType   string `json:"dimFieldType" yaml:"dimFieldType"`

	FactFieldID     string `json:"factFieldId" yaml:"factFieldId"`
	FactFieldCNName string `json:"factFieldCNName" yaml:"factFieldCNName"`
	FactFieldENName string `json:"factFieldENName" yaml:"factFieldENName"`
	FactFieldType   string `json:"factFieldType" yaml:"factFieldType"`
}

// Working is the configuration the canvas edits
type Working struct {
	Fact FactConf  `json:"factConf" yaml:"factConf"`
	Dims []DimConf `json:"dimConf" yaml:"dimConf"`
}

// FactNodeID is the canvas node id of the fact table
func (w Working) FactNodeID() string {
	return NodeID(w.Fact.ID)
}

// NodeID turns a table id into a node id. Node ids may not contain the port
// separator.
func NodeID(tableID string) string {
	return strings.ReplaceAll(tableID, ":", "_")
}

// ToWorking converts persisted records into the working shape. The fact table
// is taken from the first record. Dimension node ids are derived from the
// table id and suffixed when a table is joined more than once.
func ToWorking(records []DimJoinConfig) Working {
	w := Working{Dims: make([]DimConf, 0, len(records))}
	if len(records) == 0 {
		return w
	}

	first := records[0]
	w.Fact = FactConf{
		ID:     first.FactTableID,
		CNName: first.FactTableCNName,
		ENName: first.FactTableENName,
		Path:   first.FactTablePath,
	}

	for _, r := range records {
		w.Dims = append(w.Dims, DimConf{
			ID:              r.DimTableID,
			CNName:          r.DimTableCNName,
			ENName:          r.DimTableENName,
			Path:            r.DimTablePath,
			DimFieldID:      r.DimTableJoinFieldID,
			DimFieldCNName:  r.DimTableJoinFieldCNName,
			DimFieldENName:  r.DimTableJoinFieldENName,
			DimFieldType:    r.DimTableJoinFieldDataFormat,
			FactFieldID:     r.FactTableJoinFieldID,
			FactFieldCNName: r.FactTableJoinFieldCNName,
			FactFieldENName: r.FactTableJoinFieldENName,
			FactFieldType:   r.FactTableJoinFieldDataFormat,
		})
	}
	AssignNodeIDs(&w)
	return w
}

// ToPersisted converts the working shape back into one record per dimension
func ToPersisted(w Working) []DimJoinConfig {
	out := make([]DimJoinConfig, 0, len(w.Dims))
	for _, d := range w.Dims {
		out = append(out, DimJoinConfig{
			FactTableID:                  w.Fact.ID,
			FactTableCNName:              w.Fact.CNName,
			FactTableENName:              w.Fact.ENName,
			FactTablePath:                w.Fact.Path,
			FactTableJoinFieldID:         d.FactFieldID,
			FactTableJoinFieldCNName:     d.FactFieldCNName,
			FactTableJoinFieldENName:     d.FactFieldENName,
			FactTableJoinFieldDataFormat: d.FactFieldType,
			DimTableID:                   d.ID,
			DimTableCNName:               d.CNName,
			DimTableENName:               d.ENName,
			DimTablePath:                 d.Path,
			DimTableJoinFieldID:          d.DimFieldID,
			DimTableJoinFieldCNName:      d.DimFieldCNName,
			DimTableJoinFieldENName:      d.DimFieldENName,
			DimTableJoinFieldDataFormat:  d.DimFieldType,
		})
	}
	return out
}

// AssignNodeIDs fills empty dimension node ids and makes them unique
func AssignNodeIDs(w *Working) {
	used := map[string]bool{w.FactNodeID(): true}
	for i := range w.Dims {
		if w.Dims[i].NodeID != "" {
			used[w.Dims[i].NodeID] = true
		}
	}
	for i := range w.Dims {
		d := &w.Dims[i]
		if d.NodeID != "" {
			continue
		}
		base := NodeID(d.ID)
		if base == "" {
			base = "dim"
		}
		id := base
		for n := 2; used[id]; n++ {
			id = fmt.Sprintf("%s#%d", base, n)
		}
		used[id] = true
		d.NodeID = id
	}
}
