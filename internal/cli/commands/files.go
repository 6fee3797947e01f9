package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dimgraph/dimgraph/internal/metacache"
	"github.com/dimgraph/dimgraph/internal/model"
	"github.com/dimgraph/dimgraph/internal/translate"
)

// Output formats
const (
	formatTable = "table"
	formatYAML  = "yaml"
	formatJSON  = "json"
)

// readFile decodes a YAML or JSON document. "-" reads stdin.
func readFile(path string, stdin io.Reader, out any) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	// JSON is a subset of YAML
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func readRecords(path string, stdin io.Reader) ([]translate.DimJoinConfig, error) {
	var records []translate.DimJoinConfig
	if err := readFile(path, stdin, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func readWorking(path string, stdin io.Reader) (translate.Working, error) {
	var w translate.Working
	err := readFile(path, stdin, &w)
	return w, err
}

// columnFile serves table columns from a file mapping table id to fields.
// Tables missing from the file are reported as gone.
type columnFile map[string][]model.FieldRef

func readColumns(path string) (columnFile, error) {
	cols := columnFile{}
	if err := readFile(path, nil, &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

// Columns implements render.FieldSource
func (f columnFile) Columns(_ context.Context, tableID string) (metacache.Columns, error) {
	fields, ok := f[tableID]
	return metacache.Columns{TableID: tableID, Exists: ok, Fields: fields}, nil
}

// write encodes v as YAML or JSON
func write(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
