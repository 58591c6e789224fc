// Package schema holds the schema catalog used to label headerless CSV
// extracts. The catalog is decoded once from the schemas.json descriptor that
// ships alongside the partition files and is read-only afterwards, so a single
// *Catalog may be shared by every migration worker.
//
// Descriptor shape (trimmed):
//
//	{
//	  "orders": [
//	    { "column_name": "id",     "column_position": 0 },
//	    { "column_name": "amount", "column_position": 1 }
//	  ]
//	}
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// DescriptorFile is the catalog file name expected under the source root.
const DescriptorFile = "schemas.json"

// ErrUnknownTable is returned when a table is not declared in the catalog.
var ErrUnknownTable = errors.New("unknown table")

// ColumnDef is a single declared column of a table.
type ColumnDef struct {
	Name     string `json:"column_name"`
	Position int    `json:"column_position"`
}

// Catalog maps table name to its declared columns. The zero value is an empty
// catalog.
type Catalog struct {
	tables map[string][]ColumnDef
}

// New builds a Catalog from an in-memory table map. The input is copied.
func New(tables map[string][]ColumnDef) *Catalog {
	c := &Catalog{tables: make(map[string][]ColumnDef, len(tables))}
	for name, cols := range tables {
		c.tables[name] = append([]ColumnDef(nil), cols...)
	}
	return c
}

// Load reads and decodes the descriptor at path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema catalog: %w", err)
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Decode parses a descriptor document.
func Decode(r io.Reader) (*Catalog, error) {
	var tables map[string][]ColumnDef
	if err := json.NewDecoder(r).Decode(&tables); err != nil {
		return nil, fmt.Errorf("decode schema catalog: %w", err)
	}
	return New(tables), nil
}

// Has reports whether table is declared.
func (c *Catalog) Has(table string) bool {
	_, ok := c.tables[table]
	return ok
}

// Tables returns every declared table name, sorted.
func (c *Catalog) Tables() []string {
	out := make([]string, 0, len(c.tables))
	for name := range c.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Columns returns the declared column definitions for table sorted by
// position. Ties keep their declaration order.
func (c *Catalog) Columns(table string) ([]ColumnDef, error) {
	cols, ok := c.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	out := append([]ColumnDef(nil), cols...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// Resolve returns the column names of table in position order. These names
// label the fields of headerless partition rows positionally.
func (c *Catalog) Resolve(table string) ([]string, error) {
	cols, err := c.Columns(table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	return names, nil
}
