package transformer

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// RuleKind selects what a Rule does to its column.
type RuleKind string

// DefaultIfNull replaces absent values of the column with Rule.Value.
const DefaultIfNull RuleKind = "default_if_null"

// Rule is a single column-level fixup evaluated before a batch is appended.
type Rule struct {
	Column string   `yaml:"column"`
	Kind   RuleKind `yaml:"kind"`
	Value  string   `yaml:"value"`
}

// Apply implements Transformer. A rule whose column is not part of the batch
// is a no-op.
func (r Rule) Apply(b *Batch) error {
	j := b.ColumnIndex(r.Column)
	if j < 0 {
		return nil
	}
	switch r.Kind {
	case DefaultIfNull:
		filled := 0
		for _, row := range b.Rows {
			if row[j] == nil {
				row[j] = r.Value
				filled++
			}
		}
		if filled > 0 && len(b.Kinds) > j {
			b.Kinds[j] = widen(b.Kinds[j], classify(r.Value))
		}
		return nil
	default:
		return fmt.Errorf("fixup %s: unsupported kind %q", r.Column, r.Kind)
	}
}

// RuleSet maps a table name to the fixups applied to that table's batches.
type RuleSet map[string][]Rule

// DefaultRules are the fixups every run starts from: products carry a NOT NULL
// product_description, so missing descriptions load as empty strings.
func DefaultRules() RuleSet {
	return RuleSet{
		"products": {
			{Column: "product_description", Kind: DefaultIfNull, Value: ""},
		},
	}
}

type rulesFile struct {
	Fixups RuleSet `yaml:"fixups"`
}

// ParseRules decodes a YAML fixups document:
//
//	fixups:
//	  products:
//	    - column: product_description
//	      kind: default_if_null
//	      value: ""
func ParseRules(r io.Reader) (RuleSet, error) {
	var doc rulesFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixups: %w", err)
	}
	if err := doc.Fixups.Validate(); err != nil {
		return nil, err
	}
	if doc.Fixups == nil {
		return RuleSet{}, nil
	}
	return doc.Fixups, nil
}

// LoadRules reads a YAML fixups file from path.
func LoadRules(path string) (RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixups: %w", err)
	}
	defer f.Close()
	rs, err := ParseRules(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Validate reports the first rule with an empty column or unknown kind.
func (rs RuleSet) Validate() error {
	tables := make([]string, 0, len(rs))
	for t := range rs {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		for i, r := range rs[t] {
			if r.Column == "" {
				return fmt.Errorf("fixups.%s[%d]: column must not be empty", t, i)
			}
			if r.Kind != DefaultIfNull {
				return fmt.Errorf("fixups.%s[%d]: unsupported kind %q", t, i, r.Kind)
			}
		}
	}
	return nil
}

// Merge returns a new RuleSet holding the rules of rs followed by the rules
// of other for every table.
func (rs RuleSet) Merge(other RuleSet) RuleSet {
	out := make(RuleSet, len(rs)+len(other))
	for t, rules := range rs {
		out[t] = append(out[t], rules...)
	}
	for t, rules := range other {
		out[t] = append(out[t], rules...)
	}
	return out
}

// Chain returns the fixups of table as a Chain. Tables without rules get an
// empty chain.
func (rs RuleSet) Chain(table string) Chain {
	rules := rs[table]
	c := make(Chain, 0, len(rules))
	for _, r := range rules {
		c = append(c, r)
	}
	return c
}
