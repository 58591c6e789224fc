package transformer

import (
	"math"
	"strconv"
	"strings"
)

// Kind is the inferred type of a column within one batch.
type Kind int

const (
	// KindEmpty means every value of the column is absent.
	KindEmpty Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "text"
	}
}

// classify returns the narrowest kind s parses as.
func classify(s string) Kind {
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return KindInt
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return KindFloat
	}
	if strings.EqualFold(s, "true") || strings.EqualFold(s, "false") {
		return KindBool
	}
	return KindText
}

// widen merges the kind seen so far with the kind of the next value.
func widen(have, next Kind) Kind {
	switch {
	case have == KindEmpty:
		return next
	case have == next:
		return have
	case (have == KindInt && next == KindFloat) || (have == KindFloat && next == KindInt):
		return KindFloat
	default:
		return KindText
	}
}

// InferKinds scans the cells of b and records one Kind per column. Absent
// (nil) cells do not participate. Cells are left as they are: the kinds
// describe the batch and never rewrite its source text, so "00725" is KindInt
// yet still loads as "00725" into a text column. Inference only looks at this
// batch, so two batches of the same file may disagree for mixed-format
// columns.
func InferKinds(b *Batch) {
	kinds := b.Kinds[:0]
	for range b.Columns {
		kinds = append(kinds, KindEmpty)
	}
	for _, row := range b.Rows {
		for j, v := range row {
			s, ok := v.(string)
			if !ok || kinds[j] == KindText {
				continue
			}
			kinds[j] = widen(kinds[j], classify(s))
		}
	}
	b.Kinds = kinds
}
