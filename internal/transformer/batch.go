package transformer

import "sync"

// Batch is a bounded group of rows read from one partition file.
//
// Contract:
//   - Rows[i] is aligned to Columns; absent values are nil and every other
//     cell holds the field text exactly as read.
//   - Kinds[j] is the inferred kind of column j for this batch only. Backends
//     convert cells to their column types themselves.
//   - After the batch has been loaded the owner calls Free to return its
//     memory to the pool; neither the batch nor its rows may be used after.
type Batch struct {
	// Index is the 0-based position of the batch within its file.
	Index int
	// FirstRecord is the 1-based record number of Rows[0] within its file.
	FirstRecord int

	Columns []string
	Rows    [][]any
	Kinds   []Kind
}

var batchPool sync.Pool

// GetBatch returns an empty pooled batch labeled with columns and room for
// capacity rows. Row slices from earlier use are kept and recycled by AddRow.
func GetBatch(columns []string, capacity int) *Batch {
	if v := batchPool.Get(); v != nil {
		b := v.(*Batch)
		b.Index, b.FirstRecord = 0, 0
		b.Columns = columns
		b.Rows = b.Rows[:0]
		if cap(b.Rows) < capacity {
			b.Rows = make([][]any, 0, capacity)
		}
		b.Kinds = b.Kinds[:0]
		return b
	}
	return &Batch{Columns: columns, Rows: make([][]any, 0, capacity)}
}

// Free returns b to the pool. The caller must not use b after Free.
func (b *Batch) Free() {
	if b == nil {
		return
	}
	batchPool.Put(b)
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int { return len(b.Rows) }

// AddRow appends a zeroed row of len(Columns) cells and returns it for the
// caller to fill. Backing arrays of previously pooled rows are reused.
func (b *Batch) AddRow() []any {
	n := len(b.Columns)
	if len(b.Rows) < cap(b.Rows) {
		b.Rows = b.Rows[:len(b.Rows)+1]
		row := b.Rows[len(b.Rows)-1]
		if cap(row) >= n {
			row = row[:n]
			clear(row)
		} else {
			row = make([]any, n)
		}
		b.Rows[len(b.Rows)-1] = row
		return row
	}
	row := make([]any, n)
	b.Rows = append(b.Rows, row)
	return row
}

// ColumnIndex returns the position of name in Columns, or -1.
func (b *Batch) ColumnIndex(name string) int {
	for i, c := range b.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
