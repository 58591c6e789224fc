package transformer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func batchOf(columns []string, rows ...[]any) *Batch {
	b := GetBatch(columns, len(rows))
	for _, r := range rows {
		copy(b.AddRow(), r)
	}
	return b
}

func TestInferKinds(t *testing.T) {
	t.Parallel()

	b := batchOf(
		[]string{"id", "price", "flag", "name", "none", "mixed"},
		[]any{"1", "9.99", "true", "Widget", nil, "7"},
		[]any{"2", "10", "False", nil, nil, "x"},
		[]any{"3", nil, "TRUE", "Gadget", nil, "8"},
	)
	InferKinds(b)
	assert.Equal(t, []Kind{KindInt, KindFloat, KindBool, KindText, KindEmpty, KindText}, b.Kinds)

	// Kinds describe the batch; cells keep their text.
	assert.Equal(t, []any{"1", "9.99", "true", "Widget", nil, "7"}, b.Rows[0])
	assert.Equal(t, []any{"2", "10", "False", nil, nil, "x"}, b.Rows[1])
}

func TestInferKinds_KeepsSourceText(t *testing.T) {
	t.Parallel()

	b := batchOf([]string{"zip", "price"}, []any{"00725", "1.50"}, []any{"00501", "2.00"})
	InferKinds(b)
	assert.Equal(t, []Kind{KindInt, KindFloat}, b.Kinds)
	assert.Equal(t, []any{"00725", "1.50"}, b.Rows[0])
	assert.Equal(t, []any{"00501", "2.00"}, b.Rows[1])
}

// TestInferKinds_IndependentPerBatch documents that a column may be inferred
// differently by two batches of the same file.
func TestInferKinds_IndependentPerBatch(t *testing.T) {
	t.Parallel()

	first := batchOf([]string{"code"}, []any{"10"}, []any{"11"})
	second := batchOf([]string{"code"}, []any{"A1"}, []any{"12"})
	InferKinds(first)
	InferKinds(second)
	assert.Equal(t, KindInt, first.Kinds[0])
	assert.Equal(t, KindText, second.Kinds[0])
}

func TestClassify_SpecialFloatsStayText(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"NaN", "inf", "-Inf"} {
		assert.Equal(t, KindText, classify(s), s)
	}
	assert.Equal(t, KindFloat, classify("1e3"))
	assert.Equal(t, KindInt, classify("-42"))
}

func TestBatchPoolReusesRows(t *testing.T) {
	b := batchOf([]string{"a", "b"}, []any{"1", "2"}, []any{"3", "4"})
	b.Free()

	again := GetBatch([]string{"a", "b"}, 2)
	row := again.AddRow()
	assert.Equal(t, []any{nil, nil}, row)
	assert.Equal(t, 1, again.Len())
	assert.Equal(t, 1, again.ColumnIndex("b"))
	assert.Equal(t, -1, again.ColumnIndex("zzz"))
}
