package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvmigrate/internal/transformer"
)

// genRows renders n headerless "id,amount" records.
func genRows(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%d,%d.5\n", i, i)
	}
	return sb.String()
}

func newReader(t *testing.T, data string, columns []string, opt Options) *BatchReader {
	t.Helper()
	r, err := NewBatchReader(io.NopCloser(strings.NewReader(data)), columns, opt)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// drain returns the size of every batch and the total row count.
func drain(t *testing.T, r *BatchReader) ([]int, int) {
	t.Helper()
	var sizes []int
	total := 0
	for {
		b, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return sizes, total
		}
		require.NoError(t, err)
		sizes = append(sizes, b.Len())
		total += b.Len()
		b.Free()
	}
}

func TestNext_BatchSizes(t *testing.T) {
	t.Parallel()

	cols := []string{"id", "amount"}
	cases := []struct {
		name  string
		rows  int
		batch int
		want  []int
	}{
		{"remainder", 25_000, 10_000, []int{10_000, 10_000, 5_000}},
		{"exact_multiple", 20_000, 10_000, []int{10_000, 10_000}},
		{"smaller_than_batch", 3, 10_000, []int{3}},
		{"batch_of_one", 3, 1, []int{1, 1, 1}},
		{"empty", 0, 10, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opt := DefaultOptions()
			opt.BatchSize = tc.batch
			sizes, total := drain(t, newReader(t, genRows(tc.rows), cols, opt))
			assert.Equal(t, tc.want, sizes)
			assert.Equal(t, tc.rows, total)
		})
	}
}

func TestNext_NoLostOrDuplicatedRows(t *testing.T) {
	t.Parallel()

	opt := DefaultOptions()
	opt.BatchSize = 7
	r := newReader(t, genRows(50), []string{"id", "amount"}, opt)

	var ids []string
	for {
		b, err := r.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, len(ids)+1, b.FirstRecord)
		for _, row := range b.Rows {
			ids = append(ids, row[0].(string))
		}
		b.Free()
	}
	require.Len(t, ids, 50)
	for i, id := range ids {
		assert.Equal(t, strconv.Itoa(i), id)
	}

	// Exhausted readers stay exhausted.
	_, err := r.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestNext_LabelsAndTypes(t *testing.T) {
	t.Parallel()

	data := "\ufeff1,2013-07-25 00:00:00.0,11599,CLOSED\n2,2013-07-25 00:00:00.0,256,PENDING_PAYMENT\n"
	cols := []string{"order_id", "order_date", "order_customer_id", "order_status"}
	r := newReader(t, data, cols, DefaultOptions())

	b, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cols, b.Columns)
	assert.Equal(t, []transformer.Kind{
		transformer.KindInt, transformer.KindText, transformer.KindInt, transformer.KindText,
	}, b.Kinds)
	assert.Equal(t, []any{"1", "2013-07-25 00:00:00.0", "11599", "CLOSED"}, b.Rows[0])
}

// Numeric-looking codes are reported as ints but reach the backend as
// written, leading zeros included.
func TestNext_NumericCodesKeepLeadingZeros(t *testing.T) {
	t.Parallel()

	r := newReader(t, "1,00725\n2,00501\n", []string{"customer_id", "customer_zipcode"}, DefaultOptions())

	b, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, transformer.KindInt, b.Kinds[1])
	assert.Equal(t, "00725", b.Rows[0][1])
	assert.Equal(t, "00501", b.Rows[1][1])
}

func TestNext_EmptyFieldsAreAbsent(t *testing.T) {
	t.Parallel()

	opt := DefaultOptions()
	opt.TrimSpace = true
	r := newReader(t, "1,Chair,\n2,Desk,  \n", []string{"id", "name", "description"}, opt)

	b, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, b.Rows[0][2])
	assert.Nil(t, b.Rows[1][2])
	assert.Equal(t, transformer.KindEmpty, b.Kinds[2])
}

func TestNext_FieldCountMismatch(t *testing.T) {
	t.Parallel()

	opt := DefaultOptions()
	opt.BatchSize = 10
	r := newReader(t, "1,a\n2,b,extra\n3,c\n", []string{"id", "name"}, opt)

	_, err := r.Next(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, csv.ErrFieldCount)
	assert.Contains(t, err.Error(), "record 2")

	_, err = r.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestNext_OptionsWithoutInference(t *testing.T) {
	t.Parallel()

	opt := DefaultOptions()
	opt.Comma = '|'
	opt.InferTypes = false
	r := newReader(t, "1|x\n", []string{"id", "name"}, opt)

	b, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{"1", "x"}, b.Rows[0])
	assert.Equal(t, []transformer.Kind{transformer.KindText, transformer.KindText}, b.Kinds)
}

func TestNext_CanceledContext(t *testing.T) {
	t.Parallel()

	r := newReader(t, genRows(3), []string{"id", "amount"}, DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewBatchReader_Validation(t *testing.T) {
	t.Parallel()

	src := io.NopCloser(strings.NewReader(""))
	_, err := NewBatchReader(src, nil, DefaultOptions())
	assert.Error(t, err)

	_, err = NewBatchReader(src, []string{"a"}, Options{})
	assert.Error(t, err)
}
