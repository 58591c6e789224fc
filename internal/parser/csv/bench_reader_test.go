package csv

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func buildCSV(n int) []byte {
	var sb strings.Builder
	sb.Grow(n * 64)
	for i := 0; i < n; i++ {
		sb.WriteString("68883,2014-07-23 00:00:00.0,5533,COMPLETE\n")
	}
	return []byte(sb.String())
}

// BenchmarkBatchReader measures read + kind inference for one 50k-row
// partition file.
//
//	go test -run=^$ -bench ^BenchmarkBatchReader -benchmem ./internal/parser/csv
func BenchmarkBatchReader(b *testing.B) {
	ctx := context.Background()
	cols := []string{"order_id", "order_date", "order_customer_id", "order_status"}
	data := buildCSV(50_000)

	for _, infer := range []bool{true, false} {
		name := "infer"
		if !infer {
			name = "raw"
		}
		b.Run(name, func(b *testing.B) {
			opt := DefaultOptions()
			opt.InferTypes = infer
			b.SetBytes(int64(len(data)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				r, err := NewBatchReader(io.NopCloser(bytes.NewReader(data)), cols, opt)
				if err != nil {
					b.Fatal(err)
				}
				rows := 0
				for {
					batch, err := r.Next(ctx)
					if err == io.EOF {
						break
					}
					if err != nil {
						b.Fatal(err)
					}
					rows += batch.Len()
					batch.Free()
				}
				_ = r.Close()
				if rows != 50_000 {
					b.Fatalf("rows=%d", rows)
				}
			}
		})
	}
}
