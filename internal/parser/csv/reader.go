// Package csv reads headerless partition files as a lazy sequence of
// fixed-size row batches labeled with catalog column names.
//
// Memory stays bounded by one batch per reader regardless of file size: rows
// are pulled from encoding/csv one at a time and handed out in batches of
// Options.BatchSize.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"csvmigrate/internal/transformer"
)

// DefaultBatchSize is the number of rows per batch when none is configured.
const DefaultBatchSize = 10_000

// Options tune how partition files are parsed.
type Options struct {
	// BatchSize is the maximum number of rows per batch.
	BatchSize int
	// Comma is the field delimiter; zero means ','.
	Comma rune
	// LazyQuotes relaxes quote handling (csv.Reader.LazyQuotes).
	LazyQuotes bool
	// TrimSpace trims leading/trailing whitespace from every field.
	TrimSpace bool
	// InferTypes records on each batch the narrowest kind every value of a
	// column parses as. Cells always keep their source text. When false every
	// column is reported as text.
	InferTypes bool
}

// DefaultOptions returns the options used for migration runs.
func DefaultOptions() Options {
	return Options{BatchSize: DefaultBatchSize, Comma: ',', InferTypes: true}
}

// BatchReader yields the rows of one file as successive batches. It is
// single-pass and not safe for concurrent use.
type BatchReader struct {
	src     io.Closer
	cr      *csv.Reader
	columns []string
	opt     Options

	index int
	line  int // records read so far
	done  bool
}

// NewBatchReader wraps src. columns label the fields positionally; every record
// must have exactly len(columns) fields. A leading byte order mark is dropped.
// The reader owns src and closes it on Close.
func NewBatchReader(src io.ReadCloser, columns []string, opt Options) (*BatchReader, error) {
	if len(columns) == 0 {
		return nil, errors.New("csv: no columns to label rows with")
	}
	if opt.BatchSize <= 0 {
		return nil, fmt.Errorf("csv: batch size must be > 0, got %d", opt.BatchSize)
	}
	if opt.Comma == 0 {
		opt.Comma = ','
	}

	cr := csv.NewReader(transform.NewReader(src, unicode.BOMOverride(transform.Nop)))
	cr.Comma = opt.Comma
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = len(columns)
	cr.ReuseRecord = true

	return &BatchReader{src: src, cr: cr, columns: columns, opt: opt}, nil
}

// Next returns the next batch, or io.EOF once the file is exhausted. Every
// batch holds exactly BatchSize rows except the last one of the file, which
// holds the remainder. An empty file yields io.EOF straight away.
//
// A malformed record or a record with the wrong number of fields ends the
// sequence with an error naming the record.
func (r *BatchReader) Next(ctx context.Context) (*transformer.Batch, error) {
	if r.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := transformer.GetBatch(r.columns, r.opt.BatchSize)
	b.Index = r.index
	b.FirstRecord = r.line + 1

	for b.Len() < r.opt.BatchSize {
		rec, err := r.cr.Read()
		if err == io.EOF {
			r.done = true
			break
		}
		r.line++
		if err != nil {
			b.Free()
			r.done = true
			return nil, fmt.Errorf("record %d: %w", r.line, err)
		}

		row := b.AddRow()
		for i, v := range rec {
			if r.opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			if v == "" {
				row[i] = nil
				continue
			}
			row[i] = v
		}
	}

	if b.Len() == 0 {
		b.Free()
		return nil, io.EOF
	}
	if r.opt.InferTypes {
		transformer.InferKinds(b)
	} else {
		b.Kinds = b.Kinds[:0]
		for range b.Columns {
			b.Kinds = append(b.Kinds, transformer.KindText)
		}
	}
	r.index++
	return b, nil
}

// Close closes the underlying source.
func (r *BatchReader) Close() error { return r.src.Close() }
