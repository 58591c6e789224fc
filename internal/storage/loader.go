package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"csvmigrate/internal/transformer"
)

// TableLoader loads batches into one table with truncate-then-append
// semantics. Each Load is its own transaction; nothing wraps a whole table, so
// a failure part way leaves the batches loaded so far in place.
//
// A TableLoader is owned by a single worker and is not safe for concurrent use.
type TableLoader struct {
	repo    Repository
	table   string
	fixups  transformer.Chain
	logger  *log.Logger
	total   int64
	batches int64
	kinds   []transformer.Kind
	start   time.Time
	last    time.Time
}

// NewTableLoader binds repo to table. fixups run on every batch before it is
// appended. A nil logger uses the standard logger.
func NewTableLoader(repo Repository, table string, fixups transformer.Chain, logger *log.Logger) *TableLoader {
	if logger == nil {
		logger = log.Default()
	}
	now := time.Now()
	return &TableLoader{repo: repo, table: table, fixups: fixups, logger: logger, start: now, last: now}
}

// Truncate removes every row of the table. The caller decides whether a
// failure is fatal; migration workers log it and carry on with the load.
func (l *TableLoader) Truncate(ctx context.Context) error {
	if err := l.repo.Truncate(ctx); err != nil {
		return fmt.Errorf("truncate %s: %w", l.table, err)
	}
	return nil
}

// Load applies the table's fixups to b and appends it. Appends are not
// idempotent: loading the same batch twice without a truncate in between
// stores its rows twice.
func (l *TableLoader) Load(ctx context.Context, b *transformer.Batch) (int64, error) {
	if b.Len() == 0 {
		return 0, nil
	}
	if err := l.fixups.Apply(b); err != nil {
		return 0, fmt.Errorf("fixups %s: %w", l.table, err)
	}

	l.noteKinds(b)

	n, err := l.repo.CopyFrom(ctx, b.Columns, b.Rows)
	l.total += n
	if err != nil {
		l.logger.Printf("loader: %s: COPY failed batch=%d after=%d total=%d err=%v", l.table, b.Index, n, l.total, err)
		return n, fmt.Errorf("append %s batch %d: %w", l.table, b.Index, err)
	}

	l.batches++
	now := time.Now()
	sinceLast := now.Sub(l.last)
	rps := float64(0)
	if sinceLast > 0 {
		rps = float64(n) / sinceLast.Seconds()
	}
	l.logger.Printf(
		"loader: %s batch #%d: rps=%.0f inserted=%d total_inserted=%d elapsed=%s",
		l.table, l.batches, rps, n, l.total, now.Sub(l.start).Truncate(time.Millisecond),
	)
	l.last = now
	return n, nil
}

// noteKinds logs columns whose inferred kind differs from the one seen in
// earlier batches. Empty columns carry no information and are skipped.
func (l *TableLoader) noteKinds(b *transformer.Batch) {
	if len(l.kinds) != len(b.Kinds) {
		l.kinds = append(l.kinds[:0], b.Kinds...)
		return
	}
	for j, k := range b.Kinds {
		if k == transformer.KindEmpty {
			continue
		}
		if prev := l.kinds[j]; prev != transformer.KindEmpty && prev != k {
			l.logger.Printf("loader: %s.%s inferred as %s in batch %d, was %s", l.table, b.Columns[j], k, b.Index, prev)
		}
		l.kinds[j] = k
	}
}

// Total returns the number of rows appended so far.
func (l *TableLoader) Total() int64 { return l.total }

// Batches returns the number of successful appends so far.
func (l *TableLoader) Batches() int64 { return l.batches }
