// Package migrate runs table migrations: a Worker moves one table from its
// partition files into the database, and a Dispatcher runs one Worker per
// table with bounded parallelism and collects the results into a Summary.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"csvmigrate/internal/metrics"
	"csvmigrate/internal/parser/csv"
	"csvmigrate/internal/schema"
	"csvmigrate/internal/storage"
	"csvmigrate/internal/transformer"
)

// MaxParallel caps the number of tables migrated at once.
const MaxParallel = 4

// ErrWorkerPanic wraps a panic recovered from a worker.
var ErrWorkerPanic = errors.New("worker panic")

// Dispatcher fans tables out to workers. Its fields are read-only once Run
// has been called.
type Dispatcher struct {
	Catalog    *schema.Catalog
	SourceRoot string
	Storage    storage.Config
	Reader     csv.Options
	Rules      transformer.RuleSet
	Job        string
	// Workers is the requested parallelism, clamped to [1, MaxParallel].
	Workers int

	Worker *Worker
	Logger *log.Logger
	// OnResult, when set, is called once per table as it finishes. Calls may
	// come from several goroutines at once.
	OnResult func(Result)
}

// Parallelism returns how many workers Run starts for n tables:
// min(n, Workers, MaxParallel), and at least 1.
func (d *Dispatcher) Parallelism(n int) int {
	return max(1, min(n, max(d.Workers, 1), MaxParallel))
}

// Run migrates tables, or every catalog table when tables is empty, and
// blocks until all of them have finished. Per-table failures are results,
// not errors. The returned error is non-nil only when the run as a whole was
// cut short: a worker panicked (ErrWorkerPanic) or ctx was canceled. Tables
// that never started are then reported as Canceled.
func (d *Dispatcher) Run(ctx context.Context, tables []string) (Summary, error) {
	logger := d.Logger
	if logger == nil {
		logger = log.Default()
	}
	worker := d.Worker
	if worker == nil {
		worker = NewWorker(logger)
	}

	if len(tables) == 0 {
		tables = d.Catalog.Tables()
	}
	tables = dedupe(tables, logger)

	sum := Summary{RunID: uuid.New(), Started: time.Now()}
	results := make([]Result, len(tables))
	if len(tables) == 0 {
		logger.Printf("migrate: run %s: no tables to migrate", sum.RunID)
		return sum.finish(results), nil
	}

	limit := d.Parallelism(len(tables))
	logger.Printf("migrate: run %s: %d tables, %d workers", sum.RunID, len(tables), limit)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, table := range tables {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: table %s: %v", ErrWorkerPanic, table, r)
					logger.Printf("migrate: %v\n%s", err, debug.Stack())
					results[i] = Result{Table: table, Kind: Internal, Err: err}
				}
				metrics.RecordTable(d.Job, table, results[i].Kind.String())
				if d.OnResult != nil {
					d.OnResult(results[i])
				}
			}()

			if err := gctx.Err(); err != nil {
				results[i] = Result{Table: table, Kind: Canceled, Err: err}
				return nil
			}
			results[i] = worker.Run(gctx, d.task(table))
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return sum.finish(results), err
}

func (d *Dispatcher) task(table string) Task {
	return Task{
		Table:      table,
		SourceRoot: d.SourceRoot,
		Catalog:    d.Catalog,
		Storage:    d.Storage,
		Reader:     d.Reader,
		Rules:      d.Rules,
		Job:        d.Job,
	}
}

// dedupe drops repeated table names, keeping first occurrences in order. Two
// workers on one table would truncate each other's rows.
func dedupe(tables []string, logger *log.Logger) []string {
	seen := make(map[string]bool, len(tables))
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if seen[t] {
			logger.Printf("migrate: table %s requested more than once; migrating it once", t)
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
