package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/zeebo/xxh3"

	"csvmigrate/internal/datasource"
	"csvmigrate/internal/datasource/file"
	"csvmigrate/internal/metrics"
	"csvmigrate/internal/parser/csv"
	"csvmigrate/internal/schema"
	"csvmigrate/internal/storage"
	"csvmigrate/internal/transformer"
)

// Task is everything one worker needs to migrate one table. Tasks are built
// by the Dispatcher and never modified afterwards.
type Task struct {
	Table      string
	SourceRoot string
	Catalog    *schema.Catalog
	// Storage carries the backend kind and DSN; Table and Columns are filled
	// in per task.
	Storage storage.Config
	Reader  csv.Options
	Rules   transformer.RuleSet
	Job     string
}

// Worker migrates single tables: resolve columns, discover files, truncate,
// then append every batch of every file in order. The function fields are
// seams for tests; NewWorker fills them with the real implementations.
type Worker struct {
	NewRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
	Discover      func(root, table string) ([]string, error)
	Source        func(path string) datasource.Source
	Logger        *log.Logger
}

// NewWorker returns a Worker backed by the registered storage backends and
// the local filesystem. A nil logger uses the standard logger.
func NewWorker(logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{
		NewRepository: storage.New,
		Discover:      file.Discover,
		Source:        func(path string) datasource.Source { return file.NewLocal(path) },
		Logger:        logger,
	}
}

// Run migrates t.Table. Failures are reported in the Result, never returned;
// one table's failure does not concern any other.
func (w *Worker) Run(ctx context.Context, t Task) (res Result) {
	start := time.Now()
	res = Result{Table: t.Table}
	defer func() {
		res.Duration = time.Since(start)
		switch {
		case res.Err != nil:
			w.Logger.Printf("migrate: Error: %v while processing: %s", res.Err, t.Table)
		case res.Kind == TruncateFailed:
			w.Logger.Printf("migrate: %s loaded %d rows over a failed truncate", t.Table, res.Rows)
		default:
			w.Logger.Printf("migrate: %s done: files=%d batches=%d rows=%d elapsed=%s",
				t.Table, res.Files, res.Batches, res.Rows, res.Duration.Truncate(time.Millisecond))
		}
	}()

	fail := func(k Kind, err error) Result {
		res.Kind, res.Err = k, err
		return res
	}

	columns, err := t.Catalog.Resolve(t.Table)
	if err != nil {
		return fail(UnknownTable, err)
	}

	paths, err := w.Discover(t.SourceRoot, t.Table)
	if err != nil {
		if errors.Is(err, file.ErrNoFiles) {
			return fail(NoFiles, err)
		}
		return fail(LoadFailed, err)
	}
	w.Logger.Printf("migrate: processing %s (%d files)", t.Table, len(paths))

	sc := t.Storage
	sc.Table = t.Table
	sc.Columns = columns
	repo, err := w.NewRepository(ctx, sc)
	if err != nil {
		return fail(LoadFailed, fmt.Errorf("open %s storage: %w", sc.Kind, err))
	}
	defer repo.Close()

	loader := storage.NewTableLoader(repo, t.Table, t.Rules.Chain(t.Table), w.Logger)

	stepStart := time.Now()
	if err := loader.Truncate(ctx); err != nil {
		res.TruncateErr = err
		w.Logger.Printf("migrate: Error truncating table %q: %v", t.Table, err)
	}
	metrics.RecordStep(t.Job, t.Table, "truncate", res.TruncateErr, time.Since(stepStart))

	hasher := xxh3.New()
	stepStart = time.Now()
	var loadErr error
	for _, path := range paths {
		res.Files++
		if loadErr = w.loadFile(ctx, t, columns, path, loader, hasher); loadErr != nil {
			break
		}
	}
	metrics.RecordStep(t.Job, t.Table, "load", loadErr, time.Since(stepStart))

	res.Rows = loader.Total()
	res.Batches = loader.Batches()
	res.Fingerprint = hasher.Sum64()
	metrics.RecordRow(t.Job, t.Table, "inserted", res.Rows)
	metrics.RecordBatches(t.Job, t.Table, res.Batches)

	switch {
	case loadErr != nil && ctx.Err() != nil:
		return fail(Canceled, loadErr)
	case loadErr != nil:
		return fail(LoadFailed, loadErr)
	case res.TruncateErr != nil:
		res.Kind = TruncateFailed
	default:
		res.Kind = Succeeded
	}
	return res
}

// loadFile streams one partition file into the loader, batch by batch.
func (w *Worker) loadFile(
	ctx context.Context,
	t Task,
	columns []string,
	path string,
	loader *storage.TableLoader,
	hasher io.Writer,
) error {
	rc, err := w.Source(path).Open(ctx)
	if err != nil {
		return err
	}
	br, err := csv.NewBatchReader(teeReadCloser{Reader: io.TeeReader(rc, hasher), Closer: rc}, columns, t.Reader)
	if err != nil {
		_ = rc.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	defer br.Close()

	for {
		b, err := br.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		w.Logger.Printf("migrate: Processing %d chunk of size (%d, %d) of %s", b.Index+1, b.Len(), len(b.Columns), t.Table)
		metrics.RecordRow(t.Job, t.Table, "read", int64(b.Len()))

		_, err = loader.Load(ctx, b)
		b.Free()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
}

// teeReadCloser reads through a TeeReader but closes the underlying file.
type teeReadCloser struct {
	io.Reader
	io.Closer
}
