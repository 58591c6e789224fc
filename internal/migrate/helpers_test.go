package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"csvmigrate/internal/parser/csv"
	"csvmigrate/internal/schema"
	"csvmigrate/internal/storage"
	"csvmigrate/internal/storage/memory"
	"csvmigrate/internal/transformer"
)

// source is a temporary source root: schemas.json plus <table>/part-* files.
type source struct {
	root    string
	catalog map[string][]schema.ColumnDef
}

func newSource(t testing.TB) *source {
	t.Helper()
	return &source{root: t.TempDir(), catalog: map[string][]schema.ColumnDef{}}
}

// table declares columns in order.
func (s *source) table(name string, columns ...string) *source {
	defs := make([]schema.ColumnDef, len(columns))
	for i, c := range columns {
		defs[i] = schema.ColumnDef{Name: c, Position: i + 1}
	}
	s.catalog[name] = defs
	return s
}

// part writes a partition file for table.
func (s *source) part(t testing.TB, table, name, body string) *source {
	t.Helper()
	dir := filepath.Join(s.root, table)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	return s
}

// load writes schemas.json and reads it back through the real loader.
func (s *source) load(t testing.TB) *schema.Catalog {
	t.Helper()
	raw, err := json.Marshal(s.catalog)
	require.NoError(t, err)
	path := filepath.Join(s.root, schema.DescriptorFile)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	c, err := schema.Load(path)
	require.NoError(t, err)
	return c
}

// rowsCSV renders n rows "i,name-i" starting at id from.
func rowsCSV(from, n int) string {
	var sb strings.Builder
	for i := from; i < from+n; i++ {
		fmt.Fprintf(&sb, "%d,name-%d\n", i, i)
	}
	return sb.String()
}

// fakeDB is a storage double over memory.Store that records the operations
// issued per table and the number of concurrently open repositories.
type fakeDB struct {
	store *memory.Store

	mu          sync.Mutex
	ops         map[string][]string
	truncateErr map[string]error
	copyErr     map[string]error
	panicOn     map[string]bool
	delay       time.Duration
	active      int
	maxActive   int
	opened      int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		store:       memory.NewStore(),
		ops:         map[string][]string{},
		truncateErr: map[string]error{},
		copyErr:     map[string]error{},
		panicOn:     map[string]bool{},
	}
}

func (db *fakeDB) open(_ context.Context, cfg storage.Config) (storage.Repository, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.opened++
	db.active++
	db.maxActive = max(db.maxActive, db.active)
	return &fakeRepo{db: db, table: cfg.Table, inner: db.store.Open(cfg.Table)}, nil
}

func (db *fakeDB) record(table, op string) {
	db.mu.Lock()
	db.ops[table] = append(db.ops[table], op)
	db.mu.Unlock()
}

func (db *fakeDB) opsFor(table string) []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]string(nil), db.ops[table]...)
}

type fakeRepo struct {
	db    *fakeDB
	table string
	inner *memory.Repository
}

func (r *fakeRepo) Truncate(ctx context.Context) error {
	r.db.record(r.table, "truncate")
	r.db.mu.Lock()
	err := r.db.truncateErr[r.table]
	r.db.mu.Unlock()
	if err != nil {
		return err
	}
	return r.inner.Truncate(ctx)
}

func (r *fakeRepo) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	r.db.mu.Lock()
	boom, err, delay := r.db.panicOn[r.table], r.db.copyErr[r.table], r.db.delay
	r.db.mu.Unlock()
	if boom {
		panic("copy exploded")
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	r.db.record(r.table, fmt.Sprintf("append %d", len(rows)))
	if err != nil {
		return 0, err
	}
	return r.inner.CopyFrom(ctx, columns, rows)
}

func (r *fakeRepo) Exec(context.Context, string) error { return nil }

func (r *fakeRepo) Close() {
	r.db.mu.Lock()
	r.db.active--
	r.db.mu.Unlock()
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func testWorker(db *fakeDB) *Worker {
	w := NewWorker(quietLogger())
	w.NewRepository = db.open
	return w
}

func testTask(src *source, cat *schema.Catalog, table string) Task {
	return Task{
		Table:      table,
		SourceRoot: src.root,
		Catalog:    cat,
		Storage:    storage.Config{Kind: "fake"},
		Reader:     csv.DefaultOptions(),
		Rules:      transformer.DefaultRules(),
		Job:        "test",
	}
}
