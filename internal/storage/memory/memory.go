// Package memory is an in-process storage backend. It keeps appended rows in
// a Store keyed by table name and backs --db-driver=memory dry runs, where
// files are read, fixed up and counted without touching a database.
package memory

import (
	"context"
	"fmt"
	"sync"

	"csvmigrate/internal/storage"
)

// Store holds the rows of every table loaded through it. Safe for concurrent
// use by several repositories.
type Store struct {
	mu     sync.Mutex
	tables map[string][][]any
	// Missing, when set, makes Truncate and CopyFrom fail for these tables as
	// a database would for a relation that does not exist.
	Missing map[string]bool
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{tables: map[string][][]any{}}
}

// Rows returns a copy of the rows stored for table.
func (s *Store) Rows(table string) [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.tables[table]...)
}

// Count returns the number of rows stored for table.
func (s *Store) Count(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables[table])
}

// Repository is a storage.Repository over a Store.
type Repository struct {
	store *Store
	table string
}

var _ storage.Repository = (*Repository)(nil)

// Open returns a Repository bound to table.
func (s *Store) Open(table string) *Repository {
	return &Repository{store: s, table: table}
}

// Factory returns a storage.Factory serving repositories from s.
func (s *Store) Factory() storage.Factory {
	return func(_ context.Context, cfg storage.Config) (storage.Repository, error) {
		if cfg.Table == "" {
			return nil, fmt.Errorf("memory: table must not be empty")
		}
		return s.Open(cfg.Table), nil
	}
}

func (r *Repository) missing() error {
	if r.store.Missing[r.table] {
		return fmt.Errorf("memory: relation %q does not exist", r.table)
	}
	return nil
}

// Truncate drops every stored row of the table.
func (r *Repository) Truncate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.missing(); err != nil {
		return err
	}
	delete(r.store.tables, r.table)
	return nil
}

// CopyFrom appends copies of rows.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.missing(); err != nil {
		return 0, err
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("memory: row %d has %d values for %d columns", i, len(row), len(columns))
		}
	}
	for _, row := range rows {
		r.store.tables[r.table] = append(r.store.tables[r.table], append([]any(nil), row...))
	}
	return int64(len(rows)), nil
}

// Exec is a no-op.
func (r *Repository) Exec(context.Context, string) error { return nil }

// Close is a no-op.
func (r *Repository) Close() {}

// Kind selects this backend in storage.Config.
const Kind = "memory"

var defaultStore = NewStore()

func init() {
	storage.Register(Kind, defaultStore.Factory())
}
