// Package storage contains the backend-agnostic side of loading: the
// Repository contract every database backend implements, a kind-keyed factory
// that backends register with at init time, and the TableLoader that applies
// truncate-then-append semantics on top of a Repository.
//
// Backends live in subpackages (postgres, mssql, mysql, sqlite, and the
// in-memory store used for dry runs) and are wired in by importing
// csvmigrate/internal/storage/all for side effects.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the backend-agnostic configuration for one target table.
type Config struct {
	// Kind selects the backend: "postgres", "mssql", "mysql", "sqlite" or
	// "memory".
	Kind string
	// DSN is passed to the backend driver unchanged.
	DSN string
	// Table is the target table, optionally schema-qualified ("public.orders").
	Table string
	// Columns is the ordered column list used for appends.
	Columns []string
}

// Repository is a connection to one target table.
//
// Implementations must not retain the rows slices passed to CopyFrom after it
// returns; callers recycle them.
type Repository interface {
	// Truncate removes every row of the table and commits immediately.
	Truncate(ctx context.Context) error
	// CopyFrom appends rows (aligned to columns) in a single transaction and
	// returns the number of rows written.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs an arbitrary statement.
	Exec(ctx context.Context, sql string) error
	// Close releases the connection. Call once.
	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. It is called from backend
// init functions.
//
// Panics if kind is empty, f is nil, or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered backend kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
