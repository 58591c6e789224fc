package mysql

import (
	"context"

	"csvmigrate/internal/storage"
)

// Kind selects this backend in storage.Config.
const Kind = "mysql"

// newRepository is swapped by tests to avoid dialing a real server.
var newRepository = NewRepository

func init() { storage.Register(Kind, open) }

// open is the storage.Factory for Kind. Each call owns a one-connection *sql.DB.
func open(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	r, closeFn, err := newRepository(ctx, Config{
		DSN:     cfg.DSN,
		Table:   cfg.Table,
		Columns: cfg.Columns,
	})
	if err != nil {
		return nil, err
	}
	return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
}

// wrappedRepo gives *Repository the Close method storage.Repository needs.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
