// Package mssql loads tables into Microsoft SQL Server. Truncate issues
// TRUNCATE TABLE; CopyFrom streams one batch through the TDS bulk-load API
// (mssql.CopyIn) inside its own transaction, so a batch lands completely or
// not at all. Bulk copy does not cast on the server, so text cells are
// converted to the Go type of their target column first.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN     string
	Table   string
	Columns []string
}

// Repository appends to and truncates a single SQL Server table over one
// connection.
type Repository struct {
	db  *sql.DB
	cfg Config

	// column types of the last column list loaded, see converters
	convCols []string
	convs    []cellConverter
}

// bulkOptions keeps CHECK and FOREIGN KEY constraints enforced during bulk
// load, as they are for plain INSERTs.
var bulkOptions = mssql.BulkOptions{CheckConstraints: true}

// NewRepository opens a single-connection pool and pings it. The returned
// func closes the pool.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, msError("ping", err)
	}
	return &Repository{db: db, cfg: cfg}, func() { _ = db.Close() }, nil
}

// Truncate empties the target table. It runs outside any transaction and is
// committed on return.
func (r *Repository) Truncate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "TRUNCATE TABLE "+msFQN(r.cfg.Table))
	return msError("truncate", err)
}

// CopyFrom bulk-loads rows into the target table and returns the number of
// rows the server reports as inserted. Every row must carry one value per
// column. String cells bound for numeric, bit or date columns are parsed
// first; rows are not modified.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (n int64, err error) {
	if len(rows) == 0 {
		return 0, nil
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("row %d has %d values for %d columns", i, len(row), len(columns))
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, msError("begin tx", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	convs, err := r.converters(ctx, tx, columns)
	if err != nil {
		return 0, msError("column types", err)
	}

	stmt, err := tx.PrepareContext(ctx, bulkStatement(r.cfg.Table, columns))
	if err != nil {
		return 0, msError("prepare bulk", err)
	}
	args := make([]any, len(columns))
	for i, row := range rows {
		if err = convertRow(args, row, convs, columns); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			_ = stmt.Close()
			return 0, msError(fmt.Sprintf("bulk row %d", i), err)
		}
	}
	// An Exec without arguments flushes the bulk load.
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, msError("bulk finalize", err)
	}
	if n, err = res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, msError("commit", err)
	}
	return n, nil
}

// bulkStatement is the CopyIn statement for table, quoted the same way as
// Truncate.
func bulkStatement(table string, columns []string) string {
	return mssql.CopyIn(msFQN(table), bulkOptions, columns...)
}

// Exec runs a statement outside any transaction.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// msError prefixes err with op and, for server errors, the error number so
// "permission denied" and "object not found" are told apart in logs. nil
// stays nil.
func msError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se mssql.Error
	if errors.As(err, &se) {
		return fmt.Errorf("%s: %w (msg %d, state %d)", op, err, se.Number, se.State)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// msIdent quotes a SQL Server identifier with [brackets], doubling any ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// msFQN quotes each part of a possibly schema-qualified name:
// "dbo.orders" becomes "[dbo].[orders]".
func msFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = msIdent(p)
	}
	return strings.Join(parts, ".")
}
