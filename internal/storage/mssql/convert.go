package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// cellConverter turns the text of one cell into the Go value the bulk-copy
// encoder accepts for the target column.
type cellConverter func(s string) (any, error)

// converterFor picks the converter for a column by its server type name as
// reported by go-mssqldb. Text, decimal and time-of-day columns take the
// string as is, which the driver encodes or parses itself; nil means no
// conversion.
func converterFor(dbType string) cellConverter {
	switch strings.ToUpper(dbType) {
	case "TINYINT", "SMALLINT", "INT", "BIGINT":
		return func(s string) (any, error) { return strconv.ParseInt(s, 10, 64) }
	case "REAL", "FLOAT":
		return func(s string) (any, error) { return strconv.ParseFloat(s, 64) }
	case "BIT":
		return func(s string) (any, error) { return strconv.ParseBool(s) }
	case "DATE", "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET":
		return parseTimestamp
	default:
		return nil
	}
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// parseTimestamp accepts the date and timestamp shapes found in exported
// partition files, with or without fractional seconds and zone.
func parseTimestamp(s string) (any, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("cannot parse %q as a timestamp", s)
}

// convertRow fills dst with row converted for the bulk load. Only string
// cells with a converter are touched; nil and already typed values pass
// through.
func convertRow(dst, row []any, convs []cellConverter, columns []string) error {
	for j, v := range row {
		dst[j] = v
		s, ok := v.(string)
		if !ok || convs[j] == nil {
			continue
		}
		cv, err := convs[j](s)
		if err != nil {
			return fmt.Errorf("column %s: %w", columns[j], err)
		}
		dst[j] = cv
	}
	return nil
}

// converters looks up the server types of columns with an empty SELECT and
// caches the result for later batches of the same column list.
func (r *Repository) converters(ctx context.Context, tx *sql.Tx, columns []string) ([]cellConverter, error) {
	if r.convCols != nil && slices.Equal(r.convCols, columns) {
		return r.convs, nil
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = msIdent(c)
	}
	rows, err := tx.QueryContext(ctx, "SELECT "+strings.Join(quoted, ", ")+" FROM "+msFQN(r.cfg.Table)+" WHERE 1 = 0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	if len(types) != len(columns) {
		return nil, fmt.Errorf("column lookup returned %d columns for %d", len(types), len(columns))
	}
	convs := make([]cellConverter, len(types))
	for i, ct := range types {
		convs[i] = converterFor(ct.DatabaseTypeName())
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	r.convCols = slices.Clone(columns)
	r.convs = convs
	return convs, nil
}
