package migrate

import (
	"fmt"
	"time"
)

// Kind classifies how a table migration ended.
type Kind int

const (
	// Succeeded: truncated, then every file loaded.
	Succeeded Kind = iota
	// TruncateFailed: every file loaded but the truncate before it failed, so
	// earlier rows may still be in the table.
	TruncateFailed
	// NoFiles: the table has no partition files; nothing was touched.
	NoFiles
	// UnknownTable: the table is not in the catalog; nothing was touched.
	UnknownTable
	// LoadFailed: opening storage, reading or appending failed. Batches
	// appended before the failure stay in the table.
	LoadFailed
	// Canceled: the run was canceled before or during this table.
	Canceled
	// Internal: the worker panicked. The rest of the run is canceled.
	Internal
)

var kindNames = [...]string{
	Succeeded:      "succeeded",
	TruncateFailed: "truncate_failed",
	NoFiles:        "no_files",
	UnknownTable:   "unknown_table",
	LoadFailed:     "load_failed",
	Canceled:       "canceled",
	Internal:       "internal",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Failed reports whether k counts against the run.
func (k Kind) Failed() bool { return k != Succeeded }

// Result is the outcome of one table migration.
type Result struct {
	Table string
	Kind  Kind
	// Err is the cause for every kind but Succeeded and TruncateFailed.
	Err error
	// TruncateErr is set whenever the truncate step failed, whatever the
	// final kind.
	TruncateErr error

	Files   int
	Batches int64
	Rows    int64
	// Fingerprint is the xxh3 hash of the raw bytes read, across files in
	// load order. Identical sources give identical fingerprints.
	Fingerprint uint64
	Duration    time.Duration
}

// Cause returns the error that best explains the result, or nil.
func (r Result) Cause() error {
	if r.Err != nil {
		return r.Err
	}
	return r.TruncateErr
}
