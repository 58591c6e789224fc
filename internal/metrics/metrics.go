// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from a migration run.
//
// It exposes a narrow interface (Backend) focused on counters and timing data
// and a global, pluggable backend that defaults to a no-op implementation, so
// metrics are always safe to call even when no real backend is configured.
// Concrete metric systems live in subpackages (prompush, datadog).
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by every backend.
const (
	StepTotal       = "migrate_step_total"
	StepDuration    = "migrate_step_duration_seconds"
	RecordsTotal    = "migrate_records_total"
	BatchesTotal    = "migrate_batches_total"
	TablesTotal     = "migrate_tables_total"
	StatusSuccess   = "success"
	StatusFailure   = "failure"
	DefaultJobLabel = "csvmigrate"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
// Implementations must be safe for concurrent use; table workers record in
// parallel.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep measures latency and success/failure of one step of a table
// migration ("truncate", "load").
func RecordStep(job, table, step string, err error, d time.Duration) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}

	lbls := Labels{
		"job":    job,
		"table":  table,
		"step":   step,
		"status": status,
	}

	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter for the given table and kind,
// e.g. "read" or "inserted".
func RecordRow(job, table, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{
		"job":   job,
		"table": table,
		"kind":  kind,
	})
}

// RecordBatches increments a batch-level counter for the given table.
func RecordBatches(job, table string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{
		"job":   job,
		"table": table,
	})
}

// RecordTable counts one finished table under its outcome ("succeeded",
// "no_files", ...). Dashboards alert on any outcome other than succeeded.
func RecordTable(job, table, outcome string) {
	current().IncCounter(TablesTotal, 1, Labels{
		"job":    job,
		"table":  table,
		"status": outcome,
	})
}
