package migrate

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
)

// Summary is the outcome of one run.
type Summary struct {
	RunID   uuid.UUID
	Started time.Time
	// Results holds one entry per requested table, in request order.
	Results  []Result
	Duration time.Duration

	Succeeded int
	Failed    int
	Rows      int64
}

func (s Summary) finish(results []Result) Summary {
	s.Results = results
	s.Duration = time.Since(s.Started)
	for _, r := range results {
		if r.Kind.Failed() {
			s.Failed++
		} else {
			s.Succeeded++
		}
		s.Rows += r.Rows
	}
	return s
}

// OK reports whether every table succeeded.
func (s Summary) OK() bool { return s.Failed == 0 }

// FailedTables lists the tables whose result counts as a failure.
func (s Summary) FailedTables() []string {
	var out []string
	for _, r := range s.Results {
		if r.Kind.Failed() {
			out = append(out, r.Table)
		}
	}
	return out
}

// Result returns the result for table.
func (s Summary) Result(table string) (Result, bool) {
	for _, r := range s.Results {
		if r.Table == table {
			return r, true
		}
	}
	return Result{}, false
}

// WriteTo prints the summary as an aligned table.
func (s Summary) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	tw := tabwriter.NewWriter(cw, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "TABLE\tSTATUS\tFILES\tBATCHES\tROWS\tELAPSED\tFINGERPRINT\tERROR\n")
	for _, r := range s.Results {
		cause := ""
		if err := r.Cause(); err != nil {
			cause = err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%016x\t%s\n",
			r.Table, r.Kind, r.Files, r.Batches, r.Rows, r.Duration.Truncate(time.Millisecond), r.Fingerprint, cause)
	}
	if err := tw.Flush(); err != nil {
		return cw.n, err
	}
	_, err := fmt.Fprintf(cw, "run %s: %d succeeded, %d failed, %d rows in %s\n",
		s.RunID, s.Succeeded, s.Failed, s.Rows, s.Duration.Truncate(time.Millisecond))
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
