package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// recorder is an in-memory Backend that keeps every call in order.
type recorder struct {
	mu      sync.Mutex
	calls   []call
	flushes int
}

type call struct {
	kind   string // "counter" or "histogram"
	name   string
	value  float64
	labels Labels
}

func (r *recorder) IncCounter(name string, delta float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{"counter", name, delta, labels})
}

func (r *recorder) ObserveHistogram(name string, value float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{"histogram", name, value, labels})
}

func (r *recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return nil
}

// install swaps the global backend for the duration of the test.
func install(t *testing.T) *recorder {
	t.Helper()
	orig := current()
	t.Cleanup(func() {
		mu.Lock()
		backend = orig
		mu.Unlock()
	})
	r := &recorder{}
	SetBackend(r)
	return r
}

func sameLabels(a, b Labels) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func TestRecorders(t *testing.T) {
	tests := []struct {
		name   string
		record func()
		want   []call
	}{
		{
			name:   "successful truncate",
			record: func() { RecordStep("nightly", "orders", "truncate", nil, 2*time.Second) },
			want: []call{
				{"counter", StepTotal, 1, Labels{"job": "nightly", "table": "orders", "step": "truncate", "status": StatusSuccess}},
				{"histogram", StepDuration, 2, Labels{"job": "nightly", "table": "orders", "step": "truncate", "status": StatusSuccess}},
			},
		},
		{
			name:   "failed load",
			record: func() { RecordStep("nightly", "products", "load", errors.New("boom"), 1500*time.Millisecond) },
			want: []call{
				{"counter", StepTotal, 1, Labels{"job": "nightly", "table": "products", "step": "load", "status": StatusFailure}},
				{"histogram", StepDuration, 1.5, Labels{"job": "nightly", "table": "products", "step": "load", "status": StatusFailure}},
			},
		},
		{
			name: "rows skip non-positive deltas",
			record: func() {
				RecordRow("nightly", "orders", "read", 10000)
				RecordRow("nightly", "orders", "read", 0)
				RecordRow("nightly", "orders", "inserted", -4)
			},
			want: []call{
				{"counter", RecordsTotal, 10000, Labels{"job": "nightly", "table": "orders", "kind": "read"}},
			},
		},
		{
			name: "batches skip non-positive deltas",
			record: func() {
				RecordBatches("nightly", "orders", 3)
				RecordBatches("nightly", "orders", 0)
			},
			want: []call{
				{"counter", BatchesTotal, 3, Labels{"job": "nightly", "table": "orders"}},
			},
		},
		{
			name:   "table outcome",
			record: func() { RecordTable("nightly", "customers", "no_files") },
			want: []call{
				{"counter", TablesTotal, 1, Labels{"job": "nightly", "table": "customers", "status": "no_files"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := install(t)
			tt.record()

			if len(r.calls) != len(tt.want) {
				t.Fatalf("got %d calls %+v; want %d", len(r.calls), r.calls, len(tt.want))
			}
			for i, want := range tt.want {
				got := r.calls[i]
				if got.kind != want.kind || got.name != want.name {
					t.Fatalf("call[%d] = %s %s; want %s %s", i, got.kind, got.name, want.kind, want.name)
				}
				if d := got.value - want.value; d > 0.001 || d < -0.001 {
					t.Fatalf("call[%d].value = %v; want ~%v", i, got.value, want.value)
				}
				if !sameLabels(got.labels, want.labels) {
					t.Fatalf("call[%d].labels = %v; want %v", i, got.labels, want.labels)
				}
			}
		})
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	r := install(t)

	if current() != Backend(r) {
		t.Fatal("SetBackend did not replace global backend")
	}
	if err := Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if r.flushes != 1 {
		t.Fatalf("flushes = %d; want 1", r.flushes)
	}

	SetBackend(nil)
	if current() != Backend(r) {
		t.Fatal("SetBackend(nil) must keep the installed backend")
	}
}

// Workers record concurrently; run with -race.
func TestConcurrentRecording(t *testing.T) {
	r := install(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				RecordRow("nightly", "orders", "inserted", 1)
			}
		}()
	}
	wg.Wait()

	if len(r.calls) != 400 {
		t.Fatalf("got %d calls; want 400", len(r.calls))
	}
}
