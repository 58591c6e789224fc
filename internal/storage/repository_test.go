package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvmigrate/internal/transformer"
)

// fakeRepo records what the loader sends it.
type fakeRepo struct {
	truncateErr error
	copyErr     error
	truncates   int
	copies      [][][]any
	closed      bool
}

func (f *fakeRepo) Truncate(context.Context) error {
	f.truncates++
	return f.truncateErr
}

func (f *fakeRepo) CopyFrom(_ context.Context, _ []string, rows [][]any) (int64, error) {
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	cp := make([][]any, len(rows))
	for i, r := range rows {
		cp[i] = append([]any(nil), r...)
	}
	f.copies = append(f.copies, cp)
	return int64(len(rows)), nil
}

func (f *fakeRepo) Exec(context.Context, string) error { return nil }
func (f *fakeRepo) Close()                             { f.closed = true }

func TestRegisterAndNew(t *testing.T) {
	t.Parallel()

	const kind = "fake-register"
	var got Config
	Register(kind, func(_ context.Context, cfg Config) (Repository, error) {
		got = cfg
		return &fakeRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: kind, DSN: "x", Table: "orders", Columns: []string{"id"}})
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Equal(t, "orders", got.Table)
	assert.Contains(t, ListKinds(), kind)

	assert.Panics(t, func() { Register(kind, func(context.Context, Config) (Repository, error) { return nil, nil }) })
	assert.Panics(t, func() { Register("", func(context.Context, Config) (Repository, error) { return nil, nil }) })
	assert.Panics(t, func() { Register("nil-factory", nil) })
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Kind: "does-not-exist"})
	assert.ErrorContains(t, err, "unsupported storage.kind=does-not-exist")
}

func TestNew_PropagatesFactoryError(t *testing.T) {
	t.Parallel()

	boom := errors.New("dial failed")
	Register("fake-failing", func(context.Context, Config) (Repository, error) { return nil, boom })
	_, err := New(context.Background(), Config{Kind: "fake-failing"})
	assert.ErrorIs(t, err, boom)
}

func mkBatch(columns []string, rows ...[]any) *transformer.Batch {
	b := transformer.GetBatch(columns, len(rows))
	for _, r := range rows {
		copy(b.AddRow(), r)
	}
	transformer.InferKinds(b)
	return b
}
