package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLocalOpen covers success, missing file, and pre-canceled context.
func TestLocalOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	present := filepath.Join(dir, "part-00000")
	require.NoError(t, os.WriteFile(present, []byte("1,a\n2,b\n"), 0o644))

	t.Run("success_reads_content", func(t *testing.T) {
		rc, err := NewLocal(present).Open(context.Background())
		require.NoError(t, err)
		defer rc.Close()

		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "1,a\n2,b\n", string(b))
	})

	t.Run("missing_file_wraps_not_exist", func(t *testing.T) {
		_, err := NewLocal(filepath.Join(dir, "missing")).Open(context.Background())
		require.ErrorIs(t, err, os.ErrNotExist)
		assert.Contains(t, err.Error(), "open ")
	})

	t.Run("pre_canceled_context_short_circuits", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewLocal(present).Open(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	orders := filepath.Join(root, "orders")
	require.NoError(t, os.MkdirAll(orders, 0o755))
	for _, name := range []string{"part-00002", "part-00000", "part-00001", "_SUCCESS"} {
		require.NoError(t, os.WriteFile(filepath.Join(orders, name), nil, 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	got, err := Discover(root, "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(orders, "part-00000"),
		filepath.Join(orders, "part-00001"),
		filepath.Join(orders, "part-00002"),
	}, got)

	for _, table := range []string{"empty", "absent"} {
		_, err := Discover(root, table)
		require.ErrorIs(t, err, ErrNoFiles, table)
		assert.Contains(t, err.Error(), table)
	}
}
