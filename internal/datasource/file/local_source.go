// Package file implements the local filesystem side of a migration run:
// partition discovery under the source root and opening partition files for
// sequential reads.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local is a filesystem data source bound to a single partition file.
type Local struct{ path string }

// NewLocal returns a Local bound to path. It is safe for concurrent use as long
// as the path stays valid for concurrent reads.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound filesystem path.
func (l *Local) Path() string { return l.path }

// Open opens the bound path for reading.
//
// Behavior:
//   - A canceled context returns ctx.Err() without touching the filesystem.
//   - Filesystem errors are wrapped with the path; errors.Is(err,
//     os.ErrNotExist) keeps working for callers.
//   - On platforms that support it the kernel is told the file will be read
//     sequentially once; failures of that hint are ignored.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return f, nil
}
