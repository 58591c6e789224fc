// Package datasource abstracts where partition bytes come from. The migrate
// worker only needs to open a file for a single sequential read; the file
// subpackage provides the local-disk implementation.
package datasource

import (
	"context"
	"io"
)

// Source opens one partition for reading. Callers close the returned reader.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
