package file

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
)

// PartitionPattern is the glob, relative to a table directory, that selects
// the partition files of that table.
const PartitionPattern = "part-*"

// ErrNoFiles is returned by Discover when a table has no partition files.
var ErrNoFiles = errors.New("no files found")

// Discover returns the partition files of table under root, i.e. every match
// of <root>/<table>/part-*. Matches are sorted lexicographically so a table is
// always loaded in the same file order regardless of filesystem listing order.
//
// Zero matches return an error wrapping ErrNoFiles.
func Discover(root, table string) ([]string, error) {
	pattern := filepath.Join(root, table, PartitionPattern)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoFiles, table)
	}
	sort.Strings(matches)
	return matches, nil
}
