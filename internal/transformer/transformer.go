// Package transformer holds the in-memory batch representation shared by the
// reader and the table loader, and the per-table fixups applied to a batch
// before it is appended to the database.
package transformer

// Transformer mutates a batch in place before load.
type Transformer interface {
	Apply(b *Batch) error
}

// Chain is an ordered list of transformers.
type Chain []Transformer

// Apply runs every transformer in order and stops at the first error.
func (c Chain) Apply(b *Batch) error {
	for _, t := range c {
		if err := t.Apply(b); err != nil {
			return err
		}
	}
	return nil
}
