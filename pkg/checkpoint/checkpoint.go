// Package checkpoint tracks which export files a previous run already
// imported, so re-runs can skip re-parsing them. The ledger is an
// optimization only: correctness always rests on the store's uniqueness
// constraints, and a lost or stale ledger merely costs a re-parse.
package checkpoint

import "context"

// Ledger records imported files keyed by name and size. A file that grew
// since it was marked reads as unseen.
type Ledger interface {
	// Seen reports whether the file was already imported at this size.
	Seen(ctx context.Context, name string, size int64) (bool, error)

	// Mark records the file as imported at this size.
	Mark(ctx context.Context, name string, size int64) error

	// Close releases backend resources.
	Close() error
}
