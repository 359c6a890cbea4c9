package colldb

import (
	"context"
	"fmt"
	"iter"
)

// Versionstamp is an opaque, store-assigned marker that changes whenever a
// key's value changes. It is monotonic per store and lexically comparable,
// but carries no cross-key snapshot meaning.
type Versionstamp string

func formatVersionstamp(seq uint64) Versionstamp {
	return Versionstamp(fmt.Sprintf("%020x", seq))
}

// Entry is a single key-value pair observed in the store.
type Entry struct {
	Key          Key
	Value        []byte
	Versionstamp Versionstamp
}

// ScanOptions narrow a prefix scan. StartAfter and EndBefore are full keys in
// ascending key order regardless of Reverse; Limit of 0 means no limit.
type ScanOptions struct {
	StartAfter Key
	EndBefore  Key
	Limit      int
	Reverse    bool
}

// Store is the ordered key-value storage boundary: atomic single-key
// read/write/delete plus a prefix-ordered range scan. The handle is safe for
// concurrent use; no coordination beyond per-key atomicity is provided.
type Store interface {
	// Get returns the entry at key, or nil if absent.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Set stores value at key and returns the assigned versionstamp.
	// A failed or conflicted write surfaces as an error.
	Set(ctx context.Context, key Key, value []byte) (Versionstamp, error)

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key Key) error

	// Scan lazily iterates entries whose key extends prefix, in key order
	// (descending if opt.Reverse). The sequence is restartable and does not
	// represent a single consistent snapshot across entries.
	Scan(ctx context.Context, prefix Key, opt ScanOptions) iter.Seq2[Entry, error]

	// Close releases the store. Subsequent operations fail with ErrStoreClosed.
	Close() error
}
