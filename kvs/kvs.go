// Package kvs defines the pluggable ordered key-value store (KVS) adapter
// contract used by the metadata core (spec §4.2). The core depends only on
// this interface; a concrete backend (out of scope per spec §1) implements
// it. Package kvstest provides an in-memory implementation for tests.
package kvs

import (
	"context"
	"fmt"
)

// FID is the 128-bit identifier of a KVS index, addressed the way a
// filesystem's index_fid addresses its namespace (spec §3).
type FID [16]byte

// Key and Value are opaque byte strings; the encoding package is
// responsible for giving them meaning.
type Key = []byte
type Value = []byte

// NotFoundError is returned by Get and Del when the key is absent.
type NotFoundError struct {
	Key Key
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("kvs: key not found: %x", e.Key)
}

// Index is a single named KVS namespace, opened for the lifetime of one
// filesystem (spec §4.2). All methods are safe to call concurrently except
// where a transaction is explicitly in progress on this goroutine's path;
// per spec §5, one transaction per index is assumed at a time.
type Index interface {
	// Get fetches the value for key, returning *NotFoundError if absent.
	Get(ctx context.Context, key Key) (Value, error)

	// Set upserts key to value.
	Set(ctx context.Context, key Key, value Value) error

	// Del removes key, returning *NotFoundError if it was already absent.
	Del(ctx context.Context, key Key) error

	// IterFind returns an iterator over all keys sharing prefix, in
	// ascending key order.
	IterFind(ctx context.Context, prefix Key) (Iterator, error)

	// BeginTransaction starts a transaction. Only one may be open on an
	// index at a time (spec §5); the backend may serialize concurrent
	// callers or reject a nested Begin, at its discretion.
	BeginTransaction(ctx context.Context) error

	// EndTransaction commits the currently open transaction, making its
	// writes atomically observable.
	EndTransaction(ctx context.Context) error

	// DiscardTransaction aborts the currently open transaction; every
	// mutation since the matching BeginTransaction must be undone.
	DiscardTransaction(ctx context.Context) error

	// Close releases resources associated with the index. Implementations
	// backing fs_delete call this as part of index teardown.
	Close(ctx context.Context) error
}

// Iterator walks an ordered range of key/value pairs produced by
// Index.IterFind. Exhaustion is signaled by Next returning false; it is not
// an error (spec §7: "NOT_FOUND at the end of a prefix iteration is treated
// as normal exhaustion").
type Iterator interface {
	// Next advances the iterator, returning false at exhaustion or on
	// error (check Err() to distinguish the two).
	Next(ctx context.Context) bool

	// Get returns the current key/value pair. Only valid after a Next call
	// that returned true.
	Get() (Key, Value)

	// Err returns any error encountered during iteration.
	Err() error

	// Close releases iterator resources.
	Close(ctx context.Context) error
}

// Store opens and closes named indexes by FID; it is the top-level handle a
// registry holds onto a KVS backend (spec §4.2 index_open/index_close).
type Store interface {
	IndexOpen(ctx context.Context, fid FID) (Index, error)
	IndexClose(ctx context.Context, idx Index) error

	// IndexCreate provisions a brand new, empty index and returns its FID.
	// Used by registry.FSCreate.
	IndexCreate(ctx context.Context) (FID, error)

	// IndexDestroy permanently removes an index and all of its data. Used
	// by registry.FSDelete.
	IndexDestroy(ctx context.Context, fid FID) error
}
