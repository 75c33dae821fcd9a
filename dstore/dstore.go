// Package dstore defines the pluggable object data store (DSTORE) adapter
// contract (spec §4.3): block-aligned byte-range I/O against opaque
// 128-bit object ids. A concrete backend is out of scope (spec §1, spec
// Non-goals); package dstoretest supplies an in-memory fake for tests.
package dstore

import (
	"context"
	"fmt"

	"github.com/kvsfs/kvsfs-core/encoding"
)

// DefaultBlockSize is the block alignment dstoretest reports; a real
// backend may report a different value via Store.BlockSize.
const DefaultBlockSize = 4096

// NotFoundError is returned when an operation references an object id that
// does not exist (or no longer exists) in the store.
type NotFoundError struct {
	ID encoding.ObjectID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dstore: object not found: %x", e.ID[:])
}

// Store is the object store adapter a registry holds for one filesystem's
// data (spec §4.3).
type Store interface {
	// NewObjectID mints a fresh, unused 128-bit object id.
	NewObjectID(ctx context.Context) (encoding.ObjectID, error)

	// Create provisions a zero-length object at id.
	Create(ctx context.Context, id encoding.ObjectID) error

	// Delete destroys the object and frees its storage.
	Delete(ctx context.Context, id encoding.ObjectID) error

	// Open / Close bracket a period of active I/O against id, mirroring
	// the obj_open/obj_close pairing in spec §4.3; implementations may
	// treat these as no-ops beyond existence checks.
	Open(ctx context.Context, id encoding.ObjectID) error
	Close(ctx context.Context, id encoding.ObjectID) error

	// BlockSize reports the store's I/O alignment.
	BlockSize(ctx context.Context) (uint32, error)

	// PRead reads up to len(p) bytes starting at offset, returning the
	// number of bytes actually read. A read wholly or partly past the
	// object's current size returns fewer bytes than requested (short
	// read), never an error, matching spec §4.3's read semantics.
	PRead(ctx context.Context, id encoding.ObjectID, offset uint64, p []byte) (int, error)

	// PWrite writes len(p) bytes at offset, growing the object if the
	// write extends past its current size (a "hole" of zero bytes is
	// implied between the old size and offset).
	PWrite(ctx context.Context, id encoding.ObjectID, offset uint64, p []byte) (int, error)

	// Resize truncates or zero-extends the object to exactly size bytes.
	Resize(ctx context.Context, id encoding.ObjectID, size uint64) error

	// Size reports the object's current logical size in bytes.
	Size(ctx context.Context, id encoding.ObjectID) (uint64, error)
}
