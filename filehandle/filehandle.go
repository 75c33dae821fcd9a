// Package filehandle implements the client-facing file handle of spec
// §4.7: an opaque, serializable reference to (filesystem, inode) that
// caches the inode's last-known stat record for the lifetime of the
// handle, the way fs.DirInode/fs.FileInode pairs a GCS object record with
// its inode number under fs.fileSystem's inode map.
package filehandle

import (
	"context"
	"encoding/binary"
	"sync/atomic"

	"github.com/kvsfs/kvsfs-core/encoding"
	"github.com/kvsfs/kvsfs-core/ferrors"
)

// FSID identifies one registered filesystem. registry.FSCreate assigns it
// from a per-process counter; it is not persisted, so it is not stable
// across process restarts.
type FSID uint64

// RootIno is the well-known inode number of every filesystem's root
// directory, minted once by registry.FSCreate (spec §4.4 tree_create_root).
const RootIno encoding.Ino = 1

// Resolver is the subset of a registered filesystem's behavior a handle
// needs to load or navigate; registry.FS implements it. Kept minimal here
// so filehandle has no dependency on package registry.
type Resolver interface {
	GetStat(ctx context.Context, ino encoding.Ino) (*encoding.Stat, error)
	Lookup(ctx context.Context, parent encoding.Ino, name string) (encoding.Ino, error)
}

// Handle is an opaque, refcount-free reference to one inode of one
// filesystem, plus a process-local key distinguishing it from every other
// Handle minted in this process's lifetime (used by in-process caches that
// key off handle identity rather than (FSID, Ino), which may repeat once
// an inode number is recycled).
type Handle struct {
	FSID FSID
	Ino  encoding.Ino
	Stat *encoding.Stat

	key uint64
}

// Key returns the handle's process-local identity (fh_key).
func (h *Handle) Key() uint64 { return h.key }

var keyCounter uint64

func nextKey() uint64 {
	return atomic.AddUint64(&keyCounter, 1)
}

// FromIno loads ino's stat record and wraps it in a Handle (fh_from_ino).
func FromIno(ctx context.Context, fsid FSID, r Resolver, ino encoding.Ino) (*Handle, error) {
	st, err := r.GetStat(ctx, ino)
	if err != nil {
		return nil, err
	}
	return &Handle{FSID: fsid, Ino: ino, Stat: st, key: nextKey()}, nil
}

// GetRoot returns a Handle for the filesystem's root directory
// (fh_getroot).
func GetRoot(ctx context.Context, fsid FSID, r Resolver) (*Handle, error) {
	return FromIno(ctx, fsid, r, RootIno)
}

// Lookup resolves name under parent and returns a Handle for the result
// (fh_lookup).
func Lookup(ctx context.Context, parent *Handle, r Resolver, name string) (*Handle, error) {
	child, err := r.Lookup(ctx, parent.Ino, name)
	if err != nil {
		return nil, err
	}
	return FromIno(ctx, parent.FSID, r, child)
}

// Destroy releases a Handle. Since a Handle carries no backend resources
// of its own (unlike a POSIX fd), this is a bookkeeping no-op today; it
// exists so callers always pair mint/destroy symmetrically, matching
// fs.fileSystem's lookup-count discipline even though this layer has no
// count to decrement.
func Destroy(h *Handle) {}

// DestroyAndDumpStat destroys h and returns its last-loaded stat record,
// for callers that want the final attributes of an inode that may no
// longer exist. Nothing is written back to the store.
func DestroyAndDumpStat(h *Handle) *encoding.Stat {
	st := h.Stat
	Destroy(h)
	return st
}

const wireLen = 8 + 8

// Serialize encodes a Handle's (FSID, Ino) pair to the 16-byte wire format
// a client embeds in an opaque file handle (fh_serialize). The cached stat
// is never part of the wire form: it is a process-local cache, not
// something a client may outlive the process to hold onto.
func Serialize(h *Handle) []byte {
	buf := make([]byte, wireLen)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(h.FSID))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(h.Ino))
	return buf
}

// Deserialize parses a wire handle and validates that its embedded FSID
// matches wantFSID. A mismatch is rejected as Invalid rather than silently
// ignored: a handle minted against one filesystem must never be honored
// against another, even if the ino number happens to be valid there too.
func Deserialize(buf []byte, wantFSID FSID) (fsid FSID, ino encoding.Ino, err error) {
	if len(buf) != wireLen {
		return 0, 0, ferrors.New("filehandle.Deserialize", ferrors.NoBuffer, errShortBuffer)
	}
	fsid = FSID(binary.LittleEndian.Uint64(buf[0:8]))
	ino = encoding.Ino(binary.LittleEndian.Uint64(buf[8:16]))
	if fsid != wantFSID {
		return 0, 0, ferrors.New("filehandle.Deserialize", ferrors.Invalid, errFSIDMismatch)
	}
	return fsid, ino, nil
}

var (
	errShortBuffer  = shortBufferError{}
	errFSIDMismatch = fsidMismatchError{}
)

type shortBufferError struct{}

func (shortBufferError) Error() string { return "filehandle: wire handle has wrong length" }

type fsidMismatchError struct{}

func (fsidMismatchError) Error() string { return "filehandle: wire handle belongs to a different filesystem" }
