// Package attrstore implements the stat/symlink/object-id attribute
// records of spec §4.5, layered directly on a kvs.Index via the encoding
// package's fixed-width key/value layouts.
package attrstore

import (
	"context"
	"fmt"
	"time"

	"github.com/kvsfs/kvsfs-core/encoding"
	"github.com/kvsfs/kvsfs-core/ferrors"
	"github.com/kvsfs/kvsfs-core/kvs"
)

// Store wraps a single filesystem's index with attribute-record access.
type Store struct {
	idx kvs.Index
}

func New(idx kvs.Index) *Store {
	return &Store{idx: idx}
}

// GetStat loads the stat record for ino.
func (s *Store) GetStat(ctx context.Context, ino encoding.Ino) (*encoding.Stat, error) {
	v, err := s.idx.Get(ctx, encoding.StatKey(ino))
	if err != nil {
		if isNotFound(err) {
			return nil, ferrors.New("attrstore.GetStat", ferrors.NotFound, err)
		}
		return nil, ferrors.New("attrstore.GetStat", ferrors.IO, err)
	}
	st, err := encoding.DecodeStat(v)
	if err != nil {
		return nil, ferrors.New("attrstore.GetStat", ferrors.IO, err)
	}
	return st, nil
}

// SetStat overwrites the stat record for st.Ino wholesale. Most callers
// should prefer UpdateStat/AmendStat to preserve the read-modify-write
// invariants (nlink bounds, S_IFMT preservation); SetStat is for initial
// creation.
func (s *Store) SetStat(ctx context.Context, st *encoding.Stat) error {
	if err := s.idx.Set(ctx, encoding.StatKey(st.Ino), encoding.EncodeStat(st)); err != nil {
		return ferrors.New("attrstore.SetStat", ferrors.IO, err)
	}
	return nil
}

// DelStat removes the stat record for ino, used by destroy_orphaned.
func (s *Store) DelStat(ctx context.Context, ino encoding.Ino) error {
	if err := s.idx.Del(ctx, encoding.StatKey(ino)); err != nil {
		if isNotFound(err) {
			return ferrors.New("attrstore.DelStat", ferrors.NotFound, err)
		}
		return ferrors.New("attrstore.DelStat", ferrors.IO, err)
	}
	return nil
}

// GetSymlink loads the target of a symlink inode.
func (s *Store) GetSymlink(ctx context.Context, ino encoding.Ino) (string, error) {
	v, err := s.idx.Get(ctx, encoding.SymlinkKey(ino))
	if err != nil {
		if isNotFound(err) {
			return "", ferrors.New("attrstore.GetSymlink", ferrors.NotFound, err)
		}
		return "", ferrors.New("attrstore.GetSymlink", ferrors.IO, err)
	}
	return string(v), nil
}

// SetSymlink records the target of a symlink inode.
func (s *Store) SetSymlink(ctx context.Context, ino encoding.Ino, target string) error {
	if err := s.idx.Set(ctx, encoding.SymlinkKey(ino), []byte(target)); err != nil {
		return ferrors.New("attrstore.SetSymlink", ferrors.IO, err)
	}
	return nil
}

// DelSymlink removes a symlink target record.
func (s *Store) DelSymlink(ctx context.Context, ino encoding.Ino) error {
	if err := s.idx.Del(ctx, encoding.SymlinkKey(ino)); err != nil && !isNotFound(err) {
		return ferrors.New("attrstore.DelSymlink", ferrors.IO, err)
	}
	return nil
}

// GetObjectID loads the DSTORE object id backing a regular-file inode.
func (s *Store) GetObjectID(ctx context.Context, ino encoding.Ino) (encoding.ObjectID, error) {
	var id encoding.ObjectID
	v, err := s.idx.Get(ctx, encoding.InodeOIDKey(ino))
	if err != nil {
		if isNotFound(err) {
			return id, ferrors.New("attrstore.GetObjectID", ferrors.NotFound, err)
		}
		return id, ferrors.New("attrstore.GetObjectID", ferrors.IO, err)
	}
	id, err = encoding.DecodeObjectID(v)
	if err != nil {
		return id, ferrors.New("attrstore.GetObjectID", ferrors.IO, err)
	}
	return id, nil
}

// SetObjectID records the DSTORE object id backing a regular-file inode.
func (s *Store) SetObjectID(ctx context.Context, ino encoding.Ino, id encoding.ObjectID) error {
	if err := s.idx.Set(ctx, encoding.InodeOIDKey(ino), encoding.EncodeObjectID(id)); err != nil {
		return ferrors.New("attrstore.SetObjectID", ferrors.IO, err)
	}
	return nil
}

// DelObjectID removes the object-id mapping for ino.
func (s *Store) DelObjectID(ctx context.Context, ino encoding.Ino) error {
	if err := s.idx.Del(ctx, encoding.InodeOIDKey(ino)); err != nil && !isNotFound(err) {
		return ferrors.New("attrstore.DelObjectID", ferrors.IO, err)
	}
	return nil
}

// AmendKind selects which field AmendStat mutates.
type AmendKind int

const (
	AtimeSet AmendKind = iota
	MtimeSet
	CtimeSet
	IncrLink
	DecrLink
	SizeSet
	ModeSet
	UidSet
	GidSet
)

// Amend describes one pending mutation passed to AmendStat: exactly one of
// Time/Uint is meaningful, selected by Kind.
type Amend struct {
	Kind AmendKind
	Time time.Time
	Uint uint64
}

// AmendStat applies one mutation to a copy of st and returns the result,
// without touching the KVS — callers (package ops) are responsible for
// persisting the result inside their own transaction and for bumping
// Ctime themselves where POSIX requires it. This mirrors spec §4.5's
// amend_stat as a pure function over an in-memory record.
//
// ModeSet preserves the S_IFMT type bits of the existing record: only the
// permission bits (encoding.ModePerm) may be changed by a setattr caller,
// matching the POSIX rule that chmod cannot change a file's type.
//
// IncrLink/DecrLink enforce the nlink bounds from spec §3 invariant 3:
// incrementing past encoding.MaxLink, or decrementing below zero, is
// rejected as Invalid rather than silently wrapping.
func AmendStat(st *encoding.Stat, a Amend) (*encoding.Stat, error) {
	out := *st
	switch a.Kind {
	case AtimeSet:
		out.Atime = a.Time
	case MtimeSet:
		out.Mtime = a.Time
	case CtimeSet:
		out.Ctime = a.Time
	case IncrLink:
		if out.Nlink == encoding.MaxLink {
			return nil, ferrors.New("attrstore.AmendStat", ferrors.Invalid, errNlinkOverflow)
		}
		out.Nlink++
	case DecrLink:
		if out.Nlink == 0 {
			return nil, ferrors.New("attrstore.AmendStat", ferrors.Invalid, errNlinkUnderflow)
		}
		out.Nlink--
	case SizeSet:
		out.Size = a.Uint
		out.RecomputeBlocks()
	case ModeSet:
		out.Mode = (out.Mode & encoding.ModeIFMT) | (uint32(a.Uint) & encoding.ModePerm)
	case UidSet:
		out.Uid = uint32(a.Uint)
	case GidSet:
		out.Gid = uint32(a.Uint)
	default:
		return nil, ferrors.New("attrstore.AmendStat", ferrors.Invalid, errUnknownAmendKind)
	}
	return &out, nil
}

// UpdateStat loads ino's stat record, applies amend, and persists the
// result in one call — the common case for callers that don't need to
// inspect the pre-amend record first.
func (s *Store) UpdateStat(ctx context.Context, ino encoding.Ino, amend Amend) (*encoding.Stat, error) {
	st, err := s.GetStat(ctx, ino)
	if err != nil {
		return nil, err
	}
	amended, err := AmendStat(st, amend)
	if err != nil {
		return nil, err
	}
	if err := s.SetStat(ctx, amended); err != nil {
		return nil, err
	}
	return amended, nil
}

var (
	errNlinkOverflow    = fmt.Errorf("attrstore: nlink would overflow past %d", encoding.MaxLink)
	errNlinkUnderflow   = fmt.Errorf("attrstore: nlink would underflow below 0")
	errUnknownAmendKind = fmt.Errorf("attrstore: unknown amend kind")
)

func isNotFound(err error) bool {
	_, ok := err.(*kvs.NotFoundError)
	return ok
}
