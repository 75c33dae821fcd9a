// Package kvtree implements the directory-graph primitives of spec §4.4 —
// attach, detach, lookup, and child iteration — directly atop a kvs.Index
// using the key layouts from package encoding. It holds no locks of its
// own; callers (package ops) are responsible for transactional discipline
// around these calls, the way fs.DirInode relies on its own embedded mutex
// rather than one kept here.
package kvtree

import (
	"context"
	"fmt"

	"github.com/kvsfs/kvsfs-core/encoding"
	"github.com/kvsfs/kvsfs-core/ferrors"
	"github.com/kvsfs/kvsfs-core/kvs"
)

// Tree wraps a single filesystem's index with the dentry/backlink graph
// operations.
type Tree struct {
	idx kvs.Index
}

func New(idx kvs.Index) *Tree {
	return &Tree{idx: idx}
}

// Attach creates a dentry from parent to child under name, and records the
// (child, parent) backlink used for nlink accounting and orphan detection
// (spec §4.4, §3 invariant 3).
func (t *Tree) Attach(ctx context.Context, parent encoding.Ino, name string, child encoding.Ino) error {
	dkey, err := encoding.DirentKey(parent, name)
	if err != nil {
		return ferrors.New("kvtree.Attach", ferrors.Invalid, err)
	}

	if _, err := t.idx.Get(ctx, dkey); err == nil {
		return ferrors.New("kvtree.Attach", ferrors.AlreadyExists, fmt.Errorf("dentry %q already exists under %d", name, parent))
	} else if !isNotFound(err) {
		return ferrors.New("kvtree.Attach", ferrors.IO, err)
	}

	if err := t.idx.Set(ctx, dkey, encoding.EncodeUint64(uint64(child))); err != nil {
		return ferrors.New("kvtree.Attach", ferrors.IO, err)
	}

	pkey := encoding.ParentKey(child, parent)
	if err := t.idx.Set(ctx, pkey, []byte{}); err != nil {
		return ferrors.New("kvtree.Attach", ferrors.IO, err)
	}
	return nil
}

// Detach removes the dentry from parent to name and its matching backlink.
// It returns the detached child's inode number.
func (t *Tree) Detach(ctx context.Context, parent encoding.Ino, name string) (encoding.Ino, error) {
	dkey, err := encoding.DirentKey(parent, name)
	if err != nil {
		return 0, ferrors.New("kvtree.Detach", ferrors.Invalid, err)
	}

	v, err := t.idx.Get(ctx, dkey)
	if err != nil {
		if isNotFound(err) {
			return 0, ferrors.New("kvtree.Detach", ferrors.NotFound, err)
		}
		return 0, ferrors.New("kvtree.Detach", ferrors.IO, err)
	}
	child, err := encoding.DecodeUint64(v)
	if err != nil {
		return 0, ferrors.New("kvtree.Detach", ferrors.IO, err)
	}

	if err := t.idx.Del(ctx, dkey); err != nil {
		return 0, ferrors.New("kvtree.Detach", ferrors.IO, err)
	}
	pkey := encoding.ParentKey(encoding.Ino(child), parent)
	if err := t.idx.Del(ctx, pkey); err != nil && !isNotFound(err) {
		return 0, ferrors.New("kvtree.Detach", ferrors.IO, err)
	}
	return encoding.Ino(child), nil
}

// Lookup resolves (parent, name) to a child inode number.
func (t *Tree) Lookup(ctx context.Context, parent encoding.Ino, name string) (encoding.Ino, error) {
	dkey, err := encoding.DirentKey(parent, name)
	if err != nil {
		return 0, ferrors.New("kvtree.Lookup", ferrors.Invalid, err)
	}
	v, err := t.idx.Get(ctx, dkey)
	if err != nil {
		if isNotFound(err) {
			return 0, ferrors.New("kvtree.Lookup", ferrors.NotFound, err)
		}
		return 0, ferrors.New("kvtree.Lookup", ferrors.IO, err)
	}
	child, err := encoding.DecodeUint64(v)
	if err != nil {
		return 0, ferrors.New("kvtree.Lookup", ferrors.IO, err)
	}
	return encoding.Ino(child), nil
}

// Dirent is one (name, child) pair yielded by IterChildren.
type Dirent struct {
	Name  string
	Child encoding.Ino
}

// IterChildren invokes fn once per child of parent, in dentry key order
// (shorter names first, since the length byte precedes the name; names of
// equal length in byte order), stopping early if fn returns an error. This mirrors the callback-based readdir
// contract in spec §4.8 (readdir) and §5 Supplemented features.
func (t *Tree) IterChildren(ctx context.Context, parent encoding.Ino, fn func(Dirent) error) error {
	prefix := encoding.DirentPrefix(parent)
	it, err := t.idx.IterFind(ctx, prefix)
	if err != nil {
		return ferrors.New("kvtree.IterChildren", ferrors.IO, err)
	}
	defer it.Close(ctx)

	for it.Next(ctx) {
		k, v := it.Get()
		name, err := encoding.DecodeDirentName(k)
		if err != nil {
			return ferrors.New("kvtree.IterChildren", ferrors.IO, err)
		}
		child, err := encoding.DecodeUint64(v)
		if err != nil {
			return ferrors.New("kvtree.IterChildren", ferrors.IO, err)
		}
		if err := fn(Dirent{Name: name, Child: encoding.Ino(child)}); err != nil {
			return err
		}
	}
	if err := it.Err(); err != nil {
		return ferrors.New("kvtree.IterChildren", ferrors.IO, err)
	}
	return nil
}

// HasChildren reports whether parent has at least one dentry, used by
// ops.Rmdir, ops.Rename and registry.FSDelete to enforce the empty-directory invariant (spec §3
// invariant 2, NOT_EMPTY).
func (t *Tree) HasChildren(ctx context.Context, parent encoding.Ino) (bool, error) {
	found := false
	err := t.IterChildren(ctx, parent, func(Dirent) error {
		found = true
		return errStopIteration
	})
	if err == errStopIteration {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return found, nil
}

var errStopIteration = fmt.Errorf("kvtree: stop iteration")

// RenameLink moves an existing dentry to a new (parent, name) location
// without touching the child's own stat, by a Detach followed by an
// Attach; if the Attach fails, the original link is restored on a
// best-effort basis. It is not atomic by itself: ops.Rename calls it, for
// same-directory and cross-directory renames alike, inside a transaction.
// Overwriting an existing destination is the caller's (ops.Rename's)
// responsibility: detach the victim first.
func (t *Tree) RenameLink(ctx context.Context, oldParent encoding.Ino, oldName string, newParent encoding.Ino, newName string) error {
	child, err := t.Detach(ctx, oldParent, oldName)
	if err != nil {
		return err
	}
	if err := t.Attach(ctx, newParent, newName, child); err != nil {
		// best-effort restore of the original link so a failed rename
		// doesn't silently orphan the child.
		_ = t.Attach(ctx, oldParent, oldName, child)
		return err
	}
	return nil
}

// CountBacklinks counts how many parents currently reference child, used
// by nlink-consistency checks (spec §8 Testable Properties).
func (t *Tree) CountBacklinks(ctx context.Context, child encoding.Ino) (int, error) {
	prefix := encoding.ParentPrefix(child)
	it, err := t.idx.IterFind(ctx, prefix)
	if err != nil {
		return 0, ferrors.New("kvtree.CountBacklinks", ferrors.IO, err)
	}
	defer it.Close(ctx)

	n := 0
	for it.Next(ctx) {
		n++
	}
	if err := it.Err(); err != nil {
		return 0, ferrors.New("kvtree.CountBacklinks", ferrors.IO, err)
	}
	return n, nil
}

func isNotFound(err error) bool {
	_, ok := err.(*kvs.NotFoundError)
	return ok
}
