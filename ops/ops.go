// Package ops implements the POSIX operation layer of spec §4.8: the
// create/lookup/link/unlink/rename/read/write/attribute surface a FUSE or
// NFS frontend calls, each wrapped in its own KVS transaction the way
// fs.fileSystem's methods bracket their inode-map mutations with its own
// mutex.
package ops

import (
	"context"
	"fmt"

	"github.com/jacobsa/timeutil"

	"github.com/kvsfs/kvsfs-core/access"
	"github.com/kvsfs/kvsfs-core/attrstore"
	"github.com/kvsfs/kvsfs-core/dstore"
	"github.com/kvsfs/kvsfs-core/encoding"
	"github.com/kvsfs/kvsfs-core/ferrors"
	"github.com/kvsfs/kvsfs-core/kvtree"
	"github.com/kvsfs/kvsfs-core/registry"
)

// Ops bundles the clock every timestamp-touching operation needs; it holds
// no per-filesystem state, so one Ops instance serves every registry.FS
// in a process, the same way a single fs.fileSystem clock field is shared
// across every inode it mints.
type Ops struct {
	Clock timeutil.Clock
}

func New(clock timeutil.Clock) *Ops {
	return &Ops{Clock: clock}
}

// withTxn runs fn inside a KVS transaction on fs.Index, discarding on any
// error and ending (committing) otherwise. Every mutating operation in
// this file goes through it, per spec §5's transactional discipline.
func withTxn(ctx context.Context, fs *registry.FS, fn func() error) error {
	if err := fs.Index.BeginTransaction(ctx); err != nil {
		return ferrors.New("withTxn", ferrors.IO, err)
	}
	if err := fn(); err != nil {
		if derr := fs.Index.DiscardTransaction(ctx); derr != nil {
			return ferrors.New("withTxn", ferrors.IO, fmt.Errorf("op failed (%v) and discard failed (%v)", err, derr))
		}
		return err
	}
	if err := fs.Index.EndTransaction(ctx); err != nil {
		return ferrors.New("withTxn", ferrors.IO, err)
	}
	return nil
}

// mintIno allocates the next inode number for fs and advances its counter.
// LOCKS_REQUIRED: caller must already be inside a transaction on fs.Index.
func mintIno(ctx context.Context, fs *registry.FS) (encoding.Ino, error) {
	key := encoding.InoCounterKey(filehandleRootIno)
	v, err := fs.Index.Get(ctx, key)
	if err != nil {
		return 0, ferrors.New("mintIno", ferrors.IO, err)
	}
	counter, err := encoding.DecodeUint64(v)
	if err != nil {
		return 0, ferrors.New("mintIno", ferrors.IO, err)
	}
	if err := fs.Index.Set(ctx, key, encoding.EncodeUint64(counter+1)); err != nil {
		return 0, ferrors.New("mintIno", ferrors.IO, err)
	}
	return encoding.Ino(counter), nil
}

// filehandleRootIno mirrors filehandle.RootIno without importing package
// filehandle (which depends on encoding only) purely to key the inode
// counter record under the same well-known ino the root directory itself
// uses; it is the ino the counter is attached to, not a circular
// dependency.
const filehandleRootIno encoding.Ino = 1

// Lookup resolves name under parent (spec §4.8 lookup).
func (o *Ops) Lookup(ctx context.Context, fs *registry.FS, parent encoding.Ino, name string) (*encoding.Stat, error) {
	child, err := fs.Tree.Lookup(ctx, parent, name)
	if err != nil {
		return nil, err
	}
	return fs.Attrs.GetStat(ctx, child)
}

// GetAttr returns ino's stat record (spec §4.8 getattr).
func (o *Ops) GetAttr(ctx context.Context, fs *registry.FS, ino encoding.Ino) (*encoding.Stat, error) {
	return fs.Attrs.GetStat(ctx, ino)
}

// Readdir invokes fn once per child of parent, after checking creds have
// LIST_DIR on parent (spec §4.8 readdir).
func (o *Ops) Readdir(ctx context.Context, fs *registry.FS, parent encoding.Ino, creds access.Credentials, fn func(kvtree.Dirent) error) error {
	st, err := fs.Attrs.GetStat(ctx, parent)
	if err != nil {
		return err
	}
	if st.FileType() != encoding.FileTypeDir {
		return ferrors.New("readdir", ferrors.NotDir, fmt.Errorf("ino %d is not a directory", parent))
	}
	if err := access.Check(ctx, creds, st, access.ListDir); err != nil {
		return err
	}
	return fs.Tree.IterChildren(ctx, parent, fn)
}

// Readlink returns a symlink's target (spec §4.8 readlink).
func (o *Ops) Readlink(ctx context.Context, fs *registry.FS, ino encoding.Ino) (string, error) {
	st, err := fs.Attrs.GetStat(ctx, ino)
	if err != nil {
		return "", err
	}
	if st.FileType() != encoding.FileTypeSymlink {
		return "", ferrors.New("readlink", ferrors.Invalid, fmt.Errorf("ino %d is not a symlink", ino))
	}
	return fs.Attrs.GetSymlink(ctx, ino)
}

// Access checks whether creds may perform want against ino (spec §4.8
// access).
func (o *Ops) Access(ctx context.Context, fs *registry.FS, ino encoding.Ino, creds access.Credentials, want access.Mode) error {
	st, err := fs.Attrs.GetStat(ctx, ino)
	if err != nil {
		return err
	}
	return access.Check(ctx, creds, st, want)
}

// createEntry is the shared core of creat/mkdir/symlink (spec §4.8
// create_entry): allocate an inode, write its stat record, and attach it
// under parent/name, all inside one transaction. fileType and extra let
// each caller specialize (regular file gets an object id, symlink gets a
// target record, directory gets nothing extra).
func (o *Ops) createEntry(
	ctx context.Context,
	fs *registry.FS,
	parent encoding.Ino,
	name string,
	mode uint32,
	creds access.Credentials,
	extra func(ctx context.Context, ino encoding.Ino) error,
) (*encoding.Stat, error) {
	parentSt, err := fs.Attrs.GetStat(ctx, parent)
	if err != nil {
		return nil, err
	}
	if parentSt.FileType() != encoding.FileTypeDir {
		return nil, ferrors.New("create_entry", ferrors.NotDir, fmt.Errorf("parent %d is not a directory", parent))
	}
	if err := access.Check(ctx, creds, parentSt, access.CreateEntity); err != nil {
		return nil, err
	}

	var created *encoding.Stat
	err = withTxn(ctx, fs, func() error {
		ino, err := mintIno(ctx, fs)
		if err != nil {
			return err
		}

		now := o.Clock.Now()
		st := &encoding.Stat{
			Ino:   ino,
			Mode:  mode,
			Uid:   creds.Uid,
			Gid:   creds.Gid,
			Nlink: 1,
			Atime: now,
			Mtime: now,
			Ctime: now,
		}
		if st.FileType() == encoding.FileTypeDir {
			st.Nlink = 2
		}

		if err := fs.Attrs.SetStat(ctx, st); err != nil {
			return err
		}
		if extra != nil {
			if err := extra(ctx, ino); err != nil {
				return err
			}
		}
		if err := fs.Tree.Attach(ctx, parent, name, ino); err != nil {
			return err
		}

		amended, err := attrstore.AmendStat(parentSt, attrstore.Amend{Kind: attrstore.MtimeSet, Time: now})
		if err != nil {
			return err
		}
		if err := fs.Attrs.SetStat(ctx, amended); err != nil {
			return err
		}

		created = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Creat creates a new regular file (spec §4.8 creat).
func (o *Ops) Creat(ctx context.Context, fs *registry.FS, parent encoding.Ino, name string, perm uint32, creds access.Credentials) (*encoding.Stat, error) {
	return o.createEntry(ctx, fs, parent, name, encoding.ModeIFREG|(perm&encoding.ModePerm), creds, func(ctx context.Context, ino encoding.Ino) error {
		id, err := fs.Data.NewObjectID(ctx)
		if err != nil {
			return ferrors.New("creat", ferrors.IO, err)
		}
		if err := fs.Data.Create(ctx, id); err != nil {
			return ferrors.New("creat", ferrors.IO, err)
		}
		return fs.Attrs.SetObjectID(ctx, ino, id)
	})
}

// Mkdir creates a new subdirectory (spec §4.8 mkdir).
func (o *Ops) Mkdir(ctx context.Context, fs *registry.FS, parent encoding.Ino, name string, perm uint32, creds access.Credentials) (*encoding.Stat, error) {
	return o.createEntry(ctx, fs, parent, name, encoding.ModeIFDIR|(perm&encoding.ModePerm), creds, nil)
}

// Symlink creates a symlink whose target is the literal string target
// (spec §4.8 symlink).
func (o *Ops) Symlink(ctx context.Context, fs *registry.FS, parent encoding.Ino, name, target string, creds access.Credentials) (*encoding.Stat, error) {
	return o.createEntry(ctx, fs, parent, name, encoding.ModeIFLNK|0777, creds, func(ctx context.Context, ino encoding.Ino) error {
		return fs.Attrs.SetSymlink(ctx, ino, target)
	})
}

// Link attaches a new dentry (parent, name) to an existing inode and
// increments its link count (spec §4.8 link). Directories may not be
// hard-linked (spec §3, POSIX invariant).
func (o *Ops) Link(ctx context.Context, fs *registry.FS, parent encoding.Ino, name string, target encoding.Ino, creds access.Credentials) (*encoding.Stat, error) {
	parentSt, err := fs.Attrs.GetStat(ctx, parent)
	if err != nil {
		return nil, err
	}
	if parentSt.FileType() != encoding.FileTypeDir {
		return nil, ferrors.New("link", ferrors.NotDir, fmt.Errorf("parent %d is not a directory", parent))
	}
	if err := access.Check(ctx, creds, parentSt, access.CreateEntity); err != nil {
		return nil, err
	}

	targetSt, err := fs.Attrs.GetStat(ctx, target)
	if err != nil {
		return nil, err
	}
	if targetSt.FileType() == encoding.FileTypeDir {
		return nil, ferrors.New("link", ferrors.Invalid, fmt.Errorf("ino %d is a directory", target))
	}

	var linked *encoding.Stat
	err = withTxn(ctx, fs, func() error {
		if err := fs.Tree.Attach(ctx, parent, name, target); err != nil {
			return err
		}
		st, err := fs.Attrs.UpdateStat(ctx, target, attrstore.Amend{Kind: attrstore.IncrLink})
		if err != nil {
			return err
		}
		now := o.Clock.Now()
		if _, err := fs.Attrs.UpdateStat(ctx, target, attrstore.Amend{Kind: attrstore.CtimeSet, Time: now}); err != nil {
			return err
		}
		linked = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return linked, nil
}

// destroyOrphaned removes an inode's attribute records and backing object
// once its nlink has reached zero, per spec §4.8 (the re-entrant recovery
// path noted in the Open Questions decision on partial-failure atomicity:
// this is safe to re-run if a prior attempt failed partway through, since
// an already-missing object, mapping, symlink target or stat is skipped).
// LOCKS_REQUIRED: caller must be inside a transaction on fs.Index.
func destroyOrphaned(ctx context.Context, fs *registry.FS, ino encoding.Ino, ft encoding.FileType) error {
	switch ft {
	case encoding.FileTypeRegular:
		id, err := fs.Attrs.GetObjectID(ctx, ino)
		if err == nil {
			if derr := fs.Data.Delete(ctx, id); derr != nil {
				if _, missing := derr.(*dstore.NotFoundError); !missing {
					return ferrors.New("destroy_orphaned", ferrors.IO, derr)
				}
			}
		} else if ferrors.CodeOf(err) != ferrors.NotFound {
			return err
		}
		if err := fs.Attrs.DelObjectID(ctx, ino); err != nil {
			return err
		}
	case encoding.FileTypeSymlink:
		if err := fs.Attrs.DelSymlink(ctx, ino); err != nil {
			return err
		}
	}
	if err := fs.Attrs.DelStat(ctx, ino); err != nil && ferrors.CodeOf(err) != ferrors.NotFound {
		return err
	}
	return nil
}

// Unlink removes a non-directory dentry, destroying the target inode once
// its link count reaches zero (spec §4.8 unlink).
func (o *Ops) Unlink(ctx context.Context, fs *registry.FS, parent encoding.Ino, name string, creds access.Credentials) error {
	parentSt, err := fs.Attrs.GetStat(ctx, parent)
	if err != nil {
		return err
	}
	if err := access.Check(ctx, creds, parentSt, access.DeleteEntity); err != nil {
		return err
	}

	return withTxn(ctx, fs, func() error {
		child, err := fs.Tree.Detach(ctx, parent, name)
		if err != nil {
			return err
		}
		st, err := fs.Attrs.GetStat(ctx, child)
		if err != nil {
			return err
		}
		if st.FileType() == encoding.FileTypeDir {
			return ferrors.New("unlink", ferrors.Invalid, fmt.Errorf("ino %d is a directory", child))
		}

		amended, err := attrstore.AmendStat(st, attrstore.Amend{Kind: attrstore.DecrLink})
		if err != nil {
			return err
		}
		if amended.Nlink == 0 {
			return destroyOrphaned(ctx, fs, child, st.FileType())
		}
		return fs.Attrs.SetStat(ctx, amended)
	})
}

// Rmdir removes an empty subdirectory (spec §4.8 rmdir).
func (o *Ops) Rmdir(ctx context.Context, fs *registry.FS, parent encoding.Ino, name string, creds access.Credentials) error {
	parentSt, err := fs.Attrs.GetStat(ctx, parent)
	if err != nil {
		return err
	}
	if err := access.Check(ctx, creds, parentSt, access.DeleteEntity); err != nil {
		return err
	}

	child, err := fs.Tree.Lookup(ctx, parent, name)
	if err != nil {
		return err
	}
	childSt, err := fs.Attrs.GetStat(ctx, child)
	if err != nil {
		return err
	}
	if childSt.FileType() != encoding.FileTypeDir {
		return ferrors.New("rmdir", ferrors.NotDir, fmt.Errorf("ino %d is not a directory", child))
	}
	hasChildren, err := fs.Tree.HasChildren(ctx, child)
	if err != nil {
		return err
	}
	if hasChildren {
		return ferrors.New("rmdir", ferrors.NotEmpty, fmt.Errorf("directory %d is not empty", child))
	}

	return withTxn(ctx, fs, func() error {
		if _, err := fs.Tree.Detach(ctx, parent, name); err != nil {
			return err
		}
		return fs.Attrs.DelStat(ctx, child)
	})
}

// Rename moves the dentry (oldParent, oldName) to (newParent, newName),
// whether or not the two directories are the same (spec §4.8 rename).
// If a dentry already exists at the destination, it is overwritten:
// a non-directory victim is unlinked (and destroyed if its link count
// drops to zero); a directory victim must be empty or the whole
// operation fails NOT_EMPTY before anything is mutated.
func (o *Ops) Rename(ctx context.Context, fs *registry.FS, oldParent encoding.Ino, oldName string, newParent encoding.Ino, newName string, creds access.Credentials) error {
	oldParentSt, err := fs.Attrs.GetStat(ctx, oldParent)
	if err != nil {
		return err
	}
	newParentSt, err := fs.Attrs.GetStat(ctx, newParent)
	if err != nil {
		return err
	}
	if err := access.Check(ctx, creds, oldParentSt, access.DeleteEntity); err != nil {
		return err
	}
	if err := access.Check(ctx, creds, newParentSt, access.CreateEntity); err != nil {
		return err
	}

	srcIno, err := fs.Tree.Lookup(ctx, oldParent, oldName)
	if err != nil {
		return err
	}
	srcSt, err := fs.Attrs.GetStat(ctx, srcIno)
	if err != nil {
		return err
	}

	victim, verr := fs.Tree.Lookup(ctx, newParent, newName)
	haveVictim := verr == nil
	var victimSt *encoding.Stat
	if haveVictim {
		victimSt, err = fs.Attrs.GetStat(ctx, victim)
		if err != nil {
			return err
		}
		if victimSt.FileType() == encoding.FileTypeDir {
			if srcSt.FileType() != encoding.FileTypeDir {
				return ferrors.New("rename", ferrors.NotDir, fmt.Errorf("cannot rename non-directory over directory %d", victim))
			}
			hasChildren, err := fs.Tree.HasChildren(ctx, victim)
			if err != nil {
				return err
			}
			if hasChildren {
				return ferrors.New("rename", ferrors.NotEmpty, fmt.Errorf("destination directory %d is not empty", victim))
			}
		} else if srcSt.FileType() == encoding.FileTypeDir {
			return ferrors.New("rename", ferrors.NotDir, fmt.Errorf("cannot rename directory over non-directory %d", victim))
		}
	}

	return withTxn(ctx, fs, func() error {
		if haveVictim {
			if _, err := fs.Tree.Detach(ctx, newParent, newName); err != nil {
				return err
			}
			if victimSt.FileType() == encoding.FileTypeDir {
				if err := fs.Attrs.DelStat(ctx, victim); err != nil {
					return err
				}
			} else {
				amended, err := attrstore.AmendStat(victimSt, attrstore.Amend{Kind: attrstore.DecrLink})
				if err != nil {
					return err
				}
				if amended.Nlink == 0 {
					if err := destroyOrphaned(ctx, fs, victim, victimSt.FileType()); err != nil {
						return err
					}
				} else if err := fs.Attrs.SetStat(ctx, amended); err != nil {
					return err
				}
			}
		}

		if err := fs.Tree.RenameLink(ctx, oldParent, oldName, newParent, newName); err != nil {
			return err
		}

		now := o.Clock.Now()
		if _, err := fs.Attrs.UpdateStat(ctx, srcIno, attrstore.Amend{Kind: attrstore.CtimeSet, Time: now}); err != nil {
			return err
		}
		return nil
	})
}

// Read fills p from ino's backing object starting at offset (spec §4.8
// read), after checking creds have READ.
func (o *Ops) Read(ctx context.Context, fs *registry.FS, ino encoding.Ino, offset uint64, p []byte, creds access.Credentials) (int, error) {
	st, err := fs.Attrs.GetStat(ctx, ino)
	if err != nil {
		return 0, err
	}
	if st.FileType() != encoding.FileTypeRegular {
		return 0, ferrors.New("read", ferrors.Invalid, fmt.Errorf("ino %d is not a regular file", ino))
	}
	if err := access.Check(ctx, creds, st, access.Read); err != nil {
		return 0, err
	}

	id, err := fs.Attrs.GetObjectID(ctx, ino)
	if err != nil {
		return 0, err
	}
	n, err := fs.Data.PRead(ctx, id, offset, p)
	if err != nil {
		return 0, ferrors.New("read", ferrors.IO, err)
	}

	now := o.Clock.Now()
	_, _ = fs.Attrs.UpdateStat(ctx, ino, attrstore.Amend{Kind: attrstore.AtimeSet, Time: now})
	return n, nil
}

// Write writes p to ino's backing object starting at offset, growing the
// file and advancing mtime/size/blocks as needed (spec §4.8 write).
func (o *Ops) Write(ctx context.Context, fs *registry.FS, ino encoding.Ino, offset uint64, p []byte, creds access.Credentials) (int, error) {
	st, err := fs.Attrs.GetStat(ctx, ino)
	if err != nil {
		return 0, err
	}
	if st.FileType() != encoding.FileTypeRegular {
		return 0, ferrors.New("write", ferrors.Invalid, fmt.Errorf("ino %d is not a regular file", ino))
	}
	if err := access.Check(ctx, creds, st, access.Write); err != nil {
		return 0, err
	}

	id, err := fs.Attrs.GetObjectID(ctx, ino)
	if err != nil {
		return 0, err
	}

	var n int
	err = withTxn(ctx, fs, func() error {
		var werr error
		n, werr = fs.Data.PWrite(ctx, id, offset, p)
		if werr != nil {
			return ferrors.New("write", ferrors.IO, werr)
		}
		size, serr := fs.Data.Size(ctx, id)
		if serr != nil {
			return ferrors.New("write", ferrors.IO, serr)
		}
		now := o.Clock.Now()
		updated, aerr := attrstore.AmendStat(st, attrstore.Amend{Kind: attrstore.SizeSet, Uint: size})
		if aerr != nil {
			return aerr
		}
		updated.Mtime = now
		updated.Ctime = now
		return fs.Attrs.SetStat(ctx, updated)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Truncate resizes ino's backing object to size bytes (spec §4.8
// truncate, folded into setattr's SIZE_SET per spec §4.5).
func (o *Ops) Truncate(ctx context.Context, fs *registry.FS, ino encoding.Ino, size uint64, creds access.Credentials) (*encoding.Stat, error) {
	st, err := fs.Attrs.GetStat(ctx, ino)
	if err != nil {
		return nil, err
	}
	if st.FileType() != encoding.FileTypeRegular {
		return nil, ferrors.New("truncate", ferrors.Invalid, fmt.Errorf("ino %d is not a regular file", ino))
	}
	if err := access.Check(ctx, creds, st, access.Write); err != nil {
		return nil, err
	}

	id, err := fs.Attrs.GetObjectID(ctx, ino)
	if err != nil {
		return nil, err
	}

	var result *encoding.Stat
	err = withTxn(ctx, fs, func() error {
		if err := fs.Data.Resize(ctx, id, size); err != nil {
			return ferrors.New("truncate", ferrors.IO, err)
		}
		now := o.Clock.Now()
		updated, err := attrstore.AmendStat(st, attrstore.Amend{Kind: attrstore.SizeSet, Uint: size})
		if err != nil {
			return err
		}
		updated.Mtime = now
		updated.Ctime = now
		if err := fs.Attrs.SetStat(ctx, updated); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetAttrRequest carries the subset of stat fields a setattr call wants to
// change; a nil field is left untouched.
type SetAttrRequest struct {
	Mode *uint32
	Uid  *uint32
	Gid  *uint32
}

// SetAttr applies a SetAttrRequest to ino (spec §4.8 setattr), after
// checking creds have SETATTR.
func (o *Ops) SetAttr(ctx context.Context, fs *registry.FS, ino encoding.Ino, req SetAttrRequest, creds access.Credentials) (*encoding.Stat, error) {
	st, err := fs.Attrs.GetStat(ctx, ino)
	if err != nil {
		return nil, err
	}
	if err := access.Check(ctx, creds, st, access.SetAttr); err != nil {
		return nil, err
	}

	var result *encoding.Stat
	err = withTxn(ctx, fs, func() error {
		cur := st
		var aerr error
		if req.Mode != nil {
			cur, aerr = attrstore.AmendStat(cur, attrstore.Amend{Kind: attrstore.ModeSet, Uint: uint64(*req.Mode)})
			if aerr != nil {
				return aerr
			}
		}
		if req.Uid != nil {
			cur, aerr = attrstore.AmendStat(cur, attrstore.Amend{Kind: attrstore.UidSet, Uint: uint64(*req.Uid)})
			if aerr != nil {
				return aerr
			}
		}
		if req.Gid != nil {
			cur, aerr = attrstore.AmendStat(cur, attrstore.Amend{Kind: attrstore.GidSet, Uint: uint64(*req.Gid)})
			if aerr != nil {
				return aerr
			}
		}
		cur.Ctime = o.Clock.Now()
		if err := fs.Attrs.SetStat(ctx, cur); err != nil {
			return err
		}
		result = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
