// Package registry implements the named-filesystem registry of spec §4.2:
// fs_init/fs_create/fs_delete lifecycle, endpoint (export) bookkeeping, and
// the root/counter bootstrap each new filesystem needs before any ops call
// can run against it. It is the top-level object cmd wires up at process
// start, the way fs.NewFileSystem assembles one fileSystem per mount.
package registry

import (
	"context"
	"fmt"
	"regexp"
	"sync/atomic"

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"

	"github.com/kvsfs/kvsfs-core/attrstore"
	"github.com/kvsfs/kvsfs-core/dstore"
	"github.com/kvsfs/kvsfs-core/encoding"
	"github.com/kvsfs/kvsfs-core/ferrors"
	"github.com/kvsfs/kvsfs-core/filehandle"
	"github.com/kvsfs/kvsfs-core/kvs"
	"github.com/kvsfs/kvsfs-core/kvtree"
)

// fsNamePattern restricts filesystem names to a conservative, URL- and
// path-safe charset: callers that expose names over a management REST API
// (spec §6) should never have to worry about escaping.
var fsNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,127}$`)

// FS is one registered filesystem: its KVS index plus the derived
// kvtree/attrstore views over it, and the shared DSTORE handle for its
// file data. It implements filehandle.Resolver so the filehandle functions
// can load and resolve handles directly against it.
type FS struct {
	Name string
	ID   filehandle.FSID

	Index kvs.Index
	Tree  *kvtree.Tree
	Attrs *attrstore.Store
	Data  dstore.Store

	fid kvs.FID
}

func (fs *FS) GetStat(ctx context.Context, ino encoding.Ino) (*encoding.Stat, error) {
	return fs.Attrs.GetStat(ctx, ino)
}

func (fs *FS) Lookup(ctx context.Context, parent encoding.Ino, name string) (encoding.Ino, error) {
	return fs.Tree.Lookup(ctx, parent, name)
}

// Endpoint is a named export of a filesystem, the unit a management REST
// layer hands out to NFS/FUSE clients (spec §4.2 endpoint_create/delete).
type Endpoint struct {
	Name   string
	FSName string
}

// Registry owns every registered filesystem and endpoint for one process.
//
// Registry's public methods all take and release mu themselves.
type Registry struct {
	mu syncutil.InvariantMutex

	kvsStore kvs.Store
	data     dstore.Store
	clock    timeutil.Clock

	fsByName map[string]*FS
	eps      map[string]*Endpoint

	nextFSID uint64 // atomic
}

// Init constructs a Registry bound to the given KVS and DSTORE backends
// (fs_init). clock is injected the way fs.NewFileSystem takes a
// timeutil.Clock, so tests can control bootstrap timestamps.
func Init(kvsStore kvs.Store, data dstore.Store, clock timeutil.Clock) *Registry {
	r := &Registry{
		kvsStore: kvsStore,
		data:     data,
		clock:    clock,
		fsByName: make(map[string]*FS),
		eps:      make(map[string]*Endpoint),
	}
	r.mu = syncutil.NewInvariantMutex(r.checkInvariants)
	return r
}

// checkInvariants is invoked by mu after Lock and before Unlock when
// syncutil invariant checking is enabled, per the
// jacobsa/syncutil.InvariantMutex contract, and directly by every public
// method right after it takes mu.
func (r *Registry) checkInvariants() {
	if r.fsByName == nil || r.eps == nil {
		panic("registry: Init was never called")
	}
}

// FSCreate provisions a brand-new, empty filesystem named name: it opens a
// fresh KVS index, writes the root directory's stat record at ino 1
// (tree_create_root), and seeds the inode counter at 2.
func (r *Registry) FSCreate(ctx context.Context, name string) (*FS, error) {
	if !fsNamePattern.MatchString(name) {
		return nil, ferrors.New("fs_create", ferrors.Invalid, fmt.Errorf("illegal filesystem name %q", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkInvariants()

	if _, exists := r.fsByName[name]; exists {
		return nil, ferrors.New("fs_create", ferrors.AlreadyExists, fmt.Errorf("filesystem %q already exists", name))
	}

	fid, err := r.kvsStore.IndexCreate(ctx)
	if err != nil {
		return nil, ferrors.New("fs_create", ferrors.IO, err)
	}
	idx, err := r.kvsStore.IndexOpen(ctx, fid)
	if err != nil {
		return nil, ferrors.New("fs_create", ferrors.IO, err)
	}

	attrs := attrstore.New(idx)
	now := r.clock.Now()
	root := &encoding.Stat{
		Ino:   filehandle.RootIno,
		Mode:  encoding.ModeIFDIR | 0777,
		Nlink: 2, // "." and the dentry a parent would hold, per spec §3 invariant 3
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
	if err := attrs.SetStat(ctx, root); err != nil {
		return nil, err
	}
	if err := idx.Set(ctx, encoding.InoCounterKey(filehandle.RootIno), encoding.EncodeUint64(2)); err != nil {
		return nil, ferrors.New("fs_create", ferrors.IO, err)
	}

	fs := &FS{
		Name:  name,
		ID:    filehandle.FSID(atomic.AddUint64(&r.nextFSID, 1)),
		Index: idx,
		Tree:  kvtree.New(idx),
		Attrs: attrs,
		Data:  r.data,
		fid:   fid,
	}
	r.fsByName[name] = fs
	return fs, nil
}

// FSDelete tears down a filesystem's index entirely (tree_delete_root),
// refusing if the root directory still has children (spec §3 invariant 2
// applied at the filesystem-deletion boundary).
func (r *Registry) FSDelete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkInvariants()

	fs, ok := r.fsByName[name]
	if !ok {
		return ferrors.New("fs_delete", ferrors.NotFound, fmt.Errorf("filesystem %q does not exist", name))
	}

	hasChildren, err := fs.Tree.HasChildren(ctx, filehandle.RootIno)
	if err != nil {
		return err
	}
	if hasChildren {
		return ferrors.New("fs_delete", ferrors.NotEmpty, fmt.Errorf("filesystem %q is not empty", name))
	}

	for epName, ep := range r.eps {
		if ep.FSName == name {
			delete(r.eps, epName)
		}
	}

	if err := r.kvsStore.IndexClose(ctx, fs.Index); err != nil {
		return ferrors.New("fs_delete", ferrors.IO, err)
	}
	if err := r.kvsStore.IndexDestroy(ctx, fs.fid); err != nil {
		return ferrors.New("fs_delete", ferrors.IO, err)
	}
	delete(r.fsByName, name)
	return nil
}

// Lookup resolves a filesystem by name (used by fh_getroot's caller and by
// the management layer before mounting/exporting).
func (r *Registry) Lookup(ctx context.Context, name string) (*FS, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkInvariants()

	fs, ok := r.fsByName[name]
	if !ok {
		return nil, ferrors.New("lookup", ferrors.NotFound, fmt.Errorf("filesystem %q does not exist", name))
	}
	return fs, nil
}

// ScanList returns every registered filesystem's name, in no particular
// order, the way fs.fileSystem.inodes is enumerated for diagnostics.
func (r *Registry) ScanList(ctx context.Context) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkInvariants()

	names := make([]string, 0, len(r.fsByName))
	for name := range r.fsByName {
		names = append(names, name)
	}
	return names
}

// EndpointCreate exports fsName under the public name epName.
func (r *Registry) EndpointCreate(ctx context.Context, epName, fsName string) (*Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkInvariants()

	if _, ok := r.fsByName[fsName]; !ok {
		return nil, ferrors.New("endpoint_create", ferrors.NotFound, fmt.Errorf("filesystem %q does not exist", fsName))
	}
	if _, exists := r.eps[epName]; exists {
		return nil, ferrors.New("endpoint_create", ferrors.AlreadyExists, fmt.Errorf("endpoint %q already exists", epName))
	}

	ep := &Endpoint{Name: epName, FSName: fsName}
	r.eps[epName] = ep
	return ep, nil
}

// EndpointDelete withdraws a previously created export.
func (r *Registry) EndpointDelete(ctx context.Context, epName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkInvariants()

	if _, ok := r.eps[epName]; !ok {
		return ferrors.New("endpoint_delete", ferrors.NotFound, fmt.Errorf("endpoint %q does not exist", epName))
	}
	delete(r.eps, epName)
	return nil
}

// ScanEndpoints returns every registered endpoint.
func (r *Registry) ScanEndpoints(ctx context.Context) []Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkInvariants()

	out := make([]Endpoint, 0, len(r.eps))
	for _, ep := range r.eps {
		out = append(out, *ep)
	}
	return out
}
