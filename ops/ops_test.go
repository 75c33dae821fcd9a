package ops

import (
	"context"
	"testing"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvsfs/kvsfs-core/access"
	"github.com/kvsfs/kvsfs-core/dstore/dstoretest"
	"github.com/kvsfs/kvsfs-core/encoding"
	"github.com/kvsfs/kvsfs-core/ferrors"
	"github.com/kvsfs/kvsfs-core/filehandle"
	"github.com/kvsfs/kvsfs-core/kvs/kvstest"
	"github.com/kvsfs/kvsfs-core/kvtree"
	"github.com/kvsfs/kvsfs-core/registry"
)

var owner = access.Credentials{Uid: 1000, Gid: 1000}

func newFixture(t *testing.T) (*Ops, *registry.FS) {
	t.Helper()
	ctx := context.Background()
	clock := timeutil.NewSimulatedClock(time.Unix(1_700_000_000, 0))
	reg := registry.Init(kvstest.NewStore(), dstoretest.NewStore(), clock)
	fs, err := reg.FSCreate(ctx, "tank")
	require.NoError(t, err)
	return New(clock), fs
}

func TestCreatThenLookup(t *testing.T) {
	ctx := context.Background()
	o, fs := newFixture(t)

	st, err := o.Creat(ctx, fs, filehandle.RootIno, "a.txt", 0644, owner)
	require.NoError(t, err)
	assert.Equal(t, encoding.FileTypeRegular, st.FileType())

	got, err := o.Lookup(ctx, fs, filehandle.RootIno, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, st.Ino, got.Ino)
}

func TestMkdirCreatesEmptyDir(t *testing.T) {
	ctx := context.Background()
	o, fs := newFixture(t)

	dir, err := o.Mkdir(ctx, fs, filehandle.RootIno, "sub", 0755, owner)
	require.NoError(t, err)
	assert.Equal(t, encoding.FileTypeDir, dir.FileType())
	assert.Equal(t, uint32(2), dir.Nlink)
}

func TestSymlinkAndReadlink(t *testing.T) {
	ctx := context.Background()
	o, fs := newFixture(t)

	st, err := o.Symlink(ctx, fs, filehandle.RootIno, "link", "/target", owner)
	require.NoError(t, err)

	target, err := o.Readlink(ctx, fs, st.Ino)
	require.NoError(t, err)
	assert.Equal(t, "/target", target)
}

func TestWriteThenRead(t *testing.T) {
	ctx := context.Background()
	o, fs := newFixture(t)

	st, err := o.Creat(ctx, fs, filehandle.RootIno, "f", 0644, owner)
	require.NoError(t, err)

	n, err := o.Write(ctx, fs, st.Ino, 0, []byte("hello world"), owner)
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	buf := make([]byte, 11)
	n, err = o.Read(ctx, fs, st.Ino, 0, buf, owner)
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, "hello world", string(buf))

	got, err := o.GetAttr(ctx, fs, st.Ino)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), got.Size)
}

func TestTruncateShrinksSize(t *testing.T) {
	ctx := context.Background()
	o, fs := newFixture(t)

	st, err := o.Creat(ctx, fs, filehandle.RootIno, "f", 0644, owner)
	require.NoError(t, err)
	_, err = o.Write(ctx, fs, st.Ino, 0, []byte("hello world"), owner)
	require.NoError(t, err)

	got, err := o.Truncate(ctx, fs, st.Ino, 5, owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.Size)
}

func TestUnlinkDestroysOrphanedFile(t *testing.T) {
	ctx := context.Background()
	o, fs := newFixture(t)

	st, err := o.Creat(ctx, fs, filehandle.RootIno, "f", 0644, owner)
	require.NoError(t, err)

	require.NoError(t, o.Unlink(ctx, fs, filehandle.RootIno, "f", owner))

	_, err = o.GetAttr(ctx, fs, st.Ino)
	assert.Equal(t, ferrors.NotFound, ferrors.CodeOf(err))

	_, err = o.Lookup(ctx, fs, filehandle.RootIno, "f")
	assert.Equal(t, ferrors.NotFound, ferrors.CodeOf(err))
}

func TestUnlinkRejectsDirectory(t *testing.T) {
	ctx := context.Background()
	o, fs := newFixture(t)

	_, err := o.Mkdir(ctx, fs, filehandle.RootIno, "d", 0755, owner)
	require.NoError(t, err)

	err = o.Unlink(ctx, fs, filehandle.RootIno, "d", owner)
	assert.Equal(t, ferrors.Invalid, ferrors.CodeOf(err))
}

func TestLinkIncrementsNlinkAndSurvivesOneUnlink(t *testing.T) {
	ctx := context.Background()
	o, fs := newFixture(t)

	st, err := o.Creat(ctx, fs, filehandle.RootIno, "f", 0644, owner)
	require.NoError(t, err)

	linked, err := o.Link(ctx, fs, filehandle.RootIno, "g", st.Ino, owner)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), linked.Nlink)

	require.NoError(t, o.Unlink(ctx, fs, filehandle.RootIno, "f", owner))

	got, err := o.GetAttr(ctx, fs, st.Ino)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got.Nlink)
}

func TestLinkRejectsDirectory(t *testing.T) {
	ctx := context.Background()
	o, fs := newFixture(t)

	dir, err := o.Mkdir(ctx, fs, filehandle.RootIno, "d", 0755, owner)
	require.NoError(t, err)

	_, err = o.Link(ctx, fs, filehandle.RootIno, "d2", dir.Ino, owner)
	assert.Equal(t, ferrors.Invalid, ferrors.CodeOf(err))
}

func TestRmdirRejectsNonEmpty(t *testing.T) {
	ctx := context.Background()
	o, fs := newFixture(t)

	dir, err := o.Mkdir(ctx, fs, filehandle.RootIno, "d", 0755, owner)
	require.NoError(t, err)
	_, err = o.Creat(ctx, fs, dir.Ino, "f", 0644, owner)
	require.NoError(t, err)

	err = o.Rmdir(ctx, fs, filehandle.RootIno, "d", owner)
	assert.Equal(t, ferrors.NotEmpty, ferrors.CodeOf(err))
}

func TestRmdirRemovesEmptyDir(t *testing.T) {
	ctx := context.Background()
	o, fs := newFixture(t)

	_, err := o.Mkdir(ctx, fs, filehandle.RootIno, "d", 0755, owner)
	require.NoError(t, err)
	require.NoError(t, o.Rmdir(ctx, fs, filehandle.RootIno, "d", owner))

	_, err = o.Lookup(ctx, fs, filehandle.RootIno, "d")
	assert.Equal(t, ferrors.NotFound, ferrors.CodeOf(err))
}

func TestRenameMovesBetweenDirectories(t *testing.T) {
	ctx := context.Background()
	o, fs := newFixture(t)

	dir1, err := o.Mkdir(ctx, fs, filehandle.RootIno, "d1", 0755, owner)
	require.NoError(t, err)
	dir2, err := o.Mkdir(ctx, fs, filehandle.RootIno, "d2", 0755, owner)
	require.NoError(t, err)
	f, err := o.Creat(ctx, fs, dir1.Ino, "f", 0644, owner)
	require.NoError(t, err)

	require.NoError(t, o.Rename(ctx, fs, dir1.Ino, "f", dir2.Ino, "g", owner))

	_, err = o.Lookup(ctx, fs, dir1.Ino, "f")
	assert.Equal(t, ferrors.NotFound, ferrors.CodeOf(err))

	got, err := o.Lookup(ctx, fs, dir2.Ino, "g")
	require.NoError(t, err)
	assert.Equal(t, f.Ino, got.Ino)
}

func TestRenameOverwritesNonDirectoryVictim(t *testing.T) {
	ctx := context.Background()
	o, fs := newFixture(t)

	a, err := o.Creat(ctx, fs, filehandle.RootIno, "a", 0644, owner)
	require.NoError(t, err)
	b, err := o.Creat(ctx, fs, filehandle.RootIno, "b", 0644, owner)
	require.NoError(t, err)

	require.NoError(t, o.Rename(ctx, fs, filehandle.RootIno, "a", filehandle.RootIno, "b", owner))

	got, err := o.Lookup(ctx, fs, filehandle.RootIno, "b")
	require.NoError(t, err)
	assert.Equal(t, a.Ino, got.Ino)

	_, err = o.GetAttr(ctx, fs, b.Ino)
	assert.Equal(t, ferrors.NotFound, ferrors.CodeOf(err))
}

func TestRenameOverNonEmptyDirectoryRejected(t *testing.T) {
	ctx := context.Background()
	o, fs := newFixture(t)

	src, err := o.Mkdir(ctx, fs, filehandle.RootIno, "src", 0755, owner)
	require.NoError(t, err)
	dst, err := o.Mkdir(ctx, fs, filehandle.RootIno, "dst", 0755, owner)
	require.NoError(t, err)
	_, err = o.Creat(ctx, fs, dst.Ino, "inside", 0644, owner)
	require.NoError(t, err)

	err = o.Rename(ctx, fs, filehandle.RootIno, "src", filehandle.RootIno, "dst", owner)
	assert.Equal(t, ferrors.NotEmpty, ferrors.CodeOf(err))
}

func TestReaddirListsAllChildren(t *testing.T) {
	ctx := context.Background()
	o, fs := newFixture(t)

	_, err := o.Creat(ctx, fs, filehandle.RootIno, "a", 0644, owner)
	require.NoError(t, err)
	_, err = o.Mkdir(ctx, fs, filehandle.RootIno, "b", 0755, owner)
	require.NoError(t, err)

	var names []string
	err = o.Readdir(ctx, fs, filehandle.RootIno, owner, func(d kvtree.Dirent) error {
		names = append(names, d.Name)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestSetAttrChangesModePreservingType(t *testing.T) {
	ctx := context.Background()
	o, fs := newFixture(t)

	st, err := o.Creat(ctx, fs, filehandle.RootIno, "f", 0644, owner)
	require.NoError(t, err)

	newMode := uint32(0600)
	got, err := o.SetAttr(ctx, fs, st.Ino, SetAttrRequest{Mode: &newMode}, owner)
	require.NoError(t, err)
	assert.Equal(t, uint32(encoding.ModeIFREG|0600), got.Mode)
}

func TestAccessDeniedForStranger(t *testing.T) {
	ctx := context.Background()
	o, fs := newFixture(t)

	st, err := o.Creat(ctx, fs, filehandle.RootIno, "f", 0600, owner)
	require.NoError(t, err)

	stranger := access.Credentials{Uid: 2000, Gid: 2000}
	err = o.Access(ctx, fs, st.Ino, stranger, access.Read)
	assert.Equal(t, ferrors.PermissionDenied, ferrors.CodeOf(err))
}
