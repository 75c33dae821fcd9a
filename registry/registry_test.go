package registry

import (
	"context"
	"testing"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvsfs/kvsfs-core/dstore/dstoretest"
	"github.com/kvsfs/kvsfs-core/ferrors"
	"github.com/kvsfs/kvsfs-core/filehandle"
	"github.com/kvsfs/kvsfs-core/kvs/kvstest"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	clock := timeutil.NewSimulatedClock(time.Unix(1_700_000_000, 0))
	return Init(kvstest.NewStore(), dstoretest.NewStore(), clock)
}

func TestFSCreateBootstrapsRoot(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	fs, err := r.FSCreate(ctx, "tank")
	require.NoError(t, err)

	st, err := fs.GetStat(ctx, filehandle.RootIno)
	require.NoError(t, err)
	assert.Equal(t, uint32(0777), st.Mode&0777)
}

func TestFSCreateDuplicateNameRejected(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	_, err := r.FSCreate(ctx, "tank")
	require.NoError(t, err)

	_, err = r.FSCreate(ctx, "tank")
	assert.Equal(t, ferrors.AlreadyExists, ferrors.CodeOf(err))
}

func TestFSCreateRejectsIllegalName(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	_, err := r.FSCreate(ctx, "")
	assert.Equal(t, ferrors.Invalid, ferrors.CodeOf(err))
}

func TestFSDeleteRemovesFromRegistry(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	_, err := r.FSCreate(ctx, "tank")
	require.NoError(t, err)
	require.NoError(t, r.FSDelete(ctx, "tank"))

	_, err = r.Lookup(ctx, "tank")
	assert.Equal(t, ferrors.NotFound, ferrors.CodeOf(err))
}

func TestFSDeleteNonexistentRejected(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	err := r.FSDelete(ctx, "nope")
	assert.Equal(t, ferrors.NotFound, ferrors.CodeOf(err))
}

func TestFSDeleteRejectsNonEmptyRoot(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	fs, err := r.FSCreate(ctx, "tank")
	require.NoError(t, err)
	require.NoError(t, fs.Tree.Attach(ctx, filehandle.RootIno, "child", 2))

	err = r.FSDelete(ctx, "tank")
	assert.Equal(t, ferrors.NotEmpty, ferrors.CodeOf(err))
}

func TestScanListReturnsAllNames(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	_, err := r.FSCreate(ctx, "a")
	require.NoError(t, err)
	_, err = r.FSCreate(ctx, "b")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "b"}, r.ScanList(ctx))
}

func TestEndpointCreateDeleteLifecycle(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	_, err := r.FSCreate(ctx, "tank")
	require.NoError(t, err)

	_, err = r.EndpointCreate(ctx, "export1", "tank")
	require.NoError(t, err)

	_, err = r.EndpointCreate(ctx, "export1", "tank")
	assert.Equal(t, ferrors.AlreadyExists, ferrors.CodeOf(err))

	eps := r.ScanEndpoints(ctx)
	require.Len(t, eps, 1)
	assert.Equal(t, "tank", eps[0].FSName)

	require.NoError(t, r.EndpointDelete(ctx, "export1"))
	assert.Empty(t, r.ScanEndpoints(ctx))
}

func TestEndpointCreateRejectsUnknownFS(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	_, err := r.EndpointCreate(ctx, "export1", "nope")
	assert.Equal(t, ferrors.NotFound, ferrors.CodeOf(err))
}

func TestFSDeleteRemovesItsEndpoints(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)

	_, err := r.FSCreate(ctx, "tank")
	require.NoError(t, err)
	_, err = r.EndpointCreate(ctx, "export1", "tank")
	require.NoError(t, err)

	require.NoError(t, r.FSDelete(ctx, "tank"))
	assert.Empty(t, r.ScanEndpoints(ctx))
}
