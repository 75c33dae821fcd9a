package attrstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvsfs/kvsfs-core/encoding"
	"github.com/kvsfs/kvsfs-core/ferrors"
	"github.com/kvsfs/kvsfs-core/kvs/kvstest"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	st := kvstest.NewStore()
	fid, err := st.IndexCreate(ctx)
	require.NoError(t, err)
	idx, err := st.IndexOpen(ctx, fid)
	require.NoError(t, err)
	return New(idx)
}

func TestSetGetDelStat(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	in := &encoding.Stat{Ino: 5, Mode: encoding.ModeIFREG | 0644, Nlink: 1}
	require.NoError(t, s.SetStat(ctx, in))

	got, err := s.GetStat(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, in.Mode, got.Mode)

	require.NoError(t, s.DelStat(ctx, 5))
	_, err = s.GetStat(ctx, 5)
	assert.Equal(t, ferrors.NotFound, ferrors.CodeOf(err))
}

func TestSymlinkRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SetSymlink(ctx, 7, "/a/b/c"))
	target, err := s.GetSymlink(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "/a/b/c", target)
}

func TestObjectIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	var id encoding.ObjectID
	id[0] = 0xab
	require.NoError(t, s.SetObjectID(ctx, 9, id))

	got, err := s.GetObjectID(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestAmendStatModePreservesFileType(t *testing.T) {
	st := &encoding.Stat{Mode: encoding.ModeIFDIR | 0755}
	out, err := AmendStat(st, Amend{Kind: ModeSet, Uint: 0700})
	require.NoError(t, err)
	assert.Equal(t, uint32(encoding.ModeIFDIR|0700), out.Mode)
}

func TestAmendStatIncrDecrLink(t *testing.T) {
	st := &encoding.Stat{Nlink: 1}
	out, err := AmendStat(st, Amend{Kind: IncrLink})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), out.Nlink)

	out, err = AmendStat(out, Amend{Kind: DecrLink})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), out.Nlink)
}

func TestAmendStatDecrLinkUnderflowRejected(t *testing.T) {
	st := &encoding.Stat{Nlink: 0}
	_, err := AmendStat(st, Amend{Kind: DecrLink})
	assert.Equal(t, ferrors.Invalid, ferrors.CodeOf(err))
}

func TestAmendStatIncrLinkOverflowRejected(t *testing.T) {
	st := &encoding.Stat{Nlink: encoding.MaxLink}
	_, err := AmendStat(st, Amend{Kind: IncrLink})
	assert.Equal(t, ferrors.Invalid, ferrors.CodeOf(err))
}

func TestAmendStatSizeRecomputesBlocks(t *testing.T) {
	st := &encoding.Stat{Size: 0, Blocks: 0}
	out, err := AmendStat(st, Amend{Kind: SizeSet, Uint: 513})
	require.NoError(t, err)
	assert.Equal(t, uint64(513), out.Size)
	assert.Equal(t, uint64(2), out.Blocks)
}

func TestUpdateStatPersists(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.Now()

	require.NoError(t, s.SetStat(ctx, &encoding.Stat{Ino: 1, Mode: encoding.ModeIFREG | 0644}))
	_, err := s.UpdateStat(ctx, 1, Amend{Kind: MtimeSet, Time: now})
	require.NoError(t, err)

	got, err := s.GetStat(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.Mtime.Equal(now))
}
