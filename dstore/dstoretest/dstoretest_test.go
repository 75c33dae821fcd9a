package dstoretest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWriteRead(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id, err := s.NewObjectID(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, id))

	n, err := s.PWrite(ctx, id, 0, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = s.PRead(ctx, id, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
}

func TestWriteCreatesHole(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id, _ := s.NewObjectID(ctx)
	require.NoError(t, s.Create(ctx, id))

	_, err := s.PWrite(ctx, id, 10, []byte("x"))
	require.NoError(t, err)

	size, err := s.Size(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), size)

	buf := make([]byte, 10)
	n, err := s.PRead(ctx, id, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	for _, b := range buf {
		assert.Equal(t, byte(0), b)
	}
}

func TestReadPastEndIsShort(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id, _ := s.NewObjectID(ctx)
	require.NoError(t, s.Create(ctx, id))
	_, err := s.PWrite(ctx, id, 0, []byte("ab"))
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := s.PRead(ctx, id, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestResizeGrowAndShrink(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id, _ := s.NewObjectID(ctx)
	require.NoError(t, s.Create(ctx, id))

	require.NoError(t, s.Resize(ctx, id, 100))
	size, err := s.Size(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), size)

	require.NoError(t, s.Resize(ctx, id, 1))
	size, err = s.Size(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), size)
}

func TestDeleteThenOpsFail(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	id, _ := s.NewObjectID(ctx)
	require.NoError(t, s.Create(ctx, id))
	require.NoError(t, s.Delete(ctx, id))

	_, err := s.Size(ctx, id)
	assert.Error(t, err)
}
