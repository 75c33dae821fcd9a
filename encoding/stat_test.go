package encoding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 123_000).UTC()
	s := &Stat{
		Ino:    99,
		Mode:   ModeIFDIR | 0755,
		Uid:    1000,
		Gid:    1000,
		Nlink:  2,
		Size:   4096,
		Blocks: 8,
		Atime:  now,
		Mtime:  now,
		Ctime:  now,
	}

	buf := EncodeStat(s)
	got, err := DecodeStat(buf)
	require.NoError(t, err)

	assert.Equal(t, s.Ino, got.Ino)
	assert.Equal(t, s.Mode, got.Mode)
	assert.Equal(t, s.Nlink, got.Nlink)
	assert.Equal(t, s.Size, got.Size)
	assert.True(t, s.Atime.Equal(got.Atime))
}

func TestDecodeStatRejectsCorruptLength(t *testing.T) {
	_, err := DecodeStat([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestRecomputeBlocks(t *testing.T) {
	s := &Stat{Size: 0}
	s.RecomputeBlocks()
	assert.Equal(t, uint64(0), s.Blocks)

	s.Size = 1
	s.RecomputeBlocks()
	assert.Equal(t, uint64(1), s.Blocks)

	s.Size = 512
	s.RecomputeBlocks()
	assert.Equal(t, uint64(1), s.Blocks)

	s.Size = 513
	s.RecomputeBlocks()
	assert.Equal(t, uint64(2), s.Blocks)
}

func TestFileType(t *testing.T) {
	dir := &Stat{Mode: ModeIFDIR | 0777}
	assert.Equal(t, FileTypeDir, dir.FileType())

	lnk := &Stat{Mode: ModeIFLNK | 0777}
	assert.Equal(t, FileTypeSymlink, lnk.FileType())

	reg := &Stat{Mode: ModeIFREG | 0644}
	assert.Equal(t, FileTypeRegular, reg.FileType())
}
