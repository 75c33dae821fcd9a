package encoding

import (
	"encoding/binary"
	"fmt"
	"time"
)

// FileType enumerates the POSIX object types this core supports (spec §3
// Non-goals exclude device/fifo/socket nodes; only regular files,
// directories, and symlinks are modeled).
type FileType int

const (
	FileTypeRegular FileType = iota
	FileTypeDir
	FileTypeSymlink
)

// Mode bit layout, matching POSIX st_mode: low 12 bits are permission +
// setuid/setgid/sticky, the type occupies the S_IFMT mask above that.
const (
	ModePerm  = 0007777
	ModeIFMT  = 0170000
	ModeIFDIR = 0040000
	ModeIFREG = 0100000
	ModeIFLNK = 0120000
)

// MaxLink is the ceiling on stat.Nlink; attach at this value fails INVALID
// per spec §3 invariant 3.
const MaxLink = ^uint32(0)

// Stat is the fixed-size POSIX stat record (spec §3).
type Stat struct {
	Ino    Ino
	Mode   uint32
	Uid    uint32
	Gid    uint32
	Nlink  uint32
	Size   uint64
	Blocks uint64
	Atime  time.Time
	Mtime  time.Time
	Ctime  time.Time
}

// FileType returns the type encoded in Mode's S_IFMT bits.
func (s *Stat) FileType() FileType {
	switch s.Mode & ModeIFMT {
	case ModeIFDIR:
		return FileTypeDir
	case ModeIFLNK:
		return FileTypeSymlink
	default:
		return FileTypeRegular
	}
}

// RecomputeBlocks sets Blocks = ceil(Size / 512), per the DSTORE adapter
// contract in spec §4.3.
func (s *Stat) RecomputeBlocks() {
	s.Blocks = (s.Size + 511) / 512
}

const statRecordLen = 8 + 4 + 4 + 4 + 4 + 8 + 8 + 8 + 8 + 8

// EncodeStat serializes a Stat to its fixed-width wire form.
func EncodeStat(s *Stat) []byte {
	buf := make([]byte, statRecordLen)
	binary.BigEndian.PutUint64(buf[0:8], uint64(s.Ino))
	binary.BigEndian.PutUint32(buf[8:12], s.Mode)
	binary.BigEndian.PutUint32(buf[12:16], s.Uid)
	binary.BigEndian.PutUint32(buf[16:20], s.Gid)
	binary.BigEndian.PutUint32(buf[20:24], s.Nlink)
	binary.BigEndian.PutUint64(buf[24:32], s.Size)
	binary.BigEndian.PutUint64(buf[32:40], s.Blocks)
	binary.BigEndian.PutUint64(buf[40:48], uint64(s.Atime.UnixNano()))
	binary.BigEndian.PutUint64(buf[48:56], uint64(s.Mtime.UnixNano()))
	binary.BigEndian.PutUint64(buf[56:64], uint64(s.Ctime.UnixNano()))
	return buf
}

// DecodeStat parses a Stat from its fixed-width wire form. A buffer of any
// other length indicates a corrupted store; the spec (§7, Fatal conditions)
// requires this to be surfaced rather than silently tolerated.
func DecodeStat(buf []byte) (*Stat, error) {
	if len(buf) != statRecordLen {
		return nil, fmt.Errorf("encoding: corrupt stat record: got %d bytes, want %d", len(buf), statRecordLen)
	}
	s := &Stat{
		Ino:    Ino(binary.BigEndian.Uint64(buf[0:8])),
		Mode:   binary.BigEndian.Uint32(buf[8:12]),
		Uid:    binary.BigEndian.Uint32(buf[12:16]),
		Gid:    binary.BigEndian.Uint32(buf[16:20]),
		Nlink:  binary.BigEndian.Uint32(buf[20:24]),
		Size:   binary.BigEndian.Uint64(buf[24:32]),
		Blocks: binary.BigEndian.Uint64(buf[32:40]),
		Atime:  time.Unix(0, int64(binary.BigEndian.Uint64(buf[40:48]))).UTC(),
		Mtime:  time.Unix(0, int64(binary.BigEndian.Uint64(buf[48:56]))).UTC(),
		Ctime:  time.Unix(0, int64(binary.BigEndian.Uint64(buf[56:64]))).UTC(),
	}
	return s, nil
}

// EncodeUint64 / DecodeUint64 encode the link-count and inode-counter
// values, which are bare u64s per spec §4.1.
func EncodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func DecodeUint64(buf []byte) (uint64, error) {
	if len(buf) != 8 {
		return 0, fmt.Errorf("encoding: corrupt u64 record: got %d bytes, want 8", len(buf))
	}
	return binary.BigEndian.Uint64(buf), nil
}

// ObjectID is the 128-bit opaque DSTORE key (spec §3).
type ObjectID [16]byte

func EncodeObjectID(id ObjectID) []byte {
	buf := make([]byte, 16)
	copy(buf, id[:])
	return buf
}

func DecodeObjectID(buf []byte) (ObjectID, error) {
	var id ObjectID
	if len(buf) != 16 {
		return id, fmt.Errorf("encoding: corrupt object id: got %d bytes, want 16", len(buf))
	}
	copy(id[:], buf)
	return id, nil
}
