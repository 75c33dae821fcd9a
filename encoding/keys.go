// Package encoding defines the on-disk key/value layouts used by the
// metadata core, per spec §4.1. Every record class is keyed by a small
// typed prefix so that ordered-prefix iteration of a directory's dentries
// never picks up a record of another class.
//
// Dynamic (dentry) keys are laid out as:
//
//	{ prefix_bytes: fixed, name_len: u8, name_bytes[name_len], 0x00 }
//
// so that all dentries of a given parent share the fixed-length prefix and
// no other record class can produce that prefix.
package encoding

import (
	"encoding/binary"
	"fmt"
)

// KeyType occupies one byte of every key's fixed prefix.
type KeyType byte

const (
	KeyTypeDirent     KeyType = 1
	KeyTypeParent     KeyType = 2
	KeyTypeStat       KeyType = 3
	KeyTypeSymlink    KeyType = 4
	KeyTypeInodeOID   KeyType = 5
	KeyTypeInoCounter KeyType = 6
)

// Version0 (VERSION_0) is the only key-schema version this implementation emits or
// understands. A version byte is reserved in every fixed prefix so future
// schema revisions can be introduced without colliding with VERSION_0 keys.
const Version0 byte = 0

// Ino is the 64-bit inode number type used throughout the core.
type Ino uint64

// MaxNameLen bounds a dentry name, per spec §3 (Dentry).
const MaxNameLen = 255

// direntPrefixLen is len(KeyType) + len(version) + len(parent ino).
const direntPrefixLen = 1 + 1 + 8
const parentPrefixLen = 1 + 1 + 8 + 8
const statKeyLen = 1 + 1 + 8
const symlinkKeyLen = statKeyLen
const inodeOIDKeyLen = statKeyLen
const inoCounterKeyLen = statKeyLen

// DirentPrefix returns the fixed-length byte prefix shared by every dentry
// key under the given parent inode. Prefix iteration of the KVS index with
// this prefix yields exactly that directory's children and nothing else,
// which is the contract §4.1 requires of the encoding.
func DirentPrefix(parent Ino) []byte {
	buf := make([]byte, direntPrefixLen)
	buf[0] = byte(KeyTypeDirent)
	buf[1] = Version0
	binary.BigEndian.PutUint64(buf[2:], uint64(parent))
	return buf
}

// DirentKey encodes the (parent, name) -> child dentry key. It returns an
// error if name is not 1..MaxNameLen bytes long.
func DirentKey(parent Ino, name string) ([]byte, error) {
	if len(name) == 0 || len(name) > MaxNameLen {
		return nil, fmt.Errorf("encoding: illegal dentry name length %d", len(name))
	}
	prefix := DirentPrefix(parent)
	buf := make([]byte, 0, len(prefix)+1+len(name)+1)
	buf = append(buf, prefix...)
	buf = append(buf, byte(len(name)))
	buf = append(buf, name...)
	buf = append(buf, 0x00)
	return buf, nil
}

// DecodeDirentName extracts the name portion from a dentry key previously
// produced by DirentKey, given it is known to share the supplied prefix.
func DecodeDirentName(key []byte) (name string, err error) {
	if len(key) < direntPrefixLen+2 {
		return "", fmt.Errorf("encoding: dentry key too short")
	}
	body := key[direntPrefixLen:]
	nameLen := int(body[0])
	if len(body) != 1+nameLen+1 {
		return "", fmt.Errorf("encoding: dentry key length mismatch")
	}
	if body[len(body)-1] != 0x00 {
		return "", fmt.Errorf("encoding: dentry key missing terminator")
	}
	return string(body[1 : 1+nameLen]), nil
}

// ParentKey encodes the (child, parent) -> link-count backlink key.
func ParentKey(child, parent Ino) []byte {
	buf := make([]byte, parentPrefixLen)
	buf[0] = byte(KeyTypeParent)
	buf[1] = Version0
	binary.BigEndian.PutUint64(buf[2:10], uint64(child))
	binary.BigEndian.PutUint64(buf[10:18], uint64(parent))
	return buf
}

// ParentPrefix returns the fixed prefix shared by every backlink of child,
// regardless of which parent. Not required by the spec's directory
// iteration contract, but useful for diagnostics / orphan sweeps that want
// to enumerate all parents of a given child.
func ParentPrefix(child Ino) []byte {
	buf := make([]byte, 1+1+8)
	buf[0] = byte(KeyTypeParent)
	buf[1] = Version0
	binary.BigEndian.PutUint64(buf[2:], uint64(child))
	return buf
}

func statLikeKey(t KeyType, ino Ino) []byte {
	buf := make([]byte, statKeyLen)
	buf[0] = byte(t)
	buf[1] = Version0
	binary.BigEndian.PutUint64(buf[2:], uint64(ino))
	return buf
}

// StatKey encodes the (ino) -> stat record key.
func StatKey(ino Ino) []byte { return statLikeKey(KeyTypeStat, ino) }

// SymlinkKey encodes the (ino) -> symlink target key.
func SymlinkKey(ino Ino) []byte { return statLikeKey(KeyTypeSymlink, ino) }

// InodeOIDKey encodes the (ino) -> object id mapping key.
func InodeOIDKey(ino Ino) []byte { return statLikeKey(KeyTypeInodeOID, ino) }

// InoCounterKey encodes the (root_ino) -> next-inode-number counter key.
func InoCounterKey(root Ino) []byte { return statLikeKey(KeyTypeInoCounter, root) }
