// Package access implements the POSIX owner/group/other permission check
// of spec §4.6: given a caller's credentials, an inode's stat record, and a
// requested bitmap of operations, decide whether the caller may proceed.
package access

import (
	"context"

	"github.com/kvsfs/kvsfs-core/encoding"
	"github.com/kvsfs/kvsfs-core/ferrors"
)

// Mode is a bitmap of the operations a caller may request against an
// inode. The three "logical" permissions (Read/Write/Exec) follow the
// POSIX r/w/x bits directly; the other four are domain-specific
// refinements spec §4.6 layers over them, so that callers like ops.Rename
// can ask a single, precise question instead of re-deriving r/w/x
// semantics themselves.
type Mode uint32

const (
	Read Mode = 1 << iota
	Write
	Exec
	SetAttr
	ListDir
	DeleteEntity
	CreateEntity
)

// Credentials identify a calling principal, the way FUSE's OpContext
// carries Uid/Gid for every call.
type Credentials struct {
	Uid uint32
	Gid uint32
}

// IsRoot reports whether creds bypass all permission checks, per POSIX
// superuser semantics.
func (c Credentials) IsRoot() bool {
	return c.Uid == 0
}

// Check evaluates whether creds may perform the operations in want against
// an object with the given stat record. SETATTR requires WRITE on the
// object itself; DELETE_ENTITY and CREATE_ENTITY require WRITE and EXEC
// on the containing directory; LIST_DIR requires READ and EXEC on the
// directory. Root always passes.
func Check(ctx context.Context, creds Credentials, st *encoding.Stat, want Mode) error {
	if creds.IsRoot() {
		return nil
	}

	have := classBits(creds, st)

	required := Mode(0)
	if want&Read != 0 || want&ListDir != 0 {
		required |= Read
	}
	if want&Write != 0 || want&SetAttr != 0 || want&DeleteEntity != 0 || want&CreateEntity != 0 {
		required |= Write
	}
	if want&Exec != 0 || want&ListDir != 0 || want&DeleteEntity != 0 || want&CreateEntity != 0 {
		required |= Exec
	}

	if have&required != required {
		return ferrors.New("access.Check", ferrors.PermissionDenied, errDenied)
	}
	return nil
}

var errDenied = permissionError{}

type permissionError struct{}

func (permissionError) Error() string { return "access: permission denied" }

// classBits returns the r/w/x bits applicable to creds against st, chosen
// from the owner, group, or other triplet exactly as POSIX access(2) does:
// the first matching class wins, even if a looser class would otherwise
// grant more.
func classBits(creds Credentials, st *encoding.Stat) Mode {
	var shift uint
	switch {
	case creds.Uid == st.Uid:
		shift = 6
	case creds.Gid == st.Gid:
		shift = 3
	default:
		shift = 0
	}
	bits := (st.Mode >> shift) & 0007

	var m Mode
	if bits&0004 != 0 {
		m |= Read
	}
	if bits&0002 != 0 {
		m |= Write
	}
	if bits&0001 != 0 {
		m |= Exec
	}
	return m
}
