// fsys/fsys.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

// Package fsys defines the filesystem capability that the tar-packing
// core is given rather than calling os/syscall directly (spec.md §6), plus
// a disk-backed and an in-memory implementation of it.
package fsys

import (
	"time"

	"github.com/beakfs/beak/vpath"
)

// FileType enumerates the kinds of node FileStat.Mode can describe.
type FileType int

const (
	TypeRegular FileType = iota
	TypeDirectory
	TypeSymlink
	TypeCharDevice
	TypeBlockDevice
	TypeFIFO
	TypeSocket
)

// FileStat mirrors the original struct stat fields the core cares about.
type FileStat struct {
	Type        FileType
	Perm        uint32 // permission bits, including sticky/setuid/setgid
	Nlink       uint32
	UID, GID    uint32
	Rdev        uint64
	Size        int64
	Atime, Mtime, Ctime time.Time
}

// Producer streams payload bytes for a file being created: it is called
// repeatedly with increasing offsets and must return the number of bytes
// it wrote into buf, or 0 to signal end of stream.
type Producer func(offset int64, buf []byte) (int, error)

// FS is the capability the packing core consumes for all I/O; see
// spec.md §6.
type FS interface {
	ReadDir(p *vpath.Path) ([]*vpath.Path, error)
	Pread(p *vpath.Path, buf []byte, offset int64) (int, error)
	Stat(p *vpath.Path) (FileStat, error)
	MkTempFile(prefix string, contents []byte) (*vpath.Path, error)
	MkTempDir(prefix string) (*vpath.Path, error)
	MkDir(parent *vpath.Path, name string) (*vpath.Path, error)
	CreateFile(p *vpath.Path, stat FileStat, produce Producer) error
	DeleteFile(p *vpath.Path) error
	Readlink(p *vpath.Path) (string, error)
}
