// tarpack/entry.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

// Package tarpack implements the tar-packing core: TarEntry, TarFile
// (splitting, hashing, and lazily-served byte ranges), grounded on
// _examples/original_source/src/tarfile.cc.
package tarpack

import (
	"crypto/sha256"
	"errors"
	"io"

	"github.com/beakfs/beak/fsys"
	"github.com/beakfs/beak/tarcodec"
	"github.com/beakfs/beak/vpath"
)

// ErrShortRead is returned when the underlying filesystem capability
// returns fewer bytes than a copy() call demands and cannot continue.
var ErrShortRead = errors.New("tarpack: short read")

// TarEntry is one source file/dir/symlink plus its framing inside some
// TarFile. It becomes immutable once registered with an archive.
type TarEntry struct {
	Path   *vpath.Path
	Stat   fsys.FileStat
	Target string // symlink target, if Stat.Type == fsys.TypeSymlink

	archive *TarFile
	offset  int64

	header     []byte
	headerOnce bool
	hash       [32]byte
	hashOnce   bool

	fs fsys.FS
}

// NewEntry constructs a TarEntry for p; fs is used later to serve its
// payload bytes on demand.
func NewEntry(p *vpath.Path, stat fsys.FileStat, target string, fs fsys.FS) *TarEntry {
	return &TarEntry{Path: p, Stat: stat, Target: target, fs: fs}
}

// HeaderSize returns the number of header bytes (including any GNU
// long-name continuation blocks) this entry requires.
func (e *TarEntry) HeaderSize() int64 {
	h := e.toHeader()
	return int64((1 + tarcodec.NumLongPathBlocks(h)) * tarcodec.BlockSize)
}

// BlockedSize returns HeaderSize() plus the entry's payload rounded up to
// the next 512-byte boundary.
func (e *TarEntry) BlockedSize() int64 {
	size := e.HeaderSize()
	if e.Stat.Type == fsys.TypeRegular {
		size += tarcodec.PadToBlock(e.Stat.Size)
	}
	return size
}

func (e *TarEntry) toHeader() tarcodec.Header {
	var typ tarcodec.TypeFlag
	switch e.Stat.Type {
	case fsys.TypeDirectory:
		typ = tarcodec.TypeDir
	case fsys.TypeSymlink:
		typ = tarcodec.TypeSymlink
	case fsys.TypeCharDevice:
		typ = tarcodec.TypeChar
	case fsys.TypeBlockDevice:
		typ = tarcodec.TypeBlock
	case fsys.TypeFIFO:
		typ = tarcodec.TypeFifo
	default:
		typ = tarcodec.TypeRegular
	}

	size := int64(0)
	if e.Stat.Type == fsys.TypeRegular {
		size = e.Stat.Size
	}

	return tarcodec.Header{
		Name:     e.Path.Str(),
		Mode:     int64(e.Stat.Perm),
		UID:      int64(e.Stat.UID),
		GID:      int64(e.Stat.GID),
		Size:     size,
		ModTime:  e.Stat.Mtime.Unix(),
		Typeflag: typ,
		Linkname: e.Target,
	}
}

func (e *TarEntry) headerBytes() []byte {
	if !e.headerOnce {
		b, err := tarcodec.Encode(e.toHeader())
		if err != nil {
			// Encode fails only with ErrHeaderTooLong. This lazily cached
			// accessor has no error return, so that failure panics;
			// HeaderSize() does not detect it beforehand.
			panic(err)
		}
		e.header = b
		e.headerOnce = true
	}
	return e.header
}

// UpdateMtime keeps the max of *out and the entry's own mtime.
func (e *TarEntry) UpdateMtime(out *int64) {
	t := e.Stat.Mtime.Unix()
	if t > *out {
		*out = t
	}
}

// RegisterTarFile binds the entry to its owning archive at the given
// offset, after which the entry is immutable.
func (e *TarEntry) RegisterTarFile(t *TarFile, offset int64) {
	e.archive = t
	e.offset = offset
}

// Archive returns the owning TarFile, or nil if unregistered.
func (e *TarEntry) Archive() *TarFile {
	return e.archive
}

// Offset returns the entry's byte offset within its owning archive.
func (e *TarEntry) Offset() int64 {
	return e.offset
}

// Hash returns the SHA-256 of the entry's header bytes followed by its
// payload, computed lazily and cached.
func (e *TarEntry) Hash() ([32]byte, error) {
	if e.hashOnce {
		return e.hash, nil
	}

	h := sha256.New()
	h.Write(e.headerBytes())

	if e.Stat.Type == fsys.TypeRegular && e.Stat.Size > 0 {
		buf := make([]byte, 64*1024)
		var off int64
		for off < e.Stat.Size {
			n, err := e.fs.Pread(e.Path, buf, off)
			if err != nil && err != io.EOF {
				return [32]byte{}, err
			}
			if n == 0 {
				return [32]byte{}, ErrShortRead
			}
			h.Write(buf[:n])
			off += int64(n)
		}
	}

	copy(e.hash[:], h.Sum(nil))
	e.hashOnce = true
	return e.hash, nil
}

// Copy serves up to len(buf) bytes of the entry starting at the given
// offset within the entry's own framed range (header bytes, then
// payload, then zero padding up to BlockedSize()). It returns the number
// of bytes produced; 0 means offset is at or past BlockedSize().
func (e *TarEntry) Copy(buf []byte, offset int64) (int, error) {
	size := e.BlockedSize()
	if offset >= size {
		return 0, nil
	}

	headerSize := e.HeaderSize()
	if offset < headerSize {
		hb := e.headerBytes()
		n := copy(buf, hb[offset:])
		return e.continueCopy(buf, offset, n)
	}

	payloadOffset := offset - headerSize
	payloadSize := int64(0)
	if e.Stat.Type == fsys.TypeRegular {
		payloadSize = e.Stat.Size
	}

	if payloadOffset < payloadSize {
		want := len(buf)
		if int64(want) > payloadSize-payloadOffset {
			want = int(payloadSize - payloadOffset)
		}
		n, err := e.fs.Pread(e.Path, buf[:want], payloadOffset)
		if err != nil {
			return 0, err
		}
		return e.continueCopy(buf, offset, n)
	}

	// Inside the zero-padding tail.
	padLen := size - offset
	n := len(buf)
	if int64(n) > padLen {
		n = int(padLen)
	}
	for i := 0; i < n; i++ {
		buf[i] = 0
	}
	return n, nil
}

// continueCopy finishes a Copy that produced n bytes at offset, going on
// into the entry's next region while buf has room.
func (e *TarEntry) continueCopy(buf []byte, offset int64, n int) (int, error) {
	if n == 0 || n == len(buf) {
		return n, nil
	}
	more, err := e.Copy(buf[n:], offset+int64(n))
	return n + more, err
}
