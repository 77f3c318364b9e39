// tarpack/tarfile.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package tarpack

import (
	"crypto/sha256"
	"errors"
	"sort"

	"github.com/beakfs/beak/tarcodec"
)

// ErrSizeUnderflow is returned by FixSize when an archive must be split
// and the split size is not larger than the multi-volume header, which
// leaves parts after the first no room for payload.
var ErrSizeUnderflow = errors.New("tarpack: size smaller than multi-volume header")

// HeaderStyle selects whether split parts after the first get a
// multi-volume continuation header.
type HeaderStyle int

const (
	HeaderStyleNone HeaderStyle = iota
	HeaderStyleMultiVolume
)

// TarFile is an ordered collection of TarEntry, with splitting, hashing,
// and lazy random-access serving. See spec.md §4.E.
type TarFile struct {
	entries []*TarEntry // sorted by offset, matches offsets
	offsets []int64

	currentOffset int64
	size          int64
	mtime         int64

	numParts, partSize, lastPartSize, headerSize int64

	hash     [32]byte
	hashOnce bool

	// Name is assigned once the filename codec has produced one; it's
	// opaque to TarFile itself.
	Name string
}

// NewTarFile returns an empty, building-phase archive.
func NewTarFile() *TarFile {
	return &TarFile{}
}

// AddEntryLast appends e to the end of the archive (amortised O(1)).
func (t *TarFile) AddEntryLast(e *TarEntry) {
	e.RegisterTarFile(t, t.currentOffset)
	t.entries = append(t.entries, e)
	t.offsets = append(t.offsets, t.currentOffset)
	t.currentOffset += e.BlockedSize()
	e.UpdateMtime(&t.mtime)
}

// AddEntryFirst prepends e (used to place a directory header before its
// contents); every already-registered entry is re-based by e's size.
// O(k) in the number of existing entries.
func (t *TarFile) AddEntryFirst(e *TarEntry) {
	shift := e.BlockedSize()
	for _, other := range t.entries {
		other.RegisterTarFile(t, other.Offset()+shift)
	}
	for i := range t.offsets {
		t.offsets[i] += shift
	}

	e.RegisterTarFile(t, 0)
	t.entries = append([]*TarEntry{e}, t.entries...)
	t.offsets = append([]int64{0}, t.offsets...)
	t.currentOffset += shift
	e.UpdateMtime(&t.mtime)
}

// Size returns the logical (unsplit) archive size.
func (t *TarFile) Size() int64 {
	return t.size
}

// Mtime returns the maximum entry mtime, unix seconds.
func (t *TarFile) Mtime() int64 {
	return t.mtime
}

// NumParts, PartSize, LastPartSize, and TarHeaderSize report the
// splitting parameters computed by FixSize.
func (t *TarFile) NumParts() int64      { return t.numParts }
func (t *TarFile) PartSize() int64      { return t.partSize }
func (t *TarFile) LastPartSize() int64  { return t.lastPartSize }
func (t *TarFile) TarHeaderSize() int64 { return t.headerSize }

// FixSize finalises the archive: if the accumulated size fits within
// splitSize, it is single-part; otherwise splitParts computes the
// splitting parameters. See spec.md §4.E.
func (t *TarFile) FixSize(splitSize int64, style HeaderStyle) error {
	t.size = t.currentOffset

	if t.size <= splitSize {
		t.numParts = 1
		t.partSize = t.size
		t.lastPartSize = t.size
		t.headerSize = 0
		return nil
	}

	mv := int64(0)
	if style == HeaderStyleMultiVolume {
		mv = tarcodec.BlockSize
	}
	t.headerSize = mv

	n, last, err := splitParts(t.size, splitSize, mv)
	if err != nil {
		return err
	}
	t.numParts = n
	t.partSize = splitSize
	t.lastPartSize = last
	return nil
}

// splitParts implements the splitting law of spec.md §4.E.
func splitParts(size, partSize, mv int64) (numParts, lastPartSize int64, err error) {
	if partSize <= mv {
		return 0, 0, ErrSizeUnderflow
	}

	numParts = (size - mv) / (partSize - mv)
	storedInNParts := partSize + (numParts-1)*(partSize-mv)
	if storedInNParts == size {
		lastPartSize = partSize
	} else {
		numParts++
		lastPartSize = mv + size - storedInNParts
	}
	return numParts, lastPartSize, nil
}

// SizeOfPart returns the byte length of the given part (0-indexed).
func (t *TarFile) SizeOfPart(partNr int64) int64 {
	if t.numParts == 1 {
		return t.size
	}
	if partNr == t.numParts-1 {
		return t.lastPartSize
	}
	return t.partSize
}

// CalculateOriginTarOffset maps an offset inside the given part to its
// position in the logical (unsplit) tar stream.
func (t *TarFile) CalculateOriginTarOffset(partNr, offsetWithinPart int64) (int64, error) {
	if partNr == 0 {
		return offsetWithinPart, nil
	}
	if offsetWithinPart < t.headerSize {
		return 0, errors.New("tarpack: read into multi-volume header region")
	}
	return (offsetWithinPart - t.headerSize) + t.partSize + (partNr-1)*(t.partSize-t.headerSize), nil
}

// FindTarEntry returns the entry whose framed range contains logical
// offset o, via binary search on t.offsets.
func (t *TarFile) FindTarEntry(o int64) *TarEntry {
	if o > t.size {
		return nil
	}
	// First offset strictly greater than o.
	i := sort.Search(len(t.offsets), func(i int) bool { return t.offsets[i] > o })
	if i == 0 {
		return nil
	}
	e := t.entries[i-1]
	if o == t.size {
		// Only the last entry may still have a byte exactly at size; this
		// is the case iff the entry's own range reaches that far.
		if e.Offset()+e.BlockedSize() > o {
			return e
		}
		return nil
	}
	return e
}

// Copy serves up to len(buf) bytes from the given part at the given
// in-part offset, synthesising a multi-volume header for non-first parts
// whose offset falls within the reserved header region. A call stops at
// the end of the part and at the end of the region (multi-volume header
// or entry) that holds offset. Returns the number of bytes produced; 0
// signals end of stream.
func (t *TarFile) Copy(buf []byte, partNr, offset int64) (int, error) {
	partLeft := t.SizeOfPart(partNr) - offset
	if partLeft <= 0 {
		return 0, nil
	}
	if int64(len(buf)) > partLeft {
		buf = buf[:partLeft]
	}
	if partNr > 0 && offset < t.headerSize {
		return t.copyMultiVolHeader(buf, partNr, offset)
	}

	origin, err := t.CalculateOriginTarOffset(partNr, offset)
	if err != nil {
		return 0, err
	}
	if origin >= t.size {
		return 0, nil
	}

	e := t.FindTarEntry(origin)
	if e == nil {
		return 0, nil
	}
	return e.Copy(buf, origin-e.Offset())
}

func (t *TarFile) copyMultiVolHeader(buf []byte, partNr, offset int64) (int, error) {
	// The byte at which this part resumes, mapped back to the logical
	// stream, identifies which entry straddles the split boundary.
	resumeOrigin, err := t.CalculateOriginTarOffset(partNr, t.headerSize)
	if err != nil {
		return 0, err
	}
	e := t.FindTarEntry(resumeOrigin)
	if e == nil {
		return 0, errors.New("tarpack: no entry at split boundary")
	}
	fileOffset := resumeOrigin - e.Offset() - e.HeaderSize()
	if fileOffset < 0 {
		fileOffset = 0
	}

	h := e.toHeader()
	h.Typeflag = tarcodec.TypeMultiVol
	h.MultiVolOffset = fileOffset
	h.Size = h.Size - fileOffset

	hb, err := tarcodec.Encode(h)
	if err != nil {
		return 0, err
	}
	n := copy(buf, hb[offset:])
	return n, nil
}

// CalculateHashPerArchive implements the per-archive hash mode: SHA-256
// over the entries' own hashes in offset order.
func (t *TarFile) CalculateHashPerArchive() ([32]byte, error) {
	if t.hashOnce {
		return t.hash, nil
	}
	h := sha256.New()
	for _, e := range t.entries {
		eh, err := e.Hash()
		if err != nil {
			return [32]byte{}, err
		}
		h.Write(eh[:])
	}
	copy(t.hash[:], h.Sum(nil))
	t.hashOnce = true
	return t.hash, nil
}

// CalculateHashGlobal implements the global/snapshot hash mode: for every
// other archive in tars, feed its hash; then feed the raw index text.
// This makes every archive's name depend on every other archive.
func CalculateHashGlobal(self *TarFile, tars []*TarFile, indexText []byte) ([32]byte, error) {
	h := sha256.New()
	for _, other := range tars {
		if other == self {
			continue
		}
		oh, err := other.CalculateHashPerArchive()
		if err != nil {
			return [32]byte{}, err
		}
		h.Write(oh[:])
	}
	h.Write(indexText)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Entries returns the archive's entries in offset order.
func (t *TarFile) Entries() []*TarEntry {
	return t.entries
}
