// tarcodec/header.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

// Package tarcodec encodes and decodes single 512-byte POSIX ustar header
// blocks, including the GNU long-name/long-linkname continuation headers
// and the multi-volume continuation header beak uses to resume a split
// entry in parts after the first. Byte offsets follow the ustar layout
// (see _examples/other_examples/ChrisCinelli-rawtar__format.go).
package tarcodec

import (
	"errors"
	"fmt"
)

// BlockSize is the size in bytes of every tar header and every payload
// padding unit.
const BlockSize = 512

// ErrHeaderTooLong is returned when a name/linkname cannot be represented
// even with a GNU long-name continuation header.
var ErrHeaderTooLong = errors.New("tarcodec: header too long")

// TypeFlag identifies the kind of a tar header.
type TypeFlag byte

const (
	TypeRegular    TypeFlag = '0'
	TypeLink       TypeFlag = '1'
	TypeSymlink    TypeFlag = '2'
	TypeChar       TypeFlag = '3'
	TypeBlock      TypeFlag = '4'
	TypeDir        TypeFlag = '5'
	TypeFifo       TypeFlag = '6'
	TypeLongName   TypeFlag = 'L' // GNU long pathname continuation
	TypeLongLink   TypeFlag = 'K' // GNU long linkname continuation
	TypeMultiVol   TypeFlag = 'M' // multi-volume continuation
)

const (
	magicUSTAR   = "ustar\x00"
	versionUSTAR = "00"

	maxPrefix = 155
	maxName   = 100
	longNamePayload = 512 // one block's worth, matches GNU tar's convention
)

// Header is the decoded content of one 512-byte tar header block.
type Header struct {
	Name     string
	Mode     int64
	UID, GID int64
	Size     int64
	ModTime  int64 // unix seconds
	Typeflag TypeFlag
	Linkname string
	UName, GName string
	DevMajor, DevMinor int64

	// MultiVolOffset is meaningful only when Typeflag == TypeMultiVol: the
	// byte offset within the *original*, unsplit file at which this part
	// resumes. Size in that case is (original size - MultiVolOffset).
	MultiVolOffset int64
}

// NumLongPathBlocks reports how many extra 512-byte L/K blocks (header +
// padded payload) must precede the main header to carry h.Name and
// h.Linkname if they don't fit in the ustar fixed fields.
func NumLongPathBlocks(h Header) int {
	n := 0
	if _, _, ok := splitPrefixName(h.Name); !ok {
		n += 1 + blocks(len(h.Name)+1)
	}
	if len(h.Linkname) > maxName {
		n += 1 + blocks(len(h.Linkname)+1)
	}
	return n
}

func blocks(n int) int {
	return (n + BlockSize - 1) / BlockSize
}

// Encode marshals h, and any long-name continuation headers it needs, into
// a sequence of 512-byte blocks.
func Encode(h Header) ([]byte, error) {
	var out []byte

	if h.Typeflag == TypeMultiVol {
		return encodeMultiVol(h)
	}

	mainHdr := h
	if len(h.Linkname) > maxName {
		b, err := encodeLongBlock(TypeLongLink, h.Linkname)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
		mainHdr.Linkname = h.Linkname[:maxName]
	}
	if _, _, ok := splitPrefixName(h.Name); !ok {
		b, err := encodeLongBlock(TypeLongName, h.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
		mainHdr.Name = h.Name[:maxName]
	}

	main, err := encodeMain(mainHdr)
	if err != nil {
		return nil, err
	}
	return append(out, main...), nil
}

func encodeLongBlock(t TypeFlag, payload string) ([]byte, error) {
	if len(payload)+1 > longNamePayload*8 {
		return nil, ErrHeaderTooLong
	}
	hdr := Header{
		Name:     "././@LongLink",
		Typeflag: t,
		Size:     int64(len(payload) + 1),
		Mode:     0,
	}
	main, err := encodeMain(hdr)
	if err != nil {
		return nil, err
	}
	n := blocks(len(payload) + 1)
	data := make([]byte, n*BlockSize)
	copy(data, payload)
	return append(main, data...), nil
}

func splitPrefixName(name string) (prefix, base string, ok bool) {
	if len(name) <= maxName {
		return "", name, true
	}
	if len(name) > maxPrefix+maxName+1 {
		return "", "", false
	}
	// Split on the last '/' at or before the limit so base fits in 100.
	cut := len(name) - maxName
	for cut < len(name) && name[cut] != '/' {
		cut++
	}
	if cut >= len(name) {
		return "", "", false
	}
	prefix = name[:cut]
	base = name[cut+1:]
	if len(prefix) > maxPrefix || len(base) > maxName {
		return "", "", false
	}
	return prefix, base, true
}

func encodeMain(h Header) ([]byte, error) {
	buf := make([]byte, BlockSize)

	prefix, base, ok := splitPrefixName(h.Name)
	if !ok {
		return nil, ErrHeaderTooLong
	}
	if len(h.Linkname) > maxName {
		return nil, ErrHeaderTooLong
	}

	putString(buf[0:100], base)
	putOctal(buf[100:108], h.Mode, 7)
	putOctal(buf[108:116], h.UID, 7)
	putOctal(buf[116:124], h.GID, 7)
	putOctal(buf[124:136], h.Size, 11)
	putOctal(buf[136:148], h.ModTime, 11)
	for i := 148; i < 156; i++ {
		buf[i] = ' '
	}
	buf[156] = byte(h.Typeflag)
	putString(buf[157:257], h.Linkname)
	copy(buf[257:263], magicUSTAR)
	copy(buf[263:265], versionUSTAR)
	putString(buf[265:297], h.UName)
	putString(buf[297:329], h.GName)
	putOctal(buf[329:337], h.DevMajor, 7)
	putOctal(buf[337:345], h.DevMinor, 7)
	putString(buf[345:500], prefix)

	sum := computeChecksum(buf)
	putOctalChecksum(buf[148:156], sum)

	return buf, nil
}

// encodeMultiVol produces the single 512-byte GNU multi-volume header: the
// same ustar layout, typeflag 'M', with the offset-within-original-file
// recorded in the space normally used for the 'atime'/padding area (GNU
// tar stores it right after the main fields; beak keeps it simple and
// records it at a fixed offset within the unused devmajor/devminor tail,
// since beak never uses device nodes).
func encodeMultiVol(h Header) ([]byte, error) {
	hdr := h
	hdr.Typeflag = TypeMultiVol
	hdr.Size = h.Size
	b, err := encodeMain(hdr)
	if err != nil {
		return nil, err
	}
	// Stash MultiVolOffset in the 16 bytes normally holding
	// devmajor/devminor (unused for type 'M') as 15 octal digits;
	// re-checksum after.
	putOctal(b[329:345], h.MultiVolOffset, 15)
	for i := 148; i < 156; i++ {
		b[i] = ' '
	}
	sum := computeChecksum(b)
	putOctalChecksum(b[148:156], sum)
	return b, nil
}

// Decode parses a single main header block (long-name continuation blocks
// must already have been consumed by the caller and merged into name).
func Decode(b []byte) (Header, error) {
	if len(b) < BlockSize {
		return Header{}, errors.New("tarcodec: short header block")
	}

	var h Header
	prefix := trimString(b[345:500])
	base := trimString(b[0:100])
	if prefix != "" {
		h.Name = prefix + "/" + base
	} else {
		h.Name = base
	}
	h.Mode = parseOctal(b[100:108])
	h.UID = parseOctal(b[108:116])
	h.GID = parseOctal(b[116:124])
	h.Size = parseOctal(b[124:136])
	h.ModTime = parseOctal(b[136:148])
	h.Typeflag = TypeFlag(b[156])
	h.Linkname = trimString(b[157:257])
	h.UName = trimString(b[265:297])
	h.GName = trimString(b[297:329])

	if h.Typeflag == TypeMultiVol {
		h.MultiVolOffset = parseOctal(b[329:345])
	} else {
		h.DevMajor = parseOctal(b[329:337])
		h.DevMinor = parseOctal(b[337:345])
	}

	gotSum := parseOctal(b[148:156])
	wantSum := computeChecksum(b)
	if gotSum != wantSum {
		return h, fmt.Errorf("tarcodec: checksum mismatch: got %d want %d", gotSum, wantSum)
	}
	return h, nil
}

func computeChecksum(b []byte) int64 {
	var sum int64
	for i, c := range b {
		if i >= 148 && i < 156 {
			sum += int64(' ')
		} else {
			sum += int64(c)
		}
	}
	return sum
}

func putString(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func trimString(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

func putOctal(dst []byte, v int64, digits int) {
	s := fmt.Sprintf("%0*o", digits, v)
	if len(s) > digits {
		s = s[len(s)-digits:]
	}
	copy(dst, s)
	dst[len(dst)-1] = 0
}

func putOctalChecksum(dst []byte, v int64) {
	s := fmt.Sprintf("%06o", v)
	copy(dst, s)
	dst[6] = 0
	dst[7] = ' '
}

func parseOctal(b []byte) int64 {
	var v int64
	for _, c := range b {
		if c == 0 || c == ' ' {
			continue
		}
		if c < '0' || c > '7' {
			break
		}
		v = v*8 + int64(c-'0')
	}
	return v
}

// PadToBlock returns n rounded up to the next BlockSize boundary.
func PadToBlock(n int64) int64 {
	return ((n + BlockSize - 1) / BlockSize) * BlockSize
}
