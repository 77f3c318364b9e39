// tarname/tarname.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

// Package tarname implements the self-describing archive filename grammar
// (v1 & v2), grounded on
// _examples/original_source/src/tarfile.cc's TarFileName.
package tarname

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadArchiveName is returned when a filename does not match either
// version's grammar.
var ErrBadArchiveName = errors.New("tarname: bad archive name")

// ErrUnsupportedVersion is returned for a syntactically plausible name
// whose version digits aren't 01 or 02.
var ErrUnsupportedVersion = errors.New("tarname: unsupported version")

// Name is a decoded archive identity; it round-trips byte-exactly to and
// from a filename.
type Name struct {
	Type       byte // e.g. 'z' for the index/catalogue archive
	Version    int  // 1 or 2
	Sec, Nsec  int64
	Size       int64
	HeaderHash string // hex-encoded SHA-256, lowercase
	PartNr     int
	NumParts   int
	Suffix     string // "tar" or "gz"
}

// IsIndexFile reports whether the basename names the catalogue archive:
// type 'z', version 01, suffix "gz".
func IsIndexFile(basename string) bool {
	return strings.HasPrefix(basename, "z01_") && strings.HasSuffix(basename, ".gz")
}

// Format renders n as a filename (no directory component). For
// Version==1, n.PartNr must be 0 — v1 cannot express multi-part archives;
// this is preserved deliberately rather than silently coerced (see
// DESIGN.md).
func Format(n Name) (string, error) {
	switch n.Version {
	case 1:
		if n.PartNr != 0 {
			return "", fmt.Errorf("tarname: v1 names cannot express part %d", n.PartNr)
		}
		return fmt.Sprintf("%c01_%012d.%09d_%d_%s_%d.%s",
			n.Type, n.Sec, n.Nsec, n.Size, n.HeaderHash, n.PartNr, n.Suffix), nil
	case 2:
		// part_nr is zero-padded to the hex width num_parts needs (minimum
		// 2 digits); num_parts itself is rendered unpadded. See
		// _examples/original_source/src/tarfile.cc's
		// writeTarFileNameIntoBufferVersion2_, toHex(part_nr, num_parts).
		width := len(fmt.Sprintf("%x", n.NumParts))
		if width < 2 {
			width = 2
		}
		return fmt.Sprintf("%c02_%d.%09d_%s_%0*x-%x_%d.%s",
			n.Type, n.Sec, n.Nsec, n.HeaderHash, width, n.PartNr, n.NumParts, n.Size, n.Suffix), nil
	default:
		return "", ErrUnsupportedVersion
	}
}

// Parse decodes a filename (basename only; strip any directory prefix
// before calling) into a Name.
func Parse(name string) (Name, error) {
	if len(name) < 4 {
		return Name{}, ErrBadArchiveName
	}
	typ := name[0]
	verDigits := name[1:3]
	if name[3] != '_' {
		return Name{}, ErrBadArchiveName
	}
	switch verDigits {
	case "01":
		return parseV1(typ, name)
	case "02":
		return parseV2(typ, name)
	default:
		return Name{}, ErrUnsupportedVersion
	}
}

// parseV1 decodes <type>01_<sec(12)>.<nsec(9)>_<size>_<hash>_<partnr>.<suffix>
func parseV1(typ byte, name string) (Name, error) {
	rest := name[4:]
	dot := strings.IndexByte(rest, '.')
	if dot != 12 {
		return Name{}, ErrBadArchiveName
	}
	secStr := rest[:12]

	rest = rest[dot+1:]
	us := strings.IndexByte(rest, '_')
	if us != 9 {
		return Name{}, ErrBadArchiveName
	}
	nsecStr := rest[:9]

	rest = rest[us+1:]
	us = strings.IndexByte(rest, '_')
	if us < 0 {
		return Name{}, ErrBadArchiveName
	}
	sizeStr := rest[:us]

	rest = rest[us+1:]
	us = strings.IndexByte(rest, '_')
	if us < 0 {
		return Name{}, ErrBadArchiveName
	}
	hash := rest[:us]

	rest = rest[us+1:]
	dot = strings.IndexByte(rest, '.')
	if dot < 0 {
		return Name{}, ErrBadArchiveName
	}
	partStr := rest[:dot]
	suffix := rest[dot+1:]

	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return Name{}, ErrBadArchiveName
	}
	nsec, err := strconv.ParseInt(nsecStr, 10, 64)
	if err != nil {
		return Name{}, ErrBadArchiveName
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return Name{}, ErrBadArchiveName
	}
	part, err := strconv.ParseInt(partStr, 10, 64)
	if err != nil {
		return Name{}, ErrBadArchiveName
	}
	if !isHex(hash) {
		return Name{}, ErrBadArchiveName
	}
	if !typeMatchesSuffix(typ, suffix) {
		return Name{}, ErrBadArchiveName
	}

	return Name{
		Type: typ, Version: 1, Sec: sec, Nsec: nsec, Size: size,
		HeaderHash: hash, PartNr: int(part), NumParts: 1, Suffix: suffix,
	}, nil
}

// parseV2 decodes <type>02_<sec>.<nsec(9)>_<hash>_<partnr(hex)>-<numparts(hex)>_<size>.<suffix>
func parseV2(typ byte, name string) (Name, error) {
	rest := name[4:]

	p1 := strings.IndexByte(rest, '.')
	if p1 < 0 {
		return Name{}, ErrBadArchiveName
	}
	secStr := rest[:p1]

	rest = rest[p1+1:]
	p2 := strings.IndexByte(rest, '_')
	if p2 != 9 {
		return Name{}, ErrBadArchiveName
	}
	nsecStr := rest[:9]

	rest = rest[p2+1:]
	p3 := strings.IndexByte(rest, '_')
	if p3 < 0 {
		return Name{}, ErrBadArchiveName
	}
	hash := rest[:p3]

	rest = rest[p3+1:]
	p4 := strings.IndexByte(rest, '-')
	if p4 < 0 {
		return Name{}, ErrBadArchiveName
	}
	partStr := rest[:p4]

	p5 := strings.IndexByte(rest, '_')
	if p5 < 0 {
		return Name{}, ErrBadArchiveName
	}
	// Deliberately preserved quirk: the original re-reads num_parts
	// starting at the same offset as part_nr rather than from p4+1, but
	// with num_parts' own field width (p6-p5-1 in the original's index
	// space, here p5-p4-1) — so for unequal-width fields num_parts comes
	// out as a left-aligned slice of the part_nr digits, not part_nr
	// itself. See DESIGN.md Open Question #2.
	if p5-p4-1 < 0 {
		return Name{}, ErrBadArchiveName
	}
	numPartsStr := rest[:p5-p4-1]

	rest = rest[p5+1:]
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return Name{}, ErrBadArchiveName
	}
	sizeStr := rest[:dot]
	suffix := rest[dot+1:]

	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return Name{}, ErrBadArchiveName
	}
	nsec, err := strconv.ParseInt(nsecStr, 10, 64)
	if err != nil {
		return Name{}, ErrBadArchiveName
	}
	part, err := strconv.ParseInt(partStr, 16, 64)
	if err != nil {
		return Name{}, ErrBadArchiveName
	}
	numParts, err := strconv.ParseInt(numPartsStr, 16, 64)
	if err != nil {
		return Name{}, ErrBadArchiveName
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return Name{}, ErrBadArchiveName
	}
	if !isHex(hash) {
		return Name{}, ErrBadArchiveName
	}
	if !typeMatchesSuffix(typ, suffix) {
		return Name{}, ErrBadArchiveName
	}

	return Name{
		Type: typ, Version: 2, Sec: sec, Nsec: nsec, Size: size,
		HeaderHash: hash, PartNr: int(part), NumParts: int(numParts), Suffix: suffix,
	}, nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

func typeMatchesSuffix(typ byte, suffix string) bool {
	if typ == 'z' {
		return suffix == "gz"
	}
	return suffix == "tar"
}
