// replicate/replicate.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

// Package replicate implements the replication driver contract (spec.md
// §4.H): listing, fetching, and sending archives through an opaque
// external tool, plus a direct Google Cloud Storage backend as an
// alternative to shelling out. Grounded on
// _examples/original_source/src/storage_rclone.cc.
package replicate

import (
	"time"

	"github.com/beakfs/beak/tarname"
)

// Type tags a Storage destination.
type Type int

const (
	LocalStorage Type = iota
	RCloneStorage
	GCSStorage
)

// Storage is an opaque handle identifying a replication destination; the
// core only consumes Location and Type (spec.md §3).
type Storage struct {
	Location string
	Type     Type
}

// RC is the sum-type result of invoking the external tool (spec.md §7).
type RC struct {
	OK       bool
	Err      error
	ExitCode int
}

func Ok() RC              { return RC{OK: true} }
func Err(err error) RC    { return RC{OK: false, Err: err} }

// FileInfo records what List learned about one remote archive.
type FileInfo struct {
	Path     string
	Size     int64
	Sec      int64
	Nsec     int64
	Regular  bool
	Readable bool
}

// ListResult is the outcome of a List call.
type ListResult struct {
	// Index maps archive path to what's known about it, for names that
	// parsed and passed the size-match policy.
	Index map[string]FileInfo
	// BadFiles are archives whose remote size didn't match their declared
	// size; they need retransmission. Not fatal (spec.md §7).
	BadFiles []string
	// OtherFiles are names the archive-name codec couldn't parse at all.
	OtherFiles []string
}

// System is the capability the driver is given for invoking the external
// tool; it mirrors spec.md §4.H's invoke(program,args,stdout_sink,
// capture_mode,line_callback?) primitive.
type System interface {
	Invoke(program string, args []string, lineCallback func(string)) (stdout string, rc RC)
}

// Driver implements List/Fetch/Send against a System and a Storage.
type Driver struct {
	Sys     System
	Storage Storage
}

func NewDriver(sys System, storage Storage) *Driver {
	return &Driver{Sys: sys, Storage: storage}
}

// List invokes `ls <url>` and parses its output.
func (d *Driver) List() (ListResult, RC) {
	stdout, rc := d.Sys.Invoke("rclone", []string{"ls", d.Storage.Location}, nil)
	if !rc.OK {
		return ListResult{}, rc
	}
	return ParseListing(stdout, time.Now()), Ok()
}

// ParseListing decodes `rclone ls` output of the form "<size> <name>\n"
// per line, applying the archive-name codec and the documented size-match
// policy (spec.md §4.H, §9 Open Questions). The now argument is not
// consulted: ParseListing never rejects or logs an archive on account of
// its declared timestamp.
func ParseListing(stdout string, now time.Time) ListResult {
	res := ListResult{Index: make(map[string]FileInfo)}

	lines := splitLines(stdout)
	for _, line := range lines {
		if line == "" {
			continue
		}
		sizeStr, name, ok := splitSizeName(line)
		if !ok {
			res.OtherFiles = append(res.OtherFiles, line)
			continue
		}
		remoteSize, ok := parseSize(sizeStr)
		if !ok {
			res.OtherFiles = append(res.OtherFiles, line)
			continue
		}

		n, err := tarname.Parse(basename(name))
		if err != nil {
			res.OtherFiles = append(res.OtherFiles, name)
			continue
		}

		// Size-match policy, preserved bit-exactly (see DESIGN.md Open
		// Question #1): a non-REG_FILE archive must match the remote size
		// exactly; a REG_FILE archive is only accepted when its own
		// declared size is zero, regardless of what the remote reports.
		// The index file ('z') is the REG_FILE case; data archives are not.
		isRegFile := n.Type == 'z'
		matches := false
		if !isRegFile {
			matches = n.Size == remoteSize
		} else {
			matches = n.Size == 0
		}
		if !matches {
			res.BadFiles = append(res.BadFiles, name)
			continue
		}

		res.Index[name] = FileInfo{
			Path: name, Size: remoteSize, Sec: n.Sec, Nsec: n.Nsec,
			Regular: isRegFile, Readable: true,
		}
	}

	return res
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func splitSizeName(line string) (size, name string, ok bool) {
	i := 0
	for i < len(line) && line[i] == ' ' {
		i++
	}
	start := i
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == start {
		return "", "", false
	}
	size = line[start:i]
	for i < len(line) && line[i] == ' ' {
		i++
	}
	if i >= len(line) {
		return "", "", false
	}
	return size, line[i:], true
}

func parseSize(s string) (int64, bool) {
	var v int64
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int64(c-'0')
	}
	return v, true
}

func basename(p string) string {
	i := len(p) - 1
	for i >= 0 && p[i] != '/' {
		i--
	}
	return p[i+1:]
}
