// cmd/beak/mount.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package main

import (
	"errors"
	"flag"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	_ "bazil.org/fuse/fs/fstestutil"
	"golang.org/x/net/context"

	"github.com/beakfs/beak/tarcodec"
	"github.com/beakfs/beak/tarname"
)

// errMultiVolUnsupported is returned while scanning an archive whose
// entries span a multi-volume continuation header; reconstructing a split
// archive for the mount is future work (no caller needs it yet, and doing
// it well means stitching part files back together before the FUSE layer
// ever sees them).
var errMultiVolUnsupported = errors.New("cmd/beak: mount does not support multi-volume archives")

func cmdMount(args []string) error {
	fset := flag.NewFlagSet("mount", flag.ExitOnError)
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() != 2 {
		usage()
	}
	archiveDir, mountDir := fset.Arg(0), fset.Arg(1)

	root, err := buildArchiveTree(archiveDir)
	if err != nil {
		return err
	}

	conn, err := fuse.Mount(
		mountDir,
		fuse.FSName("beakfs"),
		fuse.Subtype("beakfs"),
		fuse.VolumeName("archives"),
		fuse.ReadOnly(),
	)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := fs.Serve(conn, &archiveFS{root: root}); err != nil {
		return err
	}

	<-conn.Ready
	return conn.MountError
}

///////////////////////////////////////////////////////////////////////////
// In-memory tree built by scanning every archive in a directory.

// node is one path component of the reverse-mounted tree. Regular-file
// nodes know which archive file and byte offset their payload lives at;
// directory nodes only exist as organisation and are never backed by a
// real tar header of their own unless one happened to be stored.
type node struct {
	name        string
	header      tarcodec.Header
	hasHeader   bool
	archivePath string
	dataOffset  int64
	children    map[string]*node
}

func newDirNode(name string) *node {
	return &node{name: name, children: make(map[string]*node)}
}

func (n *node) isDir() bool {
	return !n.hasHeader || n.header.Typeflag == tarcodec.TypeDir
}

func (n *node) isSymlink() bool {
	return n.hasHeader && n.header.Typeflag == tarcodec.TypeSymlink
}

// buildArchiveTree scans archiveDir for every data archive (skipping the
// catalogue and any .rs parity side-files) and merges their entries into
// one tree, keyed by the textual path stored in the tar headers.
func buildArchiveTree(archiveDir string) (*node, error) {
	root := newDirNode("/")

	files, err := ioutil.ReadDir(archiveDir)
	if err != nil {
		return nil, err
	}
	for _, fi := range files {
		if fi.IsDir() || strings.HasSuffix(fi.Name(), ".rs") {
			continue
		}
		n, err := tarname.Parse(fi.Name())
		if err != nil || tarname.IsIndexFile(fi.Name()) {
			continue
		}
		if n.NumParts > 1 {
			log.Warning("%s: skipping multi-part archive in mount\n", fi.Name())
			continue
		}

		full := filepath.Join(archiveDir, fi.Name())
		if err := mergeArchive(root, full); err != nil {
			log.Error("%s: %s\n", full, err)
		}
	}
	return root, nil
}

func mergeArchive(root *node, archivePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	entries, err := readArchiveEntries(f)
	if err != nil {
		return err
	}
	for _, e := range entries {
		insertEntry(root, archivePath, e)
	}
	return nil
}

func insertEntry(root *node, archivePath string, e rawEntry) {
	comps := strings.Split(strings.Trim(e.header.Name, "/"), "/")
	cur := root
	for i, c := range comps {
		if c == "" {
			continue
		}
		child, ok := cur.children[c]
		if !ok {
			child = newDirNode(c)
			cur.children[c] = child
		}
		if i == len(comps)-1 {
			child.header = e.header
			child.hasHeader = true
			child.archivePath = archivePath
			child.dataOffset = e.dataOffset
		}
		cur = child
	}
}

///////////////////////////////////////////////////////////////////////////
// Sequential tar-header scan (single-part archives only).

type rawEntry struct {
	header     tarcodec.Header
	dataOffset int64
}

func readArchiveEntries(f *os.File) ([]rawEntry, error) {
	var out []rawEntry
	var pendingName, pendingLink string
	var offset int64

	buf := make([]byte, tarcodec.BlockSize)
	for {
		n, err := io.ReadFull(f, buf)
		if n == 0 {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return nil, err
		}
		if n < tarcodec.BlockSize {
			break
		}
		if isZeroBlock(buf) {
			offset += tarcodec.BlockSize
			continue
		}

		h, err := tarcodec.Decode(buf)
		if err != nil {
			return nil, err
		}
		offset += tarcodec.BlockSize

		if h.Typeflag == tarcodec.TypeMultiVol {
			return nil, errMultiVolUnsupported
		}
		if h.Typeflag == tarcodec.TypeLongName || h.Typeflag == tarcodec.TypeLongLink {
			pad := tarcodec.PadToBlock(h.Size)
			payload := make([]byte, pad)
			if _, err := io.ReadFull(f, payload); err != nil {
				return nil, err
			}
			offset += pad
			name := trimNulString(payload[:h.Size])
			if h.Typeflag == tarcodec.TypeLongName {
				pendingName = name
			} else {
				pendingLink = name
			}
			continue
		}

		if pendingName != "" {
			h.Name = pendingName
			pendingName = ""
		}
		if pendingLink != "" {
			h.Linkname = pendingLink
			pendingLink = ""
		}

		out = append(out, rawEntry{header: h, dataOffset: offset})

		if h.Typeflag == tarcodec.TypeRegular {
			pad := tarcodec.PadToBlock(h.Size)
			if _, err := f.Seek(pad, io.SeekCurrent); err != nil {
				return nil, err
			}
			offset += pad
		}
	}
	return out, nil
}

func isZeroBlock(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func trimNulString(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

///////////////////////////////////////////////////////////////////////////
// FUSE bindings.

type archiveFS struct {
	root *node
}

func (a *archiveFS) Root() (fs.Node, error) {
	return a.root, nil
}

func (n *node) Attr(ctx context.Context, a *fuse.Attr) error {
	switch {
	case n.isDir():
		a.Mode = os.ModeDir | 0555
	case n.isSymlink():
		a.Mode = os.ModeSymlink | 0444
		a.Size = uint64(n.header.Size)
	default:
		a.Mode = os.FileMode(n.header.Mode) &^ os.ModeType
		a.Size = uint64(n.header.Size)
	}
	if n.hasHeader {
		a.Mtime = modTimeFromUnix(n.header.ModTime)
	}
	return nil
}

func (n *node) Lookup(ctx context.Context, name string) (fs.Node, error) {
	if c, ok := n.children[name]; ok {
		return c, nil
	}
	return nil, fuse.ENOENT
}

func (n *node) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	var out []fuse.Dirent
	for name, c := range n.children {
		d := fuse.Dirent{Name: name}
		switch {
		case c.isDir():
			d.Type = fuse.DT_Dir
		case c.isSymlink():
			d.Type = fuse.DT_Link
		default:
			d.Type = fuse.DT_File
		}
		out = append(out, d)
	}
	return out, nil
}

func (n *node) ReadAll(ctx context.Context) ([]byte, error) {
	if n.isDir() {
		return nil, errors.New("cmd/beak: not a file")
	}
	f, err := os.Open(n.archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n.header.Size)
	if _, err := f.ReadAt(buf, n.dataOffset); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

func (n *node) Readlink(ctx context.Context, req *fuse.ReadlinkRequest) (string, error) {
	return n.header.Linkname, nil
}

func modTimeFromUnix(sec int64) time.Time {
	return time.Unix(sec, 0)
}
