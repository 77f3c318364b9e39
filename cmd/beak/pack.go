// cmd/beak/pack.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"sort"

	"github.com/klauspost/compress/gzip"

	"github.com/beakfs/beak/fsys"
	"github.com/beakfs/beak/tarname"
	"github.com/beakfs/beak/tarpack"
	u "github.com/beakfs/beak/util"
	"github.com/beakfs/beak/vpath"
)

func cmdPack(args []string) error {
	fset := flag.NewFlagSet("pack", flag.ExitOnError)
	splitSize := fset.Int64("split", 0, "split archives every n bytes (0: don't split)")
	multivol := fset.Bool("multivol", false, "write multi-volume continuation headers between parts")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() != 2 {
		usage()
	}
	srcdir, destdir := fset.Arg(0), fset.Arg(1)

	src := fsys.NewLocal(srcdir)
	dst := fsys.NewLocal(destdir)

	root := vpath.Root()
	paths, err := collectPaths(src, root)
	if err != nil {
		return err
	}
	sort.Slice(paths, func(i, j int) bool { return vpath.TarLess(paths[i], paths[j]) })

	tf := tarpack.NewTarFile()
	var indexLines bytes.Buffer
	for _, p := range paths {
		st, err := src.Stat(p)
		if err != nil {
			return err
		}
		var target string
		if st.Type == fsys.TypeSymlink {
			target, err = src.Readlink(p)
			if err != nil {
				return err
			}
		}

		e := tarpack.NewEntry(p, st, target, src)
		tf.AddEntryLast(e)

		h, err := e.Hash()
		if err != nil {
			return err
		}
		fmt.Fprintf(&indexLines, "%s %d %x\n", p.Str(), st.Size, h)
	}

	style := tarpack.HeaderStyleNone
	if *multivol {
		style = tarpack.HeaderStyleMultiVolume
	}
	split := *splitSize
	if split == 0 {
		split = 1 << 62 // effectively unsplit
	}
	if err := tf.FixSize(split, style); err != nil {
		return err
	}

	hash, err := tarpack.CalculateHashGlobal(tf, []*tarpack.TarFile{tf}, indexLines.Bytes())
	if err != nil {
		return err
	}

	if err := writeDataParts(tf, dst, hash); err != nil {
		return err
	}
	if err := writeIndexArchive(dst, indexLines.Bytes()); err != nil {
		return err
	}

	log.Verbose("%s: packed %d entries into %d part(s), %s\n",
		srcdir, len(paths), tf.NumParts(), u.FmtBytes(tf.Size()))
	return nil
}

// collectPaths walks the tree rooted at p (not including p itself),
// returning every descendant path regardless of kind.
func collectPaths(fs fsys.FS, p *vpath.Path) ([]*vpath.Path, error) {
	var out []*vpath.Path
	children, err := fs.ReadDir(p)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		out = append(out, c)
		st, err := fs.Stat(c)
		if err != nil {
			return nil, err
		}
		if st.Type == fsys.TypeDirectory {
			sub, err := collectPaths(fs, c)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
	}
	return out, nil
}

func writeDataParts(tf *tarpack.TarFile, dst *fsys.Local, hash [32]byte) error {
	hashHex := hex.EncodeToString(hash[:])
	for part := int64(0); part < tf.NumParts(); part++ {
		n := tarname.Name{
			Type: 's', Version: 2, Sec: tf.Mtime(), Nsec: 0,
			Size: tf.Size(), HeaderHash: hashHex, PartNr: int(part),
			NumParts: int(tf.NumParts()), Suffix: "tar",
		}
		name, err := tarname.Format(n)
		if err != nil {
			return err
		}
		p, err := vpath.Lookup("/" + name)
		if err != nil {
			return err
		}

		partSize := tf.SizeOfPart(part)
		st := fsys.FileStat{Type: fsys.TypeRegular, Perm: 0644, Size: partSize}
		producer := func(offset int64, buf []byte) (int, error) {
			if offset >= partSize {
				return 0, nil
			}
			return tf.Copy(buf, part, offset)
		}
		if err := dst.CreateFile(p, st, producer); err != nil {
			return err
		}
	}
	return nil
}

// writeIndexArchive gzips the textual listing of entries and writes it
// under the catalogue ('z', v1) name; the core never sees compressed
// bytes, only the caller does (spec.md §4.E "Index file").
func writeIndexArchive(dst *fsys.Local, indexText []byte) error {
	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	if _, err := w.Write(indexText); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	compressed := gz.Bytes()

	h := sha256.Sum256(compressed)
	n := tarname.Name{
		// The index archive's declared size is always 0 (it's the
		// REG_FILE case of the remote-listing size-match rule: accepted
		// only when its own declared size is zero, regardless of the
		// remote-reported size).
		Type: 'z', Version: 1, Sec: 0, Nsec: 0,
		Size: 0, HeaderHash: hex.EncodeToString(h[:]),
		PartNr: 0, NumParts: 1, Suffix: "gz",
	}
	name, err := tarname.Format(n)
	if err != nil {
		return err
	}
	p, err := vpath.Lookup("/" + name)
	if err != nil {
		return err
	}

	st := fsys.FileStat{Type: fsys.TypeRegular, Perm: 0644, Size: int64(len(compressed))}
	producer := func(offset int64, buf []byte) (int, error) {
		if offset >= int64(len(compressed)) {
			return 0, nil
		}
		return copy(buf, compressed[offset:]), nil
	}
	return dst.CreateFile(p, st, producer)
}
