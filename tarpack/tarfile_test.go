// tarpack/tarfile_test.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package tarpack

import (
	"testing"
	"time"

	"github.com/beakfs/beak/fsys"
	"github.com/beakfs/beak/tarcodec"
	"github.com/beakfs/beak/vpath"
)

func getTarFile(t *testing.T, fs fsys.FS, n int, fileSize int64) *TarFile {
	tf := NewTarFile()
	for i := 0; i < n; i++ {
		p, err := vpath.Lookup("/file" + string(rune('a'+i)))
		if err != nil {
			t.Fatal(err)
		}
		st := fsys.FileStat{Type: fsys.TypeRegular, Perm: 0644, Size: fileSize, Mtime: time.Unix(1000+int64(i), 0)}
		e := NewEntry(p, st, "", fs)
		tf.AddEntryLast(e)
	}
	return tf
}

func getMemoryFS(t *testing.T, n int, fileSize int64) fsys.FS {
	m := fsys.NewMemory()
	for i := 0; i < n; i++ {
		p, err := vpath.Lookup("/file" + string(rune('a'+i)))
		if err != nil {
			t.Fatal(err)
		}
		m.AddFile(p, make([]byte, fileSize), fsys.FileStat{Perm: 0644})
	}
	return m
}

func TestFixSizeSinglePart(t *testing.T) {
	fs := getMemoryFS(t, 2, 100)
	tf := getTarFile(t, fs, 2, 100)
	if err := tf.FixSize(1<<20, HeaderStyleNone); err != nil {
		t.Fatalf("FixSize: %v", err)
	}
	if tf.NumParts() != 1 {
		t.Errorf("NumParts = %d, want 1", tf.NumParts())
	}
	if tf.PartSize() != tf.Size() {
		t.Errorf("PartSize = %d, want %d (single part)", tf.PartSize(), tf.Size())
	}
}

func TestSplitPartsExactFit(t *testing.T) {
	// Construct sizes that divide evenly so the exact-fit branch of
	// splitParts runs (no rounding up of numParts).
	n, last, err := splitParts(3000, 1000, 0)
	if err != nil {
		t.Fatalf("splitParts: %v", err)
	}
	if n != 3 || last != 1000 {
		t.Errorf("splitParts(3000,1000,0) = (%d,%d), want (3,1000)", n, last)
	}
}

func TestSplitPartsRoundsUp(t *testing.T) {
	n, last, err := splitParts(3001, 1000, 0)
	if err != nil {
		t.Fatalf("splitParts: %v", err)
	}
	if n != 4 {
		t.Errorf("splitParts(3001,1000,0) numParts = %d, want 4", n)
	}
	if last != 1 {
		t.Errorf("splitParts(3001,1000,0) lastPartSize = %d, want 1", last)
	}
}

func TestSplitPartsMultiVolumeHeaderAccounting(t *testing.T) {
	mv := int64(tarcodec.BlockSize)
	n, last, err := splitParts(10000, 1000, mv)
	if err != nil {
		t.Fatalf("splitParts: %v", err)
	}
	if n != 20 || last != 728 {
		t.Errorf("splitParts(10000,1000,%d) = (%d,%d), want (20,728)", mv, n, last)
	}

	// The first part carries no multi-volume header and is full size; every
	// subsequent part but the last reserves mv bytes for its continuation
	// header, and the sum of all parts' usable bytes must equal the size.
	total := int64(1000) + (n-2)*(1000-mv) + (last - mv)
	if total != 10000 {
		t.Errorf("accounted total = %d, want 10000", total)
	}
}

func TestFindTarEntry(t *testing.T) {
	fs := getMemoryFS(t, 3, 100)
	tf := getTarFile(t, fs, 3, 100)
	if err := tf.FixSize(1<<20, HeaderStyleNone); err != nil {
		t.Fatal(err)
	}

	e0 := tf.Entries()[0]
	got := tf.FindTarEntry(e0.Offset())
	if got != e0 {
		t.Errorf("FindTarEntry(%d) = %v, want first entry", e0.Offset(), got)
	}

	e2 := tf.Entries()[2]
	got = tf.FindTarEntry(e2.Offset() + 1)
	if got != e2 {
		t.Errorf("FindTarEntry(%d) = %v, want third entry", e2.Offset()+1, got)
	}
}

func TestCalculateOriginTarOffsetFirstPart(t *testing.T) {
	fs := getMemoryFS(t, 1, 100)
	tf := getTarFile(t, fs, 1, 100)
	if err := tf.FixSize(1<<20, HeaderStyleNone); err != nil {
		t.Fatal(err)
	}
	o, err := tf.CalculateOriginTarOffset(0, 42)
	if err != nil {
		t.Fatal(err)
	}
	if o != 42 {
		t.Errorf("CalculateOriginTarOffset(0, 42) = %d, want 42", o)
	}
}

func TestCalculateHashPerArchiveIsDeterministic(t *testing.T) {
	fs := getMemoryFS(t, 2, 100)
	tf := getTarFile(t, fs, 2, 100)
	h1, err := tf.CalculateHashPerArchive()
	if err != nil {
		t.Fatal(err)
	}
	h2, err := tf.CalculateHashPerArchive()
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Error("CalculateHashPerArchive should be stable across repeated calls")
	}
}

func TestCalculateHashGlobalDependsOnOthers(t *testing.T) {
	fsA := getMemoryFS(t, 1, 10)
	fsB := getMemoryFS(t, 1, 10)
	a := getTarFile(t, fsA, 1, 10)
	b := getTarFile(t, fsB, 1, 10)

	h1, err := CalculateHashGlobal(a, []*TarFile{a, b}, []byte("index"))
	if err != nil {
		t.Fatal(err)
	}

	// Change b's contents (different file size, so a different entry
	// hash) and confirm a's global hash changes even though a itself is
	// untouched.
	fsC := getMemoryFS(t, 1, 999)
	c := getTarFile(t, fsC, 1, 999)
	h2, err := CalculateHashGlobal(a, []*TarFile{a, c}, []byte("index"))
	if err != nil {
		t.Fatal(err)
	}

	if h1 == h2 {
		t.Error("CalculateHashGlobal should depend on every other archive's hash")
	}
}
