// parity/parity_test.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package parity

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// getParityFiles writes a random archive file of size n under a fresh temp
// directory and encodes a parity side-file for it, returning both paths.
func getParityFiles(t *testing.T, n int, nData, nParity int, hashRate int64) (fn, rsfn string) {
	dir := t.TempDir()
	fn = filepath.Join(dir, "archive.tar")
	rsfn = filepath.Join(dir, "archive.tar.rs")

	seed := time.Now().UnixNano()
	t.Logf("seed = %d", seed)
	r := rand.New(rand.NewSource(seed))

	buf := make([]byte, n)
	_, _ = r.Read(buf)
	if err := os.WriteFile(fn, buf, 0644); err != nil {
		t.Fatal(err)
	}

	if err := Encode(fn, rsfn, nData, nParity, hashRate); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return fn, rsfn
}

func TestEncodeThenCheckPasses(t *testing.T) {
	fn, rsfn := getParityFiles(t, 64*1024, 4, 2, 1024)
	if err := Check(fn, rsfn, nil); err != nil {
		t.Errorf("Check on an untouched file should pass, got %v", err)
	}
}

func TestCheckDetectsCorruption(t *testing.T) {
	fn, rsfn := getParityFiles(t, 64*1024, 4, 2, 1024)

	corruptByte(t, fn, 10)

	if err := Check(fn, rsfn, nil); err == nil {
		t.Error("Check on a corrupted archive should fail")
	}
}

func TestRestoreReconstructsCorruptedFile(t *testing.T) {
	fn, rsfn := getParityFiles(t, 64*1024, 4, 2, 1024)

	orig, err := os.ReadFile(fn)
	if err != nil {
		t.Fatal(err)
	}

	corruptByte(t, fn, 10)

	if err := Restore(fn, rsfn, nil); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	recovered, err := os.ReadFile(fn + ".recovered")
	if err != nil {
		t.Fatalf("reading recovered file: %v", err)
	}
	if string(recovered) != string(orig) {
		t.Error("recovered file doesn't match the original contents")
	}
}

func TestRestoreNoopWhenUncorrupted(t *testing.T) {
	fn, rsfn := getParityFiles(t, 32*1024, 3, 2, 2048)

	if err := Restore(fn, rsfn, nil); err != nil {
		t.Fatalf("Restore on a clean file shouldn't error: %v", err)
	}
	if _, err := os.Stat(fn + ".recovered"); err == nil {
		t.Error("Restore on a clean file shouldn't write a .recovered file")
	}
}

func TestHashBytesIsContentSensitive(t *testing.T) {
	h1 := HashBytes([]byte("same"))
	h2 := HashBytes([]byte("same"))
	h3 := HashBytes([]byte("different"))
	if h1 != h2 {
		t.Error("HashBytes of identical inputs should be equal")
	}
	if h1 == h3 {
		t.Error("HashBytes of different inputs should differ")
	}
}

// corruptByte flips a single byte somewhere within the first n bytes of fn.
func corruptByte(t *testing.T, fn string, n int) {
	f, err := os.OpenFile(fn, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, int64(n)); err != nil {
		t.Fatal(err)
	}
	buf[0] ^= 0xff
	if _, err := f.WriteAt(buf, int64(n)); err != nil {
		t.Fatal(err)
	}
}
