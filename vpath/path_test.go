// vpath/path_test.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package vpath

import "testing"

func getPaths(t *testing.T) (a, b, c *Path) {
	var err error
	a, err = Lookup("/usr/local/bin")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	b, err = Lookup("/usr/local/bin/")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	c, err = Lookup("/usr/local/lib")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	return
}

func TestLookupIsIdempotent(t *testing.T) {
	a, b, _ := getPaths(t)
	if a != b {
		t.Errorf("trailing slash should not affect interning: %p != %p", a, b)
	}
}

func TestLookupRejectsControlBytes(t *testing.T) {
	if _, err := Lookup("/foo\x00bar"); err != ErrInvalidPath {
		t.Errorf("NUL byte: got err %v, want ErrInvalidPath", err)
	}
	if _, err := Lookup("/foo\nbar"); err != ErrInvalidPath {
		t.Errorf("newline: got err %v, want ErrInvalidPath", err)
	}
}

func TestDepthAndParent(t *testing.T) {
	a, _, _ := getPaths(t)
	if a.Depth() != 3 {
		t.Errorf("Depth() = %d, want 3", a.Depth())
	}
	if a.Parent().Str() != "/usr/local" {
		t.Errorf("Parent() = %q, want /usr/local", a.Parent().Str())
	}
	if a.Name().String() != "bin" {
		t.Errorf("Name() = %q, want bin", a.Name().String())
	}
}

func TestAppendName(t *testing.T) {
	a, _, _ := getPaths(t)
	p, err := AppendName(a, "beak")
	if err != nil {
		t.Fatalf("AppendName: %v", err)
	}
	if p.Str() != "/usr/local/bin/beak" {
		t.Errorf("AppendName = %q, want /usr/local/bin/beak", p.Str())
	}

	root := Root()
	p2, err := AppendName(root, "etc")
	if err != nil {
		t.Fatalf("AppendName: %v", err)
	}
	if p2.Str() != "/etc" {
		t.Errorf("AppendName from root = %q, want /etc", p2.Str())
	}
}

func TestSubpathZeroLengthReturnsFalse(t *testing.T) {
	a, _, _ := getPaths(t)
	if p, ok := a.Subpath(0, 0); ok || p != nil {
		t.Errorf("Subpath(0,0) = (%v, %v), want (nil, false)", p, ok)
	}
}

func TestSubpathMiddleSlice(t *testing.T) {
	a, _, _ := getPaths(t)
	p, ok := a.Subpath(1, 1)
	if !ok {
		t.Fatalf("Subpath(1,1) failed")
	}
	if p.Str() != "/local" {
		t.Errorf("Subpath(1,1) = %q, want /local", p.Str())
	}
}

func TestSubpathOutOfRange(t *testing.T) {
	a, _, _ := getPaths(t)
	if _, ok := a.Subpath(10, 1); ok {
		t.Errorf("Subpath(10,1) should fail, depth is only %d", a.Depth())
	}
}

func TestCommonPrefix(t *testing.T) {
	a, _, c := getPaths(t)
	cp := CommonPrefix(a, c)
	if cp.Str() != "/usr/local" {
		t.Errorf("CommonPrefix = %q, want /usr/local", cp.Str())
	}
}

func TestReparent(t *testing.T) {
	a, _, _ := getPaths(t)
	oldAncestor, err := Lookup("/usr")
	if err != nil {
		t.Fatal(err)
	}
	newAncestor, err := Lookup("/mnt/backup")
	if err != nil {
		t.Fatal(err)
	}
	p, err := Reparent(a, oldAncestor, newAncestor)
	if err != nil {
		t.Fatalf("Reparent: %v", err)
	}
	if p.Str() != "/mnt/backup/local/bin" {
		t.Errorf("Reparent = %q, want /mnt/backup/local/bin", p.Str())
	}
}
