// vpath/order_test.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package vpath

import (
	"sort"
	"testing"
)

func mustLookup(t *testing.T, s string) *Path {
	p, err := Lookup(s)
	if err != nil {
		t.Fatalf("Lookup(%q): %v", s, err)
	}
	return p
}

func TestTarLessDirectoryBeforeContents(t *testing.T) {
	dir := mustLookup(t, "/a/b")
	file := mustLookup(t, "/a/b/c")
	if !TarLess(dir, file) {
		t.Errorf("TarLess(%q, %q) = false, want true (directory sorts before its contents)", dir, file)
	}
	if TarLess(file, dir) {
		t.Errorf("TarLess(%q, %q) = true, want false", file, dir)
	}
}

func TestTarLessContentsBeforeSiblings(t *testing.T) {
	nested := mustLookup(t, "/x/y/z")
	sibling := mustLookup(t, "/x/y.zip")
	if !TarLess(nested, sibling) {
		t.Errorf("TarLess(%q, %q) = false, want true", nested, sibling)
	}
}

func TestTarSortOrder(t *testing.T) {
	paths := []*Path{
		mustLookup(t, "/r/dir2/file2"),
		mustLookup(t, "/r/dir1"),
		mustLookup(t, "/r/dir1/fileA"),
		mustLookup(t, "/r/dir2"),
	}
	sort.Slice(paths, func(i, j int) bool { return TarLess(paths[i], paths[j]) })

	var got []string
	for _, p := range paths {
		got = append(got, p.Str())
	}
	want := []string{"/r/dir1", "/r/dir1/fileA", "/r/dir2", "/r/dir2/file2"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TarSort order[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
			break
		}
	}
}

func TestDepthFirstLess(t *testing.T) {
	shallow := mustLookup(t, "/p")
	deep := mustLookup(t, "/p/q/r")
	if !DepthFirstLess(deep, shallow) {
		t.Errorf("DepthFirstLess(deep, shallow) = false, want true")
	}
}

func TestDepthFirstLessSameDepthTieBreaksOnComponents(t *testing.T) {
	// "x/a/q" vs "x/a.b/q" are the same depth and share no path prefix at
	// the second component ("a" vs "a.b"): a full-string compare of
	// "x/a/q" vs "x/a.b/q" disagrees with a component-wise compare of "a"
	// vs "a.b", because '/' (0x2f) sorts before '.' (0x2e) is false but
	// '.' sorts before '/' -- the two orderings diverge on this pair.
	a := mustLookup(t, "/x/a/q")
	b := mustLookup(t, "/x/a.b/q")
	if got, want := DepthFirstLess(a, b), "a" < "a.b"; got != want {
		t.Errorf("DepthFirstLess(%q, %q) = %v, want %v (component-wise, not full-string)", a, b, got, want)
	}
	if DepthFirstLess(a, b) == DepthFirstLess(b, a) {
		t.Errorf("DepthFirstLess must be asymmetric for distinct paths")
	}
}
