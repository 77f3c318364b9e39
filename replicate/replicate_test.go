// replicate/replicate_test.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package replicate

import (
	"testing"
	"time"
)

// fakeSystem lets tests script rclone's stdout/exit code without shelling
// out to a real binary.
type fakeSystem struct {
	stdout string
	rc     RC
}

func (f fakeSystem) Invoke(program string, args []string, lineCallback func(string)) (string, RC) {
	if lineCallback != nil {
		for _, line := range splitLines(f.stdout) {
			if line != "" {
				lineCallback(line)
			}
		}
	}
	return f.stdout, f.rc
}

func TestParseListingAcceptsIndexFileOnlyWhenSizeZero(t *testing.T) {
	// The index archive ('z') is the REG_FILE case: it's accepted only when
	// its own embedded size field is zero, regardless of what the remote
	// reports for it.
	zero := "z01_000000000001.000000000_0_abcdef0123456789_0.gz"
	res := ParseListing("100 "+zero+"\n", time.Now())
	if len(res.Index) != 1 {
		t.Errorf("zero declared size should be accepted regardless of remote size; BadFiles=%v OtherFiles=%v", res.BadFiles, res.OtherFiles)
	}

	nonzero := "z01_000000000002.000000000_512_abcdef0123456789_0.gz"
	res = ParseListing("512 "+nonzero+"\n", time.Now())
	if len(res.BadFiles) != 1 {
		t.Errorf("nonzero declared size should be rejected even when it matches the remote size exactly, got Index=%v BadFiles=%v", res.Index, res.BadFiles)
	}
}

func TestParseListingAcceptsDataArchiveOnlyOnExactSizeMatch(t *testing.T) {
	// A data archive (any type other than 'z') is accepted only when its
	// embedded size field matches the remote-reported size exactly.
	name := "s02_1609459200.000000000_07fabcdef0123456789abcdef0123456789abcdef0123456789abcdef01234_00-00_12288.tar"
	res := ParseListing("12288 "+name+"\n", time.Now())
	if len(res.Index) != 1 {
		t.Errorf("exact size match should be accepted; BadFiles=%v OtherFiles=%v", res.BadFiles, res.OtherFiles)
	}

	res = ParseListing("100 "+name+"\n", time.Now())
	if len(res.BadFiles) != 1 {
		t.Errorf("size mismatch should mark the file bad, got Index=%v BadFiles=%v", res.Index, res.BadFiles)
	}
}

func TestParseListingUnparseableNamesGoToOtherFiles(t *testing.T) {
	res := ParseListing("42 not-an-archive-name.txt\n", time.Now())
	if len(res.OtherFiles) != 1 {
		t.Errorf("OtherFiles = %v, want exactly the unparseable name", res.OtherFiles)
	}
}

func TestDriverListUsesSystem(t *testing.T) {
	name := "s02_1.000000000_ab_00-00_0.tar"
	sys := fakeSystem{stdout: "0 " + name + "\n", rc: Ok()}
	d := NewDriver(sys, Storage{Location: "remote:bucket", Type: RCloneStorage})

	res, rc := d.List()
	if !rc.OK {
		t.Fatalf("List failed: %v", rc.Err)
	}
	if len(res.Index) != 1 {
		t.Errorf("Index = %v, want one entry", res.Index)
	}
}

func TestDriverListPropagatesFailure(t *testing.T) {
	sys := fakeSystem{rc: Err(errTest)}
	d := NewDriver(sys, Storage{Location: "remote:bucket", Type: RCloneStorage})

	_, rc := d.List()
	if rc.OK {
		t.Error("List should propagate a failing RC from the underlying System")
	}
}

var errTest = &testError{}

type testError struct{}

func (*testError) Error() string { return "replicate: injected test failure" }
