// tarname/tarname_test.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package tarname

import "testing"

func TestFormatParseRoundTripV2(t *testing.T) {
	// PartNr and NumParts must be equal and require at least two natural
	// hex digits (>= 0x10): that's the only case where the num_parts
	// quirk-preservation (see TestParseV2NumPartsBugPreserved) recovers
	// the original value rather than a truncated part_nr digit.
	n := Name{
		Type: 's', Version: 2, Sec: 1609459200, Nsec: 123456789,
		Size: 1119232, HeaderHash: "07fabcdef0123456789abcdef0123456789abcdef0123456789abcdef01234",
		PartNr: 0x12, NumParts: 0x12, Suffix: "tar",
	}
	name, err := Format(n)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	got, err := Parse(name)
	if err != nil {
		t.Fatalf("Parse(%q): %v", name, err)
	}
	if got != n {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, n)
	}
}

func TestFormatV1RejectsNonzeroPart(t *testing.T) {
	n := Name{Type: 's', Version: 1, Sec: 1, Nsec: 0, Size: 0, HeaderHash: "ab", PartNr: 1, Suffix: "tar"}
	if _, err := Format(n); err == nil {
		t.Errorf("Format with Version=1, PartNr=1 should fail")
	}
}

func TestParseV2NumPartsBugPreserved(t *testing.T) {
	// part_nr=7, num_parts=15 rendered as "07-f": num_parts is re-read
	// from part_nr's own start offset but with num_parts' field width (one
	// digit here), so it comes out as "0", not "f" -- num_parts ends up 0,
	// not 15 and not part_nr. Equal-width fields (e.g. "3-9") coincidentally
	// reproduce part_nr and don't exercise this.
	name := "s02_1.000000000_abcd_07-f_100.tar"
	got, err := Parse(name)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.PartNr != 7 {
		t.Errorf("PartNr = %d, want 7", got.PartNr)
	}
	if got.NumParts != 0 {
		t.Errorf("NumParts = %d, want 0, per the preserved bug", got.NumParts)
	}
}

func TestIsIndexFile(t *testing.T) {
	if !IsIndexFile("z01_000000000001.000000000_0_abcd_0.gz") {
		t.Error("z01_*.gz should be recognised as the index file")
	}
	if IsIndexFile("s02_1.000000000_abcd_0-0_100.tar") {
		t.Error("a data archive should not be recognised as the index file")
	}
}

func TestParseRejectsBadGrammar(t *testing.T) {
	cases := []string{
		"",
		"short",
		"s99_garbage",
		"z01_000000000001.000000000_0_abcd_0.tar", // type 'z' must pair with suffix "gz"
	}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Errorf("Parse(%q) should fail", c)
		}
	}
}

func TestParseV1(t *testing.T) {
	name := "s01_000000001234.000000789_4096_deadbeef_0.tar"
	n, err := Parse(name)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n.Sec != 1234 || n.Nsec != 789 || n.Size != 4096 || n.HeaderHash != "deadbeef" {
		t.Errorf("parsed fields wrong: %+v", n)
	}
}
