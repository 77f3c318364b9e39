// tarcodec/header_test.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package tarcodec

import (
	"strings"
	"testing"
)

func getHeader(t *testing.T) Header {
	return Header{
		Name: "some/dir/file.txt", Mode: 0644, UID: 501, GID: 20,
		Size: 12345, ModTime: 1609459200, Typeflag: TypeRegular,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := getHeader(t)
	b, err := Encode(h)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(b)%BlockSize != 0 {
		t.Fatalf("Encode produced %d bytes, not a multiple of %d", len(b), BlockSize)
	}

	got, err := Decode(b[len(b)-BlockSize:])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Name != h.Name || got.Size != h.Size || got.Mode != h.Mode ||
		got.UID != h.UID || got.GID != h.GID || got.Typeflag != h.Typeflag {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestEncodeLongName(t *testing.T) {
	h := getHeader(t)
	h.Name = strings.Repeat("a/", 150) + "file.txt"
	b, err := Encode(h)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(b) <= BlockSize {
		t.Fatalf("expected a long-name continuation block, got only %d bytes", len(b))
	}
}

func TestDecodeChecksumMismatch(t *testing.T) {
	h := getHeader(t)
	b, err := Encode(h)
	if err != nil {
		t.Fatal(err)
	}
	last := b[len(b)-BlockSize:]
	last[0] ^= 0xff
	if _, err := Decode(last); err == nil {
		t.Error("Decode of corrupted header should fail checksum validation")
	}
}

func TestPadToBlock(t *testing.T) {
	cases := []struct{ in, want int64 }{
		{0, 0}, {1, 512}, {512, 512}, {513, 1024},
	}
	for _, c := range cases {
		if got := PadToBlock(c.in); got != c.want {
			t.Errorf("PadToBlock(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestMultiVolHeaderRoundTrip(t *testing.T) {
	h := getHeader(t)
	h.Typeflag = TypeMultiVol
	h.MultiVolOffset = 9000
	h.Size = h.Size - h.MultiVolOffset
	b, err := Encode(h)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.MultiVolOffset != h.MultiVolOffset {
		t.Errorf("MultiVolOffset = %d, want %d", got.MultiVolOffset, h.MultiVolOffset)
	}
}
