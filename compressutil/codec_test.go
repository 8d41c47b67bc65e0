package compressutil_test

import (
	"bytes"
	"io"
	"testing"

	"bootimg/compressutil"
)

func TestSniff(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want compressutil.Format
	}{
		{"gzip", []byte("\x1f\x8b\x08\x00\x00\x00\x00\x00"), compressutil.Gzip},
		{"xz", []byte("\xfd7zXZ\x00"), compressutil.Xz},
		{"bzip2", []byte("BZh9"), compressutil.Bzip2},
		{"lz4", []byte("\x04\x22\x4d\x18"), compressutil.Lz4},
		{"lz4_legacy", []byte("\x02\x21\x4c\x18"), compressutil.Lz4Legacy},
		{"unknown", []byte("garbage!"), compressutil.None},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := compressutil.Sniff(c.data); got != c.want {
				t.Fatalf("Sniff(%q) = %v, want %v", c.name, got, c.want)
			}
		})
	}
}

func roundTrip(t *testing.T, f compressutil.Format, payload []byte) {
	t.Helper()

	var buf bytes.Buffer
	w, err := compressutil.NewEncoder(f, &buf)
	if err != nil {
		t.Fatalf("NewEncoder(%v): %v", f, err)
	}
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := compressutil.NewDecoder(f, &buf)
	if err != nil {
		t.Fatalf("NewDecoder(%v): %v", f, err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	r.Close()

	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch for %v: got %d bytes, want %d bytes", f, len(got), len(payload))
	}
}

func TestRoundTripGzip(t *testing.T) {
	roundTrip(t, compressutil.Gzip, []byte("the quick brown fox jumps over the lazy dog"))
}

func TestRoundTripXz(t *testing.T) {
	roundTrip(t, compressutil.Xz, bytes.Repeat([]byte("ramdisk payload "), 64))
}

func TestRoundTripLzma(t *testing.T) {
	roundTrip(t, compressutil.Lzma, bytes.Repeat([]byte("kernel payload "), 64))
}

func TestRoundTripBzip2(t *testing.T) {
	roundTrip(t, compressutil.Bzip2, bytes.Repeat([]byte("second stage "), 64))
}

func TestRoundTripLz4(t *testing.T) {
	roundTrip(t, compressutil.Lz4, bytes.Repeat([]byte("device tree "), 64))
}

func TestLz4LegacyRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("legacy android kernel image "), 128)

	encoded, err := compressutil.EncodeLz4Legacy(payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if compressutil.Sniff(encoded) != compressutil.Lz4Legacy {
		t.Fatalf("encoded data not sniffed as lz4_legacy")
	}

	decoded, err := compressutil.DecodeLz4Legacy(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("lz4 legacy round trip mismatch")
	}
}
