package bootimg_test

import (
	"bytes"
	"io"
	"testing"

	"bootimg"
)

// memFile is a minimal in-memory bootimg.File, used by the facade round-trip
// tests in this package (mirrors the unexported memFile used by the
// package's own internal segment tests).
type memFile struct {
	buf []byte
	pos int64
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case bootimg.SeekStart:
		base = 0
	case bootimg.SeekCurrent:
		base = m.pos
	case bootimg.SeekEnd:
		base = int64(len(m.buf))
	}
	m.pos = base + offset
	return m.pos, nil
}

func (m *memFile) Read(buf []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(buf, m.buf[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memFile) Write(buf []byte) (int, error) {
	end := m.pos + int64(len(buf))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], buf)
	m.pos = end
	return len(buf), nil
}

func (m *memFile) Size() (uint64, error) { return uint64(len(m.buf)), nil }
func (m *memFile) IsFatal() bool         { return false }

func writeAndroidImage(t *testing.T, cmdline string, kernel, ramdisk []byte) *memFile {
	t.Helper()
	return writeAndroidOrBumpImage(t, false, cmdline, kernel, ramdisk)
}

func writeBumpImage(t *testing.T, cmdline string, kernel, ramdisk []byte) *memFile {
	t.Helper()
	return writeAndroidOrBumpImage(t, true, cmdline, kernel, ramdisk)
}

func writeAndroidOrBumpImage(t *testing.T, bump bool, cmdline string, kernel, ramdisk []byte) *memFile {
	t.Helper()
	f := &memFile{}

	w := bootimg.NewWriter()
	if bump {
		w.SetFormatBump()
	} else {
		w.SetFormatAndroid()
	}
	if err := w.Open(f); err != nil {
		t.Fatalf("Open: %v", err)
	}

	h := bootimg.NewHeader()
	if err := w.GetHeader(h); err != nil {
		t.Fatalf("GetHeader: %v", err)
	}
	if err := h.SetKernelCmdline(cmdline); err != nil {
		t.Fatalf("SetKernelCmdline: %v", err)
	}
	if err := h.SetPageSize(2048); err != nil {
		t.Fatalf("SetPageSize: %v", err)
	}
	if err := w.WriteHeader(h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	writeSegment := func(data []byte) {
		e := bootimg.NewEntry(0)
		if err := w.GetEntry(&e); err != nil {
			t.Fatalf("GetEntry: %v", err)
		}
		if err := w.WriteEntry(&e); err != nil {
			t.Fatalf("WriteEntry: %v", err)
		}
		if len(data) > 0 {
			if _, err := w.WriteData(data); err != nil {
				t.Fatalf("WriteData: %v", err)
			}
		}
		if err := w.FinishEntry(); err != nil {
			t.Fatalf("FinishEntry: %v", err)
		}
	}

	writeSegment(kernel)
	writeSegment(ramdisk)
	writeSegment(nil) // second
	writeSegment(nil) // dt

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return f
}

func TestAndroidRoundTrip(t *testing.T) {
	kernel := bytes.Repeat([]byte("K"), 100)
	ramdisk := bytes.Repeat([]byte("R"), 200)
	f := writeAndroidImage(t, "console=ttyS0", kernel, ramdisk)

	r := bootimg.NewReader()
	r.EnableFormatAll()
	if err := r.Open(f); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.FormatCode() != bootimg.FormatAndroid {
		t.Fatalf("FormatCode() = %v, want FormatAndroid", r.FormatCode())
	}

	h := bootimg.NewHeader()
	if err := r.ReadHeader(h); err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if cmdline, ok := h.KernelCmdline(); !ok || cmdline != "console=ttyS0" {
		t.Fatalf("KernelCmdline() = %v, %v, want console=ttyS0, true", cmdline, ok)
	}

	var e bootimg.Entry
	if err := r.GoToEntry(&e, bootimg.EntryKernel); err != nil {
		t.Fatalf("GoToEntry(kernel): %v", err)
	}
	buf := make([]byte, len(kernel))
	n, err := r.ReadData(buf)
	if err != nil {
		t.Fatalf("ReadData(kernel): %v", err)
	}
	if n != len(kernel) || !bytes.Equal(buf[:n], kernel) {
		t.Fatalf("kernel payload mismatch: got %d bytes", n)
	}

	if err := r.GoToEntry(&e, bootimg.EntryRamdisk); err != nil {
		t.Fatalf("GoToEntry(ramdisk): %v", err)
	}
	buf = make([]byte, len(ramdisk))
	n, err = r.ReadData(buf)
	if err != nil {
		t.Fatalf("ReadData(ramdisk): %v", err)
	}
	if n != len(ramdisk) || !bytes.Equal(buf[:n], ramdisk) {
		t.Fatalf("ramdisk payload mismatch: got %d bytes", n)
	}
}

func TestAndroidVsBumpBidding(t *testing.T) {
	// A plain Android image carries the Samsung trailer magic, which Bump
	// doesn't recognize, so Android should win bidding with a strictly
	// higher score (magic alone vs. magic + trailer).
	f := writeAndroidImage(t, "", nil, []byte("x"))

	r := bootimg.NewReader()
	r.EnableFormatAll()
	if err := r.Open(f); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.FormatCode() != bootimg.FormatAndroid {
		t.Fatalf("FormatCode() = %v, want FormatAndroid (higher trailer-magic bid)", r.FormatCode())
	}
}

func TestBumpVsAndroidBidding(t *testing.T) {
	// A Bump image carries the "bump" trailer magic instead of the Samsung
	// SEANDROIDENFORCE one, so Android's trailer probe lands on "bump" and
	// fails to match: Android bids on its magic alone, and Bump outbids it
	// with magic + trailer.
	f := writeBumpImage(t, "", nil, []byte("x"))

	r := bootimg.NewReader()
	r.EnableFormatAll()
	if err := r.Open(f); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.FormatCode() != bootimg.FormatBump {
		t.Fatalf("FormatCode() = %v, want FormatBump (Android's trailer magic doesn't match)", r.FormatCode())
	}
}
