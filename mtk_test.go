package bootimg_test

import (
	"bytes"
	"testing"

	"bootimg"
)

func TestMtkRoundTrip(t *testing.T) {
	f := &memFile{}

	w := bootimg.NewWriter()
	w.SetFormatMtk()
	if err := w.Open(f); err != nil {
		t.Fatalf("Open: %v", err)
	}

	h := bootimg.NewHeader()
	if err := w.GetHeader(h); err != nil {
		t.Fatalf("GetHeader: %v", err)
	}
	if err := h.SetPageSize(2048); err != nil {
		t.Fatalf("SetPageSize: %v", err)
	}
	if err := w.WriteHeader(h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	kernel := bytes.Repeat([]byte("K"), 50)
	ramdisk := bytes.Repeat([]byte("R"), 70)

	writeSeg := func(data []byte) {
		var e bootimg.Entry
		if err := w.GetEntry(&e); err != nil {
			t.Fatalf("GetEntry: %v", err)
		}
		if err := w.WriteEntry(&e); err != nil {
			t.Fatalf("WriteEntry: %v", err)
		}
		if _, err := w.WriteData(data); err != nil {
			t.Fatalf("WriteData: %v", err)
		}
		if err := w.FinishEntry(); err != nil {
			t.Fatalf("FinishEntry: %v", err)
		}
	}

	writeSeg(kernel)
	writeSeg(ramdisk)

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := bootimg.NewReader()
	r.EnableFormatAll()
	if err := r.Open(f); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.FormatCode() != bootimg.FormatMtk {
		t.Fatalf("FormatCode() = %v, want FormatMtk", r.FormatCode())
	}

	rh := bootimg.NewHeader()
	if err := r.ReadHeader(rh); err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}

	var e bootimg.Entry
	if err := r.GoToEntry(&e, bootimg.EntryMtkKernel); err != nil {
		t.Fatalf("GoToEntry(mtk kernel): %v", err)
	}
	buf := make([]byte, len(kernel))
	n, err := r.ReadData(buf)
	if err != nil {
		t.Fatalf("ReadData(mtk kernel): %v", err)
	}
	if n != len(kernel) || !bytes.Equal(buf[:n], kernel) {
		t.Fatalf("mtk kernel payload mismatch: got %d bytes", n)
	}

	if err := r.GoToEntry(&e, bootimg.EntryMtkRamdisk); err != nil {
		t.Fatalf("GoToEntry(mtk ramdisk): %v", err)
	}
	buf = make([]byte, len(ramdisk))
	n, err = r.ReadData(buf)
	if err != nil {
		t.Fatalf("ReadData(mtk ramdisk): %v", err)
	}
	if n != len(ramdisk) || !bytes.Equal(buf[:n], ramdisk) {
		t.Fatalf("mtk ramdisk payload mismatch: got %d bytes", n)
	}
}
