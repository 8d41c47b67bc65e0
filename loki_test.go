package bootimg_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"bootimg"
)

func TestLokiRoundTripNewVariant(t *testing.T) {
	f := &memFile{}

	w := bootimg.NewWriter()
	w.SetFormatLoki()
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
	if err := h.SetRamdiskAddress(0x02000000); err != nil {
		t.Fatalf("SetRamdiskAddress: %v", err)
	}
	if err := w.WriteHeader(h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	kernel := bytes.Repeat([]byte("K"), 128)
	ramdisk := bytes.Repeat([]byte("R"), 64)

	writeSeg := func(data []byte) {
		var e bootimg.Entry
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

	writeSeg(kernel)
	writeSeg(ramdisk)
	writeSeg(nil) // second
	writeSeg(nil) // dt

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := bootimg.NewReader()
	r.EnableFormatAll()
	if err := r.Open(f); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.FormatCode() != bootimg.FormatLoki {
		t.Fatalf("FormatCode() = %v, want FormatLoki", r.FormatCode())
	}

	rh := bootimg.NewHeader()
	if err := r.ReadHeader(rh); err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if v, ok := rh.RamdiskAddress(); !ok || v != 0x02000000 {
		t.Fatalf("RamdiskAddress() = %v, %v, want 0x02000000, true", v, ok)
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

func TestLokiWriterAbootOption(t *testing.T) {
	f := &memFile{}
	aboot := []byte("fake aboot payload")

	w := bootimg.NewWriter()
	w.SetFormatLoki()
	if err := w.Open(f); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if ok, err := w.SetOption("aboot", hex.EncodeToString(aboot)); err != nil || !ok {
		t.Fatalf("SetOption(aboot) = %v, %v", ok, err)
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

	writeSeg := func(data []byte) {
		var e bootimg.Entry
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

	writeSeg(bytes.Repeat([]byte("K"), 32))
	writeSeg(bytes.Repeat([]byte("R"), 16))
	writeSeg(nil)
	writeSeg(nil)

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !bytes.Contains(f.buf, aboot) {
		t.Fatalf("written file does not contain the aboot blob")
	}
	if !bytes.HasSuffix(f.buf, []byte("BOOT")) {
		t.Fatalf("written file does not end with the loki trailer magic")
	}
}

func TestLokiWriterAbootOptionRejectsInvalidHex(t *testing.T) {
	w := bootimg.NewWriter()
	w.SetFormatLoki()
	if _, err := w.SetOption("aboot", "not-hex!"); err == nil {
		t.Fatalf("SetOption(aboot, invalid hex) = nil error, want error")
	}
}
