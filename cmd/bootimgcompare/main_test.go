package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"bootimg"
)

func writeAndroidImage(t *testing.T, path, cmdline string, kernel, ramdisk []byte) {
	t.Helper()

	w := bootimg.NewWriter()
	w.SetFormatAndroid()
	if err := w.OpenFilename(path); err != nil {
		t.Fatalf("OpenFilename(%s): %v", path, err)
	}
	defer w.Close()

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

	writeSeg := func(data []byte) {
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

	writeSeg(kernel)
	writeSeg(ramdisk)
	writeSeg(nil)
	writeSeg(nil)
}

func TestCompareIdenticalImages(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.img")
	p2 := filepath.Join(dir, "b.img")

	kernel := bytes.Repeat([]byte("K"), 300)
	ramdisk := bytes.Repeat([]byte("R"), 150)
	writeAndroidImage(t, p1, "console=ttyS0", kernel, ramdisk)
	writeAndroidImage(t, p2, "console=ttyS0", kernel, ramdisk)

	code, err := compare(p1, p2)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if code != 0 {
		t.Fatalf("compare() = %d, want 0 for byte-identical images", code)
	}
}

func TestCompareDifferingHeader(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.img")
	p2 := filepath.Join(dir, "b.img")

	kernel := bytes.Repeat([]byte("K"), 100)
	ramdisk := bytes.Repeat([]byte("R"), 100)
	writeAndroidImage(t, p1, "console=ttyS0", kernel, ramdisk)
	writeAndroidImage(t, p2, "console=ttyS1", kernel, ramdisk)

	code, err := compare(p1, p2)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if code != 2 {
		t.Fatalf("compare() = %d, want 2 for differing cmdline", code)
	}
}

func TestCompareDifferingData(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.img")
	p2 := filepath.Join(dir, "b.img")

	writeAndroidImage(t, p1, "console=ttyS0", bytes.Repeat([]byte("K"), 100), bytes.Repeat([]byte("R"), 100))
	writeAndroidImage(t, p2, "console=ttyS0", bytes.Repeat([]byte("X"), 100), bytes.Repeat([]byte("R"), 100))

	code, err := compare(p1, p2)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if code != 2 {
		t.Fatalf("compare() = %d, want 2 for differing kernel data", code)
	}
}

func writeSonyElfImage(t *testing.T, path, cmdline string, kernel, ramdisk []byte) {
	t.Helper()

	w := bootimg.NewWriter()
	w.SetFormatSonyElf()
	if err := w.OpenFilename(path); err != nil {
		t.Fatalf("OpenFilename(%s): %v", path, err)
	}
	defer w.Close()

	h := bootimg.NewHeader()
	if err := w.GetHeader(h); err != nil {
		t.Fatalf("GetHeader: %v", err)
	}
	if err := h.SetKernelAddress(0x40008000); err != nil {
		t.Fatalf("SetKernelAddress: %v", err)
	}
	if err := h.SetKernelCmdline(cmdline); err != nil {
		t.Fatalf("SetKernelCmdline: %v", err)
	}
	if err := w.WriteHeader(h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	writeSeg := func(data []byte) {
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

	writeSeg(kernel)
	writeSeg(ramdisk)
	writeSeg(nil) // ipl
	writeSeg(nil) // rpm
	writeSeg(nil) // appsbl
}

func TestCompareSonyElfIdentical(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.elf")
	p2 := filepath.Join(dir, "b.elf")

	kernel := bytes.Repeat([]byte("K"), 64)
	ramdisk := bytes.Repeat([]byte("R"), 32)
	writeSonyElfImage(t, p1, "console=ttyS0", kernel, ramdisk)
	writeSonyElfImage(t, p2, "console=ttyS0", kernel, ramdisk)

	code, err := compare(p1, p2)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if code != 0 {
		t.Fatalf("compare() = %d, want 0 for byte-identical Sony ELF images", code)
	}
}

func TestCompareSonyElfDifferingCmdline(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.elf")
	p2 := filepath.Join(dir, "b.elf")

	kernel := bytes.Repeat([]byte("K"), 64)
	ramdisk := bytes.Repeat([]byte("R"), 32)
	writeSonyElfImage(t, p1, "console=ttyS0", kernel, ramdisk)
	writeSonyElfImage(t, p2, "console=ttyS1", kernel, ramdisk)

	code, err := compare(p1, p2)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if code != 2 {
		t.Fatalf("compare() = %d, want 2 for differing Sony ELF cmdline", code)
	}
}
