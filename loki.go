package bootimg

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
)

// LokiReader implements FormatReader for Loki, the loki_patch obfuscation
// scheme that rewrites an Android boot image so a locked Samsung/LG
// bootloader's signature check on the aboot partition still passes. A
// Loki'd image carries a normal-looking Android header followed by a LOKI
// marker block at a fixed offset; because the Android header's own
// kernel/ramdisk sizes get overwritten during patching, the true values have
// to be recovered either from the Loki header itself ("new" variant) or by
// scanning for the ramdisk's gzip magic within the kernel region ("old"
// variant, a documented heuristic with no canonical fixture to check it
// against).
type LokiReader struct {
	androidHdr   androidHeader
	headerOffset uint64
	lokiHdr      lokiHeader

	seg SegmentReader
}

func NewLokiReader() *LokiReader { return &LokiReader{} }

func (r *LokiReader) TypeID() FormatID { return FormatLoki }
func (r *LokiReader) Name() string     { return FormatLoki.String() }

func (r *LokiReader) SetOption(key, value string) (bool, error) { return false, nil }

func readLokiHeader(f File) (lokiHeader, error) {
	var hdr lokiHeader
	buf := make([]byte, binary.Size(hdr))
	if err := readExactAt(f, lokiMagicOffset, buf); err != nil {
		return hdr, err
	}
	if string(buf[:4]) != lokiMagic {
		return hdr, newErr(CategoryLoki, ErrLokiHeaderNotFound, "loki magic not found at offset 0x%x", lokiMagicOffset)
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &hdr); err != nil {
		return hdr, wrapErr(CategoryFile, ErrIo, err, "decode loki header failed: %v", err)
	}
	return hdr, nil
}

func (r *LokiReader) Bid(f File, bestBid int) (int, error) {
	maxBits := (bootMagicSize + 4) * 8
	if bestBid >= maxBits {
		return BidUnwinnable, nil
	}

	hdr, offset, err := findAndroidHeader(f)
	if err != nil {
		if e, ok := err.(*Error); ok && e.Category == CategoryAndroid && (e.Code == ErrHeaderNotFound || e.Code == ErrHeaderOutOfBounds) {
			return BidNo, nil
		}
		return BidError, err
	}

	lokiHdr, err := readLokiHeader(f)
	if err != nil {
		if e, ok := err.(*Error); ok && e.Category == CategoryLoki && e.Code == ErrLokiHeaderNotFound {
			return BidNo, nil
		}
		return BidError, err
	}

	r.androidHdr = hdr
	r.headerOffset = offset
	r.lokiHdr = lokiHdr
	return maxBits, nil
}

func (r *LokiReader) ReadHeader(f File, out *Header) error {
	if r.headerOffset == 0 && r.androidHdr.Magic[0] == 0 {
		hdr, offset, err := findAndroidHeader(f)
		if err != nil {
			return err
		}
		lokiHdr, err := readLokiHeader(f)
		if err != nil {
			return err
		}
		r.androidHdr = hdr
		r.headerOffset = offset
		r.lokiHdr = lokiHdr
	}

	out.SetSupportedFields(androidSupportedFields)
	if err := out.SetBoardName(cStringFromBytes(r.androidHdr.Name[:])); err != nil {
		return err
	}
	if err := out.SetKernelCmdline(cStringFromBytes(r.androidHdr.Cmdline[:])); err != nil {
		return err
	}
	if err := out.SetPageSize(r.androidHdr.PageSize); err != nil {
		return err
	}
	if err := out.SetKernelAddress(r.androidHdr.KernelAddr); err != nil {
		return err
	}
	ramdiskAddr := r.androidHdr.RamdiskAddr
	if r.lokiHdr.RamdiskAddr != 0 {
		ramdiskAddr = r.lokiHdr.RamdiskAddr
	}
	if err := out.SetRamdiskAddress(ramdiskAddr); err != nil {
		return err
	}
	if err := out.SetKernelTagsAddress(r.androidHdr.TagsAddr); err != nil {
		return err
	}

	pageSize := r.androidHdr.PageSize
	kernelOffset := r.headerOffset + uint64(binary.Size(r.androidHdr))
	kernelOffset += AlignPageSize(kernelOffset, pageSize)

	kernelSize, ramdiskOffset, ramdiskSize, err := r.recoverSizes(f, kernelOffset, pageSize)
	if err != nil {
		return err
	}

	entries := []segReaderEntry{
		{EntryKernel, kernelOffset, kernelSize, false},
		{EntryRamdisk, ramdiskOffset, ramdiskSize, false},
	}
	return r.seg.SetEntries(entries)
}

// recoverSizes implements the two Loki recovery strategies. "New" variant:
// the Loki header itself recorded the original sizes at patch time. "Old"
// variant: recover the kernel's true size from
// the zImage header embedded within it, then scan forward from the end of
// the kernel for the gzip magic: the first hit marks the ramdisk's start,
// and a second hit, if any, marks its end. Without a second hit the
// ramdisk runs to the end of the file.
func (r *LokiReader) recoverSizes(f File, kernelOffset uint64, pageSize uint32) (kernelSize, ramdiskOffset, ramdiskSize uint64, err error) {
	if r.lokiHdr.OrigKernelSize != 0 && r.lokiHdr.OrigRamdiskSize != 0 {
		kernelSize = uint64(r.lokiHdr.OrigKernelSize)
		ramdiskOffset = kernelOffset + kernelSize
		ramdiskOffset += AlignPageSize(ramdiskOffset, pageSize)
		ramdiskSize = uint64(r.lokiHdr.OrigRamdiskSize)
		return
	}

	zbuf := make([]byte, binary.Size(zImageHeader{}))
	if e := readExactAt(f, int64(kernelOffset), zbuf); e != nil {
		err = e
		return
	}
	var zhdr zImageHeader
	if e := binary.Read(bytes.NewReader(zbuf), binary.LittleEndian, &zhdr); e != nil {
		err = wrapErr(CategoryFile, ErrIo, e, "decode zImage header failed: %v", e)
		return
	}
	if zhdr.Magic != zImageMagicLE || zhdr.End <= zhdr.Start {
		err = newErr(CategoryLoki, ErrKernelSizeOutOfBounds, "zImage header not found or invalid in kernel region")
		return
	}
	kernelSize = uint64(zhdr.End - zhdr.Start)

	fileSize, sizeErr := f.Size()
	if sizeErr != nil {
		err = wrapErr(CategoryFile, ErrIo, sizeErr, "size failed: %v", sizeErr)
		return
	}
	scanStart := kernelOffset + kernelSize
	if scanStart >= fileSize {
		err = newErr(CategoryLoki, ErrGzipOffsetNotFound, "no room to scan for ramdisk gzip magic")
		return
	}
	window := make([]byte, fileSize-scanStart)
	if e := readExactAt(f, int64(scanStart), window); e != nil {
		err = e
		return
	}

	first := findPattern(window, []byte(gzipMagic))
	if first < 0 {
		err = newErr(CategoryLoki, ErrGzipOffsetNotFound, "ramdisk gzip magic not found after kernel")
		return
	}
	ramdiskOffset = scanStart + uint64(first)

	rest := window[first+len(gzipMagic):]
	if second := findPattern(rest, []byte(gzipMagic)); second >= 0 {
		ramdiskSize = uint64(second + len(gzipMagic))
	} else {
		ramdiskSize = fileSize - ramdiskOffset
	}
	if ramdiskOffset+ramdiskSize > fileSize {
		err = newErr(CategoryLoki, ErrRamdiskSizeOutOfBounds, "recovered ramdisk size exceeds file bounds")
		return
	}
	return
}

func (r *LokiReader) ReadEntry(f File, out *Entry) error              { return r.seg.ReadEntry(f, out) }
func (r *LokiReader) GoToEntry(f File, out *Entry, t EntryType) error { return r.seg.GoToEntry(f, out, t) }
func (r *LokiReader) ReadData(f File, buf []byte) (int, error)       { return r.seg.ReadData(f, buf) }

// --- Writer ---

// LokiWriter builds on the same Android-shaped header/segment layout as
// AndroidWriter, additionally digesting the payload bytes passed to
// WriteData with SHA-1 for the uniform header's id field, appending a caller-supplied "aboot" blob
// (set via the "aboot" option, hex-encoded) after the Loki marker block,
// and writing the Loki trailer magic instead of a bare trailer.
type LokiWriter struct {
	inner  AndroidWriter
	aboot  []byte
	digest *sha1Digester
}

func NewLokiWriter() *LokiWriter {
	return &LokiWriter{inner: AndroidWriter{pageSize: 2048}}
}

func (w *LokiWriter) TypeID() FormatID { return FormatLoki }
func (w *LokiWriter) Name() string     { return FormatLoki.String() }

func (w *LokiWriter) SetOption(key, value string) (bool, error) {
	if key != "aboot" {
		return false, nil
	}
	blob, err := hex.DecodeString(value)
	if err != nil {
		return true, newErr(CategoryGeneric, ErrInvalidArgument, "aboot option is not valid hex: %v", err)
	}
	w.aboot = blob
	return true, nil
}

func (w *LokiWriter) GetHeader(f File, out *Header) error { return w.inner.GetHeader(f, out) }

func (w *LokiWriter) WriteHeader(f File, h *Header) error {
	w.digest = newSHA1Digester()
	return w.inner.WriteHeader(f, h)
}

func (w *LokiWriter) GetEntry(f File, out *Entry) error { return w.inner.GetEntry(f, out) }

func (w *LokiWriter) WriteEntry(f File, e *Entry) error { return w.inner.WriteEntry(f, e) }

func (w *LokiWriter) WriteData(f File, buf []byte) (int, error) {
	n, err := w.inner.WriteData(f, buf)
	if err == nil && w.digest != nil {
		w.digest.Write(buf[:n])
	}
	return n, err
}

func (w *LokiWriter) FinishEntry(f File) error { return w.inner.FinishEntry(f) }

func (w *LokiWriter) Close(f File) error {
	if !w.inner.seg.Done() {
		return nil
	}

	var idSum [20]byte
	if w.digest != nil {
		idSum = w.digest.Sum()
	}
	copy(w.inner.hdr.Id[:], idSum[:])

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &w.inner.hdr); err != nil {
		return wrapErr(CategoryFile, ErrIo, err, "encode header failed: %v", err)
	}
	if err := writeExactAt(f, 0, buf.Bytes()); err != nil {
		return err
	}

	var lokiHdr lokiHeader
	copy(lokiHdr.Magic[:], lokiMagic)
	lokiHdr.OrigKernelSize = w.inner.hdr.KernelSize
	lokiHdr.OrigRamdiskSize = w.inner.hdr.RamdiskSize
	lokiHdr.RamdiskAddr = w.inner.hdr.RamdiskAddr

	var lbuf bytes.Buffer
	if err := binary.Write(&lbuf, binary.LittleEndian, &lokiHdr); err != nil {
		return wrapErr(CategoryFile, ErrIo, err, "encode loki header failed: %v", err)
	}
	if err := writeExactAt(f, lokiMagicOffset, lbuf.Bytes()); err != nil {
		return err
	}

	if _, err := f.Seek(0, SeekEnd); err != nil {
		return wrapErr(CategoryFile, ErrSeek, err, "seek to end failed: %v", err)
	}
	if len(w.aboot) > 0 {
		if err := writeExact(f, w.aboot); err != nil {
			return err
		}
	}
	return writeExact(f, []byte(lokiTrailerMagic))
}
