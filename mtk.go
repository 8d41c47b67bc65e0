package bootimg

import (
	"bytes"
	"encoding/binary"
)

const mtkHeaderSize = 512 // sizeof(mtkHeader): 4+4+32+472

// MtkReader implements FormatReader for Mtk-wrapped Android boot images:
// an ordinary Android header and segment layout, except the kernel and
// ramdisk payloads are each prefixed by a fixed-size Mtk sub-header (magic,
// declared size, a name field) that the outer Android header's own
// kernel_size/ramdisk_size fields already account for. Ground on the
// MtkHdr struct from the original magiskboot_go sources.
type MtkReader struct {
	androidHdr   androidHeader
	headerOffset uint64
	haveHeader   bool

	seg SegmentReader
}

func NewMtkReader() *MtkReader { return &MtkReader{} }

func (r *MtkReader) TypeID() FormatID { return FormatMtk }
func (r *MtkReader) Name() string     { return FormatMtk.String() }

func (r *MtkReader) SetOption(key, value string) (bool, error) { return false, nil }

func readMtkSubheader(f File, offset uint64) (mtkHeader, error) {
	var hdr mtkHeader
	buf := make([]byte, binary.Size(hdr))
	if err := readExactAt(f, int64(offset), buf); err != nil {
		return hdr, err
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &hdr); err != nil {
		return hdr, wrapErr(CategoryFile, ErrIo, err, "decode mtk subheader failed: %v", err)
	}
	if hdr.Magic != mtkHeaderMagic {
		return hdr, newErr(CategoryMtk, ErrMtkSubheaderNotFound, "mtk subheader magic not found at %d", offset)
	}
	return hdr, nil
}

func (r *MtkReader) Bid(f File, bestBid int) (int, error) {
	maxBits := (bootMagicSize + 4) * 8 // android magic + one mtk subheader magic (4 bytes)
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

	kernelOffset := offset + uint64(binary.Size(hdr))
	kernelOffset += AlignPageSize(kernelOffset, hdr.PageSize)

	if _, err := readMtkSubheader(f, kernelOffset); err != nil {
		if e, ok := err.(*Error); ok && e.Category == CategoryMtk && e.Code == ErrMtkSubheaderNotFound {
			return BidNo, nil
		}
		return BidError, err
	}

	r.androidHdr = hdr
	r.headerOffset = offset
	r.haveHeader = true
	return maxBits, nil
}

func (r *MtkReader) ReadHeader(f File, out *Header) error {
	if !r.haveHeader {
		hdr, offset, err := findAndroidHeader(f)
		if err != nil {
			return err
		}
		r.androidHdr = hdr
		r.headerOffset = offset
		r.haveHeader = true
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
	if err := out.SetRamdiskAddress(r.androidHdr.RamdiskAddr); err != nil {
		return err
	}
	if err := out.SetKernelTagsAddress(r.androidHdr.TagsAddr); err != nil {
		return err
	}

	pageSize := r.androidHdr.PageSize
	pos := r.headerOffset + uint64(binary.Size(r.androidHdr))
	pos += AlignPageSize(pos, pageSize)

	kernelSubOffset := pos
	kernelSub, err := readMtkSubheader(f, kernelSubOffset)
	if err != nil {
		return err
	}
	kernelDataOffset := kernelSubOffset + mtkHeaderSize
	pos += uint64(r.androidHdr.KernelSize)
	pos += AlignPageSize(pos, pageSize)

	ramdiskSubOffset := pos
	ramdiskSub, err := readMtkSubheader(f, ramdiskSubOffset)
	if err != nil {
		return err
	}
	ramdiskDataOffset := ramdiskSubOffset + mtkHeaderSize
	pos += uint64(r.androidHdr.RamdiskSize)
	pos += AlignPageSize(pos, pageSize)

	entries := []segReaderEntry{
		{EntryMtkKernel, kernelDataOffset, uint64(kernelSub.Size), false},
		{EntryMtkRamdisk, ramdiskDataOffset, uint64(ramdiskSub.Size), false},
	}
	return r.seg.SetEntries(entries)
}

func (r *MtkReader) ReadEntry(f File, out *Entry) error              { return r.seg.ReadEntry(f, out) }
func (r *MtkReader) GoToEntry(f File, out *Entry, t EntryType) error { return r.seg.GoToEntry(f, out, t) }
func (r *MtkReader) ReadData(f File, buf []byte) (int, error)       { return r.seg.ReadData(f, buf) }

// --- Writer ---

// MtkWriter wraps each of the kernel/ramdisk payloads with an Mtk
// sub-header before handing them to the same page-aligned Android segment
// layout AndroidWriter uses.
type MtkWriter struct {
	inner AndroidWriter
	seg   SegmentWriter
}

func NewMtkWriter() *MtkWriter { return &MtkWriter{inner: AndroidWriter{pageSize: 2048}} }

func (w *MtkWriter) TypeID() FormatID { return FormatMtk }
func (w *MtkWriter) Name() string     { return FormatMtk.String() }

func (w *MtkWriter) SetOption(key, value string) (bool, error) { return false, nil }

func (w *MtkWriter) GetHeader(f File, out *Header) error { return w.inner.GetHeader(f, out) }

func (w *MtkWriter) WriteHeader(f File, h *Header) error {
	w.inner.hdr = androidHeader{}
	copy(w.inner.hdr.Magic[:], bootMagic)
	if v, ok := h.PageSize(); ok && v != 0 {
		w.inner.pageSize = v
	} else {
		w.inner.pageSize = 2048
	}
	w.inner.hdr.PageSize = w.inner.pageSize
	if v, ok := h.BoardName(); ok {
		copy(w.inner.hdr.Name[:], v)
	}
	if v, ok := h.KernelCmdline(); ok {
		copy(w.inner.hdr.Cmdline[:], v)
	}
	if v, ok := h.KernelAddress(); ok {
		w.inner.hdr.KernelAddr = v
	}
	if v, ok := h.RamdiskAddress(); ok {
		w.inner.hdr.RamdiskAddr = v
	}
	if v, ok := h.KernelTagsAddress(); ok {
		w.inner.hdr.TagsAddr = v
	}

	entries := []segWriterEntry{
		{Type: EntryMtkKernel, Alignment: w.inner.pageSize},
		{Type: EntryMtkRamdisk, Alignment: w.inner.pageSize},
	}
	if err := w.seg.SetEntries(entries); err != nil {
		return err
	}
	if _, err := f.Seek(int64(w.inner.pageSize), SeekStart); err != nil {
		return wrapErr(CategoryFile, ErrSeek, err, "seek past header failed: %v", err)
	}
	return nil
}

func (w *MtkWriter) GetEntry(f File, out *Entry) error { return w.seg.GetEntry(out) }

func (w *MtkWriter) WriteEntry(f File, e *Entry) error {
	var name string
	switch e.Type {
	case EntryMtkKernel:
		name = "KERNEL"
	case EntryMtkRamdisk:
		name = "ROOTFS"
	}
	var sub mtkHeader
	sub.Magic = mtkHeaderMagic
	if size, ok := e.Size(); ok {
		sub.Size = uint32(size)
	}
	copy(sub.Name[:], name)

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &sub); err != nil {
		return wrapErr(CategoryFile, ErrIo, err, "encode mtk subheader failed: %v", err)
	}
	if err := writeExact(f, buf.Bytes()); err != nil {
		return err
	}
	return w.seg.WriteEntry(f, e)
}

func (w *MtkWriter) WriteData(f File, buf []byte) (int, error) { return w.seg.WriteData(f, buf) }

// mtkSubheaderSizeOffset is the byte offset of mtkHeader.Size within the
// encoded sub-header (after the 4-byte Magic field).
const mtkSubheaderSizeOffset = 4

func (w *MtkWriter) FinishEntry(f File) error {
	if err := w.seg.FinishEntry(f); err != nil {
		return err
	}
	e := w.seg.CurrentEntry()

	// The sub-header was written before its payload, with Size left at
	// whatever the caller pre-declared (usually 0, since callers normally
	// don't know the size up front). Now that FinishEntry has recorded the
	// actual written size, seek back and patch just that field.
	endPos, err := f.Seek(0, SeekCurrent)
	if err != nil {
		return wrapErr(CategoryFile, ErrSeek, err, "tell failed: %v", err)
	}
	subOffset := e.Offset - mtkHeaderSize
	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], uint32(e.Size))
	if err := writeExactAt(f, int64(subOffset+mtkSubheaderSizeOffset), sizeBuf[:]); err != nil {
		return err
	}
	if _, err := f.Seek(endPos, SeekStart); err != nil {
		return wrapErr(CategoryFile, ErrSeek, err, "seek back failed: %v", err)
	}

	switch e.Type {
	case EntryMtkKernel:
		w.inner.hdr.KernelSize = uint32(e.Size) + mtkHeaderSize
	case EntryMtkRamdisk:
		w.inner.hdr.RamdiskSize = uint32(e.Size) + mtkHeaderSize
	}
	return nil
}

func (w *MtkWriter) Close(f File) error {
	if !w.seg.Done() {
		return nil
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &w.inner.hdr); err != nil {
		return wrapErr(CategoryFile, ErrIo, err, "encode header failed: %v", err)
	}
	return writeExactAt(f, 0, buf.Bytes())
}
