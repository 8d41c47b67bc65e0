package bootimg

import (
	"bytes"
	"encoding/binary"
)

// androidSupportedFields is shared by Android and Bump: both use the same
// on-disk header shape and only differ in their trailer magic.
const androidSupportedFields = FieldBoardName | FieldKernelCmdline | FieldPageSize |
	FieldKernelAddress | FieldRamdiskAddress | FieldSecondAddress | FieldTagsAddress

// AndroidReader implements FormatReader for both the plain Android format
// and its Bump derivative, grounded on libmbbootimg's AndroidFormatReader
// (android_reader.cpp), which folds both into one class parameterized by
// an is_bump flag.
type AndroidReader struct {
	isBump bool

	hdr            androidHeader
	headerOffset   *uint64
	allowTruncDt   bool

	seg SegmentReader
}

func NewAndroidReader() *AndroidReader { return &AndroidReader{allowTruncDt: true} }
func NewBumpReader() *AndroidReader    { return &AndroidReader{isBump: true, allowTruncDt: true} }

func (r *AndroidReader) TypeID() FormatID {
	if r.isBump {
		return FormatBump
	}
	return FormatAndroid
}

func (r *AndroidReader) Name() string { return r.TypeID().String() }

func (r *AndroidReader) SetOption(key, value string) (bool, error) {
	if key != "strict" {
		return false, nil
	}
	switch value {
	case "true", "yes", "y", "1":
		r.allowTruncDt = false
	default:
		r.allowTruncDt = true
	}
	return true, nil
}

// findAndroidHeader scans the first maxHeaderOffset+sizeof(header) bytes
// for the Android magic, as in AndroidFormatReader::find_header.
func findAndroidHeader(f File) (androidHeader, uint64, error) {
	var hdr androidHeader
	hdrSize := binary.Size(hdr)
	window := make([]byte, maxHeaderOffset+hdrSize)

	if _, err := f.Seek(0, SeekStart); err != nil {
		return hdr, 0, wrapErr(CategoryFile, ErrSeek, err, "seek to beginning failed: %v", err)
	}
	n, err := readRetry(f, window)
	if err != nil {
		return hdr, 0, err
	}
	window = window[:n]

	off := findPattern(window, []byte(bootMagic))
	if off < 0 {
		return hdr, 0, newErr(CategoryAndroid, ErrHeaderNotFound,
			"android magic not found in first %d bytes", maxHeaderOffset)
	}
	if len(window)-off < hdrSize {
		return hdr, 0, newErr(CategoryAndroid, ErrHeaderOutOfBounds,
			"android header at %d exceeds file size", off)
	}

	if err := binary.Read(bytes.NewReader(window[off:off+hdrSize]), binary.LittleEndian, &hdr); err != nil {
		return hdr, 0, wrapErr(CategoryFile, ErrIo, err, "decode header failed: %v", err)
	}
	return hdr, uint64(off), nil
}

// findTrailerMagic skips header+kernel+ramdisk+second+dt (each page
// aligned) from the header start and looks for magic there, matching
// find_samsung_seandroid_magic / find_bump_magic.
func findTrailerMagic(f File, hdr androidHeader, headerOffset uint64, magic string) (uint64, error) {
	pos := headerOffset
	pos += uint64(hdr.PageSize)
	pos += uint64(hdr.KernelSize)
	pos += AlignPageSize(pos, hdr.PageSize)
	pos += uint64(hdr.RamdiskSize)
	pos += AlignPageSize(pos, hdr.PageSize)
	pos += uint64(hdr.SecondSize)
	pos += AlignPageSize(pos, hdr.PageSize)
	pos += uint64(hdr.DtSize)
	pos += AlignPageSize(pos, hdr.PageSize)

	notFound := ErrSamsungMagicNotFound
	if magic == bumpMagic {
		notFound = ErrBumpMagicNotFound
	}

	buf := make([]byte, len(magic))
	if err := readExactAt(f, int64(pos), buf); err != nil {
		if e, ok := err.(*Error); ok && e.Category == CategoryFile && e.Code == ErrFileUnexpectedEof {
			return 0, newErr(CategoryAndroid, notFound, "trailer magic not found at %d", pos)
		}
		return 0, err
	}
	if string(buf) != magic {
		return 0, newErr(CategoryAndroid, notFound, "trailer magic not found at %d", pos)
	}
	return pos, nil
}

func (r *AndroidReader) Bid(f File, bestBid int) (int, error) {
	var trailerMagic string
	var trailerErrCode Code
	if r.isBump {
		trailerMagic = bumpMagic
		trailerErrCode = ErrBumpMagicNotFound
	} else {
		trailerMagic = samsungSeandroidMagic
		trailerErrCode = ErrSamsungMagicNotFound
	}

	maxBits := (bootMagicSize + len(trailerMagic)) * 8
	if bestBid >= maxBits {
		return BidUnwinnable, nil
	}

	hdr, offset, err := findAndroidHeader(f)
	if err != nil {
		if bErr, ok := err.(*Error); ok && bErr.Category == CategoryAndroid &&
			(bErr.Code == ErrHeaderNotFound || bErr.Code == ErrHeaderOutOfBounds) {
			return BidNo, nil
		}
		return BidError, err
	}
	r.hdr = hdr
	r.headerOffset = &offset
	bid := bootMagicSize * 8

	if _, err := findTrailerMagic(f, hdr, offset, trailerMagic); err == nil {
		bid += len(trailerMagic) * 8
	} else if bErr, ok := err.(*Error); !ok || bErr.Category != CategoryAndroid || bErr.Code != trailerErrCode {
		return BidError, err
	}

	return bid, nil
}

func (r *AndroidReader) ReadHeader(f File, out *Header) error {
	if r.headerOffset == nil {
		hdr, offset, err := findAndroidHeader(f)
		if err != nil {
			return err
		}
		r.hdr = hdr
		r.headerOffset = &offset
	}

	out.SetSupportedFields(androidSupportedFields)
	if err := out.SetBoardName(cStringFromBytes(r.hdr.Name[:])); err != nil {
		return err
	}
	if err := out.SetKernelCmdline(cStringFromBytes(r.hdr.Cmdline[:])); err != nil {
		return err
	}
	if err := out.SetPageSize(r.hdr.PageSize); err != nil {
		return err
	}
	if err := out.SetKernelAddress(r.hdr.KernelAddr); err != nil {
		return err
	}
	if err := out.SetRamdiskAddress(r.hdr.RamdiskAddr); err != nil {
		return err
	}
	if err := out.SetSecondbootAddress(r.hdr.SecondAddr); err != nil {
		return err
	}
	if err := out.SetKernelTagsAddress(r.hdr.TagsAddr); err != nil {
		return err
	}

	pageSize := r.hdr.PageSize
	pos := *r.headerOffset
	pos += uint64(binary.Size(r.hdr))
	pos += AlignPageSize(pos, pageSize)

	kernelOffset := pos
	pos += uint64(r.hdr.KernelSize)
	pos += AlignPageSize(pos, pageSize)

	ramdiskOffset := pos
	pos += uint64(r.hdr.RamdiskSize)
	pos += AlignPageSize(pos, pageSize)

	secondOffset := pos
	pos += uint64(r.hdr.SecondSize)
	pos += AlignPageSize(pos, pageSize)

	dtOffset := pos

	var entries []segReaderEntry
	if r.hdr.KernelSize > 0 {
		entries = append(entries, segReaderEntry{EntryKernel, kernelOffset, uint64(r.hdr.KernelSize), false})
	}
	entries = append(entries, segReaderEntry{EntryRamdisk, ramdiskOffset, uint64(r.hdr.RamdiskSize), false})
	if r.hdr.SecondSize > 0 {
		entries = append(entries, segReaderEntry{EntrySecondboot, secondOffset, uint64(r.hdr.SecondSize), false})
	}
	if r.hdr.DtSize > 0 {
		entries = append(entries, segReaderEntry{EntryDeviceTree, dtOffset, uint64(r.hdr.DtSize), r.allowTruncDt})
	}

	return r.seg.SetEntries(entries)
}

func (r *AndroidReader) ReadEntry(f File, out *Entry) error              { return r.seg.ReadEntry(f, out) }
func (r *AndroidReader) GoToEntry(f File, out *Entry, t EntryType) error { return r.seg.GoToEntry(f, out, t) }
func (r *AndroidReader) ReadData(f File, buf []byte) (int, error)       { return r.seg.ReadData(f, buf) }

// cStringFromBytes trims a fixed-size NUL-padded byte array to a Go string,
// stopping at the first NUL (matches strncpy + manual '\0' termination in
// the original reader).
func cStringFromBytes(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// --- Writer ---

const (
	bumpMagic        = "bump"
	seandroidTrailer = samsungSeandroidMagic
)

// AndroidWriter implements FormatWriter for Android and Bump: both leave
// the first page blank, stream kernel/ramdisk/second/dt, then back-patch
// the header at offset 0 and append a trailer magic.
type AndroidWriter struct {
	isBump bool

	hdr      androidHeader
	pageSize uint32
	seg      SegmentWriter
}

func NewAndroidWriter() *AndroidWriter { return &AndroidWriter{pageSize: 2048} }
func NewBumpWriter() *AndroidWriter    { return &AndroidWriter{isBump: true, pageSize: 2048} }

func (w *AndroidWriter) TypeID() FormatID {
	if w.isBump {
		return FormatBump
	}
	return FormatAndroid
}

func (w *AndroidWriter) Name() string { return w.TypeID().String() }

func (w *AndroidWriter) SetOption(key, value string) (bool, error) {
	return false, nil
}

func (w *AndroidWriter) GetHeader(f File, out *Header) error {
	out.SetSupportedFields(androidSupportedFields)
	return nil
}

func (w *AndroidWriter) WriteHeader(f File, h *Header) error {
	w.hdr = androidHeader{}
	copy(w.hdr.Magic[:], bootMagic)

	if v, ok := h.PageSize(); ok && v != 0 {
		w.pageSize = v
	}
	w.hdr.PageSize = w.pageSize

	if v, ok := h.BoardName(); ok {
		copy(w.hdr.Name[:], v)
	}
	if v, ok := h.KernelCmdline(); ok {
		copy(w.hdr.Cmdline[:], v)
	}
	if v, ok := h.KernelAddress(); ok {
		w.hdr.KernelAddr = v
	}
	if v, ok := h.RamdiskAddress(); ok {
		w.hdr.RamdiskAddr = v
	}
	if v, ok := h.SecondbootAddress(); ok {
		w.hdr.SecondAddr = v
	}
	if v, ok := h.KernelTagsAddress(); ok {
		w.hdr.TagsAddr = v
	}

	entries := []segWriterEntry{
		{Type: EntryKernel, Alignment: w.pageSize},
		{Type: EntryRamdisk, Alignment: w.pageSize},
		{Type: EntrySecondboot, Alignment: w.pageSize},
		{Type: EntryDeviceTree, Alignment: w.pageSize},
	}
	if err := w.seg.SetEntries(entries); err != nil {
		return err
	}

	if _, err := f.Seek(int64(w.pageSize), SeekStart); err != nil {
		return wrapErr(CategoryFile, ErrSeek, err, "seek past header failed: %v", err)
	}
	return nil
}

func (w *AndroidWriter) GetEntry(f File, out *Entry) error { return w.seg.GetEntry(out) }
func (w *AndroidWriter) WriteEntry(f File, e *Entry) error { return w.seg.WriteEntry(f, e) }
func (w *AndroidWriter) WriteData(f File, buf []byte) (int, error) { return w.seg.WriteData(f, buf) }

func (w *AndroidWriter) FinishEntry(f File) error {
	if err := w.seg.FinishEntry(f); err != nil {
		return err
	}
	e := w.seg.CurrentEntry()
	switch e.Type {
	case EntryKernel:
		w.hdr.KernelSize = uint32(e.Size)
	case EntryRamdisk:
		w.hdr.RamdiskSize = uint32(e.Size)
	case EntrySecondboot:
		w.hdr.SecondSize = uint32(e.Size)
	case EntryDeviceTree:
		w.hdr.DtSize = uint32(e.Size)
	}
	return nil
}

func (w *AndroidWriter) Close(f File) error {
	if !w.seg.Done() {
		return nil
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &w.hdr); err != nil {
		return wrapErr(CategoryFile, ErrIo, err, "encode header failed: %v", err)
	}
	if err := writeExactAt(f, 0, buf.Bytes()); err != nil {
		return err
	}

	if _, err := f.Seek(0, SeekEnd); err != nil {
		return wrapErr(CategoryFile, ErrSeek, err, "seek to end failed: %v", err)
	}

	var trailer string
	if w.isBump {
		trailer = bumpMagic
	} else {
		trailer = seandroidTrailer
	}
	return writeExact(f, []byte(trailer))
}
