package bootimg

import "bootimg/compressutil"

// EntryType identifies a payload section's kind. This is a closed set;
// a format reader that discovers two entries of the same type has a bug
// in that reader, not something callers need to handle.
type EntryType int

const (
	EntryKernel EntryType = iota
	EntryRamdisk
	EntrySecondboot
	EntryDeviceTree
	EntryMtkKernel
	EntryMtkRamdisk
	EntrySonyIpl
	EntrySonyRpm
	EntrySonyAppsbl
)

func (t EntryType) String() string {
	switch t {
	case EntryKernel:
		return "kernel"
	case EntryRamdisk:
		return "ramdisk"
	case EntrySecondboot:
		return "second"
	case EntryDeviceTree:
		return "dt"
	case EntryMtkKernel:
		return "mtk_kernel"
	case EntryMtkRamdisk:
		return "mtk_ramdisk"
	case EntrySonyIpl:
		return "sony_ipl"
	case EntrySonyRpm:
		return "sony_rpm"
	case EntrySonyAppsbl:
		return "sony_appsbl"
	default:
		return "unknown"
	}
}

// Entry is the caller-visible descriptor for a payload section. It carries
// no data directly — data flows through Reader.ReadData/Writer.WriteData —
// only its Type and an optional declared Size.
type Entry struct {
	Type EntryType
	size *uint64

	payloadFormat     compressutil.Format
	payloadFormatKnown bool
}

func NewEntry(t EntryType) Entry {
	return Entry{Type: t}
}

// PayloadFormat reports the compression codec compressutil.Sniff finds in
// sniff, which callers pass as the first bytes they read from this entry's
// segment. The first call's result is cached, and later calls return it
// whatever bytes they pass. It's derived, informational state —
// not part of supported_fields, never written back — mirroring
// magiskboot_go's BootImg.K_fmt/R_fmt fields. An empty sniff yields
// compressutil.None, not an error.
func (e *Entry) PayloadFormat(sniff []byte) compressutil.Format {
	if !e.payloadFormatKnown {
		e.payloadFormat = compressutil.Sniff(sniff)
		e.payloadFormatKnown = true
	}
	return e.payloadFormat
}

func (e Entry) Size() (uint64, bool) {
	if e.size == nil {
		return 0, false
	}
	return *e.size, true
}

func (e *Entry) SetSize(v uint64) {
	e.size = &v
}

func (e *Entry) ClearSize() {
	e.size = nil
}
