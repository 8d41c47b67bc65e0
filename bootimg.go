package bootimg

// Raw on-disk header layouts. These structs are
// never exposed to callers directly; each format reader/writer translates
// between one of these and the uniform Header/Entry types via the segment
// engine. All multi-byte fields are little-endian on disk, matching the
// published Android boot image layout and Sony's ELF derivative of it.

const (
	bootMagicSize           = 8
	bootNameSize            = 16
	bootArgsSize            = 512
	bootExtraArgsSize       = 1024
	bootId_Size             = 32
	maxHeaderOffset         = 512
	samsungSeandroidMagicSz = 16
)

const (
	bootMagic             = "ANDROID!"
	samsungSeandroidMagic = "SEANDROIDENFORCE"
)

// androidHeader is the flattened Android boot image header this library
// targets: the fields every reader/writer actually touches, following
// libmbbootimg's AndroidHeader rather than AOSP's versioned
// BootImgHdrV0/V1/V2 split (dt_size is always present, not appended only
// in V1+; vendor-boot/V3/V4-only fields this Header doesn't model are
// simply not represented here).
type androidHeader struct {
	Magic        [bootMagicSize]byte
	KernelSize   uint32
	KernelAddr   uint32
	RamdiskSize  uint32
	RamdiskAddr  uint32
	SecondSize   uint32
	SecondAddr   uint32
	TagsAddr     uint32
	PageSize     uint32
	DtSize       uint32
	Unused       uint32
	Name         [bootNameSize]byte
	Cmdline      [bootArgsSize]byte
	Id           [bootId_Size]byte
	ExtraCmdline [bootExtraArgsSize]byte
}

// lokiHeader mirrors the fixed LOKI trailer block written at offset 0x400,
// recalled from the public "loki_patch" tool's header layout: a magic, a
// recovery flag, a free-form build-fingerprint field, the pre-patch kernel/
// ramdisk sizes, and the ramdisk's original load address.
type lokiHeader struct {
	Magic           [4]byte
	Recovery        uint32
	Build           [128]byte
	OrigKernelSize  uint32
	OrigRamdiskSize uint32
	RamdiskAddr     uint32
}

const (
	lokiMagicOffset = 0x400
	lokiMagic       = "LOKI"
	lokiTrailerMagic = "BOOT"

	gzipMagic = "\x1f\x8b\x08\x00"
)

// Sony_Elf32 types mirror the standard 32-bit ELF structures with Sony's
// specific e_ident prefix and custom (p_type, p_flags) encodings for
// identifying boot-image segments (ground in sony_elf_reader.cpp /
// sony_elf_writer.cpp; struct shapes follow the public ELF32 ABI since the
// original repo's sony_elf_defs.h wasn't part of the retrieved sources).
const sonyEiNident = 16

var sonyEIdent = [sonyEiNident]byte{
	0x7f, 'E', 'L', 'F', 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

type sonyElf32Ehdr struct {
	EIdent     [sonyEiNident]byte
	EType      uint16
	EMachine   uint16
	EVersion   uint32
	EEntry     uint32
	EPhoff     uint32
	EShoff     uint32
	EFlags     uint32
	EEhsize    uint16
	EPhentsize uint16
	EPhnum     uint16
	EShentsize uint16
	EShnum     uint16
	EShstrndx  uint16
}

type sonyElf32Phdr struct {
	PType   uint32
	POffset uint32
	PVaddr  uint32
	PPaddr  uint32
	PFilesz uint32
	PMemsz  uint32
	PFlags  uint32
	PAlign  uint32
}

const (
	sonyETypeKernel  = 0
	sonyETypeRamdisk = 1
	sonyETypeCmdline = 2
	sonyETypeSin     = 3
	sonyETypeIpl     = 5
	sonyETypeRpm     = 6
	sonyETypeAppsbl  = 8

	sonyEFlagsKernel  = 1 << 0
	sonyEFlagsRamdisk = 1 << 1
	sonyEFlagsCmdline = 1 << 2
	sonyEFlagsIpl     = 1 << 4
	sonyEFlagsRpm     = 1 << 5
	sonyEFlagsAppsbl  = 1 << 7

	// sonyElfEntryCmdline is a synthetic EntryType sentinel used only
	// internally by the Sony ELF writer to track the cmdline pseudo-segment
	// through the SegmentWriter; it's never exposed via the public Entry API.
	sonyElfEntryCmdline EntryType = -1
)

// mtkHeader prefixes the kernel and ramdisk segments in an Mtk-wrapped
// Android boot image (ground in magiskboot_go's MtkHdr struct).
type mtkHeader struct {
	Magic   uint32
	Size    uint32
	Name    [32]byte
	Padding [472]byte
}

const mtkHeaderMagic = 0x58881688

// zImageHeader is the fixed prefix of an ARM Linux zImage, ground on
// magiskboot_go's ZimageHdr struct in bootimg.go. Loki's "old" variant recovers
// the true (pre-patch) kernel size from End-Start here, since the outer
// Android header's kernel_size field is garbage after patching.
type zImageHeader struct {
	Code   [9]uint32
	Magic  uint32
	Start  uint32
	End    uint32
	Endian uint32
}

const zImageMagicLE = 0x016f2818
