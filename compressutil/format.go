// Package compressutil sniffs and (de)compresses the codecs that commonly
// wrap a boot image's kernel/ramdisk payload. It is intentionally
// decoupled from the container-format state machines in the parent
// bootimg package: nothing there calls into this package, and nothing
// here knows what an Android header or a segment is. Grounded on
// magiskboot_go's format.go (CheckFmt/Fmt2Name/Name2Fmt) and its
// compress.go (Encoder/Decoder, there stubbed out).
package compressutil

import "bytes"

// Format identifies a compression codec by its magic bytes.
type Format int

const (
	None Format = iota
	Gzip
	Zopfli // gzip-compatible container; never produced by Sniff, only selectable explicitly
	Lzop
	Xz
	Lzma
	Bzip2
	Lz4
	Lz4Legacy
	Mtk
	Dtb
	Zimage
)

func (f Format) String() string {
	switch f {
	case Gzip:
		return "gzip"
	case Zopfli:
		return "zopfli"
	case Lzop:
		return "lzop"
	case Xz:
		return "xz"
	case Lzma:
		return "lzma"
	case Bzip2:
		return "bzip2"
	case Lz4:
		return "lz4"
	case Lz4Legacy:
		return "lz4_legacy"
	case Mtk:
		return "mtk"
	case Dtb:
		return "dtb"
	case Zimage:
		return "zimage"
	default:
		return "raw"
	}
}

// Extension returns the conventional file extension for a codec, or "" for
// formats that don't get one (raw, already-framed formats handled
// upstream).
func (f Format) Extension() string {
	switch f {
	case Gzip, Zopfli:
		return ".gz"
	case Xz:
		return ".xz"
	case Lzma:
		return ".lzma"
	case Bzip2:
		return ".bz2"
	case Lz4, Lz4Legacy:
		return ".lz4"
	default:
		return ""
	}
}

const (
	gzip1Magic   = "\x1f\x8b"
	gzip2Magic   = "\x1f\x9e"
	lzopMagic    = "\x89LZO"
	xzMagic      = "\xfd7zXZ"
	bzipMagic    = "BZh"
	lz4LegMagic  = "\x02\x21\x4c\x18"
	lz4_1Magic   = "\x03\x21\x4c\x18"
	lz4_2Magic   = "\x04\x22\x4d\x18"
	mtkMagic     = "\x88\x16\x88\x58"
	dtbMagic     = "\xd0\x0d\xfe\xed"
	zimageMagic  = "\x18\x28\x6f\x01"
	zimageOffset = 0x24
)

// Sniff inspects the leading bytes of buf and reports which compression
// format it recognizes, or None. It is a pure function of buf's bytes
// (mirrors the container-format Bid-monotonicity property).
func Sniff(buf []byte) Format {
	has := func(magic string) bool {
		return len(buf) >= len(magic) && bytes.Equal(buf[:len(magic)], []byte(magic))
	}

	switch {
	case has(gzip1Magic), has(gzip2Magic):
		return Gzip
	case has(lzopMagic):
		return Lzop
	case has(xzMagic):
		return Xz
	case len(buf) >= 13 && buf[0] == 0x5d && buf[1] == 0x00 && buf[2] == 0x00 &&
		(buf[12] == 0xff || buf[12] == 0x00):
		return Lzma
	case has(bzipMagic):
		return Bzip2
	case has(lz4_1Magic), has(lz4_2Magic):
		return Lz4
	case has(lz4LegMagic):
		return Lz4Legacy
	case has(mtkMagic):
		return Mtk
	case has(dtbMagic):
		return Dtb
	case len(buf) >= zimageOffset+len(zimageMagic) &&
		bytes.Equal(buf[zimageOffset:zimageOffset+len(zimageMagic)], []byte(zimageMagic)):
		return Zimage
	default:
		return None
	}
}

// Compressed reports whether f is one of the codecs this package can
// actually encode/decode (excludes the container-only markers Mtk/Dtb/
// Zimage, and excludes Lzop since no Go library here vendors a writer
// for it).
func Compressed(f Format) bool {
	switch f {
	case Gzip, Zopfli, Xz, Lzma, Bzip2, Lz4, Lz4Legacy:
		return true
	default:
		return false
	}
}

// ByName resolves a codec from its canonical lowercase name, as used by
// CLI flags; the zero value None if unrecognized.
func ByName(name string) Format {
	switch name {
	case "gzip":
		return Gzip
	case "zopfli":
		return Zopfli
	case "xz":
		return Xz
	case "lzma":
		return Lzma
	case "bzip2":
		return Bzip2
	case "lz4":
		return Lz4
	case "lz4_legacy":
		return Lz4Legacy
	default:
		return None
	}
}
