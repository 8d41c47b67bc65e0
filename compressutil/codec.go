package compressutil

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/foobaz/go-zopfli/zopfli"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// NewEncoder returns a streaming WriteCloser that compresses everything
// written to it into format f and flushes/finalizes on Close. Lz4Legacy
// is not supported here since its legacy block framing isn't naturally
// expressible as a single streaming Write; use EncodeLz4Legacy instead.
func NewEncoder(f Format, w io.Writer) (io.WriteCloser, error) {
	switch f {
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zopfli:
		return newZopfliWriter(w), nil
	case Xz:
		return xz.NewWriter(w)
	case Lzma:
		return lzma.NewWriter(w)
	case Bzip2:
		return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	case Lz4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("compressutil: no streaming encoder for format %v", f)
	}
}

// NewDecoder returns a ReadCloser that decompresses format f from r.
func NewDecoder(f Format, r io.Reader) (io.ReadCloser, error) {
	switch f {
	case Gzip, Zopfli:
		return gzip.NewReader(r)
	case Xz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	case Lzma:
		lr, err := lzma.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(lr), nil
	case Bzip2:
		br, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, err
		}
		return br, nil
	case Lz4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("compressutil: no streaming decoder for format %v", f)
	}
}

// zopfliWriter buffers everything written to it (zopfli's API operates on
// whole byte slices, not streams) and performs the compression on Close.
type zopfliWriter struct {
	dst io.Writer
	buf []byte
}

func newZopfliWriter(dst io.Writer) *zopfliWriter {
	return &zopfliWriter{dst: dst}
}

func (z *zopfliWriter) Write(p []byte) (int, error) {
	z.buf = append(z.buf, p...)
	return len(p), nil
}

func (z *zopfliWriter) Close() error {
	options := zopfli.DefaultOptions()
	err := zopfli.Compress(&options, zopfli.FORMAT_GZIP, z.buf, z.dst)
	if err != nil {
		return fmt.Errorf("zopfli compress: %w", err)
	}
	return nil
}

// EncodeLz4Legacy compresses data using the historical Android lz4_legacy
// framing: a 4-byte magic, then a sequence of 4-byte little-endian block
// lengths each followed by that many bytes of raw LZ4 block data (no xxhash,
// no frame descriptor). No library vendors a decoder/encoder for this
// specific framing, so it's hand-built here on top of pierrec/lz4's raw
// CompressBlock/UncompressBlock primitives, which do implement the LZ4
// block format itself.
func EncodeLz4Legacy(data []byte) ([]byte, error) {
	const blockSize = 8 << 20

	out := make([]byte, 0, len(data)/2+64)
	out = append(out, lz4LegMagic...)

	ht := make([]int, 1<<16)
	for off := 0; off < len(data) || len(data) == 0; off += blockSize {
		end := off + blockSize
		if end > len(data) {
			end = len(data)
		}
		block := data[off:end]

		compressed := make([]byte, lz4.CompressBlockBound(len(block)))
		n, err := lz4.CompressBlock(block, compressed, ht)
		if err != nil {
			return nil, fmt.Errorf("lz4 legacy: compress block: %w", err)
		}

		var hdr [4]byte
		binary.LittleEndian.PutUint32(hdr[:], uint32(n))
		out = append(out, hdr[:]...)
		out = append(out, compressed[:n]...)

		if len(data) == 0 {
			break
		}
	}
	return out, nil
}

// DecodeLz4Legacy reverses EncodeLz4Legacy's framing.
func DecodeLz4Legacy(data []byte) ([]byte, error) {
	if len(data) < 4 || string(data[:4]) != lz4LegMagic {
		return nil, fmt.Errorf("lz4 legacy: missing magic")
	}
	pos := 4
	var out []byte
	for pos+4 <= len(data) {
		blockLen := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if blockLen == 0 || pos+blockLen > len(data) {
			break
		}
		block := data[pos : pos+blockLen]
		pos += blockLen

		decompressed := make([]byte, blockLen*32+4096)
		n, err := lz4.UncompressBlock(block, decompressed)
		if err != nil {
			return nil, fmt.Errorf("lz4 legacy: decompress block: %w", err)
		}
		out = append(out, decompressed[:n]...)
	}
	return out, nil
}
