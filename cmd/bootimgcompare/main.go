// Command bootimgcompare checks two boot images for byte-for-byte
// equivalence: same header fields, same entries, same payload data.
// Ground on the "mbtool" example tool bootimg_compare.cpp: headers are
// compared first, then entries are counted in the first image and matched
// one-by-one against the second, comparing data in fixed-size chunks.
package main

import (
	"fmt"
	"log"
	"os"

	"bootimg"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

const compareChunkSize = 10240

// debugEnabled gates the verbose bidding trace below with BOOTIMG_DEBUG,
// the same boolean-env convention magiskboot_go used for its own runtime
// toggles (it called the helper checkenv). Kept at the CLI layer since the
// library itself carries no logging dependency.
func debugEnabled() bool {
	v, ok := os.LookupEnv("BOOTIMG_DEBUG")
	return ok && v == "true"
}

func newReader(label string) *bootimg.Reader {
	r := bootimg.NewReader()
	r.EnableFormatAll()
	if debugEnabled() {
		log.Printf("%s: enabled all formats for bidding", label)
	}
	return r
}

func compare(filename1, filename2 string) (int, error) {
	reader1 := newReader(filename1)
	reader2 := newReader(filename2)
	defer reader1.Close()
	defer reader2.Close()

	if err := reader1.OpenFilename(filename1); err != nil {
		return 1, fmt.Errorf("%s: failed to open boot image for reading: %w", filename1, err)
	}
	if err := reader2.OpenFilename(filename2); err != nil {
		return 1, fmt.Errorf("%s: failed to open boot image for reading: %w", filename2, err)
	}
	if debugEnabled() {
		log.Printf("%s: format %s won bidding", filename1, reader1.FormatName())
		log.Printf("%s: format %s won bidding", filename2, reader2.FormatName())
	}

	header1 := bootimg.NewHeader()
	header2 := bootimg.NewHeader()
	if err := reader1.ReadHeader(header1); err != nil {
		return 1, fmt.Errorf("%s: failed to read header: %w", filename1, err)
	}
	if err := reader2.ReadHeader(header2); err != nil {
		return 1, fmt.Errorf("%s: failed to read header: %w", filename2, err)
	}

	if !header1.Equal(header2) {
		return 2, nil
	}

	// Count filename1's entries with a throwaway reader so reader1 itself
	// is never driven through the streaming SegmentReader to exhaustion —
	// GoToEntry below needs reader1 left at its first entry.
	counter := newReader(filename1)
	defer counter.Close()
	if err := counter.OpenFilename(filename1); err != nil {
		return 1, fmt.Errorf("%s: failed to open boot image for reading: %w", filename1, err)
	}
	if err := counter.ReadHeader(bootimg.NewHeader()); err != nil {
		return 1, fmt.Errorf("%s: failed to read header: %w", filename1, err)
	}
	entries := 0
	for {
		entry := bootimg.NewEntry(0)
		if err := counter.ReadEntry(&entry); err != nil {
			if err == bootimg.ErrStateEndOfEntries {
				break
			}
			return 1, fmt.Errorf("%s: failed to read entry: %w", filename1, err)
		}
		entries++
	}

	buf1 := make([]byte, compareChunkSize)
	buf2 := make([]byte, compareChunkSize)

	for {
		entry2 := bootimg.NewEntry(0)
		if err := reader2.ReadEntry(&entry2); err != nil {
			if err == bootimg.ErrStateEndOfEntries {
				break
			}
			return 1, fmt.Errorf("%s: failed to read entry: %w", filename2, err)
		}

		if entries == 0 {
			// More entries in the second image than in the first.
			return 2, nil
		}
		entries--

		entry1 := bootimg.NewEntry(0)
		if err := reader1.GoToEntry(&entry1, entry2.Type); err != nil {
			if err == bootimg.ErrStateEndOfEntries {
				return 2, nil
			}
			return 1, fmt.Errorf("%s: failed to seek to entry: %w", filename1, err)
		}

		if debugEnabled() {
			size1, _ := entry1.Size()
			size2, _ := entry2.Size()
			log.Printf("comparing entry %v (%s vs %s)", entry2.Type,
				humanize.Bytes(size1), humanize.Bytes(size2))
		}

		for {
			n1, err := reader1.ReadData(buf1)
			if err != nil {
				return 1, fmt.Errorf("%s: failed to read data: %w", filename1, err)
			}
			if n1 == 0 {
				break
			}

			n2, err := readFull(reader2, buf2[:n1])
			if err != nil {
				return 1, fmt.Errorf("%s: failed to read data: %w", filename2, err)
			}

			if n1 != n2 || string(buf1[:n1]) != string(buf2[:n2]) {
				return 2, nil
			}
		}
	}

	if entries != 0 {
		// Fewer entries in the second image than in the first.
		return 2, nil
	}
	return 0, nil
}

// readFull repeats ReadData until buf is full or the segment is exhausted,
// mirroring the semantics the C++ original got for free from read()'s
// short-read retry loop elsewhere in the library.
func readFull(r *bootimg.Reader, buf []byte) (int, error) {
	got := 0
	for got < len(buf) {
		n, err := r.ReadData(buf[got:])
		if err != nil {
			return got, err
		}
		if n == 0 {
			break
		}
		got += n
	}
	return got, nil
}

func main() {
	cmd := &cobra.Command{
		Use:   "bootimgcompare <file1> <file2>",
		Short: "Compare two Android boot images for byte-for-byte equivalence",
		Args:  cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := compare(args[0], args[1])
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
