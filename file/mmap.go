// Package file provides concrete File implementations satisfying the
// bootimg.File capability. The core package uses them only in
// Reader.OpenFilename and Writer.OpenFilename; everywhere else it works
// against the File interface, and these are just two reasonable backends
// a caller can pick from, the same way magiskboot_go mmaps its input in
// bootimg.go.
package file

import (
	"errors"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Mmap is a read-only File backed by a memory-mapped view of an *os.File,
// grounded on magiskboot_go's use of github.com/edsrzf/mmap-go in
// bootimg.go (SplitImageDtb mmaps the whole input for scanning). It is
// well suited to Readers, which only ever seek/read.
type Mmap struct {
	f    *os.File
	data mmap.MMap
	pos  int64
}

// NewMmap maps f's current contents read-only. The caller retains
// ownership of f and must not close it before calling Close.
func NewMmap(f *os.File) (*Mmap, error) {
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return &Mmap{f: f, data: data}, nil
}

func (m *Mmap) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = m.pos
	case io.SeekEnd:
		base = int64(len(m.data))
	default:
		return 0, errors.New("file: invalid whence")
	}
	newPos := base + offset
	if newPos < 0 {
		return 0, errors.New("file: negative seek position")
	}
	m.pos = newPos
	return m.pos, nil
}

func (m *Mmap) Read(buf []byte) (int, error) {
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(buf, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *Mmap) Write([]byte) (int, error) {
	return 0, errors.New("file: Mmap is read-only")
}

func (m *Mmap) Size() (uint64, error) {
	return uint64(len(m.data)), nil
}

func (m *Mmap) IsFatal() bool {
	return false
}

// Close unmaps the view. It does not close the underlying *os.File.
func (m *Mmap) Close() error {
	return m.data.Unmap()
}
