package file

import "os"

// OS is a plain positioned-I/O File backed directly by an *os.File. Unlike
// Mmap it can grow as it's written, so it's the right backend for Writers
// (and for Readers over files mmap isn't suitable for: empty files, or
// platforms where mapping isn't worth the setup cost). It relies on Seek,
// so it does not work over pipes.
type OS struct {
	f     *os.File
	fatal bool
}

// NewOS wraps f. The caller retains ownership and must Close it
// separately; this wrapper adds no buffering or lifecycle of its own.
func NewOS(f *os.File) *OS {
	return &OS{f: f}
}

func (o *OS) Seek(offset int64, whence int) (int64, error) {
	pos, err := o.f.Seek(offset, whence)
	if err != nil {
		o.fatal = true
	}
	return pos, err
}

func (o *OS) Read(buf []byte) (int, error) {
	n, err := o.f.Read(buf)
	return n, err
}

func (o *OS) Write(buf []byte) (int, error) {
	n, err := o.f.Write(buf)
	if err != nil {
		o.fatal = true
	}
	return n, err
}

func (o *OS) Size() (uint64, error) {
	info, err := o.f.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}

// IsFatal reports whether a prior Seek/Write failed in a way that leaves
// the underlying descriptor's position or the output file in an
// indeterminate state. Read errors other than EOF don't set it: a short
// read is something the segment engine can classify on its own.
func (o *OS) IsFatal() bool {
	return o.fatal
}
