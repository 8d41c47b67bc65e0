package bootimg

import (
	"os"

	"bootimg/file"
)

// readerState is the Reader facade's own state machine:
// Unset → FormatsEnabled → FormatReady (after Open succeeds) → Closed.
type readerState int

const (
	readerUnset readerState = iota
	readerFormatsEnabled
	readerFormatReady
	readerClosed
)

// Reader is the facade that owns the registered format list, runs the
// bidding protocol on Open, and delegates every subsequent call to the
// winning FormatReader. It owns the File capability exclusively while
// open.
type Reader struct {
	formats []FormatReader
	current FormatReader
	file    File
	ownedF  *os.File
	ownedM  *file.Mmap
	state   readerState
	lastErr error
	fatal   bool
}

func NewReader() *Reader { return &Reader{} }

func (r *Reader) registerFormat(f FormatReader) {
	r.formats = append(r.formats, f)
	r.state = readerFormatsEnabled
}

func (r *Reader) EnableFormatAndroid() { r.registerFormat(NewAndroidReader()) }
func (r *Reader) EnableFormatBump()    { r.registerFormat(NewBumpReader()) }
func (r *Reader) EnableFormatLoki()    { r.registerFormat(NewLokiReader()) }
func (r *Reader) EnableFormatSonyElf() { r.registerFormat(NewSonyElfReader()) }
func (r *Reader) EnableFormatMtk()     { r.registerFormat(NewMtkReader()) }

// EnableFormatAll registers every format in the order bidding ties are
// broken by: Android, Bump, Loki, SonyElf, Mtk.
func (r *Reader) EnableFormatAll() {
	r.EnableFormatAndroid()
	r.EnableFormatBump()
	r.EnableFormatLoki()
	r.EnableFormatSonyElf()
	r.EnableFormatMtk()
}

// SetOption forwards key/value to every registered format, returning true
// if at least one accepted it.
func (r *Reader) SetOption(key, value string) (bool, error) {
	accepted := false
	for _, f := range r.formats {
		ok, err := f.SetOption(key, value)
		if err != nil {
			return accepted, err
		}
		accepted = accepted || ok
	}
	return accepted, nil
}

func (r *Reader) setErr(err error) error {
	r.lastErr = err
	if e, ok := err.(*Error); ok && e.Fatal {
		r.fatal = true
	}
	return err
}

func (r *Reader) Error() error { return r.lastErr }

func (r *Reader) ErrorString() string {
	if r.lastErr == nil {
		return ""
	}
	return r.lastErr.Error()
}

// OpenFilename opens path read-only and binds it as the File, mapping it
// with file.Mmap the same way magiskboot_go's bootimg.go maps its input.
// It owns both the descriptor and the mapping; Close releases them.
func (r *Reader) OpenFilename(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return r.setErr(wrapErr(CategoryFile, ErrIo, err, "open %s failed: %v", path, err))
	}
	m, err := file.NewMmap(f)
	if err != nil {
		f.Close()
		return r.setErr(wrapErr(CategoryFile, ErrIo, err, "mmap %s failed: %v", path, err))
	}
	r.ownedF = f
	r.ownedM = m
	return r.Open(m)
}

// Open binds file and runs the bidding protocol across every registered
// format, selecting the highest bidder (registration order breaks ties).
func (r *Reader) Open(file File) error {
	if r.fatal {
		return r.setErr(ErrStateInvalidState)
	}
	if r.state == readerFormatReady || r.state == readerClosed {
		return r.setErr(ErrStateInvalidState)
	}
	if len(r.formats) == 0 {
		return r.setErr(ErrStateFormatNotFound)
	}

	r.file = file

	bestBid := -1
	var winner FormatReader
	for _, f := range r.formats {
		bid, err := f.Bid(file, bestBid)
		if err != nil {
			return r.setErr(err)
		}
		if bid == BidError {
			return r.setErr(newErr(CategoryGeneric, ErrInvalidArgument, "format %s reported a bid error", f.Name()))
		}
		if bid == BidUnwinnable || bid == BidNo {
			continue
		}
		if bid > bestBid {
			bestBid = bid
			winner = f
		}
	}

	if winner == nil {
		return r.setErr(ErrStateFormatNotFound)
	}

	r.current = winner
	r.state = readerFormatReady
	return nil
}

func (r *Reader) requireReady() error {
	if r.fatal {
		return r.setErr(ErrStateInvalidState)
	}
	if r.state != readerFormatReady {
		return r.setErr(ErrStateInvalidState)
	}
	return nil
}

func (r *Reader) ReadHeader(out *Header) error {
	if err := r.requireReady(); err != nil {
		return err
	}
	if err := r.current.ReadHeader(r.file, out); err != nil {
		return r.setErr(err)
	}
	return nil
}

func (r *Reader) ReadEntry(out *Entry) error {
	if err := r.requireReady(); err != nil {
		return err
	}
	if err := r.current.ReadEntry(r.file, out); err != nil {
		if err != ErrStateEndOfEntries {
			r.setErr(err)
		} else {
			r.lastErr = err
		}
		return err
	}
	return nil
}

func (r *Reader) GoToEntry(out *Entry, t EntryType) error {
	if err := r.requireReady(); err != nil {
		return err
	}
	if err := r.current.GoToEntry(r.file, out, t); err != nil {
		if err != ErrStateEndOfEntries {
			r.setErr(err)
		} else {
			r.lastErr = err
		}
		return err
	}
	return nil
}

func (r *Reader) ReadData(buf []byte) (int, error) {
	if err := r.requireReady(); err != nil {
		return 0, err
	}
	n, err := r.current.ReadData(r.file, buf)
	if err != nil {
		return n, r.setErr(err)
	}
	return n, nil
}

func (r *Reader) FormatName() string {
	if r.current == nil {
		return ""
	}
	return r.current.Name()
}

func (r *Reader) FormatCode() FormatID {
	if r.current == nil {
		return -1
	}
	return r.current.TypeID()
}

// Close releases the owned mapping and descriptor, if any. It's always
// safe to call, even after a fatal error or before Open.
func (r *Reader) Close() error {
	r.state = readerClosed
	var err error
	if r.ownedM != nil {
		err = r.ownedM.Close()
		r.ownedM = nil
	}
	if r.ownedF != nil {
		if closeErr := r.ownedF.Close(); err == nil {
			err = closeErr
		}
		r.ownedF = nil
	}
	return err
}
