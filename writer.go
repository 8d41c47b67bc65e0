package bootimg

import (
	"os"

	"bootimg/file"
)

// writerState is the Writer facade's own state machine:
// Unset → FormatSet → HeaderWritten → Closed.
type writerState int

const (
	writerUnset writerState = iota
	writerFormatSet
	writerHeaderWritten
	writerClosed
)

// Writer is the facade half of the Reader/Writer pair: unlike Reader
// there's no bidding, since the caller picks the output format explicitly
// with one of the SetFormat* methods.
type Writer struct {
	current FormatWriter
	file    File
	ownedF  *os.File
	state   writerState
	lastErr error
	fatal   bool
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) setFormat(f FormatWriter) {
	w.current = f
	w.state = writerFormatSet
}

func (w *Writer) SetFormatAndroid() { w.setFormat(NewAndroidWriter()) }
func (w *Writer) SetFormatBump()    { w.setFormat(NewBumpWriter()) }
func (w *Writer) SetFormatLoki()    { w.setFormat(NewLokiWriter()) }
func (w *Writer) SetFormatSonyElf() { w.setFormat(NewSonyElfWriter()) }
func (w *Writer) SetFormatMtk()     { w.setFormat(NewMtkWriter()) }

func (w *Writer) SetOption(key, value string) (bool, error) {
	if w.current == nil {
		return false, w.setErr(ErrStateInvalidState)
	}
	return w.current.SetOption(key, value)
}

func (w *Writer) setErr(err error) error {
	w.lastErr = err
	if e, ok := err.(*Error); ok && e.Fatal {
		w.fatal = true
	}
	return err
}

func (w *Writer) Error() error { return w.lastErr }

func (w *Writer) ErrorString() string {
	if w.lastErr == nil {
		return ""
	}
	return w.lastErr.Error()
}

// OpenFilename creates (or truncates) path for writing and binds it as the
// File via file.OS, owning the underlying *os.File.
func (w *Writer) OpenFilename(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return w.setErr(wrapErr(CategoryFile, ErrIo, err, "open %s failed: %v", path, err))
	}
	w.ownedF = f
	return w.Open(file.NewOS(f))
}

func (w *Writer) Open(file File) error {
	if w.fatal {
		return w.setErr(ErrStateInvalidState)
	}
	if w.state == writerClosed || w.current == nil {
		return w.setErr(ErrStateInvalidState)
	}
	w.file = file
	return nil
}

func (w *Writer) requireFormat() error {
	if w.fatal {
		return w.setErr(ErrStateInvalidState)
	}
	if w.current == nil || w.file == nil {
		return w.setErr(ErrStateInvalidState)
	}
	return nil
}

func (w *Writer) GetHeader(out *Header) error {
	if err := w.requireFormat(); err != nil {
		return err
	}
	if err := w.current.GetHeader(w.file, out); err != nil {
		return w.setErr(err)
	}
	return nil
}

func (w *Writer) WriteHeader(h *Header) error {
	if err := w.requireFormat(); err != nil {
		return err
	}
	if err := w.current.WriteHeader(w.file, h); err != nil {
		return w.setErr(err)
	}
	w.state = writerHeaderWritten
	return nil
}

func (w *Writer) requireHeaderWritten() error {
	if err := w.requireFormat(); err != nil {
		return err
	}
	if w.state != writerHeaderWritten {
		return w.setErr(ErrStateInvalidState)
	}
	return nil
}

func (w *Writer) GetEntry(out *Entry) error {
	if err := w.requireHeaderWritten(); err != nil {
		return err
	}
	if err := w.current.GetEntry(w.file, out); err != nil {
		if err != ErrStateEndOfEntries {
			w.setErr(err)
		} else {
			w.lastErr = err
		}
		return err
	}
	return nil
}

func (w *Writer) WriteEntry(e *Entry) error {
	if err := w.requireHeaderWritten(); err != nil {
		return err
	}
	if err := w.current.WriteEntry(w.file, e); err != nil {
		return w.setErr(err)
	}
	return nil
}

func (w *Writer) WriteData(buf []byte) (int, error) {
	if err := w.requireHeaderWritten(); err != nil {
		return 0, err
	}
	n, err := w.current.WriteData(w.file, buf)
	if err != nil {
		return n, w.setErr(err)
	}
	return n, nil
}

func (w *Writer) FinishEntry() error {
	if err := w.requireHeaderWritten(); err != nil {
		return err
	}
	if err := w.current.FinishEntry(w.file); err != nil {
		return w.setErr(err)
	}
	return nil
}

func (w *Writer) FormatName() string {
	if w.current == nil {
		return ""
	}
	return w.current.Name()
}

func (w *Writer) FormatCode() FormatID {
	if w.current == nil {
		return -1
	}
	return w.current.TypeID()
}

// Close flushes the format's back-patched header/trailer (if the format
// considers itself done) and releases the owned File, if any.
func (w *Writer) Close() error {
	var closeErr error
	if w.current != nil && w.file != nil {
		closeErr = w.current.Close(w.file)
		if closeErr != nil {
			w.setErr(closeErr)
		}
	}
	w.state = writerClosed
	if w.ownedF != nil {
		err := w.ownedF.Close()
		w.ownedF = nil
		if closeErr == nil {
			closeErr = err
		}
	}
	return closeErr
}
