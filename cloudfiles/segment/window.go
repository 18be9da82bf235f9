package segment

import (
	"errors"
	"fmt"
	"io"
)

// Window is a read-only view of [offset, offset+length) of an io.ReaderAt.
//
// Every Read goes through ReadAt at offset+cursor, so any number of windows can
// share one underlying file without disturbing each other or its seek position.
// Window implements io.ReadSeeker, which lets HTTP clients rewind the body.
type Window struct {
	src    io.ReaderAt
	offset int64
	length int64
	cursor int64
}

// NewWindow creates a Window over length bytes of src starting at offset.
func NewWindow(src io.ReaderAt, offset, length int64) *Window {
	return &Window{
		src:    src,
		offset: offset,
		length: length,
	}
}

// Read reads at most up to the end of the window and returns io.EOF exactly there.
func (w *Window) Read(p []byte) (int, error) {
	if w.cursor >= w.length {
		return 0, io.EOF
	}
	if remaining := w.length - w.cursor; int64(len(p)) > remaining {
		p = p[:remaining]
	}

	n, err := w.src.ReadAt(p, w.offset+w.cursor)
	w.cursor += int64(n)

	if errors.Is(err, io.EOF) {
		if w.cursor < w.length {
			return n, fmt.Errorf("window [%d, %d) ends past source at %d: %w", w.offset, w.offset+w.length, w.offset+w.cursor, io.ErrUnexpectedEOF)
		}
		if n > 0 {
			err = nil
		}
	}
	return n, err
}

// Seek positions the cursor relative to the window, not to the underlying source.
func (w *Window) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = w.cursor + offset
	case io.SeekEnd:
		abs = w.length + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seek: negative position %d", abs)
	}
	w.cursor = abs
	return abs, nil
}

// Reset rewinds the window so it can be read again.
func (w *Window) Reset() {
	w.cursor = 0
}

// Len returns the number of unread bytes.
func (w *Window) Len() int {
	if w.cursor >= w.length {
		return 0
	}
	return int(w.length - w.cursor)
}

// Size returns the window length.
func (w *Window) Size() int64 {
	return w.length
}

// Offset returns where the window starts in the underlying source.
func (w *Window) Offset() int64 {
	return w.offset
}
