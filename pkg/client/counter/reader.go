// Package counter measures body sizes of the sent requests and the received responses.
package counter

import (
	"errors"
	"io"
	"sync"
)

// ReadCloser wraps an io.ReadCloser (request/response body) to count bytes read from the reader.
// Optionally, an OnClose callback can be registered, it is called only once.
type ReadCloser struct {
	wrapped   io.ReadCloser
	onClose   OnClose
	closeOnce sync.Once
	closeErr  error
	bytes     int64
	readErr   error
}

// OnClose receives the number of read bytes and the first relevant error.
type OnClose func(bytes int64, err error)

func NewReadCloser(wrapped io.ReadCloser, onClose OnClose) *ReadCloser {
	return &ReadCloser{wrapped: wrapped, onClose: onClose}
}

func (w *ReadCloser) Bytes() int64 {
	return w.bytes
}

func (w *ReadCloser) Read(b []byte) (int, error) {
	n, err := w.wrapped.Read(b)
	w.bytes += int64(n)
	if err != nil && w.readErr == nil {
		w.readErr = err
	}
	return n, err
}

// Close closes the wrapped reader, repeated calls return the first result.
func (w *ReadCloser) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.wrapped.Close()
		if w.onClose != nil {
			// Prefer read error before close error for onClose callback, it is usually more useful
			var onCloseErr error
			if w.readErr != nil && !errors.Is(w.readErr, io.EOF) {
				onCloseErr = w.readErr
			} else if w.closeErr != nil {
				onCloseErr = w.closeErr
			}
			w.onClose(w.bytes, onCloseErr)
		}
	})
	return w.closeErr
}
