// Package decode unwraps a response body according to its Content-Encoding header.
package decode

import (
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// Decode returns a reader of the decoded body.
// Closing the returned reader closes the original body.
// Unknown or empty encodings are passed through, so is an empty gzip body.
func Decode(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip", "x-gzip":
		r, err := gzip.NewReader(body)
		if errors.Is(err, io.EOF) {
			return body, nil
		} else if err != nil {
			return nil, fmt.Errorf("cannot decode gzip: %w", err)
		}
		return &decoder{Reader: r, body: body, close: r.Close}, nil
	case "deflate":
		r := flate.NewReader(body)
		return &decoder{Reader: r, body: body, close: r.Close}, nil
	case "br":
		return &decoder{Reader: brotli.NewReader(body), body: body}, nil
	default:
		return body, nil
	}
}

type decoder struct {
	io.Reader
	body  io.Closer
	close func() error
}

func (d *decoder) Close() error {
	var err error
	if d.close != nil {
		err = d.close()
	}
	if bodyErr := d.body.Close(); bodyErr != nil {
		return bodyErr
	}
	return err
}
