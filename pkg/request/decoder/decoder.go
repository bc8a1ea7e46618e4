// Package decoder contains request.ResponseDecoder implementations.
package decoder

import (
	"bytes"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// JSONErrorBodyLimit is the maximum number of body bytes stored in the JSONError.
const JSONErrorBodyLimit = 1024

// JSONDecoder decodes a JSON body to the T value.
type JSONDecoder[T any] struct {
	api jsoniter.API
}

// JSON creates a JSON decoder, the decoder is compatible with the encoding/json package.
func JSON[T any]() *JSONDecoder[T] {
	return &JSONDecoder[T]{api: jsoniter.ConfigCompatibleWithStandardLibrary}
}

// WithAPI returns a copy of the decoder using the jsoniter API.
func (d *JSONDecoder[T]) WithAPI(api jsoniter.API) *JSONDecoder[T] {
	return &JSONDecoder[T]{api: api}
}

// Decode returns the zero value of T, if the body is empty.
func (d *JSONDecoder[T]) Decode(body io.Reader) (T, error) {
	var out T
	if body == nil {
		return out, nil
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return out, fmt.Errorf("cannot read response body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	if err := d.api.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, newJSONError(data, err)
	}
	return out, nil
}

// JSONError is returned if the response body is not a valid JSON.
// It contains the beginning of the body, see JSONErrorBodyLimit.
type JSONError struct {
	// Body is the body, truncated to JSONErrorBodyLimit bytes.
	Body []byte
	// BodySize is the size of the full body.
	BodySize int
	err      error
}

func newJSONError(data []byte, err error) *JSONError {
	out := &JSONError{BodySize: len(data), err: err}
	if len(data) > JSONErrorBodyLimit {
		out.Body = append([]byte(nil), data[:JSONErrorBodyLimit]...)
	} else {
		out.Body = append([]byte(nil), data...)
	}
	return out
}

func (e *JSONError) Truncated() bool {
	return e.BodySize > len(e.Body)
}

func (e *JSONError) Error() string {
	if e.Truncated() {
		return fmt.Sprintf("cannot parse the response as JSON: %s, body (truncated to the first %d of %d bytes):\n%s", e.err, len(e.Body), e.BodySize, e.Body)
	}
	return fmt.Sprintf("cannot parse the response as JSON: %s, body:\n%s", e.err, e.Body)
}

func (e *JSONError) Unwrap() error {
	return e.err
}

// Func adapts a function to the request.ResponseDecoder interface.
type Func[T any] func(body io.Reader) (T, error)

func (f Func[T]) Decode(body io.Reader) (T, error) {
	return f(body)
}

// Text decodes the body as an UTF-8 string.
func Text() Func[string] {
	return func(body io.Reader) (string, error) {
		out, err := readAll(body)
		return string(out), err
	}
}

// Bytes returns the raw body.
func Bytes() Func[[]byte] {
	return readAll
}

// Writer copies the body to the writer, the T is the number of copied bytes.
func Writer(w io.Writer) Func[int64] {
	return func(body io.Reader) (int64, error) {
		if body == nil {
			return 0, nil
		}
		n, err := io.Copy(w, body)
		if err != nil {
			return n, fmt.Errorf("cannot read response body: %w", err)
		}
		return n, nil
	}
}

func readAll(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	out, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("cannot read response body: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
