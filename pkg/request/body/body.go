// Package body contains request.BodyProducer implementations.
package body

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// JSONBody serializes a value to JSON.
type JSONBody struct {
	value any
	api   jsoniter.API
}

// JSON creates a JSON body, the encoder is compatible with the encoding/json package.
func JSON(value any) *JSONBody {
	return &JSONBody{value: value, api: jsoniter.ConfigCompatibleWithStandardLibrary}
}

// WithAPI returns a copy of the body encoded by the jsoniter API.
func (b *JSONBody) WithAPI(api jsoniter.API) *JSONBody {
	return &JSONBody{value: b.value, api: api}
}

func (b *JSONBody) ContributeHeaders(header http.Header) {
	header.Set("Content-Type", ContentTypeJSON)
}

func (b *JSONBody) ProduceBody() ([]byte, error) {
	out, err := b.api.Marshal(b.value)
	if err != nil {
		return nil, fmt.Errorf("cannot encode JSON body: %w", err)
	}
	return out, nil
}

func (b *JSONBody) BodyObject() any {
	return b.value
}

// FormBody serializes fields to the URL encoded form.
type FormBody struct {
	fields map[string]any
}

// Form creates a form body.
// Each element of a slice or an array is encoded as a separate value, other values are converted to string.
func Form(fields map[string]any) *FormBody {
	return &FormBody{fields: fields}
}

func (b *FormBody) ContributeHeaders(header http.Header) {
	header.Set("Content-Type", ContentTypeForm)
}

func (b *FormBody) ProduceBody() ([]byte, error) {
	values := make(url.Values)
	keys := make([]string, 0, len(b.fields))
	for k := range b.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		items, err := formValues(b.fields[k])
		if err != nil {
			return nil, fmt.Errorf(`cannot encode form field "%s": %w`, k, err)
		}
		for _, item := range items {
			values.Add(k, item)
		}
	}
	return []byte(values.Encode()), nil
}

func (b *FormBody) BodyObject() any {
	return b.fields
}

func formValues(value any) ([]string, error) {
	if value == nil {
		return nil, nil
	}
	if _, ok := value.([]byte); !ok {
		if v := reflect.ValueOf(value); v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
			out := make([]string, 0, v.Len())
			for i := range v.Len() {
				item, err := cast.ToStringE(v.Index(i).Interface())
				if err != nil {
					return nil, err
				}
				out = append(out, item)
			}
			return out, nil
		}
	}
	item, err := cast.ToStringE(value)
	if err != nil {
		return nil, err
	}
	return []string{item}, nil
}

// BytesBody sends raw bytes.
type BytesBody struct {
	content     []byte
	contentType string
}

// Bytes creates a raw body, an empty content type is not sent.
func Bytes(content []byte, contentType string) *BytesBody {
	return &BytesBody{content: content, contentType: contentType}
}

func (b *BytesBody) ContributeHeaders(header http.Header) {
	if b.contentType != "" {
		header.Set("Content-Type", b.contentType)
	}
}

func (b *BytesBody) ProduceBody() ([]byte, error) {
	return b.content, nil
}

// ReaderBody sends content of a reader.
// The reader is read once, on the first execution, the content is reused by next executions.
type ReaderBody struct {
	reader      io.Reader
	contentType string

	once    sync.Once
	content []byte
	err     error
}

// Reader creates a body from the reader, an empty content type is not sent.
func Reader(reader io.Reader, contentType string) *ReaderBody {
	return &ReaderBody{reader: reader, contentType: contentType}
}

func (b *ReaderBody) ContributeHeaders(header http.Header) {
	if b.contentType != "" {
		header.Set("Content-Type", b.contentType)
	}
}

func (b *ReaderBody) ProduceBody() ([]byte, error) {
	b.once.Do(func() {
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, b.reader); err != nil {
			b.err = fmt.Errorf("cannot read request body: %w", err)
			return
		}
		if closer, ok := b.reader.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				b.err = fmt.Errorf("cannot close request body: %w", err)
				return
			}
		}
		b.content = buf.Bytes()
	})
	return b.content, b.err
}
