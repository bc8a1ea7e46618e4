package body

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
)

// File is a part of the multipart body.
type File struct {
	FieldName   string
	FileName    string
	ContentType string
	Content     []byte
}

// part is either a form field or a file.
type part struct {
	name  string
	value string
	file  *File
}

// MultipartBody serializes fields and files to the multipart/form-data body.
// Parts are written in the order in which they were added.
type MultipartBody struct {
	boundary string
	parts    []part
}

// Multipart creates an empty multipart body with a random boundary.
func Multipart() *MultipartBody {
	return &MultipartBody{boundary: strings.ReplaceAll(uuid.NewString(), "-", "")}
}

// AndField adds a form field.
func (b *MultipartBody) AndField(name, value string) *MultipartBody {
	b.parts = append(b.parts, part{name: name, value: value})
	return b
}

// AndFile adds a file, the default content type is "application/octet-stream".
func (b *MultipartBody) AndFile(file File) *MultipartBody {
	b.parts = append(b.parts, part{file: &file})
	return b
}

// Boundary returns the boundary separating parts.
func (b *MultipartBody) Boundary() string {
	return b.boundary
}

func (b *MultipartBody) ContributeHeaders(header http.Header) {
	header.Set("Content-Type", "multipart/form-data; boundary="+b.boundary)
}

func (b *MultipartBody) ProduceBody() ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(b.boundary); err != nil {
		return nil, fmt.Errorf("cannot set multipart boundary: %w", err)
	}

	for _, p := range b.parts {
		if p.file == nil {
			if err := w.WriteField(p.name, p.value); err != nil {
				return nil, fmt.Errorf(`cannot write multipart field "%s": %w`, p.name, err)
			}
			continue
		}
		if err := writeFile(w, *p.file); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("cannot close multipart body: %w", err)
	}
	return buf.Bytes(), nil
}

func writeFile(w *multipart.Writer, file File) error {
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(file.FieldName), escapeQuotes(file.FileName)))
	h.Set("Content-Type", contentType)
	pw, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf(`cannot write multipart file "%s": %w`, file.FileName, err)
	}
	if _, err := pw.Write(file.Content); err != nil {
		return fmt.Errorf(`cannot write multipart file "%s": %w`, file.FileName, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"") //nolint:gochecknoglobals

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
