package httpcore

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// MultipartForm is the parsed multipart/form-data body: simple
// fields in Value, file parts in File. It is an alias for the standard
// library's mime/multipart.Form rather than a reinvention of it; MIME
// multipart parsing is a case where the ecosystem itself defers to the
// standard library rather than offering a competing implementation.
type MultipartForm = multipart.Form

var strBoundary = []byte("boundary")

// multipartBoundary extracts the boundary parameter from a Content-Type
// header of the form "multipart/form-data; boundary=...".
func multipartBoundary(contentType []byte) (string, bool) {
	b := contentType
	if !bytes.HasPrefix(b, strMultipartFormData) {
		return "", false
	}
	b = b[len(strMultipartFormData):]
	if len(b) == 0 || b[0] != ';' {
		return "", false
	}

	var n int
	for len(b) > 0 {
		n++
		for len(b) > n && b[n] == ' ' {
			n++
		}
		b = b[n:]
		if !bytes.HasPrefix(b, strBoundary) {
			if n = bytes.IndexByte(b, ';'); n < 0 {
				return "", false
			}
			continue
		}
		b = b[len(strBoundary):]
		if len(b) == 0 || b[0] != '=' {
			return "", false
		}
		b = b[1:]
		if n = bytes.IndexByte(b, ';'); n >= 0 {
			b = b[:n]
		}
		b = bytes.Trim(b, `"`)
		if len(b) == 0 {
			return "", false
		}
		return string(b), true
	}
	return "", false
}

// parseMultipartForm parses r as a multipart/form-data body, spilling any
// file part larger than spillThreshold bytes to a temp file instead of
// holding it in memory (the same spill policy the body reader
// applies to the request body as a whole).
func parseMultipartForm(r io.Reader, boundary string, spillThreshold int64) (*MultipartForm, error) {
	mr := multipart.NewReader(r, boundary)
	form, err := mr.ReadForm(spillThreshold)
	if err != nil {
		return nil, fmt.Errorf("cannot read multipart/form-data body: %w", err)
	}
	return form, nil
}

// SaveMultipartFile copies src to a fresh temp file under dir and returns
// its path, for a RequestHandler that needs to move an in-memory file part
// (from a MultipartForm's File map) to permanent storage. Named with a
// uuid rather than the client-supplied filename so two concurrent uploads
// with the same name never collide.
func SaveMultipartFile(dir string, src io.Reader) (path string, size int64, err error) {
	f, err := os.CreateTemp(dir, "httpcore-upload-"+uuid.NewString()+"-*")
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	n, err := io.Copy(f, src)
	if err != nil {
		os.Remove(f.Name())
		return "", 0, err
	}
	return filepath.Clean(f.Name()), n, nil
}
