package httpcore

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/google/uuid"
)

// spillingBody is the io.ReadCloser the Body Reader hands back for a body
// that spilled to a temp file: reads come from the file, and Close
// removes it. For an in-memory body, a plain io.NopCloser over a
// bytes.Reader is used instead (see readRequestBody).
type spillingBody struct {
	f    *os.File
	path string
}

func (b *spillingBody) Read(p []byte) (int, error) { return b.f.Read(p) }

func (b *spillingBody) Close() error {
	err := b.f.Close()
	if rerr := os.Remove(b.path); err == nil {
		err = rerr
	}
	return err
}

// readRequestBody reads a request body off the wire: exactly the
// bytes the Content-Length or chunked framing says belong to the body,
// buffering in memory up to spillThreshold bytes and spilling anything
// larger to a temp file under tmpDir. size is the number of body bytes
// read; for a chunked body that is its decoded length.
func readRequestBody(br *bufio.Reader, h *RequestHeader, maxBodyBytes int, spillThreshold int64, tmpDir string) (io.ReadCloser, int64, error) {
	contentLength := h.ContentLength()
	isChunked := bytes.EqualFold(h.Peek("Transfer-Encoding"), strChunked)

	switch {
	case isChunked:
		return readSpillableChunked(br, maxBodyBytes, spillThreshold, tmpDir)
	case contentLength > 0:
		return readSpillableFixed(br, contentLength, maxBodyBytes, spillThreshold, tmpDir)
	default:
		return io.NopCloser(&sliceReader{}), 0, nil
	}
}

// readSpillableFixed reads exactly n bytes: into memory when n is at most
// spillThreshold, otherwise straight into a temp file.
func readSpillableFixed(br *bufio.Reader, n, maxBodyBytes int, spillThreshold int64, tmpDir string) (io.ReadCloser, int64, error) {
	if maxBodyBytes > 0 && n > maxBodyBytes {
		return nil, 0, ErrBodyTooLarge
	}
	if int64(n) <= spillThreshold {
		buf, err := appendBodyFixedSize(br, nil, n)
		if err != nil {
			return nil, 0, err
		}
		return io.NopCloser(&sliceReader{b: buf}), int64(len(buf)), nil
	}

	f, path, err := createSpillFile(tmpDir)
	if err != nil {
		return nil, 0, err
	}
	written, err := io.CopyN(f, br, int64(n))
	if err != nil {
		f.Close()
		os.Remove(path)
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(path)
		return nil, 0, err
	}
	return &spillingBody{f: f, path: path}, written, nil
}

// readSpillableChunked decodes a chunked body, spilling to a temp file once
// the accumulated size crosses spillThreshold. Since the final size isn't
// known up front, it always starts in memory and migrates if needed.
func readSpillableChunked(br *bufio.Reader, maxBodyBytes int, spillThreshold int64, tmpDir string) (io.ReadCloser, int64, error) {
	buf, err := readBodyChunked(br, maxBodyBytes, nil)
	if err != nil {
		return nil, 0, err
	}
	if int64(len(buf)) <= spillThreshold {
		return io.NopCloser(&sliceReader{b: buf}), int64(len(buf)), nil
	}

	f, path, err := createSpillFile(tmpDir)
	if err != nil {
		return nil, 0, err
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		os.Remove(path)
		return nil, 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(path)
		return nil, 0, err
	}
	return &spillingBody{f: f, path: path}, int64(len(buf)), nil
}

func createSpillFile(tmpDir string) (*os.File, string, error) {
	f, err := os.CreateTemp(tmpDir, "httpcore-body-"+uuid.NewString()+"-*")
	if err != nil {
		return nil, "", err
	}
	return f, f.Name(), nil
}
