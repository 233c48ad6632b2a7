package httpcore

import (
	"bytes"
	"io"
	"strings"

	"github.com/google/uuid"
)

// ErrRangeNotSatisfiable is returned when none of the terms in a Range
// header can be satisfied against the resource's actual length.
var ErrRangeNotSatisfiable = NewHTTPError(StatusRequestedRangeNotSatisfiable, "requested range not satisfiable")

// rangeAdvertiseSize: responses with seekable bodies above this length
// carry an Accept-Ranges: bytes header.
const rangeAdvertiseSize = 16 * 1024

// byteRange is a canonicalized, inclusive [start, end] span into a resource
// of known length. Unlike byteRangeSpec (the raw parsed header term),
// both bounds are always concrete here.
type byteRange struct {
	start, end int
}

// length is the number of bytes the range covers. Both bounds are
// inclusive, so the count is end-start+1, not end-start.
func (r byteRange) length() int { return r.end - r.start + 1 }

// canonicalizeRanges clamps and validates the raw Range header terms
// against a concrete resource length, dropping unsatisfiable ones.
// Ranges are returned in the order they were requested; overlapping or
// out-of-order ranges are accepted as-is; nothing downstream requires
// them merged.
func canonicalizeRanges(specs []byteRangeSpec, resourceLength int) ([]byteRange, error) {
	if resourceLength <= 0 {
		return nil, ErrRangeNotSatisfiable
	}

	out := make([]byteRange, 0, len(specs))
	for _, s := range specs {
		var start, end int
		switch {
		case !s.hasStart:
			// suffix range: "-N" means the last N bytes.
			if s.end == 0 {
				continue
			}
			start = resourceLength - s.end
			if start < 0 {
				start = 0
			}
			end = resourceLength - 1
		case !s.hasEnd:
			start = s.start
			end = resourceLength - 1
		default:
			start = s.start
			end = s.end
			if end >= resourceLength {
				end = resourceLength - 1
			}
		}
		if start >= resourceLength || start > end {
			continue
		}
		out = append(out, byteRange{start: start, end: end})
	}
	if len(out) == 0 {
		return nil, ErrRangeNotSatisfiable
	}
	return out, nil
}

// applySingleRange sets the 206 status, Content-Range and Content-Length
// headers for a single satisfiable range, and returns an io.Reader over
// just that span of body.
func applySingleRange(h *ResponseHeader, body io.ReadSeeker, r byteRange, totalLength int) (io.Reader, error) {
	h.SetStatusCode(StatusPartialContent)
	h.SetContentRange(r.start, r.end, totalLength)
	h.SetContentLength(r.length())
	if _, err := body.Seek(int64(r.start), io.SeekStart); err != nil {
		return nil, err
	}
	return io.LimitReader(body, int64(r.length())), nil
}

// applyMultipartRanges sets the 206 status and multipart/byteranges
// Content-Type for two or more satisfiable ranges, and returns an
// io.Reader yielding the full multipart body along with its total length.
func applyMultipartRanges(h *ResponseHeader, body io.ReadSeeker, ranges []byteRange, totalLength int, contentType string) (io.Reader, int, error) {
	boundary := randomBoundary()
	h.SetStatusCode(StatusPartialContent)
	h.SetContentTypeBytes(append([]byte("multipart/byteranges; boundary="), boundary...))

	var parts []io.Reader
	size := 0
	for i, r := range ranges {
		header := multipartRangeHeader(i == 0, r, totalLength, contentType, boundary)
		size += len(header)
		size += r.length()
		parts = append(parts, bytes.NewReader(header))
		parts = append(parts, &lazySection{body: body, r: r})
	}
	tail := multipartRangeTrailer(boundary)
	size += len(tail)
	parts = append(parts, bytes.NewReader(tail))

	h.SetContentLength(size)
	return io.MultiReader(parts...), size, nil
}

// lazySection defers its seek until the first Read. The multipart parts
// all share one underlying ReadSeeker, so seeking while the parts are
// being assembled would leave the position wherever the last range starts
// by the time the first part is actually read.
type lazySection struct {
	body io.ReadSeeker
	r    byteRange
	rd   io.Reader
}

func (s *lazySection) Read(p []byte) (int, error) {
	if s.rd == nil {
		if _, err := s.body.Seek(int64(s.r.start), io.SeekStart); err != nil {
			return 0, err
		}
		s.rd = io.LimitReader(s.body, int64(s.r.length()))
	}
	return s.rd.Read(p)
}

func multipartRangeHeader(first bool, r byteRange, totalLength int, contentType, boundary string) []byte {
	var b []byte
	if !first {
		b = append(b, strCRLF...)
	}
	b = append(b, '-', '-')
	b = append(b, boundary...)
	b = append(b, strCRLF...)
	b = append(b, "Content-Range: "...)
	b = append(b, fmtContentRange(r.start, r.end, totalLength)...)
	b = append(b, strCRLF...)
	b = append(b, "Content-Type: "...)
	b = append(b, contentType...)
	b = append(b, strCRLF...)
	b = append(b, strCRLF...)
	return b
}

func multipartRangeTrailer(boundary string) []byte {
	b := append([]byte(nil), strCRLF...)
	b = append(b, '-', '-')
	b = append(b, boundary...)
	b = append(b, '-', '-')
	b = append(b, strCRLF...)
	return b
}

// randomBoundary produces a 64-character multipart/byteranges boundary
// token. Entropy comes from uuid.NewString rather than a dedicated
// crypto/rand draw, since this already needs the same random-ID machinery
// bodyreader.go uses for spill file names; one UUID strips to 32 hex
// characters, so two are drawn.
func randomBoundary() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
