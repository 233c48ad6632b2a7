package httpcore

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
)

// writeResponse implements the response pipeline's decision order:
// no-body statuses, WebSocket switch, byte-range, gzip, and finally
// framing selection, in that order. It returns whether the connection was
// handed off (WebSocket) and, if so, the handoff function conn.go must
// invoke after flushing.
func writeResponse(bw *bufio.Writer, conn net.Conn, req *Request, resp *Response, cfg *Config) (handoff func(net.Conn), err error) {
	h := &resp.Header

	// 1xx/204/304 never carry a body or Content-Length, even if
	// the handler set one. 304 additionally drops Content-Type, always,
	// not just on non-keep-alive paths.
	if noBodyStatus(h.StatusCode()) {
		h.contentLengthSet = false
		if h.StatusCode() == StatusNotModified {
			h.contentType = h.contentType[:0]
		}
		if err := h.Write(bw); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if resp.IsWebSocketHandoff() {
		h.contentLengthSet = false
		if err := h.Write(bw); err != nil {
			return nil, err
		}
		return resp.TakeWebSocketHandoff(), nil
	}

	isHead := req.Header.IsHead()

	if len(h.ContentType()) == 0 && !h.noDefaultContentType {
		h.SetContentTypeBytes(cfg.defaultContentTypeBytes())
	}

	// Byte-range serving, only against a seekable, already-sized body on
	// an HTTP/1.1 200. Accept-Ranges is advertised above the threshold
	// whether or not this request asked for a range; range serving itself
	// has no size floor. A single range spanning the whole resource falls
	// through to plain 200 framing.
	if req.Header.IsHTTP11() && h.StatusCode() == StatusOK {
		if body, seekable := resp.BodySeeker(); seekable && resp.BodySize() >= 0 {
			total := resp.BodySize()
			if total > rangeAdvertiseSize {
				h.SetAcceptRanges()
			}
			if ranges, ok := req.Header.Ranges(); ok {
				// An empty canonical set falls through to plain 200
				// framing, same as a whole-resource range.
				canon, rerr := canonicalizeRanges(ranges, total)
				if rerr == nil && (len(canon) != 1 || canon[0].start > 0 || canon[0].end < total-1) {
					ct := string(h.ContentType())
					if ct == "" {
						ct = "application/octet-stream"
					}
					if len(canon) == 1 {
						r, rerr := applySingleRange(h, body, canon[0], total)
						if rerr != nil {
							return nil, rerr
						}
						return nil, writeFramed(bw, conn, h, r, isHead)
					}
					r, _, rerr := applyMultipartRanges(h, body, canon, total, ct)
					if rerr != nil {
						return nil, rerr
					}
					return nil, writeFramed(bw, conn, h, r, isHead)
				}
			}
		}
	}

	body := resp.BodyReader()
	size := resp.BodySize()

	switch {
	case shouldBrotli(req, resp):
		body, size, err = applyBrotli(resp, body, size, cfg.gzipInMemoryMax())
	case shouldGzip(req, resp, cfg.gzipSampleSize()):
		body, size, err = applyGzip(resp, body, size, cfg.gzipInMemoryMax())
	}
	if err != nil {
		return nil, err
	}

	if size >= 0 {
		h.SetContentLength(size)
	} else {
		h.contentLengthSet = false
	}
	return nil, writeFramedSized(bw, conn, h, body, size, isHead)
}

// shouldGzip decides the gzip step: never compress if the client
// didn't advertise support or isn't HTTP/1.1, the handler opted out, the
// body's known length is too small to be worth the framing overhead, or
// the body is a streamed range/websocket response already handled above.
func shouldGzip(req *Request, resp *Response, sampleSize int) bool {
	if resp.gzipPolicy == GzipNever {
		return false
	}
	if len(resp.Header.ContentEncoding()) > 0 {
		return false
	}
	if !req.Header.IsHTTP11() || !req.Header.AcceptsEncoding("gzip") {
		return false
	}
	if size := resp.BodySize(); size >= 0 && size <= gzipMinSize {
		return false
	}
	if resp.gzipPolicy == GzipAlways {
		return true
	}
	// GzipAuto: sample in-memory and seekable sized bodies; always
	// compress unsized streams since there's nothing cheap to sample.
	if !resp.IsBodyStream() {
		return shouldAutoGzip(resp.bodyBuf, sampleSize)
	}
	if rs, ok := resp.BodySeeker(); ok && resp.BodySize() >= 0 {
		return shouldAutoGzipSeeker(rs, resp.BodySize(), sampleSize)
	}
	return true
}

// shouldBrotli decides the opt-in brotli sibling: only ever selected when
// a handler explicitly called SetCompressBrotli, no Content-Encoding is set
// yet and the client accepts "br", leaving the default gzip-centric
// decision order untouched otherwise. Unlike shouldGzip it does not check
// the HTTP version, the GzipPolicy or a minimum body size.
func shouldBrotli(req *Request, resp *Response) bool {
	if !resp.CompressBrotli() {
		return false
	}
	if len(resp.Header.ContentEncoding()) > 0 {
		return false
	}
	return req.Header.AcceptsEncoding("br")
}

// applyBrotli is brotli's counterpart to applyGzip.
func applyBrotli(resp *Response, body io.Reader, size, inMemoryMax int) (io.Reader, int, error) {
	resp.Header.SetContentEncoding("br")
	resp.Header.addVary(strAcceptEncoding)

	if size >= 0 && size < inMemoryMax {
		plain, err := materializeBody(resp, body, size)
		if err != nil {
			return nil, 0, err
		}
		compressed, err := brotliInMemory(plain, brotliDefaultQuality)
		if err != nil {
			return nil, 0, err
		}
		return bytes.NewReader(compressed), len(compressed), nil
	}
	return newBrotliStreamReader(body, brotliDefaultQuality), unknownBodySize, nil
}

// applyGzip replaces body with its compressed form: bodies of known
// length under inMemoryMax are compressed fully in memory so the
// response carries an exact Content-Length, everything else goes through
// the streaming compressor.
func applyGzip(resp *Response, body io.Reader, size, inMemoryMax int) (io.Reader, int, error) {
	resp.Header.SetContentEncoding("gzip")
	resp.Header.addVary(strAcceptEncoding)

	if size >= 0 && size < inMemoryMax {
		plain, err := materializeBody(resp, body, size)
		if err != nil {
			return nil, 0, err
		}
		compressed, err := gzipInMemory(plain, CompressDefaultCompression)
		if err != nil {
			return nil, 0, err
		}
		return bytes.NewReader(compressed), len(compressed), nil
	}
	return newGzipStreamReader(body, CompressDefaultCompression), unknownBodySize, nil
}

// materializeBody hands back the bytes of a known-length body for
// in-memory compression: buffered bodies as-is, streams drained into a
// size-exact buffer.
func materializeBody(resp *Response, body io.Reader, size int) ([]byte, error) {
	if !resp.IsBodyStream() {
		return resp.bodyBuf, nil
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(body, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// writeFramed writes a response whose body reader's length is already set
// on h (used by the range paths, which call SetContentLength/SetContentRange
// themselves).
func writeFramed(bw *bufio.Writer, conn net.Conn, h *ResponseHeader, body io.Reader, isHead bool) error {
	return writeFramedSized(bw, conn, h, body, h.ContentLength(), isHead)
}

// writeFramedSized performs the final framing selection: a
// known-size body is sent with Content-Length framing, an unknown-size
// body falls back to chunked transfer-encoding. HEAD requests get headers
// only, body written/not written governed by isHead and noBodyStatus are
// already handled by the caller.
func writeFramedSized(bw *bufio.Writer, conn net.Conn, h *ResponseHeader, body io.Reader, size int, isHead bool) error {
	if size < 0 {
		h.SetBytesKV(strTransferEncoding, strChunked)
	}
	if err := h.Write(bw); err != nil {
		return err
	}
	if isHead {
		return nil
	}

	controlNoDelay(conn, true)
	defer controlNoDelay(conn, false)

	tr := &errTrackReader{r: body}
	if size >= 0 {
		_, err := io.CopyN(bw, tr, int64(size))
		if err == io.EOF {
			err = nil
		}
		return appendBodyError(bw, h, tr, err)
	}

	cw := newChunkedWriter(bw)
	if _, err := cw.copyChunked(tr); err != nil {
		return appendBodyError(bw, h, tr, err)
	}
	return cw.Close(nil)
}

// errTrackReader remembers whether a copy failure originated on the body
// producer's side, as opposed to the socket write side.
type errTrackReader struct {
	r   io.Reader
	err error
}

func (t *errTrackReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

// appendBodyError handles a body-producer failure mid-write:
// output has already begun, so a formatted error is appended to the
// stream (HTML-wrapped when the content type is HTML, plain text
// otherwise) and the error is returned so the handler closes the
// connection. Socket-side write errors pass through untouched, there is
// nobody left to format for.
func appendBodyError(bw *bufio.Writer, h *ResponseHeader, tr *errTrackReader, err error) error {
	if err == nil || tr.err == nil {
		return err
	}
	if bytes.Contains(h.ContentType(), []byte("text/html")) {
		fmt.Fprintf(bw, "\n<!-- response body error -->\n<pre>%s</pre>\n", tr.err)
	} else {
		fmt.Fprintf(bw, "\nresponse body error: %s\n", tr.err)
	}
	return err
}

// controlNoDelay toggles TCP_NODELAY around a body write. It is switched
// on for the final body write so the tail segment leaves immediately
// instead of waiting out Nagle's algorithm, and restored afterward so
// keep-alive traffic between responses coalesces normally again.
func controlNoDelay(conn net.Conn, noDelay bool) {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(noDelay)
	}
}
