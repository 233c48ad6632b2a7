package httpcore

import (
	"io"
	"net"
)

// GzipPolicy controls the gzip decision step of the response pipeline.
type GzipPolicy int

const (
	// GzipAuto compresses when the client advertises gzip support and a
	// sample of the body looks compressible.
	GzipAuto GzipPolicy = iota
	// GzipAlways compresses whenever the client advertises gzip support,
	// regardless of content.
	GzipAlways
	// GzipNever never compresses this response.
	GzipNever
)

// unknownBodySize marks a body stream whose length isn't known up front;
// the pipeline must fall back to chunked framing for it.
const unknownBodySize = -1

// Response is what a RequestHandler builds and the pipeline renders. A
// handler either returns one of these or panics; there is no third state.
type Response struct {
	noCopy noCopy

	Header ResponseHeader

	bodyBuf    []byte
	bodyStream io.Reader
	bodySize   int // unknownBodySize if bodyStream's length isn't known

	gzipPolicy     GzipPolicy
	compressBrotli bool

	cleanup func()

	// websocketHandoff, once set via SwitchToWebSocket, tells the
	// connection handler to perform the WebSocket handshake and
	// then hand the raw net.Conn to this function instead of continuing
	// the HTTP state machine.
	websocketHandoff func(net.Conn)
}

func AcquireResponse() *Response {
	resp := &Response{}
	resp.Reset()
	return resp
}

func (resp *Response) Reset() {
	resp.Header.Reset()
	resp.bodyBuf = resp.bodyBuf[:0]
	resp.bodyStream = nil
	resp.bodySize = 0
	resp.gzipPolicy = GzipAuto
	resp.compressBrotli = false
	resp.runCleanup()
	resp.cleanup = nil
	resp.websocketHandoff = nil
}

// SetStatusCode is a convenience wrapper so handlers rarely need to reach
// into resp.Header directly for the common case.
func (resp *Response) SetStatusCode(statusCode int) {
	resp.Header.SetStatusCode(statusCode)
}

// SetBody buffers the whole body in memory; length is known immediately.
func (resp *Response) SetBody(body []byte) {
	resp.bodyBuf = append(resp.bodyBuf[:0], body...)
	resp.bodyStream = nil
	resp.bodySize = len(body)
	resp.Header.SetContentLength(len(body))
}

// SetBodyString is SetBody for the common string-literal case.
func (resp *Response) SetBodyString(body string) {
	resp.SetBody(s2b(body))
}

// SetBodyStream attaches a streamed body. size is the stream's length in
// bytes, or unknownBodySize (-1) when the handler can't know it up front
// (e.g. piping a live process's stdout); an unknown size forces chunked
// framing.
func (resp *Response) SetBodyStream(r io.Reader, size int) {
	resp.bodyBuf = resp.bodyBuf[:0]
	resp.bodyStream = r
	resp.bodySize = size
	if size >= 0 {
		resp.Header.SetContentLength(size)
	}
}

// BodyReader exposes the response body as a single io.Reader regardless of
// whether it was buffered or streamed, for the pipeline's internal use.
func (resp *Response) BodyReader() io.Reader {
	if resp.bodyStream != nil {
		return resp.bodyStream
	}
	return &sliceReader{b: resp.bodyBuf}
}

// BodySize returns the body length, or unknownBodySize if it isn't known.
func (resp *Response) BodySize() int {
	if resp.bodyStream != nil {
		return resp.bodySize
	}
	return len(resp.bodyBuf)
}

// IsBodyStream reports whether the body came from SetBodyStream, which
// matters to the pipeline because a streamed body can't be re-read for
// byte-range slicing without an io.Seeker.
func (resp *Response) IsBodyStream() bool {
	return resp.bodyStream != nil
}

// BodySeeker returns the body as an io.ReadSeeker for the byte-range step
// , and whether the body actually supports seeking.
func (resp *Response) BodySeeker() (io.ReadSeeker, bool) {
	if resp.bodyStream != nil {
		if rs, ok := resp.bodyStream.(io.ReadSeeker); ok {
			return rs, true
		}
		return nil, false
	}
	return &sliceReader{b: resp.bodyBuf}, true
}

func (resp *Response) SetGzipPolicy(p GzipPolicy) { resp.gzipPolicy = p }
func (resp *Response) GzipPolicy() GzipPolicy     { return resp.gzipPolicy }

// SetCompressBrotli opts this response into brotli (Content-Encoding: br)
// instead of gzip when the client's Accept-Encoding allows it. Brotli is
// never selected unless a handler calls this: the pipeline's default
// compression decision stays gzip-centric.
func (resp *Response) SetCompressBrotli(v bool) { resp.compressBrotli = v }
func (resp *Response) CompressBrotli() bool     { return resp.compressBrotli }

// SetCleanup registers a function run once the response has been fully
// written (or abandoned), to release resources such as a spilled temp file
// backing a streamed body.
func (resp *Response) SetCleanup(f func()) {
	resp.cleanup = f
}

func (resp *Response) runCleanup() {
	if resp.cleanup != nil {
		resp.cleanup()
		resp.cleanup = nil
	}
}

// SwitchToWebSocket marks this response as a 101 Switching Protocols
// upgrade ; handler is handed the raw connection once the handshake
// response has been written.
func (resp *Response) SwitchToWebSocket(handler func(net.Conn)) {
	resp.Header.SetStatusCode(StatusSwitchingProtocols)
	resp.websocketHandoff = handler
}

func (resp *Response) IsWebSocketHandoff() bool { return resp.websocketHandoff != nil }

func (resp *Response) TakeWebSocketHandoff() func(net.Conn) {
	h := resp.websocketHandoff
	resp.websocketHandoff = nil
	return h
}

// errorResponse builds the small, fixed-shape error response the parser and
// pipeline use for malformed requests and internal failures. It
// always closes the connection afterward: a client that sent something the
// parser couldn't make sense of can't be trusted to frame the next request
// correctly either.
func errorResponse(statusCode int, msg string) *Response {
	resp := AcquireResponse()
	resp.Header.SetStatusCode(statusCode)
	resp.Header.SetContentType("text/plain; charset=utf-8")
	resp.Header.SetConnectionClose()
	resp.SetBodyString(msg + "\n")
	return resp
}

// sliceReader adapts a []byte to io.ReadSeeker without allocating a new
// bytes.Reader struct's worth of extra fields the pipeline doesn't need.
type sliceReader struct {
	b []byte
	i int64
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.i >= int64(len(r.b)) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.i:])
	r.i += int64(n)
	return n, nil
}

func (r *sliceReader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.i + offset
	case io.SeekEnd:
		abs = int64(len(r.b)) + offset
	}
	r.i = abs
	return abs, nil
}
