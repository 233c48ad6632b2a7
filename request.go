package httpcore

import (
	"bytes"
	"io"
	"net"
)

// Request is the parsed, read-only (to the handler, except UserData) view
// of an incoming request the Connection Handler hands to a RequestHandler.
type Request struct {
	noCopy noCopy

	Header RequestHeader
	URI    URI

	body       io.ReadCloser
	bodySize   int64
	multipart  *MultipartForm

	remoteAddr net.Addr
	localAddr  net.Addr

	secure bool

	userData userData

	spillPath string
}

func AcquireRequest() *Request {
	req := &Request{}
	req.Reset()
	return req
}

func (req *Request) Reset() {
	req.Header.Reset()
	req.URI.Reset()
	req.closeBody()
	req.bodySize = 0
	req.multipart = nil
	req.remoteAddr = nil
	req.localAddr = nil
	req.secure = false
	req.userData.Reset()
	req.spillPath = ""
}

func (req *Request) closeBody() {
	if req.body != nil {
		req.body.Close()
		req.body = nil
	}
}

// SetBody attaches the parsed request body reader and its size, as decided
// by the Body Reader. size is the number of body bytes read; for a body
// sent with chunked transfer-encoding that is its decoded length.
func (req *Request) SetBody(body io.ReadCloser, size int64) {
	req.closeBody()
	req.body = body
	req.bodySize = size
}

// Body returns the request body stream. It is nil for requests with no
// body (GET, HEAD, ...). Reading it a second time after the handler
// returns is not supported: the Connection Handler closes and discards it
// as part of tearing the request down (spill-to-file cleanup included).
func (req *Request) Body() io.Reader {
	if req.body == nil {
		return nil
	}
	return req.body
}

// BodySize returns the request body's length in bytes; for a chunked body
// it is the decoded length.
func (req *Request) BodySize() int64 { return req.bodySize }

// SetSpillPath records the temp file path backing a spilled body, purely
// for diagnostics; the Body Reader is responsible for removing it via the
// io.ReadCloser's Close.
func (req *Request) SetSpillPath(path string) { req.spillPath = path }
func (req *Request) SpillPath() string        { return req.spillPath }

// PostArgs parses an application/x-www-form-urlencoded body into form
// fields. It consumes the body stream and, unlike MultipartForm, does not
// cache the result: call it at most once per request.
func (req *Request) PostArgs() (*Args, error) {
	if !bytes.HasPrefix(req.Header.ContentType(), strPostArgsContentType) {
		return nil, NewHTTPError(StatusBadRequest, "not a form-urlencoded request")
	}
	if req.body == nil {
		return nil, ErrRequestAborted
	}
	b, err := io.ReadAll(req.body)
	if err != nil {
		return nil, err
	}
	a := &Args{}
	a.ParseBytes(b)
	return a, nil
}

// MultipartForm lazily parses a multipart/form-data body the first time
// it's asked for and caches the result for subsequent calls
// within the same request.
func (req *Request) MultipartForm(spillThreshold int64) (*MultipartForm, error) {
	if req.multipart != nil {
		return req.multipart, nil
	}
	if req.body == nil {
		return nil, ErrRequestAborted
	}
	boundary, ok := multipartBoundary(req.Header.ContentType())
	if !ok {
		return nil, NewHTTPError(StatusBadRequest, "not a multipart/form-data request")
	}
	form, err := parseMultipartForm(req.body, boundary, spillThreshold)
	if err != nil {
		return nil, err
	}
	req.multipart = form
	return form, nil
}

func (req *Request) SetRemoteAddr(addr net.Addr) { req.remoteAddr = addr }
func (req *Request) RemoteAddr() net.Addr        { return req.remoteAddr }
func (req *Request) SetLocalAddr(addr net.Addr)  { req.localAddr = addr }
func (req *Request) LocalAddr() net.Addr         { return req.localAddr }

func (req *Request) SetSecure(secure bool) { req.secure = secure }
func (req *Request) IsTLS() bool           { return req.secure }

// SetUserData attaches handler-defined metadata to the request; unlike
// every other Request field, this is the one thing a handler is allowed
// to mutate.
func (req *Request) SetUserData(key string, value interface{}) { req.userData.Set(key, value) }
func (req *Request) UserData(key string) interface{}           { return req.userData.Get(key) }
