package httpcore

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
)

// RequestHeader holds the parsed form of a request's header block: the
// headers the server itself acts on live in typed struct fields;
// everything else lands in the raw side bag (rawHeaders) in first-seen
// order.
//
// It is forbidden to copy RequestHeader by value; Request.CopyTo exists
// for that.
type RequestHeader struct {
	noCopy noCopy

	method         []byte
	requestURI     []byte
	protocol       []byte
	httpMinorVers  int // 0 or 1; major is always 1

	host          []byte
	contentLength int
	contentType   []byte
	userAgent     []byte
	connection    []byte
	cookie        []byte
	xForwardedFor []byte
	ifModSince    []byte
	ifNoneMatch   []byte

	acceptEncoding []acceptEncodingEntry
	ranges         []byteRangeSpec
	rangeHeaderSet bool

	expectContinue bool
	expectOther    bool // Expect present but not (only) 100-continue

	rawHeaders []rawHeader

	disableKeepAlive bool
}

type rawHeader struct {
	key   []byte
	value []byte
}

type acceptEncodingEntry struct {
	token string
	q     float64
}

// byteRangeSpec is a single "a-b" term from a Range header, prior to
// canonicalisation against a concrete resource length. Either bound may be
// absent: hasStart==false means "suffix of end bytes from the end",
// hasEnd==false means "to the end of the resource".
type byteRangeSpec struct {
	start, end   int
	hasStart     bool
	hasEnd       bool
}

func (h *RequestHeader) Reset() {
	h.method = h.method[:0]
	h.requestURI = h.requestURI[:0]
	h.protocol = h.protocol[:0]
	h.httpMinorVers = 1
	h.host = h.host[:0]
	h.contentLength = 0
	h.contentType = h.contentType[:0]
	h.userAgent = h.userAgent[:0]
	h.connection = h.connection[:0]
	h.cookie = h.cookie[:0]
	h.xForwardedFor = h.xForwardedFor[:0]
	h.ifModSince = h.ifModSince[:0]
	h.ifNoneMatch = h.ifNoneMatch[:0]
	h.acceptEncoding = h.acceptEncoding[:0]
	h.ranges = h.ranges[:0]
	h.rangeHeaderSet = false
	h.expectContinue = false
	h.expectOther = false
	h.rawHeaders = h.rawHeaders[:0]
	h.disableKeepAlive = false
}

func (h *RequestHeader) Method() []byte        { return h.method }
func (h *RequestHeader) RequestURI() []byte     { return h.requestURI }
func (h *RequestHeader) IsHTTP11() bool         { return h.httpMinorVers == 1 }
func (h *RequestHeader) Host() []byte           { return h.host }
func (h *RequestHeader) ContentLength() int     { return h.contentLength }
func (h *RequestHeader) ContentType() []byte    { return h.contentType }
func (h *RequestHeader) UserAgent() []byte      { return h.userAgent }
func (h *RequestHeader) Cookie() []byte         { return h.cookie }

// CookieValue returns the named cookie's value from the Cookie header, or
// nil when the cookie isn't present.
func (h *RequestHeader) CookieValue(key string) []byte {
	if len(h.cookie) == 0 {
		return nil
	}
	for _, kv := range parseRequestCookies(nil, h.cookie) {
		if string(kv.key) == key {
			return kv.value
		}
	}
	return nil
}
func (h *RequestHeader) XForwardedFor() []byte  { return h.xForwardedFor }
func (h *RequestHeader) IfModifiedSince() []byte { return h.ifModSince }
func (h *RequestHeader) IfNoneMatch() []byte    { return h.ifNoneMatch }
func (h *RequestHeader) MayContinue() bool      { return h.expectContinue }

// AcceptEncoding returns the tokens of the Accept-Encoding header sorted by
// q-value descending; ties preserve first-seen order.
func (h *RequestHeader) AcceptEncoding() []string {
	out := make([]string, len(h.acceptEncoding))
	for i, e := range h.acceptEncoding {
		out[i] = e.token
	}
	return out
}

func (h *RequestHeader) AcceptsEncoding(token string) bool {
	for _, e := range h.acceptEncoding {
		if e.token == token {
			return true
		}
	}
	return false
}

// Ranges returns the raw (un-canonicalised) byte-range terms parsed from
// the Range header, and whether a Range header was present at all.
func (h *RequestHeader) Ranges() ([]byteRangeSpec, bool) {
	return h.ranges, h.rangeHeaderSet
}

func (h *RequestHeader) IsGet() bool    { return bytes.Equal(h.method, strGet) }
func (h *RequestHeader) IsHead() bool   { return bytes.Equal(h.method, strHead) }
func (h *RequestHeader) IsPost() bool   { return bytes.Equal(h.method, strPost) }
func (h *RequestHeader) IsPut() bool    { return bytes.Equal(h.method, strPut) }
func (h *RequestHeader) IsDelete() bool { return bytes.Equal(h.method, strDelete) }
func (h *RequestHeader) IsPatch() bool  { return bytes.Equal(h.method, strPatch) }

func (h *RequestHeader) ConnectionClose() bool {
	return h.disableKeepAlive || bytes.EqualFold(h.connection, strClose)
}

func (h *RequestHeader) ConnectionUpgrade() bool {
	return bytes.Contains(bytes.ToLower(h.connection), []byte("upgrade"))
}

func (h *RequestHeader) SetConnectionClose() { h.disableKeepAlive = true }

// Peek returns the raw value of a header not promoted to a typed field,
// matching by case-insensitive name.
func (h *RequestHeader) Peek(key string) []byte {
	for i := range h.rawHeaders {
		if bytes.EqualFold(h.rawHeaders[i].key, []byte(key)) {
			return h.rawHeaders[i].value
		}
	}
	return nil
}

func (h *RequestHeader) VisitAll(f func(key, value []byte)) {
	if len(h.host) > 0 {
		f(strHost, h.host)
	}
	if len(h.userAgent) > 0 {
		f(strUserAgent, h.userAgent)
	}
	if len(h.contentType) > 0 {
		f(strContentType, h.contentType)
	}
	for i := range h.rawHeaders {
		f(h.rawHeaders[i].key, h.rawHeaders[i].value)
	}
}

// methodAllowsBody reports whether method admits a request body.
func methodAllowsBody(method []byte) bool {
	return bytes.Equal(method, strPost) || bytes.Equal(method, strPut) || bytes.Equal(method, strPatch) || bytes.Equal(method, strDelete)
}

var knownMethods = [][]byte{strGet, strHead, strPost, strPut, strDelete, strPatch}

func isKnownMethod(m []byte) bool {
	for _, km := range knownMethods {
		if bytes.Equal(km, m) {
			return true
		}
	}
	return false
}

// parseRequestHeader parses a complete header block into req.
//
// On success it populates req and returns nil. On any parse failure it
// returns a pre-formed error *Response with Connection: close already
// set; errors and panics are reserved for unexpected failures, not
// control flow.
func parseRequestHeader(req *Request, buf []byte) (*Response, error) {
	h := &req.Header
	h.Reset()

	s := &headerScanner{b: buf}

	firstLine := s.readLine()
	if len(firstLine) == 0 {
		return errorResponse(StatusBadRequest, "empty request line"), nil
	}
	if err := parseRequestLine(h, firstLine); err != nil {
		if ve, ok := err.(*versionError); ok {
			return errorResponse(StatusHTTPVersionNotSupported, ve.Error()), nil
		}
		if me, ok := err.(*methodError); ok {
			return errorResponse(StatusNotImplemented, me.Error()), nil
		}
		return errorResponse(StatusBadRequest, err.Error()), nil
	}

	for s.next() {
		if err := applyHeaderField(h, s.key, s.value); err != nil {
			return errorResponse(StatusBadRequest, err.Error()), nil
		}
	}
	if s.err != nil && s.err != errNeedMore {
		return errorResponse(StatusBadRequest, s.err.Error()), nil
	}

	if len(h.host) == 0 {
		return errorResponse(StatusBadRequest, "missing Host header"), nil
	}

	if h.expectOther {
		return errorResponse(StatusExpectationFailed, "unsupported Expect token"), nil
	}

	if methodAllowsBody(h.method) {
		if h.contentLength > 0 && len(h.contentType) == 0 {
			return errorResponse(StatusBadRequest, "missing Content-Type with non-empty body"), nil
		}
	}

	sort.SliceStable(h.acceptEncoding, func(i, j int) bool {
		return h.acceptEncoding[i].q > h.acceptEncoding[j].q
	})

	return nil, nil
}

type methodError struct{ method string }

func (e *methodError) Error() string { return fmt.Sprintf("unsupported method %q", e.method) }

type versionError struct{ version string }

func (e *versionError) Error() string { return fmt.Sprintf("unsupported HTTP version %q", e.version) }

// parseRequestLine parses "METHOD SP URI SP HTTP/1.x".
func parseRequestLine(h *RequestHeader, line []byte) error {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 < 0 {
		return fmt.Errorf("malformed request line: %q", line)
	}
	method := line[:sp1]
	rest := line[sp1+1:]

	sp2 := bytes.LastIndexByte(rest, ' ')
	if sp2 < 0 {
		return fmt.Errorf("malformed request line: %q", line)
	}
	uri := rest[:sp2]
	version := rest[sp2+1:]

	if !isKnownMethod(method) {
		return &methodError{method: string(method)}
	}
	if !bytes.HasPrefix(version, []byte("HTTP/1.")) || len(version) != len("HTTP/1.0") {
		return &versionError{version: string(version)}
	}
	minor := version[len(version)-1]
	if minor != '0' && minor != '1' {
		return &versionError{version: string(version)}
	}
	if len(uri) == 0 {
		return fmt.Errorf("empty request URI")
	}

	h.method = append(h.method[:0], method...)
	h.requestURI = append(h.requestURI[:0], uri...)
	h.protocol = append(h.protocol[:0], version...)
	if minor == '1' {
		h.httpMinorVers = 1
	} else {
		h.httpMinorVers = 0
	}
	return nil
}

// applyHeaderField populates the typed fields for recognized headers, and
// files everything else into the raw side bag.
func applyHeaderField(h *RequestHeader, key, value []byte) error {
	switch {
	case bytes.EqualFold(key, strHost):
		host, _ := splitHostPort(value)
		if err := validateIPv6Literal(host); err != nil {
			return err
		}
		h.host = append(h.host[:0], host...)
	case bytes.EqualFold(key, strContentLength):
		n, err := ParseUint(value)
		if err != nil {
			return fmt.Errorf("malformed Content-Length: %q", value)
		}
		h.contentLength = n
	case bytes.EqualFold(key, strContentType):
		h.contentType = append(h.contentType[:0], value...)
	case bytes.EqualFold(key, strUserAgent):
		h.userAgent = append(h.userAgent[:0], value...)
	case bytes.EqualFold(key, strConnection):
		h.connection = append(h.connection[:0], value...)
	case bytes.EqualFold(key, strCookie):
		h.cookie = append(h.cookie[:0], value...)
	case bytes.EqualFold(key, strXForwardedFor):
		h.xForwardedFor = append(h.xForwardedFor[:0], value...)
	case bytes.EqualFold(key, strIfModifiedSince):
		h.ifModSince = append(h.ifModSince[:0], value...)
	case bytes.EqualFold(key, strIfNoneMatch):
		h.ifNoneMatch = append(h.ifNoneMatch[:0], value...)
	case bytes.EqualFold(key, strAcceptEncoding):
		h.acceptEncoding = parseAcceptEncoding(h.acceptEncoding[:0], value)
	case bytes.EqualFold(key, strRange):
		ranges, err := parseRangeHeader(value)
		if err != nil {
			return err
		}
		h.ranges = ranges
		h.rangeHeaderSet = true
	case bytes.EqualFold(key, strExpect):
		for _, tok := range splitTokenList(value) {
			if bytes.EqualFold(tok, str100Continue) {
				h.expectContinue = true
			} else {
				h.expectOther = true
			}
		}
	default:
		h.rawHeaders = append(h.rawHeaders, rawHeader{
			key:   append([]byte(nil), key...),
			value: append([]byte(nil), value...),
		})
	}
	return nil
}

func splitHostPort(hostport []byte) (host, port []byte) {
	if i := bytes.LastIndexByte(hostport, ':'); i >= 0 && bytes.IndexByte(hostport[i:], ']') < 0 {
		return hostport[:i], hostport[i+1:]
	}
	return hostport, nil
}

func splitTokenList(v []byte) [][]byte {
	parts := bytes.Split(v, []byte(","))
	out := make([][]byte, 0, len(parts))
	for _, p := range parts {
		p = trim(p)
		if len(p) > 0 {
			out = append(out, p)
		}
	}
	return out
}

// parseAcceptEncoding splits "gzip;q=0.8, deflate" into q-tagged entries
// without sorting (the caller sorts once, stably, after all headers are
// read so ties keep first-seen order across repeated Accept-Encoding
// lines).
func parseAcceptEncoding(dst []acceptEncodingEntry, v []byte) []acceptEncodingEntry {
	for _, tok := range splitTokenList(v) {
		q := 1.0
		token := tok
		if i := bytes.IndexByte(tok, ';'); i >= 0 {
			token = trim(tok[:i])
			params := tok[i+1:]
			if qi := bytes.Index(params, []byte("q=")); qi >= 0 {
				qv := trim(params[qi+2:])
				if f, err := ParseUfloat(qv); err == nil {
					q = f
				}
			}
		}
		if len(token) == 0 {
			continue
		}
		dst = append(dst, acceptEncodingEntry{token: string(bytes.ToLower(token)), q: q})
	}
	return dst
}

// parseRangeHeader parses "bytes=a-b,c-d". It does not validate
// against a resource length — that canonicalisation happens in byterange.go
// once the response pipeline knows the body's length.
func parseRangeHeader(v []byte) ([]byteRangeSpec, error) {
	const prefix = "bytes="
	if !bytes.HasPrefix(v, []byte(prefix)) {
		return nil, fmt.Errorf("unsupported Range unit: %q", v)
	}
	v = v[len(prefix):]
	parts := bytes.Split(v, []byte(","))
	specs := make([]byteRangeSpec, 0, len(parts))
	for _, p := range parts {
		p = trim(p)
		if len(p) == 0 {
			continue
		}
		dash := bytes.IndexByte(p, '-')
		if dash < 0 {
			return nil, fmt.Errorf("malformed Range term: %q", p)
		}
		startB, endB := p[:dash], p[dash+1:]
		var spec byteRangeSpec
		if len(startB) > 0 {
			n, err := ParseUint(startB)
			if err != nil {
				return nil, fmt.Errorf("malformed Range term: %q", p)
			}
			spec.start = n
			spec.hasStart = true
		}
		if len(endB) > 0 {
			n, err := ParseUint(endB)
			if err != nil {
				return nil, fmt.Errorf("malformed Range term: %q", p)
			}
			spec.end = n
			spec.hasEnd = true
		}
		if !spec.hasStart && !spec.hasEnd {
			return nil, fmt.Errorf("empty Range term")
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// readHeaderBlock implements S1: accumulate whole lines from br until the
// blank line terminating the header block is found, or fail if the
// accumulated block would exceed maxHeaderBytes before that happens.
func readHeaderBlock(br *bufio.Reader, maxHeaderBytes int) ([]byte, error) {
	var buf []byte
	for {
		line, err := br.ReadSlice('\n')
		if len(line) > 0 {
			buf = append(buf, line...)
		}
		if err != nil {
			if err == bufio.ErrBufferFull {
				return nil, ErrHeadersTooLarge
			}
			return nil, err
		}
		if maxHeaderBytes > 0 && len(buf) > maxHeaderBytes {
			return nil, ErrHeadersTooLarge
		}
		if bytes.Equal(line, strCRLF) || bytes.Equal(line, []byte("\n")) {
			return buf, nil
		}
	}
}
