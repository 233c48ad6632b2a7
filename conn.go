package httpcore

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// connHandler drives one accepted connection through the connection
// state machine: S0 (TLS handshake, if secure) -> S1
// (reading headers) -> S2 (parsing and handling) -> S3 (writing response)
// -> S4 (keep-alive-wait) -> back to S1, or Terminal on any error or a
// non-keep-alive response.
type connHandler struct {
	s  *Server
	c  net.Conn
	br *bufio.Reader
	bw *bufio.Writer

	idleItem *idleConnListItem
}

// serveConn is the ServeHandler the worker pool dispatches accepted
// connections to (server.go wires it in as wp.WorkerFunc).
func (s *Server) serveConn(c net.Conn) error {
	ch := &connHandler{
		s:  s,
		c:  c,
		br: bufio.NewReaderSize(c, s.readBufferSize()),
		bw: bufio.NewWriterSize(c, s.writeBufferSize()),
	}
	return ch.serve()
}

func (s *Server) readBufferSize() int {
	if s.cfg.ReadBufferSize > 0 {
		return s.cfg.ReadBufferSize
	}
	return 4096
}

func (s *Server) writeBufferSize() int {
	if s.cfg.WriteBufferSize > 0 {
		return s.cfg.WriteBufferSize
	}
	return 4096
}

// serve runs S0 once, then S1-S4 in a loop until the connection closes or
// is handed off (WebSocket, hijack). It never closes ch.c itself and
// never reports the StateClosed/StateHijacked transitions: the worker
// pool does both uniformly once WorkerFunc returns (workerpool.go),
// so teardown happens exactly once no matter how serving ended.
func (ch *connHandler) serve() error {
	if err := ch.handshake(); err != nil {
		return err
	}

	ip := ipToUint32(ch.c.RemoteAddr())
	if ch.s.cfg.MaxConnsPerIP > 0 {
		n := ch.s.perIPConnCounter.Register(ip)
		defer ch.s.perIPConnCounter.Unregister(ip)
		if n > ch.s.cfg.MaxConnsPerIP {
			return nil
		}
	}

	first := true
	for {
		if !first {
			ch.s.setConnState(ch.c, StateIdle)
			ch.idleItem = &idleConnListItem{c: ch.c}
			ch.idleItem.connTime.Store(coarseTimeNow().UnixNano())
			ch.s.idleConns.insertBack(ch.idleItem)
			ch.c.SetReadDeadline(time.Now().Add(ch.s.cfg.keepAliveTimeout()))
		}
		first = false

		keepGoing, handoff, err := ch.serveOne()

		if ch.idleItem != nil {
			ch.s.idleConns.remove(ch.idleItem)
			ch.idleItem = nil
		}

		if handoff != nil {
			handoff(ch.c)
			return errHijacked
		}
		if err != nil || !keepGoing {
			return err
		}
	}
}

// handshake is S0: for a secure endpoint this forces the TLS handshake to
// complete up front instead of lazily on first Read, so handshake
// failures are classified separately from S1 read failures.
func (ch *connHandler) handshake() error {
	tc, ok := ch.c.(*tls.Conn)
	if !ok {
		return nil
	}
	if ch.s.cfg.ReadTimeout > 0 {
		tc.SetDeadline(time.Now().Add(ch.s.cfg.ReadTimeout))
	}
	return tc.Handshake()
}

// serveOne runs one S1->S2->S3 cycle: read and parse a request, call the
// handler, write the response. It reports whether the connection should
// stay open for another cycle (S4) and, on a WebSocket upgrade, the
// handoff function to run instead of continuing the loop.
func (ch *connHandler) serveOne() (keepGoing bool, handoff func(net.Conn), err error) {
	ch.s.setConnState(ch.c, StateActive)

	if ch.s.cfg.ReadTimeout > 0 {
		ch.c.SetReadDeadline(time.Now().Add(ch.s.cfg.ReadTimeout))
	}

	buf, err := readHeaderBlock(ch.br, ch.s.cfg.maxHeaderBytes())
	if err != nil {
		return false, nil, err
	}

	req := AcquireRequest()
	req.SetRemoteAddr(ch.c.RemoteAddr())
	req.SetLocalAddr(ch.c.LocalAddr())
	_, isTLS := ch.c.(*tls.Conn)
	req.SetSecure(isTLS)

	errResp, perr := parseRequestHeader(req, buf)
	if perr != nil {
		return false, nil, perr
	}
	if errResp != nil {
		if werr := ch.writeAndFlush(req, errResp); werr != nil {
			return false, nil, werr
		}
		return false, nil, nil
	}

	if methodAllowsBody(req.Header.Method()) {
		// The advertised length is rejected before any 100 Continue goes
		// out, so a client that asked first never uploads a doomed body.
		if ch.s.cfg.MaxBodyBytes > 0 && req.Header.ContentLength() > ch.s.cfg.MaxBodyBytes {
			werr := ch.writeAndFlush(req, errorResponse(StatusRequestEntityTooLarge, "request body too large"))
			req.Reset()
			return false, nil, werr
		}
		if req.Header.MayContinue() {
			if err := ch.writeContinue(); err != nil {
				return false, nil, err
			}
		}
		body, size, berr := readRequestBody(ch.br, &req.Header, ch.s.cfg.MaxBodyBytes, ch.s.cfg.spillThreshold(), ch.s.cfg.TempDir)
		if berr != nil {
			return false, nil, berr
		}
		req.SetBody(body, size)
	}

	resp := ch.callHandler(req)
	if ch.s.cfg.Name != "" && len(resp.Header.server) == 0 {
		resp.Header.SetServer(ch.s.cfg.Name)
	}

	upgradeHandoff, werr := writeResponse(ch.bw, ch.c, req, resp, &ch.s.cfg)
	if werr != nil {
		resp.runCleanup()
		req.Reset()
		return false, nil, werr
	}

	if ferr := ch.bw.Flush(); ferr != nil {
		resp.runCleanup()
		req.Reset()
		return false, nil, ferr
	}

	keepGoing = upgradeHandoff == nil &&
		!req.Header.ConnectionClose() && !resp.Header.ConnectionClose() &&
		req.Header.IsHTTP11() && !ch.s.shuttingDown()

	resp.runCleanup()
	req.Reset()

	return keepGoing, upgradeHandoff, nil
}

// callHandler invokes the configured RequestHandler, converting a nil
// response (a programming error) into a 500 and recovering panics
// into the error-response path unless PropagateExceptions is set.
func (ch *connHandler) callHandler(req *Request) (resp *Response) {
	if !ch.s.cfg.PropagateExceptions {
		defer func() {
			if r := recover(); r != nil {
				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("handler panic: %v", r)
				}
				ch.s.cfg.logger().Printf("panic serving %s: %v", ch.c.RemoteAddr(), err)
				resp = ch.errorResponseFor(req, err)
			}
		}()
	}
	resp = ch.s.cfg.Handler(req)
	if resp == nil {
		resp = ch.errorResponseFor(req, ErrGotNilResponse)
	}
	return resp
}

// errorResponseFor routes err through the user error handler when one is
// registered, then falls back to the default renderer: the status an
// *HTTPError carries or 500, with the error chain in the body only when
// OutputExceptionInfo is on.
func (ch *connHandler) errorResponseFor(req *Request, err error) *Response {
	if eh := ch.s.cfg.ErrorHandler; eh != nil {
		if resp := callErrorHandler(eh, req, err); resp != nil {
			return resp
		}
	}
	status := StatusInternalServerError
	if sc, ok := StatusCodeOf(err); ok {
		status = sc
	}
	msg := StatusMessage(status)
	if ch.s.cfg.OutputExceptionInfo {
		msg = err.Error()
	}
	return errorResponse(status, msg)
}

// callErrorHandler shields the connection from a misbehaving user error
// handler: a panic inside it is treated the same as returning nil.
func callErrorHandler(eh func(*Request, error) *Response, req *Request, err error) (resp *Response) {
	defer func() {
		if recover() != nil {
			resp = nil
		}
	}()
	return eh(req, err)
}

func (ch *connHandler) writeAndFlush(req *Request, resp *Response) error {
	if _, err := writeResponse(ch.bw, ch.c, req, resp, &ch.s.cfg); err != nil {
		return err
	}
	return ch.bw.Flush()
}

// writeContinue sends the "100 Continue" intermediate response
// ahead of reading the body, for clients that sent Expect: 100-continue.
func (ch *connHandler) writeContinue() error {
	if _, err := ch.bw.Write(strHTTP11); err != nil {
		return err
	}
	if _, err := ch.bw.Write([]byte(" 100 Continue\r\n\r\n")); err != nil {
		return err
	}
	return ch.bw.Flush()
}

func ipToUint32(addr net.Addr) uint32 {
	ta, ok := addr.(*net.TCPAddr)
	if !ok || ta.IP == nil {
		return 0
	}
	ip4 := ta.IP.To4()
	if ip4 == nil {
		return 0
	}
	return uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3])
}
