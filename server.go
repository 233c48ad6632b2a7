package httpcore

import (
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/tcplisten"
)

// RequestHandler is called once per request. It must set a response on req
// (via the *Response it returns) before returning; returning without ever
// producing one is a programming error the Connection Handler reports as
// ErrGotNilResponse.
type RequestHandler func(req *Request) *Response

// Logger is used for logging formatted messages. The one-method shape
// means log.Logger satisfies it out of the box and structured loggers
// need only a thin adapter.
type Logger interface {
	Printf(format string, args ...interface{})
}

var defaultLogger Logger = log.New(os.Stderr, "", log.LstdFlags)

// ConnState represents the state a connection handler transitions through
// over its lifetime, reported to Config.ConnState if set, mirroring
// net/http's ConnState.
type ConnState int

const (
	StateNew ConnState = iota
	StateActive
	StateIdle
	StateHijacked
	StateClosed
)

func (cs ConnState) String() string {
	switch cs {
	case StateNew:
		return "new"
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	case StateHijacked:
		return "hijacked"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ServeHandler is the function shape the worker pool dispatches a raw
// connection to; serveConn (conn.go) is the only implementation.
type ServeHandler func(net.Conn) error

// errHijacked and ErrBadTrailer are the two sentinel conditions the worker
// pool's error handling special-cases: a hijacked connection isn't a
// serving failure, and a malformed trailer is noisy enough in practice
// that it's excluded from LogAllErrors-gated logging by default.
var (
	errHijacked   = ErrHijacked
	ErrBadTrailer = fmt.Errorf("httpcore: malformed chunked trailer")
)

// Endpoint is one {bind_address, port, secure} tuple the listener binds.
// Two endpoints with the same Address:Port are rejected by NewServer.
type Endpoint struct {
	Address string
	Secure  bool

	// CertResolver supplies the TLS certificate for Secure endpoints,
	// SNI-aware via tls.ClientHelloInfo. Required when Secure.
	CertResolver CertificateResolver
}

// Config collects the connection handler and response pipeline tunables.
// Zero values fall back to the defaults documented on each field.
type Config struct {
	Endpoints []Endpoint

	Handler RequestHandler
	Logger  Logger

	// ErrorHandler, if set, maps a handler panic or carried error to a
	// Response before the default renderer gets a shot. Returning nil
	// (or panicking itself) falls back to the default: a 500, or the
	// status an *HTTPError carries.
	ErrorHandler func(*Request, error) *Response

	// PropagateExceptions disables panic recovery around the request
	// handler (debug mode): a panic unwinds through the worker instead of
	// rendering an error response.
	PropagateExceptions bool

	// OutputExceptionInfo includes the panic value or error chain in
	// default error bodies instead of the bare status text.
	OutputExceptionInfo bool

	Name string

	Concurrency     int
	ReadBufferSize  int
	WriteBufferSize int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// KeepAliveTimeout bounds the keep-alive wait: a connection
	// idle longer than this after a response is closed rather than left
	// open for a next request.
	KeepAliveTimeout time.Duration

	MaxHeaderBytes int
	MaxBodyBytes   int

	// SpillToFileThreshold is the body-size cutoff past which the Body
	// Reader spills to a temp file instead of buffering in memory.
	SpillToFileThreshold int64
	// TempDir is where spilled bodies and oversize multipart file parts
	// are written. The OS default temp directory is used when empty.
	TempDir string

	// GzipAutoThreshold is the sample size GzipAuto compresses to estimate
	// compressibility; bodies smaller than it are compressed without
	// sampling. 4096 when zero.
	GzipAutoThreshold int

	// GzipInMemoryMax: bodies of known length below this are compressed
	// fully in memory before headers go out, so the response carries an
	// exact Content-Length instead of chunked framing. 4 MiB when zero.
	GzipInMemoryMax int

	// DefaultContentType is stamped on responses whose handler didn't set
	// a Content-Type. text/plain; charset=utf-8 when empty.
	DefaultContentType string

	MaxConnsPerIP int

	// ConnState, if set, is invoked on every state transition a served
	// connection makes (new/active/idle/hijacked/closed).
	ConnState func(net.Conn, ConnState)
}

func (c *Config) logger() Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return defaultLogger
}

func (c *Config) keepAliveTimeout() time.Duration {
	if c.KeepAliveTimeout > 0 {
		return c.KeepAliveTimeout
	}
	return 120 * time.Second
}

func (c *Config) maxHeaderBytes() int {
	if c.MaxHeaderBytes > 0 {
		return c.MaxHeaderBytes
	}
	return 8 * 1024
}

func (c *Config) defaultContentTypeBytes() []byte {
	if c.DefaultContentType != "" {
		return s2b(c.DefaultContentType)
	}
	return defaultContentType
}

func (c *Config) gzipInMemoryMax() int {
	if c.GzipInMemoryMax > 0 {
		return c.GzipInMemoryMax
	}
	return gzipInMemoryMaxDefault
}

func (c *Config) gzipSampleSize() int {
	if c.GzipAutoThreshold > 0 {
		return c.GzipAutoThreshold
	}
	return gzipAutoSampleSize
}

func (c *Config) spillThreshold() int64 {
	if c.SpillToFileThreshold > 0 {
		return c.SpillToFileThreshold
	}
	return 1 << 20 // 1MiB
}

const DefaultConcurrency = 256 * 1024

// Server is the listener shell: it owns one or more bound
// endpoints, a worker pool dispatching accepted connections through the
// state machine in conn.go, and the bookkeeping (idle list, per-IP
// counters, live connection count) Shutdown needs to drain cleanly.
type Server struct {
	cfg Config

	perIPConnCounter perIPConnCounter
	idleConns        idleConnList

	openConnections atomic.Int32
	connsReceived   atomic.Uint64

	mu        sync.Mutex
	listeners []net.Listener
	pools     []*workerPool
	conns     map[net.Conn]struct{}

	done     chan struct{}
	doneOnce sync.Once
}

// NewServer validates cfg (rejecting duplicate endpoint addresses) and
// returns a Server ready to Serve.
func NewServer(cfg Config) (*Server, error) {
	seen := make(map[string]bool, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		if seen[ep.Address] {
			return nil, fmt.Errorf("httpcore: duplicate endpoint address %q", ep.Address)
		}
		seen[ep.Address] = true
		if ep.Secure && ep.CertResolver == nil {
			return nil, fmt.Errorf("httpcore: endpoint %q is secure but has no CertResolver", ep.Address)
		}
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("httpcore: Config.Handler is required")
	}
	return &Server{cfg: cfg, done: make(chan struct{})}, nil
}

// ListenAndServe binds every configured endpoint and serves until
// Shutdown is called or a listener fails.
func (s *Server) ListenAndServe() error {
	if len(s.cfg.Endpoints) == 0 {
		return fmt.Errorf("httpcore: no endpoints configured")
	}

	startServerDateUpdater()
	defer stopServerDateUpdater()

	errCh := make(chan error, len(s.cfg.Endpoints))
	for _, ep := range s.cfg.Endpoints {
		ep := ep
		ln, err := s.bind(ep)
		if err != nil {
			return fmt.Errorf("httpcore: binding %q: %w", ep.Address, err)
		}
		s.mu.Lock()
		s.listeners = append(s.listeners, ln)
		s.mu.Unlock()

		go func() {
			errCh <- s.serveListener(ln)
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-s.done:
		return nil
	}
}

// bind opens a listener for ep, wrapping it in TLS when Secure is set.
// Plain listeners go through tcplisten for SO_REUSEPORT, matching the
// TLS listeners wrap net.Listen directly since
// tls.NewListener doesn't compose with tcplisten's custom Listen.
func (s *Server) bind(ep Endpoint) (net.Listener, error) {
	if ep.Secure {
		inner, err := net.Listen("tcp", ep.Address)
		if err != nil {
			return nil, err
		}
		cfg := buildTLSConfig(ep.CertResolver, nil, 0)
		return tls.NewListener(s.wrapTimeouts(inner), cfg), nil
	}

	cfg := &tcplisten.Config{
		ReusePort: true,
	}
	ln, err := cfg.NewListener("tcp4", ep.Address)
	if err != nil {
		return nil, err
	}
	return s.wrapTimeouts(ln), nil
}

// wrapTimeouts arms WriteTimeout on every accepted connection, re-applied
// per write so a long streamed body can't stall past the deadline on a
// back-pressured socket. Read deadlines stay with the state machine in
// conn.go: arming them per-read here would clobber the keep-alive
// deadline S4 sets while a connection is parked idle.
func (s *Server) wrapTimeouts(ln net.Listener) net.Listener {
	if s.cfg.WriteTimeout <= 0 {
		return ln
	}
	return &TimeoutListener{
		Listener:     ln,
		WriteTimeout: s.cfg.WriteTimeout,
	}
}

func (s *Server) serveListener(ln net.Listener) error {
	wp := &workerPool{
		WorkerFunc:            s.serveConn,
		MaxWorkersCount:       s.concurrency(),
		LogAllErrors:          false,
		MaxIdleWorkerDuration: 10 * time.Second,
		Logger:                s.cfg.logger(),
		connState:             s.setConnState,
	}
	wp.Start()
	defer wp.Stop()

	s.mu.Lock()
	s.pools = append(s.pools, wp)
	s.mu.Unlock()

	for {
		c, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				return err
			}
		}
		s.connsReceived.Add(1)
		s.setConnState(c, StateNew)
		if !wp.Serve(c) {
			c.Close()
		}
	}
}

func (s *Server) concurrency() int {
	if s.cfg.Concurrency > 0 {
		return s.cfg.Concurrency
	}
	return DefaultConcurrency
}

func (s *Server) setConnState(c net.Conn, state ConnState) {
	switch state {
	case StateNew:
		s.openConnections.Add(1)
		s.mu.Lock()
		if s.conns == nil {
			s.conns = make(map[net.Conn]struct{})
		}
		s.conns[c] = struct{}{}
		s.mu.Unlock()
	case StateClosed, StateHijacked:
		s.openConnections.Add(-1)
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
	}
	if s.cfg.ConnState != nil {
		s.cfg.ConnState(c, state)
	}
}

func (s *Server) shuttingDown() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// OpenConnections returns the number of connections currently being
// served, for metrics/health endpoints.
func (s *Server) OpenConnections() int32 { return s.openConnections.Load() }

// ConnsReceived returns the total number of connections accepted since
// startup. Unlike OpenConnections this never decreases: it is the
// connections-received counter, distinct from the
// active/idle handler counts below.
func (s *Server) ConnsReceived() uint64 { return s.connsReceived.Load() }

// ActiveHandlers returns the number of connections currently inside a
// request (S1-S3), excluding those parked in S4 keep-alive-wait.
func (s *Server) ActiveHandlers() int32 {
	return s.openConnections.Load() - s.idleConns.Len()
}

// IdleHandlers returns the number of connections currently parked in S4
// keep-alive-wait.
func (s *Server) IdleHandlers() int32 { return s.idleConns.Len() }

// stop ends accepting: it signals shutdown (idempotently) and closes
// every bound listener.
func (s *Server) stop() error {
	s.doneOnce.Do(func() { close(s.done) })
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, ln := range s.listeners {
		if err := ln.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Shutdown performs a graceful drain: stop accepting, close the
// handlers parked idle in S4 keep-alive-wait, and block until in-flight
// handlers finish their current request. Returning is the "shutdown
// complete" signal: the active-handler set has drained.
func (s *Server) Shutdown() error {
	err := s.stop()
	s.idleConns.forEach(func(item *idleConnListItem) {
		item.c.Close()
	})
	for s.openConnections.Load() > 0 {
		time.Sleep(10 * time.Millisecond)
	}
	return err
}

// Close is the brutal counterpart to Shutdown: every tracked connection's
// socket is closed immediately, mid-request or not, and the handlers are
// torn down by their next failing read or write.
func (s *Server) Close() error {
	err := s.stop()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	return err
}
