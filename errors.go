package httpcore

import (
	"errors"
	"fmt"
)

// HTTPError is an error that carries the HTTP status it should be reported
// as. Handlers raise one to surface a specific status (404, 403, ...)
// through the default error renderer instead of always falling back to 500.
type HTTPError struct {
	StatusCode int
	Message    string
	cause      error
}

func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Message: message}
}

func (e *HTTPError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.cause)
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.cause }

// WithCause attaches an underlying cause, kept for %w-chain formatting in
// logs and in debug response bodies.
func (e *HTTPError) WithCause(cause error) *HTTPError {
	e2 := *e
	e2.cause = cause
	return &e2
}

// StatusCodeOf extracts the HTTP status carried by err, if any, via errors.As.
func StatusCodeOf(err error) (int, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode, true
	}
	return 0, false
}

var (
	// ErrBodyTooLarge is returned by the Body Reader when a request body
	// exceeds max_body_bytes.
	ErrBodyTooLarge = errors.New("request body too large")

	// ErrHeadersTooLarge is returned from S1 when the header block would
	// exceed max_header_bytes before the CRLFCRLF delimiter is found.
	ErrHeadersTooLarge = errors.New("request headers too large")

	// ErrRequestAborted signals a partial read, socket error, or unexpected
	// EOF while reading a request body.
	ErrRequestAborted = errors.New("request aborted while reading body")

	// ErrBrokenChunks is returned when chunked request body framing is
	// malformed.
	ErrBrokenChunks = errors.New("malformed chunked request body")

	// ErrGotNilResponse is the programming error raised when a
	// RequestHandler returns without ever setting a response.
	ErrGotNilResponse = errors.New("request handler did not produce a response")

	// ErrHijacked signals that a connection's raw stream has been handed
	// off (WebSocket switch) and the connection handler must stop
	// participating in its own keep-alive logic.
	ErrHijacked = errors.New("connection hijacked")
)
