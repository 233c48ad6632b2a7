/*
Package httpcore provides an embeddable HTTP/1.1 server core.

httpcore provides the following features:

    * A Connection Handler state machine (TLS handshake, header read,
      parse, handle, write, keep-alive-wait) driving each accepted
      connection, built on top of a FILO worker pool so idle goroutines
      are recycled instead of torn down between requests.
    * Bytes of the next request already sitting in the receive buffer
      are re-parsed as that request once the current response completes;
      requests are still served one at a time (no pipelining).
    * Server is packed with the following anti-DoS limits:

        * The number of concurrent connections.
        * The number of concurrent connections per client IP.
        * Read and write timeouts.
        * Maximum request header and body size; a body over the limit
          gets 413, and bodies above the spill threshold are written to a
          temp file instead of memory.

    * Byte-range, gzip, and chunked/fixed-length framing are all decided
      by one Response Pipeline so a handler only ever deals in
      io.Reader/io.ReadSeeker bodies.
    * TLS endpoints resolve certificates per-connection via SNI,
      including Let's Encrypt-style autocert managers.
    * A WebSocket upgrade handshake hands the raw connection off to a
      caller-supplied function; frame handling is the caller's concern.

It is not a general-purpose net/http replacement: there's no client, no
routing, and no HTTP/2. It's the connection/parsing/response-framing
core a small set of higher-level packages build on.
*/
package httpcore
