package httpcore

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// readBodyChunked reads a chunked transfer-encoding request body into
// dst: read a hex chunk-size line, read exactly that many bytes plus the
// trailing CRLF, repeat until a zero-size chunk closes the stream.
func readBodyChunked(r *bufio.Reader, maxBodySize int, dst []byte) ([]byte, error) {
	if len(dst) > 0 {
		panic("BUG: expected zero-length buffer")
	}

	for {
		chunkSize, err := parseChunkSize(r)
		if err != nil {
			return dst, fmt.Errorf("%w: %s", ErrBrokenChunks, err)
		}
		if maxBodySize > 0 && len(dst)+chunkSize > maxBodySize {
			return dst, ErrBodyTooLarge
		}
		dst, err = appendBodyFixedSize(r, dst, chunkSize+len(strCRLF))
		if err != nil {
			return dst, err
		}
		if !bytes.Equal(dst[len(dst)-len(strCRLF):], strCRLF) {
			return dst, fmt.Errorf("%w: missing crlf at end of chunk", ErrBrokenChunks)
		}
		dst = dst[:len(dst)-len(strCRLF)]
		if chunkSize == 0 {
			if err := skipTrailer(r); err != nil {
				return dst, err
			}
			return dst, nil
		}
	}
}

// skipTrailer consumes an optional trailer header block after the final
// zero-size chunk, discarding it: the Body Reader has no use for trailer
// fields on the request side, it only needs the stream left positioned at
// the start of the next request.
func skipTrailer(r *bufio.Reader) error {
	for {
		line, err := r.ReadSlice('\n')
		if err != nil {
			return err
		}
		if bytes.Equal(line, strCRLF) || bytes.Equal(line, []byte("\n")) {
			return nil
		}
	}
}

func parseChunkSize(r *bufio.Reader) (int, error) {
	n, err := readHexInt(r)
	if err != nil {
		return -1, err
	}
	// discard chunk extensions, if any, up to the terminating CRLF.
	for {
		c, err := r.ReadByte()
		if err != nil {
			return -1, err
		}
		if c == '\r' {
			break
		}
	}
	c, err := r.ReadByte()
	if err != nil {
		return -1, err
	}
	if c != '\n' {
		return -1, fmt.Errorf("unexpected char %q at the end of chunk size line", c)
	}
	return n, nil
}

func appendBodyFixedSize(r *bufio.Reader, dst []byte, n int) ([]byte, error) {
	if n == 0 {
		return dst, nil
	}

	offset := len(dst)
	dstLen := offset + n
	if cap(dst) < dstLen {
		b := make([]byte, roundUpForSliceCap(dstLen))
		copy(b, dst)
		dst = b
	}
	dst = dst[:dstLen]

	for offset < dstLen {
		nn, err := r.Read(dst[offset:])
		if nn <= 0 {
			if err != nil {
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				return dst[:offset], err
			}
			return dst[:offset], fmt.Errorf("bufio.Read returned (0, nil)")
		}
		offset += nn
	}
	return dst, nil
}

// chunkedWriter writes a chunked transfer-encoding body to an underlying
// *bufio.Writer, optionally followed by trailer header fields once the
// caller knows their final values.
type chunkedWriter struct {
	w   *bufio.Writer
	buf []byte
}

func newChunkedWriter(w *bufio.Writer) *chunkedWriter {
	return &chunkedWriter{w: w, buf: make([]byte, 4096)}
}

// copyChunked streams all of r to cw as chunked frames, returning the
// number of bytes copied.
func (cw *chunkedWriter) copyChunked(r io.Reader) (int64, error) {
	var total int64
	for {
		n, err := r.Read(cw.buf)
		if n > 0 {
			if werr := cw.writeChunk(cw.buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
	}
}

func (cw *chunkedWriter) writeChunk(b []byte) error {
	if err := writeHexInt(cw.w, len(b)); err != nil {
		return err
	}
	if _, err := cw.w.Write(strCRLF); err != nil {
		return err
	}
	if len(b) > 0 {
		if _, err := cw.w.Write(b); err != nil {
			return err
		}
	}
	_, err := cw.w.Write(strCRLF)
	return err
}

// Close writes the terminating zero-size chunk, followed by any trailer
// fields, followed by the blank line that ends the trailer block.
func (cw *chunkedWriter) Close(trailers []rawHeader) error {
	if err := cw.writeChunk(nil); err != nil {
		return err
	}
	for _, t := range trailers {
		if _, err := cw.w.Write(t.key); err != nil {
			return err
		}
		if _, err := cw.w.Write(strColonSpace); err != nil {
			return err
		}
		if _, err := cw.w.Write(t.value); err != nil {
			return err
		}
		if _, err := cw.w.Write(strCRLF); err != nil {
			return err
		}
	}
	_, err := cw.w.Write(strCRLF)
	return err
}
