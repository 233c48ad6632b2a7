package httpcore

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/valyala/bytebufferpool"

	"github.com/nanovarix/httpcore/stackless"
)

const (
	CompressDefaultCompression = gzip.DefaultCompression
	CompressBestSpeed          = gzip.BestSpeed
)

// gzipAutoSampleSize is how many bytes of the body the autodetect gzip
// policy samples before deciding whether compression is worth it, when
// Config.GzipAutoThreshold doesn't override it.
const gzipAutoSampleSize = 4096

// gzipMinSize: bodies of known length at or below this are never
// compressed, the framing overhead isn't worth it.
const gzipMinSize = 1024

// gzipInMemoryMaxDefault caps how much of a known-length body is buffered
// for in-memory compression when Config.GzipInMemoryMax is unset.
const gzipInMemoryMaxDefault = 4 << 20

// gzipAutoRatioThreshold: if compressing the sample doesn't shrink it below
// this fraction of its original size, autodetect skips compression. Most
// already-compressed formats (jpeg, mp4, zip) come back above 0.97.
const gzipAutoRatioThreshold = 0.99

var gzipWriterPoolMap = newLeveledWriterPoolMap(func(w io.Writer, level int) (io.WriteCloser, error) {
	return gzip.NewWriterLevel(w, level)
})

type leveledWriterPoolMap struct {
	newWriter func(io.Writer, int) (io.WriteCloser, error)
	pools     [12]sync.Pool // index by compression level, 0..11 covers gzip.BestCompression
}

func newLeveledWriterPoolMap(newWriter func(io.Writer, int) (io.WriteCloser, error)) *leveledWriterPoolMap {
	return &leveledWriterPoolMap{newWriter: newWriter}
}

func (m *leveledWriterPoolMap) acquire(w io.Writer, level int) io.WriteCloser {
	idx := normalizeCompressLevel(level)
	v := m.pools[idx].Get()
	if v == nil {
		zw, _ := m.newWriter(w, level)
		return zw
	}
	zw := v.(io.WriteCloser)
	if rs, ok := zw.(interface{ Reset(io.Writer) }); ok {
		rs.Reset(w)
	}
	return zw
}

func (m *leveledWriterPoolMap) release(level int, zw io.WriteCloser) {
	idx := normalizeCompressLevel(level)
	m.pools[idx].Put(zw)
}

func normalizeCompressLevel(level int) int {
	if level < 0 {
		level = 0
	}
	if level > 11 {
		level = 11
	}
	return level
}

func acquireGzipWriter(w io.Writer, level int) *gzip.Writer {
	return gzipWriterPoolMap.acquire(w, level).(*gzip.Writer)
}

func releaseGzipWriter(zw *gzip.Writer, level int) {
	zw.Close()
	gzipWriterPoolMap.release(level, zw)
}

// gzipInMemory compresses body fully into an in-memory buffer, for the
// small-buffered-body branch of the framing decision.
func gzipInMemory(body []byte, level int) ([]byte, error) {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	zw := acquireGzipWriter(bb, level)
	_, err := zw.Write(body)
	releaseGzipWriter(zw, level)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(bb.B))
	copy(out, bb.B)
	return out, nil
}

// gzipStreamReader wraps a streamed body so that reading from it yields
// gzip-compressed bytes, via a stackless.Writer running the real
// compressor on a borrowed goroutine stack, so deep handler call chains
// don't pay the compressor's stack footprint.
type gzipStreamReader struct {
	pr *io.PipeReader
}

func newGzipStreamReader(src io.Reader, level int) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		sw := stackless.NewWriter(pw, func(w io.Writer) stackless.Writer {
			zw, _ := gzip.NewWriterLevel(w, level)
			return zw
		})
		_, err := io.Copy(sw, src)
		if cerr := sw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()
	return &gzipStreamReader{pr: pr}
}

func (r *gzipStreamReader) Read(p []byte) (int, error) { return r.pr.Read(p) }
func (r *gzipStreamReader) Close() error                { return r.pr.Close() }

// shouldAutoGzip samples sampleSize bytes from the middle of body and
// compresses the sample at the cheapest level to estimate whether
// compressing the whole body would be worthwhile. Bodies
// shorter than the sample size compress without sampling: the whole-body
// compression is barely more work than the estimate would be. It only
// applies to in-memory bodies: a streamed body with unknown length always
// compresses under GzipAuto, since there's nothing cheap to sample.
func shouldAutoGzip(body []byte, sampleSize int) bool {
	if len(body) == 0 {
		return false
	}
	if sampleSize <= 0 {
		sampleSize = gzipAutoSampleSize
	}
	if len(body) < sampleSize {
		return true
	}
	start := (len(body) - sampleSize) / 2
	sample := body[start : start+sampleSize]

	var buf bytes.Buffer
	zw := acquireGzipWriter(&buf, CompressBestSpeed)
	zw.Write(sample)
	releaseGzipWriter(zw, CompressBestSpeed)

	ratio := float64(buf.Len()) / float64(len(sample))
	return ratio < gzipAutoRatioThreshold
}

// shouldAutoGzipSeeker is shouldAutoGzip for a seekable body of known
// size: one sample is read from the middle and the body rewound before
// the pipeline streams it. Seek
// failures err on the side of compressing.
func shouldAutoGzipSeeker(rs io.ReadSeeker, size, sampleSize int) bool {
	if size == 0 {
		return false
	}
	if sampleSize <= 0 {
		sampleSize = gzipAutoSampleSize
	}
	if size < sampleSize {
		return true
	}
	start := int64(size-sampleSize) / 2
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return true
	}
	sample := make([]byte, sampleSize)
	n, _ := io.ReadFull(rs, sample)
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return true
	}
	if n == 0 {
		return true
	}
	return shouldAutoGzip(sample[:n], n)
}
