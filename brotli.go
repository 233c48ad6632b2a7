package httpcore

import (
	"io"

	"github.com/andybalholm/brotli"
	"github.com/valyala/bytebufferpool"

	"github.com/nanovarix/httpcore/stackless"
)

const brotliDefaultQuality = 6

var brotliWriterPoolMap = newLeveledWriterPoolMap(func(w io.Writer, level int) (io.WriteCloser, error) {
	return brotli.NewWriterLevel(w, level), nil
})

func acquireBrotliWriter(w io.Writer, level int) *brotli.Writer {
	return brotliWriterPoolMap.acquire(w, level).(*brotli.Writer)
}

func releaseBrotliWriter(bw *brotli.Writer, level int) {
	bw.Close()
	brotliWriterPoolMap.release(level, bw)
}

// brotliInMemory mirrors gzipInMemory for the opt-in brotli sibling
// (the gzip decision step, generalized): compress a fully buffered
// body without touching the streaming path.
func brotliInMemory(body []byte, level int) ([]byte, error) {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	bw := acquireBrotliWriter(bb, level)
	_, err := bw.Write(body)
	releaseBrotliWriter(bw, level)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(bb.B))
	copy(out, bb.B)
	return out, nil
}

// newBrotliStreamReader is brotli's counterpart to gzipStreamReader: a
// stackless.Writer running the real compressor on a borrowed goroutine
// stack, so a streamed response body never needs a dedicated compressor
// goroutine's full stack held for the life of the response.
func newBrotliStreamReader(src io.Reader, level int) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		sw := stackless.NewWriter(pw, func(w io.Writer) stackless.Writer {
			return brotli.NewWriterLevel(w, level)
		})
		_, err := io.Copy(sw, src)
		if cerr := sw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()
	return &gzipStreamReader{pr: pr}
}
