package ops

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
)

const maxDecodedChunk = 64 * 1024

// MaxBodyBytes caps how much decoded response body a single fetch will
// accumulate, guarding against a compression bomb or a runaway server.
const MaxBodyBytes = 32 * 1024 * 1024

// errBodyTooLarge reports a response body exceeding MaxBodyBytes,
// formatted the way a 413 log line would read.
func errBodyTooLarge(total int64) error {
	return fmt.Errorf("decoded body exceeds the %s limit (read %s)",
		humanize.Bytes(MaxBodyBytes), humanize.Bytes(uint64(total)))
}

// DecodedBodyStream wraps an HTTP response body and transparently
// decompresses it according to Content-Encoding, draining the underlying
// reader through a format-specific decompressor chain one chunk at a
// time.
type DecodedBodyStream struct {
	mu     sync.Mutex
	reader io.ReadCloser
	raw    io.ReadCloser
	buf    []byte
	closed bool
	total  int64
}

func newDecodedBodyStream(raw io.ReadCloser) *DecodedBodyStream {
	return &DecodedBodyStream{raw: raw, reader: raw}
}

// SetEncoding wraps the stream in a decompressor per a Content-Encoding
// header value (possibly a comma-separated chain, applied innermost-first
// per HTTP semantics, i.e. the LAST encoding listed is applied first when
// decoding).
func (d *DecodedBodyStream) SetEncoding(contentEncoding string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	encodings := splitEncodings(contentEncoding)
	r := d.raw
	for i := len(encodings) - 1; i >= 0; i-- {
		wrapped, err := wrapDecoder(r, encodings[i])
		if err != nil {
			return err
		}
		r = wrapped
	}
	d.reader = r
	return nil
}

func splitEncodings(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || p == "identity" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func wrapDecoder(r io.ReadCloser, encoding string) (io.ReadCloser, error) {
	switch encoding {
	case "gzip", "x-gzip":
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("decoding gzip body: %w", err)
		}
		return &chainReadCloser{Reader: gr, closers: []io.Closer{gr, r}}, nil
	case "deflate":
		fr := flate.NewReader(r)
		return &chainReadCloser{Reader: fr, closers: []io.Closer{fr, r}}, nil
	case "br":
		br := brotli.NewReader(r)
		return &chainReadCloser{Reader: br, closers: []io.Closer{r}}, nil
	case "zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("decoding zstd body: %w", err)
		}
		return &chainReadCloser{Reader: zr, closers: []io.Closer{zstdCloser{zr}, r}}, nil
	default:
		return nil, fmt.Errorf("unsupported content-encoding %q", encoding)
	}
}

// zstdCloser adapts *zstd.Decoder's void Close to io.Closer, since
// chainReadCloser's closers all run through an error-returning Close.
type zstdCloser struct {
	d *zstd.Decoder
}

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}

// chainReadCloser wraps a Reader with Closers that must all run.
type chainReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (c *chainReadCloser) Close() error {
	var firstErr error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Read implements read_decoded_stream(DecodedBodyStream) → bytes | null:
// it returns one chunk (up to maxDecodedChunk bytes), or (nil, nil) at
// end-of-stream.
func (d *DecodedBodyStream) Read() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, nil
	}
	if d.buf == nil {
		d.buf = make([]byte, maxDecodedChunk)
	}
	n, err := d.reader.Read(d.buf)
	if n > 0 {
		d.total += int64(n)
		if d.total > MaxBodyBytes {
			_ = d.reader.Close()
			d.closed = true
			return nil, errBodyTooLarge(d.total)
		}
		chunk := make([]byte, n)
		copy(chunk, d.buf[:n])
		if err == io.EOF {
			_ = d.reader.Close()
			d.closed = true
		}
		return chunk, nil
	}
	if err == io.EOF || err == nil {
		_ = d.reader.Close()
		d.closed = true
		return nil, nil
	}
	_ = d.reader.Close()
	d.closed = true
	return nil, err
}

// Close releases the underlying response body without reading it further.
func (d *DecodedBodyStream) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.reader.Close()
}
