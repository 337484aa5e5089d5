package ops

import (
	"context"
	"io"
	"sync"
)

// ResourceSink implements stream.ByteSink over a plain io.Writer: an
// outgoing HTTP request body, or any other io.WriteCloser a caller wants
// a ReadableStream piped into.
type ResourceSink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	hwm    int
	closed bool
}

// NewResourceSink wraps w (and, if it implements io.Closer, closes it on
// Close) as a ByteSink. hwm is stored but not consulted: WriteSync never
// reports the sink as full.
func NewResourceSink(w io.Writer, hwm int) *ResourceSink {
	closer, _ := w.(io.Closer)
	return &ResourceSink{w: w, closer: closer, hwm: hwm}
}

// WriteSync implements the synchronous fast path: writers that can't
// block (a bytes.Buffer, a pipe with room) return the byte count
// immediately; this implementation always succeeds synchronously since a
// plain io.Writer has no notion of "full" to report, leaving the -2
// sentinel to callers wrapping something that can actually back-pressure.
func (r *ResourceSink) WriteSync(p []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return sinkClosedSentinel
	}
	n, err := r.w.Write(p)
	if err != nil {
		r.closed = true
		return sinkClosedSentinel
	}
	return n
}

// WriteAsync exists for ByteSink callers that got a "full" sentinel from
// WriteSync; since WriteSync here never reports full, WriteAsync simply
// retries the write under ctx.
func (r *ResourceSink) WriteAsync(ctx context.Context, p []byte) error {
	done := make(chan error, 1)
	go func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			done <- io.ErrClosedPipe
			return
		}
		_, err := r.w.Write(p)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements stream_close: idempotent, closes the underlying writer
// if it supports it.
func (r *ResourceSink) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.closer != nil {
		_ = r.closer.Close()
	}
}

// sinkClosedSentinel mirrors stream.ByteSink's -1 "already closed" value;
// kept as a local constant since stream.Bridge's sentinels are unexported.
const sinkClosedSentinel = -1
