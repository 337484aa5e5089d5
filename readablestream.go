package webruntime

import (
	"context"

	"github.com/cryguy/webruntime/internal/stream"
)

// ReadableStream is the public ReadableStream: a thin wrapper over the
// internal stream core translating its errors to the public error kinds.
type ReadableStream struct {
	core *stream.Core
}

// UnderlyingSource is the value-oriented source passed to
// NewReadableStream, the Go shape of the JS underlying source object.
type UnderlyingSource struct {
	Start func(c *DefaultController) error
	Pull  func(ctx context.Context, c *DefaultController) error
	Cancel func(reason any) error
	Size  func(chunk any) (float64, error)

	HighWaterMark float64
}

// NewReadableStream constructs a value-oriented ReadableStream.
func NewReadableStream(src UnderlyingSource) *ReadableStream {
	core, _ := stream.NewDefaultStream(stream.DefaultSource{
		Start: func(c *stream.DefaultController) error {
			if src.Start == nil {
				return nil
			}
			return src.Start(&DefaultController{inner: c})
		},
		Pull: func(ctx context.Context, c *stream.DefaultController) error {
			if src.Pull == nil {
				return nil
			}
			return src.Pull(ctx, &DefaultController{inner: c})
		},
		Cancel:        src.Cancel,
		Size:          stream.SizeAlgorithm(src.Size),
		HighWaterMark: src.HighWaterMark,
	})
	return &ReadableStream{core: core}
}

// ByteSource is the byte-oriented ("bytes" type) source passed to
// NewByteReadableStream, enabling BYOB reads.
type ByteSource struct {
	Start  func(c *ByteController) error
	Pull   func(ctx context.Context, c *ByteController) error
	Cancel func(reason any) error

	AutoAllocateChunkSize int
	HighWaterMark         float64
}

// NewByteReadableStream constructs a byte-oriented ReadableStream whose
// getBYOBReader is available.
func NewByteReadableStream(src ByteSource) *ReadableStream {
	core, _ := stream.NewByteStream(stream.ByteSource{
		Start: func(c *stream.ByteController) error {
			if src.Start == nil {
				return nil
			}
			return src.Start(&ByteController{inner: c})
		},
		Pull: func(ctx context.Context, c *stream.ByteController) error {
			if src.Pull == nil {
				return nil
			}
			return src.Pull(ctx, &ByteController{inner: c})
		},
		Cancel:                src.Cancel,
		AutoAllocateChunkSize: src.AutoAllocateChunkSize,
		HighWaterMark:         src.HighWaterMark,
	})
	return &ReadableStream{core: core}
}

func wrapStream(core *stream.Core) *ReadableStream {
	if core == nil {
		return nil
	}
	return &ReadableStream{core: core}
}

// Locked reports whether a reader currently holds this stream.
func (s *ReadableStream) Locked() bool { return s.core.Locked() }

// Disturbed reports whether any read has touched this stream.
func (s *ReadableStream) Disturbed() bool { return s.core.Disturbed() }

// Cancel cancels the stream with reason; fails with TypeError if locked.
func (s *ReadableStream) Cancel(reason any) error {
	return translateErr(s.core.Cancel(reason))
}

// GetReader acquires a default reader.
func (s *ReadableStream) GetReader() (*ReadableStreamDefaultReader, error) {
	r, err := s.core.GetReader()
	if err != nil {
		return nil, translateErr(err)
	}
	return &ReadableStreamDefaultReader{inner: r}, nil
}

// GetBYOBReader acquires a BYOB reader; fails with TypeError unless the
// stream is byte-oriented.
func (s *ReadableStream) GetBYOBReader() (*ReadableStreamBYOBReader, error) {
	r, err := s.core.GetBYOBReader()
	if err != nil {
		return nil, translateErr(err)
	}
	return &ReadableStreamBYOBReader{inner: r}, nil
}

// ReadResult is what a default reader's Read returns.
type ReadResult struct {
	Value any
	Done  bool
}

// ReadableStreamDefaultReader is ReadableStreamDefaultReader.
type ReadableStreamDefaultReader struct {
	inner *stream.DefaultReader
}

// Read dequeues the next chunk, blocking until one is available, the
// stream closes/errors, or ctx is done.
func (r *ReadableStreamDefaultReader) Read(ctx context.Context) (ReadResult, error) {
	res, err := r.inner.Read(ctx)
	if err != nil {
		return ReadResult{}, translateErr(err)
	}
	return ReadResult{Value: res.Value, Done: res.Done}, nil
}

// ReleaseLock detaches the reader.
func (r *ReadableStreamDefaultReader) ReleaseLock() { r.inner.ReleaseLock() }

// Closed blocks until the stream closes, errors, or ctx is done.
func (r *ReadableStreamDefaultReader) Closed(ctx context.Context) error {
	return translateErr(r.inner.Closed(ctx))
}

// Cancel cancels the underlying stream.
func (r *ReadableStreamDefaultReader) Cancel(reason any) error {
	return translateErr(r.inner.Cancel(reason))
}

// IntoResult is what a BYOB reader's Read returns.
type IntoResult struct {
	View []byte
	Done bool
}

// ReadableStreamBYOBReader is ReadableStreamBYOBReader.
type ReadableStreamBYOBReader struct {
	inner *stream.BYOBReader
}

// Read fills view with at least min bytes (min defaults to len(view) when
// <= 0).
func (r *ReadableStreamBYOBReader) Read(ctx context.Context, view []byte, min int) (IntoResult, error) {
	res, err := r.inner.Read(ctx, view, min)
	if err != nil {
		return IntoResult{}, translateErr(err)
	}
	return IntoResult{View: res.View, Done: res.Done}, nil
}

// ReleaseLock detaches the reader.
func (r *ReadableStreamBYOBReader) ReleaseLock() { r.inner.ReleaseLock() }

// Closed blocks until the stream closes, errors, or ctx is done.
func (r *ReadableStreamBYOBReader) Closed(ctx context.Context) error {
	return translateErr(r.inner.Closed(ctx))
}

// Cancel cancels the underlying stream.
func (r *ReadableStreamBYOBReader) Cancel(reason any) error {
	return translateErr(r.inner.Cancel(reason))
}

// DefaultController is ReadableStreamDefaultController, handed to Start/
// Pull callbacks of a value-oriented stream.
type DefaultController struct {
	inner *stream.DefaultController
}

// Enqueue pushes chunk onto the stream.
func (c *DefaultController) Enqueue(chunk any) error { return translateErr(c.inner.Enqueue(chunk)) }

// Close closes the stream once the queue drains.
func (c *DefaultController) Close() error { return translateErr(c.inner.Close()) }

// Error transitions the stream to errored.
func (c *DefaultController) Error(err error) { c.inner.Error(err) }

// DesiredSize is strategyHWM - totalSize (0 when closed, ok=false when
// errored).
func (c *DefaultController) DesiredSize() (float64, bool) { return c.inner.DesiredSize() }

// ByteController is ReadableByteStreamController, handed to Start/Pull
// callbacks of a byte-oriented stream.
type ByteController struct {
	inner *stream.ByteController
}

// Enqueue pushes a byte chunk onto the stream.
func (c *ByteController) Enqueue(chunk []byte) error { return translateErr(c.inner.Enqueue(chunk)) }

// Close closes the stream, resolving any outstanding BYOB reads with
// their accumulated prefix.
func (c *ByteController) Close() error { return translateErr(c.inner.Close()) }

// Error transitions the stream to errored.
func (c *ByteController) Error(err error) { c.inner.Error(err) }

// DesiredSize is strategyHWM - totalSize (0 when closed, ok=false when
// errored).
func (c *ByteController) DesiredSize() (float64, bool) { return c.inner.DesiredSize() }

// BYOBRequest exposes the current pending pull-into descriptor's view to
// a byte source's pull algorithm.
type BYOBRequest struct {
	inner *stream.BYOBRequest
}

// ByobRequest returns the controller's current BYOB request, or nil if
// none is pending.
func (c *ByteController) ByobRequest() *BYOBRequest {
	r := c.inner.ByobRequest()
	if r == nil {
		return nil
	}
	return &BYOBRequest{inner: r}
}

// View returns the request's target buffer view.
func (r *BYOBRequest) View() []byte { return r.inner.View() }

// Respond signals that bytesWritten bytes were written into View().
func (r *BYOBRequest) Respond(bytesWritten int) error {
	return translateErr(r.inner.Respond(bytesWritten))
}

// RespondWithNewView signals completion with a replacement view over the
// same underlying buffer.
func (r *BYOBRequest) RespondWithNewView(view []byte) error {
	return translateErr(r.inner.RespondWithNewView(view))
}

// StreamIterator is the async iterator returned by Values.
type StreamIterator struct {
	inner *stream.Iterator
}

// Values returns an async iterator over the stream's chunks
// (ReadableStream.values({preventCancel})). Unless preventCancel is set,
// breaking out of iteration early cancels the stream.
func (s *ReadableStream) Values(preventCancel bool) *StreamIterator {
	return &StreamIterator{inner: s.core.Values(preventCancel)}
}

// Next advances the iterator, blocking until a chunk is available, the
// stream closes/errors, or ctx is done.
func (it *StreamIterator) Next(ctx context.Context) (ReadResult, error) {
	v, done, err := it.inner.Next(ctx)
	if err != nil {
		return ReadResult{}, translateErr(err)
	}
	return ReadResult{Value: v, Done: done}, nil
}

// Return is the iterator's return(reason): it cancels the stream (unless
// preventCancel was set on Values) and releases the reader.
func (it *StreamIterator) Return(reason any) error {
	return translateErr(it.inner.Return(reason))
}

// Iterable is the Go shape of the sync/async iterables From adapts.
type Iterable struct {
	Next  func(ctx context.Context) (value any, ok bool, err error)
	Close func() error
}

// FromIterable builds a ReadableStream that pulls its chunks from it
// (ReadableStream.from(iterable)): each read advances it once, closing
// the stream at exhaustion; canceling the stream invokes it.Close, if
// set.
func FromIterable(it Iterable) *ReadableStream {
	core := stream.From(stream.Iterable{Next: it.Next, Close: it.Close})
	return wrapStream(core)
}
