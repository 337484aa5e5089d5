package stream

import (
	"context"
	"fmt"
	"sync"
)

// State is the stream's lifecycle state. Transitions out of Readable are
// one-way: a stream that reaches Closed or Errored never returns to
// Readable.
type State int

const (
	Readable State = iota
	Closed
	Errored
)

func (s State) String() string {
	switch s {
	case Readable:
		return "readable"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// ReaderKind distinguishes which of the two reader variants is attached,
// standing in for the "has [[readRequests]] vs [[readIntoRequests]]"
// slot check a JS engine performs internally.
type ReaderKind int

const (
	NoReader ReaderKind = iota
	DefaultReaderKind
	BYOBReaderKind
)

// ReadResult is what a default reader's Read returns.
type ReadResult struct {
	Value any
	Done  bool
}

// IntoResult is what a BYOB reader's Read returns.
type IntoResult struct {
	View []byte
	Done bool
}

type readRequest struct {
	out chan readOutcome
}

type readOutcome struct {
	value any
	done  bool
	err   error
}

type intoOutcome struct {
	view []byte
	done bool
	err  error
}

// controller is implemented by DefaultController and ByteController; it
// is the seam StreamCore uses so its close/error/cancel plumbing doesn't
// need to know which kind of controller it owns.
type controller interface {
	cancel(reason any) error
	errorController(err error)
	// drainOnClose runs the controller-specific steps for an external
	// close; it returns nil if the close may proceed. Both DefaultController
	// and ByteController have no such steps and always return nil.
	drainOnClose() error
}

// Core is the shared ReadableStream state machine.
// A Core exclusively owns its controller and, for the lifetime a reader
// is attached, is considered locked.
type Core struct {
	mu sync.Mutex

	state      State
	storedErr  error
	disturbed  bool
	controller controller

	readerKind ReaderKind
	// Default reader state. BYOB pull-into descriptors live on
	// ByteController instead (its pendingPullIntos), since a byte
	// controller's byobRequest/respond protocol needs direct access to
	// them that this shared Core has no reason to mediate.
	readRequests Queue[readRequest]
	closedCh     chan struct{}
	closedErr    error
	closedOnce   sync.Once
}

func newCore() *Core {
	return &Core{closedCh: make(chan struct{})}
}

// State reports the stream's current lifecycle state.
func (c *Core) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Locked reports whether a reader currently holds this stream.
func (c *Core) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readerKind != NoReader
}

// Disturbed reports whether any read has touched this stream.
func (c *Core) Disturbed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disturbed
}

// StoredError returns the error a stream in the Errored state was
// rejected with, or nil.
func (c *Core) StoredError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storedErr
}

// acquireReader is the shared lock-check + bookkeeping for both reader
// constructors.
func (c *Core) acquireReader(kind ReaderKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readerKind != NoReader {
		return typeErr(ErrLocked)
	}
	c.readerKind = kind
	if c.state == Closed {
		c.closeClosedPromiseLocked(nil)
	} else if c.state == Errored {
		c.closeClosedPromiseLocked(c.storedErr)
	}
	return nil
}

// releaseReader drops the lock. Any still-pending default read requests
// are resolved as "done" so callers blocked on them don't hang forever,
// matching ReadableStreamDefaultReaderRelease's requirement that reads
// already in flight settle rather than dangle once the lock is gone.
// Pending BYOB read-into descriptors live on ByteController and are not
// resolved here; BYOBReader.ReleaseLock only marks the first one as
// reader-less (see ByteController.onReaderRelease).
func (c *Core) releaseReader() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		req, ok := c.readRequests.Shift()
		if !ok {
			break
		}
		req.out <- readOutcome{done: true}
	}
	c.readerKind = NoReader
}

func (c *Core) closeClosedPromiseLocked(err error) {
	c.closedOnce.Do(func() {
		c.closedErr = err
		close(c.closedCh)
	})
}

// waitClosed blocks until the stream closes or errors, or ctx is done.
func (c *Core) waitClosed(ctx context.Context) error {
	select {
	case <-c.closedCh:
		return c.closedErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// markDisturbed sets the disturbed flag; called by every read path.
func (c *Core) markDisturbed() {
	c.mu.Lock()
	c.disturbed = true
	c.mu.Unlock()
}

// Cancel implements the stream-level cancel() operation:
// rejects with a TypeError if locked, otherwise marks disturbed, moves
// readable->closed, and runs the controller's cancel algorithm.
func (c *Core) Cancel(reason any) error {
	c.mu.Lock()
	if c.readerKind != NoReader {
		c.mu.Unlock()
		return typeErr(ErrLocked)
	}
	c.mu.Unlock()
	return c.cancelLocked(reason)
}

// cancelLocked performs the cancel algorithm regardless of lock state;
// used by readers calling reader.Cancel, which are allowed to cancel the
// stream they exclusively hold.
func (c *Core) cancelLocked(reason any) error {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return nil
	}
	if c.state == Errored {
		err := c.storedErr
		c.mu.Unlock()
		return err
	}
	c.disturbed = true
	c.state = Closed
	ctrl := c.controller
	c.drainReadsOnCloseLocked()
	c.closeClosedPromiseLocked(nil)
	c.mu.Unlock()
	if ctrl == nil {
		return nil
	}
	return ctrl.cancel(reason)
}

func (c *Core) drainReadsOnCloseLocked() {
	for {
		req, ok := c.readRequests.Shift()
		if !ok {
			break
		}
		req.out <- readOutcome{done: true}
	}
}

// closeFromController is called by DefaultController.close()/ByteController
// when the underlying source signals completion.
func (c *Core) closeFromController() {
	c.mu.Lock()
	if c.state != Readable {
		c.mu.Unlock()
		return
	}
	c.state = Closed
	c.drainReadsOnCloseLocked()
	c.closeClosedPromiseLocked(nil)
	c.mu.Unlock()
}

// errorFromController is called by a controller when its algorithms (or
// user code inside them) fail; it transitions the stream to Errored and
// rejects every pending consumer with err.
func (c *Core) errorFromController(err error) {
	c.mu.Lock()
	if c.state != Readable {
		c.mu.Unlock()
		return
	}
	c.state = Errored
	c.storedErr = err
	for {
		req, ok := c.readRequests.Shift()
		if !ok {
			break
		}
		req.out <- readOutcome{err: err}
	}
	c.closeClosedPromiseLocked(err)
	c.mu.Unlock()
}

// DefaultReader is a ReadableStreamDefaultReader.
type DefaultReader struct {
	stream *Core
}

// GetReader acquires a default reader. Fails if the stream is already
// locked.
func (c *Core) GetReader() (*DefaultReader, error) {
	if err := c.acquireReader(DefaultReaderKind); err != nil {
		return nil, err
	}
	return &DefaultReader{stream: c}, nil
}

// Read dequeues the next chunk, or blocks (cooperatively, via channel)
// until one is produced, the stream closes, errors, or ctx is canceled.
func (r *DefaultReader) Read(ctx context.Context) (ReadResult, error) {
	s := r.stream
	s.markDisturbed()

	s.mu.Lock()
	dc, isDefault := s.controller.(*DefaultController)
	bc, isByte := s.controller.(*ByteController)
	s.mu.Unlock()
	if isDefault {
		if v, size, ok := dc.shiftLocked(); ok {
			dc.callPullIfNeeded()
			_ = size
			return ReadResult{Value: v}, nil
		}
	}
	if isByte {
		if res, handled, err := bc.tryReadDefault(ctx); handled {
			return res, err
		}
	}

	s.mu.Lock()
	switch s.state {
	case Closed:
		s.mu.Unlock()
		return ReadResult{Done: true}, nil
	case Errored:
		err := s.storedErr
		s.mu.Unlock()
		return ReadResult{}, err
	}
	req := readRequest{out: make(chan readOutcome, 1)}
	s.readRequests.Push(req)
	ctrl, _ := s.controller.(*DefaultController)
	s.mu.Unlock()
	if ctrl != nil {
		ctrl.callPullIfNeeded()
	} else if isByte {
		bc.callPullIfNeeded()
	}
	select {
	case out := <-req.out:
		if out.err != nil {
			return ReadResult{}, out.err
		}
		return ReadResult{Value: out.value, Done: out.done}, nil
	case <-ctx.Done():
		return ReadResult{}, ctx.Err()
	}
}

// ReleaseLock detaches the reader, unlocking the stream.
func (r *DefaultReader) ReleaseLock() {
	r.stream.releaseReader()
}

// Closed blocks until the stream closes or errors, or ctx is done.
func (r *DefaultReader) Closed(ctx context.Context) error {
	return r.stream.waitClosed(ctx)
}

// Cancel cancels the underlying stream.
func (r *DefaultReader) Cancel(reason any) error {
	return r.stream.cancelLocked(reason)
}

// BYOBReader is a ReadableStreamBYOBReader.
type BYOBReader struct {
	stream *Core
}

// GetBYOBReader acquires a BYOB reader; fails unless the stream's
// controller is a byte controller.
func (c *Core) GetBYOBReader() (*BYOBReader, error) {
	c.mu.Lock()
	_, isByte := c.controller.(*ByteController)
	c.mu.Unlock()
	if !isByte {
		return nil, typeErr(ErrWrongController)
	}
	if err := c.acquireReader(BYOBReaderKind); err != nil {
		return nil, err
	}
	return &BYOBReader{stream: c}, nil
}

// Read fills view (a caller-owned buffer) with at least min bytes from
// the stream, per the controller's pullInto/respond protocol.
func (r *BYOBReader) Read(ctx context.Context, view []byte, min int) (IntoResult, error) {
	if len(view) == 0 {
		return IntoResult{}, typeErr(ErrViewEmpty)
	}
	if min <= 0 {
		min = len(view)
	}
	bc, ok := r.stream.controller.(*ByteController)
	if !ok {
		return IntoResult{}, typeErr(ErrWrongController)
	}
	r.stream.markDisturbed()
	out := make(chan intoOutcome, 1)
	if err := bc.pullInto(view, min, out); err != nil {
		return IntoResult{}, err
	}
	select {
	case res := <-out:
		if res.err != nil {
			return IntoResult{}, res.err
		}
		return IntoResult{View: res.view, Done: res.done}, nil
	case <-ctx.Done():
		return IntoResult{}, ctx.Err()
	}
}

// ReleaseLock detaches the reader. If pull-into descriptors are still
// outstanding, the first one's readerType becomes "none" so a later
// enqueue can still preserve its filled bytes (a BYOB reader Release
// semantics); the descriptor bookkeeping lives on ByteController.
func (r *BYOBReader) ReleaseLock() {
	if bc, ok := r.stream.controller.(*ByteController); ok {
		bc.onReaderRelease()
	}
	r.stream.releaseReader()
}

// Closed blocks until the stream closes or errors, or ctx is done.
func (r *BYOBReader) Closed(ctx context.Context) error {
	return r.stream.waitClosed(ctx)
}

// Cancel cancels the underlying stream.
func (r *BYOBReader) Cancel(reason any) error {
	return r.stream.cancelLocked(reason)
}

// Iterator is the async iterator returned by Values: a default reader
// acquired lazily, on the first call to Next rather than at Values()
// time, matching the "get the iterator" step of the Streams Standard
// deferring GetReader to the iterator's first advance.
type Iterator struct {
	core          *Core
	preventCancel bool

	mu     sync.Mutex
	reader *DefaultReader
	done   bool
}

// Values returns an async iterator over the stream's chunks
// (ReadableStream.values({preventCancel})). Unless preventCancel is set,
// an early Return cancels the underlying stream.
func (c *Core) Values(preventCancel bool) *Iterator {
	return &Iterator{core: c, preventCancel: preventCancel}
}

// Next advances the iterator, acquiring the reader on first call. A done
// result (Done=true) is terminal: subsequent calls keep returning it
// without touching the stream again.
func (it *Iterator) Next(ctx context.Context) (value any, done bool, err error) {
	it.mu.Lock()
	if it.done {
		it.mu.Unlock()
		return nil, true, nil
	}
	if it.reader == nil {
		r, rerr := it.core.GetReader()
		if rerr != nil {
			it.mu.Unlock()
			return nil, false, rerr
		}
		it.reader = r
	}
	reader := it.reader
	it.mu.Unlock()

	res, rerr := reader.Read(ctx)
	if rerr != nil {
		it.mu.Lock()
		it.done = true
		it.mu.Unlock()
		return nil, false, rerr
	}
	if res.Done {
		it.mu.Lock()
		it.done = true
		it.mu.Unlock()
	}
	return res.Value, res.Done, nil
}

// Return implements the iterator's return(reason) step: unless
// preventCancel was set, it cancels the underlying stream, then releases
// the reader's lock regardless. A no-op if the reader was never
// acquired or the iterator already finished.
func (it *Iterator) Return(reason any) error {
	it.mu.Lock()
	if it.done || it.reader == nil {
		it.done = true
		it.mu.Unlock()
		return nil
	}
	reader := it.reader
	it.done = true
	it.mu.Unlock()

	var err error
	if !it.preventCancel {
		err = reader.Cancel(reason)
	}
	reader.ReleaseLock()
	return err
}

// Iterable is the Go shape of the sync/async iterables ReadableStream.from
// adapts: Next returns the next value (ok=false once exhausted), and
// Close, if non-nil, is the iterator's return() method, invoked when the
// stream built from it is canceled before exhaustion.
type Iterable struct {
	Next  func(ctx context.Context) (value any, ok bool, err error)
	Close func() error
}

// From adapts it into a ReadableStream (ReadableStream.from(iterable)):
// each pull advances the iterable once, enqueuing its value or closing
// the stream at exhaustion; cancel invokes the iterable's Close, if any.
func From(it Iterable) *Core {
	core, _ := NewDefaultStream(DefaultSource{
		Pull: func(ctx context.Context, c *DefaultController) error {
			v, ok, err := it.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return c.Close()
			}
			return c.Enqueue(v)
		},
		Cancel: func(reason any) error {
			if it.Close == nil {
				return nil
			}
			return it.Close()
		},
	})
	return core
}

// recoverToErr converts a recovered panic from a user-supplied algorithm
// (start/pull/cancel) into a plain error, so controllers can route it
// through the same error path as a returned error.
func recoverToErr(r any) error {
	if e, ok := r.(error); ok {
		return e
	}
	return fmt.Errorf("stream: panic in algorithm: %v", r)
}
