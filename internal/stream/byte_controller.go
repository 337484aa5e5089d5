package stream

import (
	"context"
	"sync"
)

// readerTag distinguishes who owns a pull-into descriptor: a descriptor's
// readerType is one of {default, byob, none}. "none" marks a descriptor
// whose BYOB reader released while it was still outstanding.
type readerTag int

const (
	readerNone readerTag = iota
	readerDefault
	readerBYOB
)

// pullIntoDescriptor is a pending BYOB read. This implementation only
// ever produces byte views, so elementSize is always 1 — Go has no
// typed-array element-width concept to carry through a []byte buffer
// the way a Uint16Array/Float64Array view would need.
type pullIntoDescriptor struct {
	buffer      []byte
	byteLength  int
	bytesFilled int
	minimumFill int
	readerType  readerTag
	out         chan intoOutcome

	// readOut is set instead of out for a descriptor auto-allocated on
	// behalf of a default (non-BYOB) reader: it delivers through the
	// generic readOutcome channel a DefaultReader.Read is waiting on,
	// not the BYOB intoOutcome shape.
	readOut chan readOutcome
}

// byteEntry is one producer-enqueued, not-yet-fully-consumed chunk.
type byteEntry struct {
	buf []byte // buf[off:off+n] is the unread window
	off int
	n   int
}

// ByteSource is the underlying byte source passed to NewByteStream, the
// "type: bytes" underlying source variant.
type ByteSource struct {
	Start                 func(c *ByteController) error
	Pull                  func(ctx context.Context, c *ByteController) error
	Cancel                func(reason any) error
	AutoAllocateChunkSize int
	HighWaterMark         float64
}

// ByteController is ReadableByteStreamController.
type ByteController struct {
	mu sync.Mutex

	stream *Core

	entries   []byteEntry
	headIdx   int
	totalSize int

	pendingPullIntos []*pullIntoDescriptor
	autoAllocate     int
	strategyHWM      float64

	pullFn   func(ctx context.Context, c *ByteController) error
	cancelFn func(reason any) error

	started        bool
	closeRequested bool
	pulling        bool
	pullAgain      bool

	byobRequest *BYOBRequest
}

// NewByteStream constructs a "bytes" ReadableStream.
func NewByteStream(src ByteSource) (*Core, *ByteController) {
	hwm := src.HighWaterMark
	core := newCore()
	bc := &ByteController{
		stream:       core,
		autoAllocate: src.AutoAllocateChunkSize,
		strategyHWM:  hwm,
		pullFn:       src.Pull,
		cancelFn:     src.Cancel,
	}
	core.controller = bc

	if src.Start != nil {
		if err := bc.runStart(src.Start); err != nil {
			core.errorFromController(err)
			return core, bc
		}
	}
	bc.started = true
	bc.callPullIfNeeded()
	return core, bc
}

func (c *ByteController) runStart(start func(c *ByteController) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverToErr(r)
		}
	}()
	return start(c)
}

// DesiredSize mirrors DefaultController.DesiredSize, sized in bytes.
func (c *ByteController) DesiredSize() (size float64, ok bool) {
	switch c.stream.State() {
	case Closed:
		return 0, true
	case Errored:
		return 0, false
	default:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.strategyHWM - float64(c.totalSize), true
	}
}

func (c *ByteController) pushEntryLocked(e byteEntry) {
	c.entries = append(c.entries, e)
	c.totalSize += e.n
}

func (c *ByteController) peekEntryLocked() (*byteEntry, bool) {
	if c.headIdx >= len(c.entries) {
		return nil, false
	}
	return &c.entries[c.headIdx], true
}

func (c *ByteController) dropEntryLocked() {
	c.headIdx++
	if c.headIdx > 16 && c.headIdx*2 > len(c.entries) {
		c.entries = append(c.entries[:0], c.entries[c.headIdx:]...)
		c.headIdx = 0
	}
}

// Enqueue implements ByteController.enqueue(chunk).
func (c *ByteController) Enqueue(chunk []byte) error {
	if len(chunk) == 0 {
		return typeErr(ErrViewEmpty)
	}
	c.mu.Lock()
	if c.closeRequested || c.stream.State() != Readable {
		c.mu.Unlock()
		return typeErr(ErrNotReadable)
	}

	// A pending BYOB request is invalidated by any new enqueue, since the
	// descriptor it pointed at is about to be mutated.
	c.byobRequest = nil

	if len(c.pendingPullIntos) > 0 {
		first := c.pendingPullIntos[0]
		if first.readerType == readerNone {
			// The owning reader released; preserve bytes already filled
			// by re-queueing them ahead of the new chunk.
			if first.bytesFilled > 0 {
				c.pushEntryLocked(byteEntry{buf: first.buffer, off: 0, n: first.bytesFilled})
			}
			c.pendingPullIntos = c.pendingPullIntos[1:]
		}
	}

	c.stream.mu.Lock()
	kind := c.stream.readerKind
	var fulfilled bool
	if kind == DefaultReaderKind {
		if req, ok := c.stream.readRequests.Shift(); ok {
			c.stream.mu.Unlock()
			req.out <- readOutcome{value: append([]byte(nil), chunk...)}
			fulfilled = true
		}
	}
	if !fulfilled {
		c.stream.mu.Unlock()
	}
	c.mu.Unlock()
	if fulfilled {
		c.callPullIfNeeded()
		return nil
	}

	c.mu.Lock()
	c.pushEntryLocked(byteEntry{buf: chunk, off: 0, n: len(chunk)})
	if len(c.pendingPullIntos) > 0 {
		c.fillPendingPullIntosLocked()
	}
	c.mu.Unlock()
	c.callPullIfNeeded()
	return nil
}

// fillPendingPullIntosLocked drains the byte queue into outstanding
// descriptors in FIFO order, committing each as soon as it reaches its
// minimum fill.
func (c *ByteController) fillPendingPullIntosLocked() {
	for len(c.pendingPullIntos) > 0 {
		desc := c.pendingPullIntos[0]
		for desc.bytesFilled < desc.byteLength {
			entry, ok := c.peekEntryLocked()
			if !ok {
				break
			}
			need := desc.byteLength - desc.bytesFilled
			n := entry.n
			if n > need {
				n = need
			}
			copy(desc.buffer[desc.bytesFilled:], entry.buf[entry.off:entry.off+n])
			desc.bytesFilled += n
			c.totalSize -= n
			entry.off += n
			entry.n -= n
			if entry.n == 0 {
				c.dropEntryLocked()
			}
		}
		if desc.bytesFilled < desc.minimumFill {
			return
		}
		c.pendingPullIntos = c.pendingPullIntos[1:]
		if desc.readerType == readerDefault {
			value := append([]byte(nil), desc.buffer[:desc.bytesFilled]...)
			readOut := desc.readOut
			c.mu.Unlock()
			readOut <- readOutcome{value: value}
			c.mu.Lock()
			continue
		}
		view := desc.buffer[:desc.bytesFilled]
		out := desc.out
		c.mu.Unlock()
		out <- intoOutcome{view: view}
		c.mu.Lock()
	}
}

// tryReadDefault implements a default (non-BYOB) read against a
// byte-typed stream. It drains an already-queued chunk immediately, or,
// if none is queued and the source declared AutoAllocateChunkSize,
// auto-allocates a pull-into descriptor of that size and waits for it to
// fill — the base-path "descriptor created on pull-into or
// auto-allocate" behavior a default reader needs against a byte stream.
// handled is false only when nothing is queued and auto-allocation is
// disabled, telling the caller to fall back to the plain wait-for-enqueue
// path.
func (c *ByteController) tryReadDefault(ctx context.Context) (res ReadResult, handled bool, err error) {
	c.mu.Lock()
	switch c.stream.State() {
	case Closed:
		c.mu.Unlock()
		return ReadResult{Done: true}, true, nil
	case Errored:
		e := c.stream.StoredError()
		c.mu.Unlock()
		return ReadResult{}, true, e
	}
	if entry, ok := c.peekEntryLocked(); ok {
		buf := append([]byte(nil), entry.buf[entry.off:entry.off+entry.n]...)
		c.totalSize -= entry.n
		c.dropEntryLocked()
		c.mu.Unlock()
		c.callPullIfNeeded()
		return ReadResult{Value: buf}, true, nil
	}
	if c.autoAllocate <= 0 {
		c.mu.Unlock()
		return ReadResult{}, false, nil
	}
	out := make(chan readOutcome, 1)
	desc := &pullIntoDescriptor{
		buffer:      make([]byte, c.autoAllocate),
		byteLength:  c.autoAllocate,
		minimumFill: 1,
		readerType:  readerDefault,
		readOut:     out,
	}
	c.pendingPullIntos = append(c.pendingPullIntos, desc)
	c.mu.Unlock()
	c.callPullIfNeeded()
	select {
	case o := <-out:
		if o.err != nil {
			return ReadResult{}, true, o.err
		}
		return ReadResult{Value: o.value, Done: o.done}, true, nil
	case <-ctx.Done():
		return ReadResult{}, true, ctx.Err()
	}
}

// pullInto implements ByteController.pullInto.
func (c *ByteController) pullInto(view []byte, min int, out chan intoOutcome) error {
	desc := &pullIntoDescriptor{
		buffer:      view,
		byteLength:  len(view),
		minimumFill: min,
		readerType:  readerBYOB,
		out:         out,
	}

	c.mu.Lock()
	if c.stream.State() == Closed {
		c.mu.Unlock()
		out <- intoOutcome{view: view[:0], done: true}
		return nil
	}
	if c.stream.State() == Errored {
		err := c.stream.StoredError()
		c.mu.Unlock()
		out <- intoOutcome{err: err}
		return nil
	}

	if len(c.pendingPullIntos) > 0 {
		c.pendingPullIntos = append(c.pendingPullIntos, desc)
		c.mu.Unlock()
		c.callPullIfNeeded()
		return nil
	}

	c.pendingPullIntos = append(c.pendingPullIntos, desc)
	c.fillPendingPullIntosLocked()
	if len(c.pendingPullIntos) > 0 && c.pendingPullIntos[0] == desc && desc.bytesFilled < desc.minimumFill && c.closeRequested {
		c.mu.Unlock()
		c.errorController(typeErr(ErrNotAligned))
		return nil
	}
	c.mu.Unlock()
	c.callPullIfNeeded()
	return nil
}

// ByobRequest returns a transient handle over the first pending
// descriptor's unfilled window, or nil if there is none. Each call that
// would invalidate the prior handle (a new enqueue, a descriptor
// advancing, or stream close) clears it first.
func (c *ByteController) ByobRequest() *BYOBRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byobRequest != nil {
		return c.byobRequest
	}
	if len(c.pendingPullIntos) == 0 {
		return nil
	}
	c.byobRequest = &BYOBRequest{bc: c, desc: c.pendingPullIntos[0]}
	return c.byobRequest
}

// BYOBRequest exposes the current pull-into descriptor's unfilled view
// to a producer driving the byte controller directly.
type BYOBRequest struct {
	bc   *ByteController
	desc *pullIntoDescriptor
}

// View returns the unfilled remainder of the descriptor's buffer.
func (r *BYOBRequest) View() []byte {
	return r.desc.buffer[r.desc.bytesFilled:]
}

// Respond accepts bytesWritten bytes the producer wrote directly into
// View(), advancing (and possibly committing) the descriptor.
func (r *BYOBRequest) Respond(bytesWritten int) error {
	bc := r.bc
	bc.mu.Lock()
	state := bc.stream.State()
	if state == Closed {
		if bytesWritten != 0 {
			bc.mu.Unlock()
			return typeErr(ErrRespondTooLarge)
		}
	} else if state == Readable {
		if bytesWritten <= 0 {
			bc.mu.Unlock()
			return typeErr(ErrRespondTooLarge)
		}
		if r.desc.bytesFilled+bytesWritten > r.desc.byteLength {
			bc.mu.Unlock()
			return typeErr(ErrRespondTooLarge)
		}
	}
	r.desc.bytesFilled += bytesWritten
	bc.byobRequest = nil
	ready := r.desc.bytesFilled >= r.desc.minimumFill
	var toDeliver *pullIntoDescriptor
	if ready && len(bc.pendingPullIntos) > 0 && bc.pendingPullIntos[0] == r.desc {
		bc.pendingPullIntos = bc.pendingPullIntos[1:]
		toDeliver = r.desc
	}
	bc.mu.Unlock()
	if toDeliver != nil {
		if toDeliver.readerType == readerDefault {
			toDeliver.readOut <- readOutcome{value: append([]byte(nil), toDeliver.buffer[:toDeliver.bytesFilled]...)}
		} else {
			toDeliver.out <- intoOutcome{view: toDeliver.buffer[:toDeliver.bytesFilled]}
		}
	}
	bc.callPullIfNeeded()
	return nil
}

// RespondWithNewView accepts a replacement view into the same
// underlying buffer the descriptor captured, starting where the
// descriptor left off (at View()). It checks only that view is no longer
// than the descriptor's unfilled remainder and then behaves as
// Respond(len(view)); it does not check that view shares the
// descriptor's buffer or starts at bytesFilled, and it does not copy
// view's bytes into that buffer.
func (r *BYOBRequest) RespondWithNewView(view []byte) error {
	bc := r.bc
	bc.mu.Lock()
	expectedLen := r.desc.byteLength - r.desc.bytesFilled
	if len(view) > expectedLen {
		bc.mu.Unlock()
		return typeErr(ErrRespondTooLarge)
	}
	bc.mu.Unlock()
	return r.Respond(len(view))
}

func (c *ByteController) errorController(err error) {
	c.mu.Lock()
	c.entries = nil
	c.totalSize = 0
	pending := c.pendingPullIntos
	c.pendingPullIntos = nil
	c.mu.Unlock()
	for _, d := range pending {
		if d.readerType == readerDefault {
			d.readOut <- readOutcome{err: err}
			continue
		}
		d.out <- intoOutcome{err: err}
	}
	c.stream.errorFromController(err)
}

// Close implements ByteController.close(). Any BYOB reads
// still outstanding are resolved with whatever prefix they'd accumulated
// (or an empty, done view) rather than left to hang — element size is
// always 1 here, so there's no partial-element alignment to reject.
func (c *ByteController) Close() error {
	c.mu.Lock()
	if c.closeRequested || c.stream.State() != Readable {
		c.mu.Unlock()
		return typeErr(ErrAlreadyClosing)
	}
	c.closeRequested = true
	c.byobRequest = nil
	pending := c.pendingPullIntos
	c.pendingPullIntos = nil
	empty := len(c.entries)-c.headIdx == 0
	c.mu.Unlock()
	for _, d := range pending {
		if d.readerType == readerDefault {
			d.readOut <- readOutcome{value: d.buffer[:d.bytesFilled], done: d.bytesFilled == 0}
			continue
		}
		d.out <- intoOutcome{view: d.buffer[:d.bytesFilled], done: d.bytesFilled == 0}
	}
	if empty {
		c.pullFn = nil
		c.cancelFn = nil
		c.stream.closeFromController()
	}
	return nil
}

// Error implements ByteController.error(e).
func (c *ByteController) Error(err error) {
	c.errorController(err)
}

func (c *ByteController) cancel(reason any) error {
	fn := c.cancelFn
	if fn == nil {
		return nil
	}
	return runCancel(fn, reason)
}

func (c *ByteController) drainOnClose() error { return nil }

// onReaderRelease implements the byte controller's release semantics: the
// first outstanding descriptor's readerType becomes "none" so a later
// enqueue can still salvage its filled prefix instead of discarding it.
func (c *ByteController) onReaderRelease() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pendingPullIntos) > 0 {
		c.pendingPullIntos[0].readerType = readerNone
	}
}

func (c *ByteController) callPullIfNeeded() {
	if c.pullFn == nil {
		return
	}
	c.mu.Lock()
	if !c.shouldPullLocked() {
		c.mu.Unlock()
		return
	}
	if c.pulling {
		c.pullAgain = true
		c.mu.Unlock()
		return
	}
	c.pulling = true
	c.mu.Unlock()
	go c.runPullLoop()
}

func (c *ByteController) shouldPullLocked() bool {
	if !c.started || c.closeRequested || c.stream.State() != Readable {
		return false
	}
	c.stream.mu.Lock()
	pendingReaders := c.stream.readRequests.Len() > 0
	c.stream.mu.Unlock()
	desired := c.strategyHWM - float64(c.totalSize)
	return pendingReaders || len(c.pendingPullIntos) > 0 || desired > 0
}

func (c *ByteController) runPullLoop() {
	for {
		err := c.runPull()
		if err != nil {
			c.mu.Lock()
			c.pulling = false
			c.mu.Unlock()
			c.errorController(err)
			return
		}
		c.mu.Lock()
		again := c.pullAgain
		c.pullAgain = false
		if !again || !c.shouldPullLocked() {
			c.pulling = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

func (c *ByteController) runPull() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverToErr(r)
		}
	}()
	return c.pullFn(context.Background(), c)
}
