package stream

import (
	"context"
	"sync"
)

// SizeAlgorithm computes a chunk's contribution to totalSize. A nil
// SizeAlgorithm is treated as constant size 1.
type SizeAlgorithm func(chunk any) (float64, error)

// DefaultSource is the value-oriented underlying source passed to
// NewDefaultStream.
type DefaultSource struct {
	Start func(c *DefaultController) error
	Pull  func(ctx context.Context, c *DefaultController) error
	// Cancel runs when the stream is canceled; reason is passed through
	// as-is, mirroring the JS source's free-form cancel reason.
	Cancel func(reason any) error

	Size          SizeAlgorithm
	HighWaterMark float64 // 0 defaults to 1
}

// DefaultController is ReadableStreamDefaultController.
type DefaultController struct {
	mu sync.Mutex

	stream *Core
	queue  StreamQueue[ValueEntry]

	strategyHWM   float64
	sizeAlgorithm SizeAlgorithm
	pullFn        func(ctx context.Context, c *DefaultController) error
	cancelFn      func(reason any) error

	started        bool
	closeRequested bool
	pulling        bool
	pullAgain      bool
}

// NewDefaultStream constructs a value-oriented ReadableStream.
func NewDefaultStream(src DefaultSource) (*Core, *DefaultController) {
	hwm := src.HighWaterMark
	if hwm == 0 {
		hwm = 1
	}
	core := newCore()
	dc := &DefaultController{
		stream:        core,
		strategyHWM:   hwm,
		sizeAlgorithm: src.Size,
		pullFn:        src.Pull,
		cancelFn:      src.Cancel,
	}
	core.controller = dc

	if src.Start != nil {
		if err := dc.runStart(src.Start); err != nil {
			core.errorFromController(err)
			return core, dc
		}
	}
	dc.started = true
	dc.callPullIfNeeded()
	return core, dc
}

func (c *DefaultController) runStart(start func(c *DefaultController) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverToErr(r)
		}
	}()
	return start(c)
}

// DesiredSize is strategyHWM - totalSize while readable, 0 when closed,
// and reports ok=false (meaning "null") when errored.
func (c *DefaultController) DesiredSize() (size float64, ok bool) {
	switch c.stream.State() {
	case Closed:
		return 0, true
	case Errored:
		return 0, false
	default:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.strategyHWM - c.queue.TotalSize(), true
	}
}

// Enqueue implements controller.enqueue(chunk).
func (c *DefaultController) Enqueue(chunk any) error {
	c.mu.Lock()
	if c.closeRequested || c.stream.State() != Readable {
		c.mu.Unlock()
		return typeErr(ErrNotReadable)
	}

	// If a reader is already waiting, fulfill it directly rather than
	// queueing and immediately dequeuing.
	c.stream.mu.Lock()
	if req, ok := c.stream.readRequests.Shift(); ok {
		c.stream.mu.Unlock()
		c.mu.Unlock()
		req.out <- readOutcome{value: chunk}
		c.callPullIfNeeded()
		return nil
	}
	c.stream.mu.Unlock()

	size := 1.0
	if c.sizeAlgorithm != nil {
		var err error
		size, err = c.runSize(chunk)
		if err != nil {
			c.mu.Unlock()
			c.errorController(err)
			return err
		}
	}
	c.queue.PushValue(ValueEntry{Chunk: chunk, Size: size}, size)
	c.mu.Unlock()
	c.callPullIfNeeded()
	return nil
}

func (c *DefaultController) runSize(chunk any) (size float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverToErr(r)
		}
	}()
	return c.sizeAlgorithm(chunk)
}

// Close implements controller.close().
func (c *DefaultController) Close() error {
	c.mu.Lock()
	if c.closeRequested || c.stream.State() != Readable {
		c.mu.Unlock()
		return typeErr(ErrAlreadyClosing)
	}
	c.closeRequested = true
	empty := c.queue.Len() == 0
	c.mu.Unlock()
	if empty {
		c.pullFn = nil
		c.cancelFn = nil
		c.stream.closeFromController()
	}
	return nil
}

// Error implements controller.error(e).
func (c *DefaultController) Error(err error) {
	c.errorController(err)
}

func (c *DefaultController) errorController(err error) {
	c.mu.Lock()
	c.queue = StreamQueue[ValueEntry]{}
	c.mu.Unlock()
	c.stream.errorFromController(err)
}

// shiftLocked is used by DefaultReader.Read to dequeue directly when the
// controller already holds chunks; it is named *Locked because it takes
// the controller's own mutex, not the stream's (the caller must not hold
// the stream mutex: draining the last chunk after Close takes it).
func (c *DefaultController) shiftLocked() (any, float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.queue.Shift(0)
	if !ok {
		return nil, 0, false
	}
	c.queue.totalSize -= entry.Size
	if c.queue.totalSize < 0 {
		c.queue.totalSize = 0
	}
	if c.queue.Len() == 0 && c.closeRequested {
		c.mu.Unlock()
		c.stream.closeFromController()
		c.mu.Lock()
	}
	return entry.Chunk, entry.Size, true
}

// cancel implements the controller interface: it runs the source's
// cancel algorithm and clears remaining state.
func (c *DefaultController) cancel(reason any) error {
	fn := c.cancelFn
	if fn == nil {
		return nil
	}
	return runCancel(fn, reason)
}

func runCancel(fn func(reason any) error, reason any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverToErr(r)
		}
	}()
	return fn(reason)
}

func (c *DefaultController) drainOnClose() error { return nil }

// callPullIfNeeded is the throttled pull trigger. It runs
// pullFn on its own goroutine, collapsing bursts of demand into at most
// one outstanding call plus one scheduled follow-up (pullAgain).
func (c *DefaultController) callPullIfNeeded() {
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

func (c *DefaultController) shouldPullLocked() bool {
	if !c.started || c.closeRequested || c.stream.State() != Readable {
		return false
	}
	c.stream.mu.Lock()
	pendingReaders := c.stream.readRequests.Len() > 0
	c.stream.mu.Unlock()
	desired := c.strategyHWM - c.queue.TotalSize()
	return pendingReaders || desired > 0
}

func (c *DefaultController) runPullLoop() {
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

func (c *DefaultController) runPull() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverToErr(r)
		}
	}()
	return c.pullFn(context.Background(), c)
}
