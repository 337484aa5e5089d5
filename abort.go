package webruntime

import (
	"time"

	"github.com/cryguy/webruntime/internal/abort"
	"github.com/cryguy/webruntime/internal/eventloop"
)

// DOMException is the public DOMException, the reason an AbortSignal
// carries after it fires.
type DOMException = abort.DOMException

// NewDOMException builds a DOMException, defaulting name to "Error".
func NewDOMException(message, name string) *DOMException {
	return abort.NewDOMException(message, name)
}

// AbortSignal is the public AbortSignal.
type AbortSignal struct {
	inner *abort.Signal
}

func wrapSignal(s *abort.Signal) *AbortSignal {
	if s == nil {
		return nil
	}
	return &AbortSignal{inner: s}
}

// AbortSignalAbort returns an already-aborted signal.
func AbortSignalAbort(reason error) *AbortSignal {
	return wrapSignal(abort.Abort(reason))
}

// AbortSignalTimeout returns a signal that aborts with a TimeoutError
// after d elapses on loop.
func AbortSignalTimeout(loop *EventLoop, d time.Duration) *AbortSignal {
	return wrapSignal(abort.Timeout(loop.inner, d))
}

// AbortSignalAny returns a signal that aborts as soon as any of signals
// does.
func AbortSignalAny(signals []*AbortSignal) *AbortSignal {
	inner := make([]*abort.Signal, len(signals))
	for i, s := range signals {
		inner[i] = s.inner
	}
	return wrapSignal(abort.Any(inner))
}

// Aborted reports whether the signal has fired.
func (s *AbortSignal) Aborted() bool { return s.inner.Aborted() }

// Reason returns the abort reason, or nil if not yet aborted.
func (s *AbortSignal) Reason() error { return s.inner.Reason() }

// ThrowIfAborted returns the abort reason if aborted, nil otherwise.
func (s *AbortSignal) ThrowIfAborted() error { return s.inner.ThrowIfAborted() }

// OnAbort registers fn to run when the signal aborts, firing
// synchronously if it already has.
func (s *AbortSignal) OnAbort(fn func(reason error)) { s.inner.OnAbort(fn) }

// AbortController is the public AbortController.
type AbortController struct {
	inner *abort.Controller
}

// NewAbortController returns a controller wrapping a fresh, non-aborted
// signal.
func NewAbortController() *AbortController {
	return &AbortController{inner: abort.NewController()}
}

// Signal returns the controller's signal.
func (c *AbortController) Signal() *AbortSignal { return wrapSignal(c.inner.Signal()) }

// Abort fires the controller's signal; a no-op if already aborted.
func (c *AbortController) Abort(reason error) { c.inner.Abort(reason) }

// EventLoop is the native timer loop backing AbortSignal.timeout and any
// other scheduled callback this runtime needs.
type EventLoop struct {
	inner *eventloop.Loop
}

// NewEventLoop returns a fresh, empty event loop.
func NewEventLoop() *EventLoop { return &EventLoop{inner: eventloop.New()} }

// RegisterTimer schedules fn to run after delay (repeating every delay
// if interval is true), returning an id usable with ClearTimer.
func (l *EventLoop) RegisterTimer(delay time.Duration, interval bool, fn func()) int {
	return l.inner.RegisterTimer(delay, interval, fn)
}

// ClearTimer cancels a previously registered timer.
func (l *EventLoop) ClearTimer(id int) { l.inner.ClearTimer(id) }

// Run drives the loop, firing due timers until none remain or deadline
// passes.
func (l *EventLoop) Run(deadline time.Time) { l.inner.Run(deadline) }

// HasPending reports whether any timer is still registered.
func (l *EventLoop) HasPending() bool { return l.inner.HasPending() }
