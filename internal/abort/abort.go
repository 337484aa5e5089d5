// Package abort implements AbortSignal/AbortController/DOMException as
// native Go types, giving AbortSignal its composition semantics (abort(),
// timeout(), any()) without needing a JS EventTarget underneath them.
// any() flattens any dependent signal it is given down to that signal's
// own sources, so composing any() of an any() never chains through the
// intermediate signal.
package abort

import (
	"fmt"
	"sync"
	"time"

	"github.com/cryguy/webruntime/internal/eventloop"
)

// DOMException mirrors the web platform's DOMException: an error carrying
// both a human message and a machine-checkable name.
type DOMException struct {
	Message string
	Name    string
}

func (e *DOMException) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// NewDOMException builds a DOMException, defaulting Name to "Error".
func NewDOMException(message, name string) *DOMException {
	if name == "" {
		name = "Error"
	}
	return &DOMException{Message: message, Name: name}
}

func abortError() *DOMException {
	return NewDOMException("signal is aborted without reason", "AbortError")
}

func timeoutError() *DOMException {
	return NewDOMException("signal timed out", "TimeoutError")
}

// dependentSet is the ordered set of callbacks a signal runs when it
// fires — the native analogue of a WeakIterableSet of dependents: Go's
// garbage collector already reclaims a dependent signal once nothing else
// references it, so no explicit weak pointer is needed, but the set keeps
// the same ordered, append-only, drain-once shape the cascade relies on.
type dependentSet struct {
	fns []func(error)
}

func (d *dependentSet) add(fn func(error)) {
	d.fns = append(d.fns, fn)
}

// drain empties the set and returns what it held, so a second signalAbort
// can never replay callbacks already run.
func (d *dependentSet) drain() []func(error) {
	fns := d.fns
	d.fns = nil
	return fns
}

// Signal is AbortSignal. Listeners registered with OnAbort are invoked
// synchronously, at most once, the first time the signal transitions to
// aborted; later registrations on an already-aborted signal fire
// immediately (mirroring dispatchEvent-after-the-fact semantics a real
// EventTarget would give for a late addEventListener, since aborted is a
// one-way latch here rather than a replayed event).
type Signal struct {
	mu        sync.Mutex
	aborted   bool
	reason    error
	listeners dependentSet

	// sources is non-nil only for a signal returned by Any: it records
	// the (already-flattened) signals this one depends on, so a later
	// Any() call composing this signal can flatten through it instead of
	// depending on it directly.
	sources []*Signal
}

// NewSignal returns a fresh, non-aborted signal.
func NewSignal() *Signal {
	return &Signal{}
}

// Aborted reports whether the signal has fired.
func (s *Signal) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// Reason returns the abort reason, or nil if not yet aborted.
func (s *Signal) Reason() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// ThrowIfAborted returns the abort reason as an error if the signal has
// fired, or nil otherwise — the Go shape of signal.throwIfAborted().
func (s *Signal) ThrowIfAborted() error {
	return s.Reason()
}

// OnAbort registers fn to run when the signal aborts. If the signal is
// already aborted, fn runs synchronously before OnAbort returns.
func (s *Signal) OnAbort(fn func(reason error)) {
	s.mu.Lock()
	if s.aborted {
		reason := s.reason
		s.mu.Unlock()
		fn(reason)
		return
	}
	s.listeners.add(fn)
	s.mu.Unlock()
}

// signalAbort is the internal "signal abort" algorithm: idempotent, fires
// listeners at most once.
func (s *Signal) signalAbort(reason error) {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return
	}
	if reason == nil {
		reason = abortError()
	}
	s.aborted = true
	s.reason = reason
	listeners := s.listeners.drain()
	s.mu.Unlock()
	for _, l := range listeners {
		l(reason)
	}
}

// Abort returns an already-aborted signal, defaulting reason to an
// AbortError DOMException (AbortSignal.abort(reason)).
func Abort(reason error) *Signal {
	s := NewSignal()
	if reason == nil {
		reason = abortError()
	}
	s.aborted = true
	s.reason = reason
	return s
}

// Timeout returns a signal that aborts with a TimeoutError after d,
// scheduled on loop (AbortSignal.timeout(ms)).
func Timeout(loop *eventloop.Loop, d time.Duration) *Signal {
	s := NewSignal()
	loop.RegisterTimer(d, false, func() {
		s.signalAbort(timeoutError())
	})
	return s
}

// Any returns a signal that aborts as soon as any of signals does, copying
// whichever one's reason fired first (AbortSignal.any(signals)). Any input
// that is itself dependent (a signal previously returned by Any) is
// flattened to its own sources first, so composing Any(Any(a, b), c)
// depends directly on {a, b, c} rather than chaining through the
// intermediate dependent signal — the flattening §4.8 requires to keep
// the subscription graph from growing unbounded.
func Any(signals []*Signal) *Signal {
	sources := flattenSources(signals)
	out := &Signal{sources: sources}
	for _, s := range sources {
		if s.Aborted() {
			out.signalAbort(s.Reason())
			return out
		}
	}
	for _, s := range sources {
		s.OnAbort(func(reason error) {
			out.signalAbort(reason)
		})
	}
	return out
}

// flattenSources expands any signal in signals that is itself dependent
// into its own sources (recursively), deduplicating by identity so a
// source reachable through more than one path is only subscribed once.
func flattenSources(signals []*Signal) []*Signal {
	seen := make(map[*Signal]bool)
	var out []*Signal
	var add func(s *Signal)
	add = func(s *Signal) {
		if s == nil || seen[s] {
			return
		}
		if len(s.sources) > 0 {
			for _, src := range s.sources {
				add(src)
			}
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, s := range signals {
		add(s)
	}
	return out
}

// Controller is AbortController: it owns a Signal and can fire it once.
type Controller struct {
	signal *Signal
}

// NewController returns a controller wrapping a fresh signal.
func NewController() *Controller {
	return &Controller{signal: NewSignal()}
}

// Signal returns the controller's signal.
func (c *Controller) Signal() *Signal { return c.signal }

// Abort fires the controller's signal; a no-op if already aborted.
func (c *Controller) Abort(reason error) {
	c.signal.signalAbort(reason)
}
