// Package webruntime is the public surface of a small server-side
// JavaScript-adjacent runtime's web platform primitives: fetch, Request,
// Response, Headers, ReadableStream (including BYOB), AbortSignal, URL,
// TextDecoder/TextEncoder, and serve — all native Go, layered on the
// internal stream engine and HTTP pipeline.
package webruntime

import (
	"errors"

	httpcore "github.com/cryguy/webruntime/internal/httpcore"
	streamerr "github.com/cryguy/webruntime/internal/stream"
)

// TypeError mirrors the JS TypeError constructor: contract violations
// such as a locked stream, a wrong reader kind, an already-consumed
// body, or GET/HEAD carrying a body.
type TypeError struct{ Cause error }

func (e *TypeError) Error() string { return "TypeError: " + e.Cause.Error() }
func (e *TypeError) Unwrap() error { return e.Cause }

// RangeError mirrors the JS RangeError constructor: out-of-range values
// such as an invalid redirect status or an unsupported TextDecoder label.
// A negative or NaN queuing-strategy size is not rejected.
type RangeError struct{ Cause error }

func (e *RangeError) Error() string { return "RangeError: " + e.Cause.Error() }
func (e *RangeError) Unwrap() error { return e.Cause }

// SyntaxError mirrors the JS SyntaxError constructor: currently only
// Body.json() parse failures.
type SyntaxError struct{ Cause error }

func (e *SyntaxError) Error() string { return "SyntaxError: " + e.Cause.Error() }
func (e *SyntaxError) Unwrap() error { return e.Cause }

// translateErr maps an internal KindedError (from either internal/stream
// or internal/httpcore) to its public error kind; anything else,
// including DOMExceptions and plain host-op errors, passes through
// unchanged.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var se *streamerr.KindedError
	if errors.As(err, &se) {
		return translateKind(se.Kind, se.Cause)
	}
	var he *httpcore.KindedError
	if errors.As(err, &he) {
		return translateHTTPKind(he.Kind, he.Cause)
	}
	return err
}

func translateKind(kind streamerr.Kind, cause error) error {
	switch kind {
	case streamerr.KindTypeError:
		return &TypeError{Cause: cause}
	case streamerr.KindRangeError:
		return &RangeError{Cause: cause}
	default:
		return cause
	}
}

func translateHTTPKind(kind httpcore.Kind, cause error) error {
	switch kind {
	case httpcore.KindTypeError:
		return &TypeError{Cause: cause}
	case httpcore.KindRangeError:
		return &RangeError{Cause: cause}
	case httpcore.KindSyntaxError:
		return &SyntaxError{Cause: cause}
	default:
		return cause
	}
}
