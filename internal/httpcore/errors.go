// Package httpcore implements the Request/Response records, the body
// mix-in, and the fetch/serve state machines — the HTTP half of the
// runtime, sitting on top of internal/stream for bodies and internal/ops
// for the native boundary.
package httpcore

import "errors"

// Kind classifies an httpcore error the way the Fetch/Body algorithms
// distinguish TypeError from RangeError from SyntaxError failures.
type Kind int

const (
	KindOther Kind = iota
	KindTypeError
	KindRangeError
	KindSyntaxError
)

// KindedError pairs a Kind with the underlying cause, mirroring
// internal/stream's KindedError so the facade package has one shape to
// translate into concrete error types across both engines.
type KindedError struct {
	Kind  Kind
	Cause error
}

func (e *KindedError) Error() string { return e.Cause.Error() }
func (e *KindedError) Unwrap() error { return e.Cause }

func typeErr(err error) error   { return &KindedError{Kind: KindTypeError, Cause: err} }
func rangeErr(err error) error  { return &KindedError{Kind: KindRangeError, Cause: err} }
func syntaxErr(err error) error { return &KindedError{Kind: KindSyntaxError, Cause: err} }

var (
	ErrBodyNotAllowed   = errors.New("httpcore: GET/HEAD requests cannot have a body")
	ErrNavigateMode     = errors.New("httpcore: navigate is not a valid request mode")
	ErrOnlyIfCachedMode = errors.New("httpcore: only-if-cached can only be used with same-origin mode")
	ErrStreamBodyMode   = errors.New("httpcore: a raw ReadableStream body requires same-origin or cors mode")
	ErrBodyUsed         = errors.New("httpcore: body has already been consumed")
	ErrNetworkError     = errors.New("httpcore: network error")
)
