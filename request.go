package webruntime

import (
	"context"
	"errors"

	"github.com/cryguy/webruntime/internal/headers"
	httpcore "github.com/cryguy/webruntime/internal/httpcore"
)

var errClone = errors.New("webruntime: clone() is not implemented")

// Request mode/cache/redirect enums, re-exported under the public names
// a caller builds a RequestInit with.
type (
	RequestMode     = httpcore.Mode
	RedirectMode    = httpcore.RedirectMode
	CacheMode       = httpcore.CacheMode
)

const (
	ModeSameOrigin = httpcore.ModeSameOrigin
	ModeCORS       = httpcore.ModeCORS
	ModeNoCORS     = httpcore.ModeNoCORS

	RedirectFollow = httpcore.RedirectFollow
	RedirectError  = httpcore.RedirectError
	RedirectManual = httpcore.RedirectManual

	CacheDefault      = httpcore.CacheDefault
	CacheNoStore      = httpcore.CacheNoStore
	CacheReload       = httpcore.CacheReload
	CacheNoCache      = httpcore.CacheNoCache
	CacheForceCache   = httpcore.CacheForceCache
	CacheOnlyIfCached = httpcore.CacheOnlyIfCached
)

// RequestInit mirrors the RequestInit dictionary. Body accepts a string,
// a []byte, a *ReadableStream, or a *URLSearchParams.
type RequestInit struct {
	Method      string
	Headers     *Headers
	Body        any
	Mode        RequestMode
	Cache       CacheMode
	Redirect    RedirectMode
	Credentials string
	Keepalive   bool
}

// Request is the public Request class.
type Request struct {
	inner *httpcore.InnerRequest
	body  *BodyMixin
}

// unwrapBody converts a public-facing body value (string, []byte,
// *ReadableStream, *URLSearchParams) into the shape httpcore.ExtractBody
// understands.
func unwrapBody(body any) any {
	switch v := body.(type) {
	case *ReadableStream:
		if v == nil {
			return nil
		}
		return v.core
	case *URLSearchParams:
		if v == nil {
			return nil
		}
		return v.inner
	default:
		return body
	}
}

// NewRequest constructs a Request, enforcing the constructor's
// constraints (GET/HEAD cannot carry a body, navigate mode is rejected,
// only-if-cached requires same-origin, a raw stream body requires
// same-origin or cors mode).
func NewRequest(url string, init RequestInit) (*Request, error) {
	var h *headers.Headers
	if init.Headers != nil {
		h = init.Headers.inner
	}
	inner, err := httpcore.NewRequest(url, httpcore.RequestInit{
		Method:      init.Method,
		Headers:     h,
		Body:        unwrapBody(init.Body),
		Mode:        init.Mode,
		Cache:       init.Cache,
		Redirect:    init.Redirect,
		Credentials: init.Credentials,
		Keepalive:   init.Keepalive,
	})
	if err != nil {
		return nil, translateErr(err)
	}
	return &Request{inner: inner, body: NewBodyMixin(inner.Body)}, nil
}

func (r *Request) Method() string         { return r.inner.Method }
func (r *Request) URL() string            { return r.inner.URL() }
func (r *Request) Headers() *Headers      { return wrapHeaders(r.inner.Headers) }
func (r *Request) Mode() RequestMode      { return r.inner.Mode }
func (r *Request) Cache() CacheMode       { return r.inner.Cache }
func (r *Request) Redirect() RedirectMode { return r.inner.Redirect }
func (r *Request) Credentials() string    { return r.inner.Credentials }
func (r *Request) Keepalive() bool        { return r.inner.Keepalive }

// Body returns the request body as a ReadableStream, or nil if bodyless.
func (r *Request) Body() *ReadableStream { return r.body.BodyStream() }

// BodyUsed reports whether the body has been consumed or locked.
func (r *Request) BodyUsed() bool { return r.body.BodyUsed() }

// Text consumes the body as a UTF-8 string.
func (r *Request) Text(ctx context.Context) (string, error) {
	s, err := r.body.Text(ctx)
	return s, translateErr(err)
}

// ArrayBuffer consumes the body as raw bytes.
func (r *Request) ArrayBuffer(ctx context.Context) ([]byte, error) {
	b, err := r.body.ArrayBuffer(ctx)
	return b, translateErr(err)
}

// Bytes consumes the body as raw bytes.
func (r *Request) Bytes(ctx context.Context) ([]byte, error) {
	b, err := r.body.Bytes(ctx)
	return b, translateErr(err)
}

// JSON consumes the body and unmarshals it into out.
func (r *Request) JSON(ctx context.Context, out any) error {
	return translateErr(r.body.JSON(ctx, out))
}

// Clone is intentionally unimplemented: tee-ing a live, possibly
// host-backed body stream into two independently-consumable streams
// needs the full branch-on-read machinery ReadableStream.tee() gives a
// JS engine; this runtime has no caller depending on it, so it reports
// an error rather than carrying a half-finished tee.
func (r *Request) Clone() (*Request, error) {
	return nil, &TypeError{Cause: errClone}
}
