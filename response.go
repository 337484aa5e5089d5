package webruntime

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cryguy/webruntime/internal/headers"
	httpcore "github.com/cryguy/webruntime/internal/httpcore"
)

var errBadRedirectStatus = errors.New("webruntime: redirect status must be one of 301, 302, 303, 307, 308")

// ResponseType is the Response type enum.
type ResponseType = httpcore.ResponseType

const (
	ResponseBasic          = httpcore.ResponseBasic
	ResponseCORS           = httpcore.ResponseCORS
	ResponseDefault        = httpcore.ResponseDefault
	ResponseError          = httpcore.ResponseError
	ResponseOpaque         = httpcore.ResponseOpaque
	ResponseOpaqueRedirect = httpcore.ResponseOpaqueRedirect
)

// ResponseInit mirrors the ResponseInit dictionary.
type ResponseInit struct {
	Status        int
	StatusMessage string
	Headers       *Headers
}

// Response is the public Response class.
type Response struct {
	inner *httpcore.InnerResponse
	body  *BodyMixin
}

func wrapResponse(inner *httpcore.InnerResponse) *Response {
	if inner == nil {
		return nil
	}
	return &Response{inner: inner, body: NewBodyMixin(inner.Body)}
}

// NewResponse constructs a Response carrying body (string, []byte,
// *ReadableStream, or *URLSearchParams; nil for a bodyless response).
func NewResponse(body any, init ResponseInit) (*Response, error) {
	var extracted *httpcore.ExtractedBody
	if body != nil {
		b, err := httpcore.ExtractBody(unwrapBody(body), false)
		if err != nil {
			return nil, translateErr(err)
		}
		extracted = b
	}

	status := init.Status
	if status == 0 {
		status = 200
	}
	h := headers.New(headers.GuardResponse)
	if init.Headers != nil {
		h = init.Headers.inner.Clone(headers.GuardResponse)
	}
	if extracted != nil && extracted.Type != "" && !h.Has("content-type") {
		_ = h.Set("content-type", extracted.Type)
	}

	return wrapResponse(&httpcore.InnerResponse{
		Status:        status,
		StatusMessage: init.StatusMessage,
		Headers:       h,
		Body:          extracted,
		Type:          httpcore.ResponseDefault,
	}), nil
}

// ResponseJSON builds a Response whose body is v marshaled to JSON, with
// content-type application/json.
func ResponseJSON(v any, init ResponseInit) (*Response, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &TypeError{Cause: err}
	}
	resp, err := NewResponse(b, init)
	if err != nil {
		return nil, err
	}
	_ = resp.inner.Headers.Set("content-type", "application/json")
	return resp, nil
}

// ResponseRedirect builds an opaqueredirect-shaped Response for url with
// status (one of 301, 302, 303, 307, 308; a RangeError for anything
// else).
func ResponseRedirect(url string, status int) (*Response, error) {
	if status == 0 {
		status = 302
	}
	switch status {
	case 301, 302, 303, 307, 308:
	default:
		return nil, &RangeError{Cause: errBadRedirectStatus}
	}
	h := headers.New(headers.GuardImmutable)
	_ = h.Set("location", url)
	return wrapResponse(&httpcore.InnerResponse{
		Status:  status,
		Headers: h,
		Type:    httpcore.ResponseOpaqueRedirect,
		URL:     url,
	}), nil
}

// ResponseErrorResponse builds the canonical network-error Response
// (status 0, type "error").
func ResponseErrorResponse() *Response {
	return wrapResponse(httpcore.NewNetworkErrorResponse())
}

func (r *Response) Status() int            { return r.inner.Status }
func (r *Response) StatusMessage() string  { return r.inner.StatusMessage }
func (r *Response) Headers() *Headers      { return wrapHeaders(r.inner.Headers) }
func (r *Response) Type() ResponseType     { return r.inner.Type }
func (r *Response) URL() string            { return r.inner.URL }
func (r *Response) Ok() bool               { return r.inner.Ok() }

// Body returns the response body as a ReadableStream, or nil if bodyless.
func (r *Response) Body() *ReadableStream { return r.body.BodyStream() }

// BodyUsed reports whether the body has been consumed or locked.
func (r *Response) BodyUsed() bool { return r.body.BodyUsed() }

// Text consumes the body as a UTF-8 string.
func (r *Response) Text(ctx context.Context) (string, error) {
	s, err := r.body.Text(ctx)
	return s, translateErr(err)
}

// ArrayBuffer consumes the body as raw bytes.
func (r *Response) ArrayBuffer(ctx context.Context) ([]byte, error) {
	b, err := r.body.ArrayBuffer(ctx)
	return b, translateErr(err)
}

// Bytes consumes the body as raw bytes.
func (r *Response) Bytes(ctx context.Context) ([]byte, error) {
	b, err := r.body.Bytes(ctx)
	return b, translateErr(err)
}

// JSON consumes the body and unmarshals it into out.
func (r *Response) JSON(ctx context.Context, out any) error {
	return translateErr(r.body.JSON(ctx, out))
}

// Clone is intentionally unimplemented, for the same reason as
// Request.Clone.
func (r *Response) Clone() (*Response, error) {
	return nil, &TypeError{Cause: errClone}
}
