package webruntime

import (
	"context"

	"github.com/cryguy/webruntime/internal/abort"
	httpcore "github.com/cryguy/webruntime/internal/httpcore"
)

// ServerRequest is the Request a serve handler receives: its fields are
// read lazily from the underlying host request resource.
type ServerRequest struct {
	inner *httpcore.ServerRequest
	body  *BodyMixin
}

func wrapServerRequest(inner *httpcore.ServerRequest) *ServerRequest {
	return &ServerRequest{inner: inner}
}

// ID is a per-request correlation id, stable for the lifetime of this
// request, useful for tying a logged response back to the request that
// produced it.
func (r *ServerRequest) ID() string        { return r.inner.ID() }
func (r *ServerRequest) Method() string    { return r.inner.Method() }
func (r *ServerRequest) URL() string       { return r.inner.URL() }
func (r *ServerRequest) KeepAlive() bool   { return r.inner.KeepAlive() }
func (r *ServerRequest) Headers() *Headers { return wrapHeaders(r.inner.Headers()) }

func (r *ServerRequest) ensureBody() {
	if r.body == nil {
		r.body = NewBodyMixin(r.inner.Body())
	}
}

// Body returns the request body as a ReadableStream, or nil only when the
// underlying request has no body reader. A request served over net/http
// always has one, so a bodyless request yields an empty stream.
func (r *ServerRequest) Body() *ReadableStream {
	r.ensureBody()
	return r.body.BodyStream()
}

// BodyUsed reports whether the body has been consumed or locked.
func (r *ServerRequest) BodyUsed() bool {
	r.ensureBody()
	return r.body.BodyUsed()
}

// Text consumes the body as a UTF-8 string.
func (r *ServerRequest) Text(ctx context.Context) (string, error) {
	r.ensureBody()
	s, err := r.body.Text(ctx)
	return s, translateErr(err)
}

// JSON consumes the body and unmarshals it into out.
func (r *ServerRequest) JSON(ctx context.Context, out any) error {
	r.ensureBody()
	return translateErr(r.body.JSON(ctx, out))
}

// ServeOptions configures Serve.
type ServeOptions struct {
	Hostname string
	Port     int
	Signal   *AbortSignal
	OnListen func(hostname string, port int)
	OnError  func(err error) (*Response, error)
}

// ServeHandler handles one request, returning the Response to send.
type ServeHandler func(ctx context.Context, req *ServerRequest) (*Response, error)

// Serve starts a listener and dispatches each inbound request to handler
// in arrival order; handlers may complete out of order, and each
// response sender is used exactly once.
func Serve(ctx context.Context, opts ServeOptions, handler ServeHandler) error {
	var signal *abort.Signal
	if opts.Signal != nil {
		signal = opts.Signal.inner
	}

	var onError func(error) (*httpcore.InnerResponse, error)
	if opts.OnError != nil {
		onError = func(err error) (*httpcore.InnerResponse, error) {
			resp, oerr := opts.OnError(err)
			if oerr != nil || resp == nil {
				return nil, oerr
			}
			return resp.inner, nil
		}
	}

	return httpcore.Serve(ctx, httpcore.ServeOptions{
		Hostname: opts.Hostname,
		Port:     opts.Port,
		Signal:   signal,
		OnListen: opts.OnListen,
		OnError:  onError,
	}, func(ctx context.Context, req *httpcore.ServerRequest) (*httpcore.InnerResponse, error) {
		resp, err := handler(ctx, wrapServerRequest(req))
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, nil
		}
		return resp.inner, nil
	})
}
