package httpcore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/cryguy/webruntime/internal/abort"
	"github.com/cryguy/webruntime/internal/headers"
	"github.com/cryguy/webruntime/internal/ops"
	"github.com/cryguy/webruntime/internal/stream"
	"github.com/dustin/go-humanize"
)

const serveChunkSize = 64 * 1024

// maxRequestBodyBytes caps how much of an inbound request body the serve
// loop will accumulate into a stream before failing the read, the
// server-side mirror of ops.MaxBodyBytes on the fetch path.
const maxRequestBodyBytes = 32 * 1024 * 1024

// Handler is the user request handler: a lazily-backed ServerRequest in,
// a Response or error out.
type Handler func(ctx context.Context, req *ServerRequest) (*InnerResponse, error)

// ServerRequest is the Request the serve loop hands to the user handler.
// Field access reads straight through to the underlying RequestResource;
// Body is materialized into a byte stream on first access and cached.
type ServerRequest struct {
	resource *ops.RequestResource
	headers  *headers.Headers
	body     *ExtractedBody
	bodyRead bool
}

func newServerRequest(res *ops.RequestResource) *ServerRequest {
	return &ServerRequest{resource: res}
}

// ID is a per-request correlation id, stable for the lifetime of this
// request, useful for a handler or logger to tie a response back to the
// request that produced it.
func (r *ServerRequest) ID() string { return r.resource.ID() }

// Method returns the request method.
func (r *ServerRequest) Method() string { return r.resource.Method() }

// URL returns the request's URL.
func (r *ServerRequest) URL() string { return r.resource.URI() }

// KeepAlive reports whether the connection requested keep-alive.
func (r *ServerRequest) KeepAlive() bool { return r.resource.KeepAlive() }

// Headers returns the request's header list, read lazily on first access.
func (r *ServerRequest) Headers() *headers.Headers {
	if r.headers == nil {
		r.headers, _ = headers.NewFromPairs(headers.GuardRequest, pairsFromHTTPHeader(r.resource.Headers()))
	}
	return r.headers
}

// Body returns the request body as a byte-stream-backed ExtractedBody, or
// nil only when the resource has no body reader. A request served by
// net/http always has one, so a bodyless request yields an empty stream.
func (r *ServerRequest) Body() *ExtractedBody {
	if r.bodyRead {
		return r.body
	}
	r.bodyRead = true
	rc := r.resource.Body()
	if rc == nil {
		return nil
	}
	var total int64
	core, _ := stream.NewByteStream(stream.ByteSource{
		Pull: func(ctx context.Context, c *stream.ByteController) error {
			buf := make([]byte, serveChunkSize)
			n, err := rc.Read(buf)
			if n > 0 {
				total += int64(n)
				if total > maxRequestBodyBytes {
					return fmt.Errorf("request body exceeds the %s limit (read %s)",
						humanize.Bytes(maxRequestBodyBytes), humanize.Bytes(uint64(total)))
				}
				if enqErr := c.Enqueue(append([]byte(nil), buf[:n]...)); enqErr != nil {
					return enqErr
				}
			}
			if err == io.EOF {
				return c.Close()
			}
			return err
		},
		Cancel:                func(reason any) error { return rc.Close() },
		AutoAllocateChunkSize: serveChunkSize,
	})
	r.body = &ExtractedBody{Stream: core}
	return r.body
}

// ServeOptions configures Serve.
type ServeOptions struct {
	Hostname string
	Port     int
	Signal   *abort.Signal
	OnListen func(hostname string, port int)
	OnError  func(err error) (*InnerResponse, error)
}

// Serve starts a listener and dispatches each inbound request to handler
// in arrival order. Handlers run concurrently and may complete out of
// order; each sender is used exactly once regardless.
func Serve(ctx context.Context, opts ServeOptions, handler Handler) error {
	listener, err := ops.StartServer(ops.InternalServerOptions{Hostname: opts.Hostname, Port: opts.Port})
	if err != nil {
		return err
	}

	if opts.Signal != nil {
		opts.Signal.OnAbort(func(reason error) {
			_ = listener.Close(context.Background())
		})
	}

	if opts.OnListen != nil {
		host, port := splitHostPort(listener.Address)
		opts.OnListen(host, port)
	}

	for event := range listener.Events() {
		go dispatchOne(ctx, event, handler, opts.OnError)
	}
	return nil
}

func dispatchOne(ctx context.Context, event ops.ServerEvent, handler Handler, onError func(error) (*InnerResponse, error)) {
	req := newServerRequest(event.Request)
	resp, err := runHandler(ctx, handler, req)
	if err != nil {
		resp = nil
		if onError != nil {
			if r, oerr := onError(err); oerr == nil {
				resp = r
			}
		}
		if resp == nil {
			resp = canned500()
		}
	}
	event.Sender.Send(toWireResponse(resp))
}

func runHandler(ctx context.Context, handler Handler, req *ServerRequest) (resp *InnerResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("httpcore: handler panicked: %v", r)
		}
	}()
	return handler(ctx, req)
}

func canned500() *InnerResponse {
	body := []byte("Internal Server Error")
	return &InnerResponse{
		Status:        500,
		StatusMessage: "Internal Server Error",
		Headers:       headers.New(headers.GuardResponse),
		Body:          &ExtractedBody{Source: body, Length: len(body), Type: "text/plain;charset=UTF-8"},
	}
}

func toWireResponse(resp *InnerResponse) ops.ServerHttpResponse {
	h := make(http.Header)
	if resp.Headers != nil {
		resp.Headers.ForEach(func(value, name string) { h.Add(name, value) })
	}
	var body io.Reader
	if resp.Body != nil {
		switch {
		case resp.Body.Source != nil:
			body = bytes.NewReader(resp.Body.Source)
		case resp.Body.Stream != nil:
			pr, pw := io.Pipe()
			bridge, err := stream.NewBridge(resp.Body.Stream, ops.NewResourceSink(pw, serveChunkSize))
			if err != nil {
				_ = pw.CloseWithError(err)
			} else {
				go func() { _ = bridge.Run(context.Background()) }()
			}
			body = pr
		}
	}
	return ops.ServerHttpResponse{Status: resp.Status, Headers: h, Body: body}
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}
