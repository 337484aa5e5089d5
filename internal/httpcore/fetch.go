package httpcore

import (
	"context"
	"io"
	"net/http"

	"github.com/cryguy/webruntime/internal/abort"
	"github.com/cryguy/webruntime/internal/headers"
	"github.com/cryguy/webruntime/internal/ops"
	"github.com/cryguy/webruntime/internal/stream"
)

const runtimeUserAgent = "webruntime/0.1"

const defaultAcceptEncoding = "gzip, deflate, zstd, br"

const fetchChunkSize = 64 * 1024

// FetchEngine performs outbound fetches over a host fetch client:
// default-header injection, abort wiring, response assembly, and
// wrapping the decoded body as a "bytes" ReadableStream.
type FetchEngine struct {
	Client *ops.Client
}

// NewFetchEngine wraps a host fetch client.
func NewFetchEngine(client *ops.Client) *FetchEngine {
	return &FetchEngine{Client: client}
}

// Fetch resolves req to an InnerResponse. signal may be nil. A network
// failure surfaces as a TypeError; an abort (either already fired at
// entry or mid-flight) surfaces as the signal's DOMException reason.
func (e *FetchEngine) Fetch(ctx context.Context, req *InnerRequest, signal *abort.Signal) (*InnerResponse, error) {
	if signal != nil && signal.Aborted() {
		cancelBody(req.Body, signal.Reason())
		return nil, domAbortErr(signal.Reason())
	}

	applyDefaultHeaders(req.Headers)

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if signal != nil {
		signal.OnAbort(func(reason error) {
			cancelBody(req.Body, reason)
			cancel()
		})
	}

	httpReq := ops.HttpRequest{
		Method:   req.Method,
		URL:      req.URL(),
		Headers:  toHTTPHeader(req.Headers),
		Redirect: toOpsRedirect(req.Redirect),
	}
	if req.Body != nil {
		if req.Body.Source != nil {
			httpReq.Source = req.Body.Source
		} else {
			pr, pw := io.Pipe()
			bridge, berr := stream.NewBridge(req.Body.Stream, ops.NewResourceSink(pw, fetchChunkSize))
			if berr != nil {
				return nil, berr
			}
			go func() { _ = bridge.Run(fetchCtx) }()
			httpReq.BodyReader = pr
		}
	}

	resp, err := e.Client.Fetch(fetchCtx, httpReq)
	if err != nil {
		return nil, err
	}
	if resp.Type == "error" {
		if resp.Aborted && signal != nil {
			return nil, domAbortErr(signal.Reason())
		}
		return nil, typeErr(ErrNetworkError)
	}

	respHeaders, _ := headers.NewFromPairs(headers.GuardResponse, pairsFromHTTPHeader(resp.Headers))

	out := &InnerResponse{
		Status:        resp.Status,
		StatusMessage: resp.StatusMessage,
		Headers:       respHeaders,
		Type:          ResponseBasic,
		URL:           resp.URL,
	}
	if resp.Body == nil {
		return out, nil
	}

	contentType, _ := respHeaders.Get("content-type")
	decoded := resp.Body
	bodyCore, _ := stream.NewByteStream(stream.ByteSource{
		Pull: func(ctx context.Context, c *stream.ByteController) error {
			chunk, err := decoded.Read()
			if err != nil {
				return err
			}
			if chunk == nil {
				return c.Close()
			}
			return c.Enqueue(chunk)
		},
		Cancel:                func(reason any) error { return decoded.Close() },
		AutoAllocateChunkSize: fetchChunkSize,
	})
	out.Body = &ExtractedBody{Stream: bodyCore, Type: contentType}
	return out, nil
}

func cancelBody(b *ExtractedBody, reason error) {
	if b == nil || b.Stream == nil || b.Stream.Locked() {
		return
	}
	_ = b.Stream.Cancel(reason)
}

func domAbortErr(reason error) error {
	if reason != nil {
		return reason
	}
	return abort.NewDOMException("The operation was aborted", "AbortError")
}

func applyDefaultHeaders(h *headers.Headers) {
	if !h.Has("accept") {
		_ = h.Set("accept", "*/*")
	}
	if !h.Has("accept-language") {
		_ = h.Set("accept-language", "*")
	}
	if !h.Has("user-agent") {
		_ = h.Set("user-agent", runtimeUserAgent)
	}
	if !h.Has("accept-encoding") {
		_ = h.Set("accept-encoding", defaultAcceptEncoding)
	}
}

func toHTTPHeader(h *headers.Headers) http.Header {
	out := make(http.Header)
	h.ForEach(func(value, name string) {
		out.Add(name, value)
	})
	return out
}

func pairsFromHTTPHeader(h http.Header) [][2]string {
	var out [][2]string
	for k, vals := range h {
		for _, v := range vals {
			out = append(out, [2]string{k, v})
		}
	}
	return out
}

func toOpsRedirect(r RedirectMode) ops.RedirectMode {
	switch r {
	case RedirectError:
		return ops.RedirectError
	case RedirectManual:
		return ops.RedirectManual
	default:
		return ops.RedirectFollow
	}
}
