package webruntime

import (
	"context"
	"time"

	"github.com/cryguy/webruntime/internal/abort"
	httpcore "github.com/cryguy/webruntime/internal/httpcore"
	"github.com/cryguy/webruntime/internal/ops"
)

// Client wraps the host fetch client used by Fetch.
type Client struct {
	engine *httpcore.FetchEngine
}

// NewClient builds a Client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{engine: httpcore.NewFetchEngine(ops.NewClient(timeout))}
}

// Fetch resolves req to a Response. signal may be nil. A network failure
// surfaces as a TypeError; an abort surfaces as the signal's
// DOMException reason.
func (c *Client) Fetch(ctx context.Context, req *Request, signal *AbortSignal) (*Response, error) {
	var sig *abort.Signal
	if signal != nil {
		sig = signal.inner
	}
	resp, err := c.engine.Fetch(ctx, req.inner, sig)
	if err != nil {
		return nil, translateErr(err)
	}
	return wrapResponse(resp), nil
}
