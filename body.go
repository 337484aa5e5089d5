package webruntime

import (
	"context"

	httpcore "github.com/cryguy/webruntime/internal/httpcore"
)

// BodyMixin implements the shared Body interface (body/bodyUsed plus the
// single consume path behind text/arrayBuffer/bytes/json) for both
// Request and Response.
type BodyMixin struct {
	inner *httpcore.BodyMixin
}

// NewBodyMixin wraps a (possibly nil) extracted body.
func NewBodyMixin(b *httpcore.ExtractedBody) *BodyMixin {
	return &BodyMixin{inner: httpcore.NewBodyMixin(b)}
}

// BodyStream returns the underlying stream core, or nil for a bodyless
// Request/Response.
func (m *BodyMixin) BodyStream() *ReadableStream { return wrapStream(m.inner.BodyStream()) }

// BodyUsed reports whether the body has been consumed or locked.
func (m *BodyMixin) BodyUsed() bool { return m.inner.BodyUsed() }

// Text implements Body.text().
func (m *BodyMixin) Text(ctx context.Context) (string, error) { return m.inner.Text(ctx) }

// ArrayBuffer implements Body.arrayBuffer().
func (m *BodyMixin) ArrayBuffer(ctx context.Context) ([]byte, error) { return m.inner.ArrayBuffer(ctx) }

// Bytes implements Body.bytes().
func (m *BodyMixin) Bytes(ctx context.Context) ([]byte, error) { return m.inner.Bytes(ctx) }

// JSON implements Body.json().
func (m *BodyMixin) JSON(ctx context.Context, out any) error { return m.inner.JSON(ctx, out) }
