package httpcore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cryguy/webruntime/internal/stream"
	"github.com/cryguy/webruntime/internal/urlshim"
)

// ExtractedBody is the normalized internal body representation: a
// consumable stream, plus a materialized Source when the input was a
// byte sequence rather than an already-constructed stream (enabling
// cheap retries and a known Content-Length).
type ExtractedBody struct {
	Stream *stream.Core
	Source []byte
	Length int
	Type   string
}

// ExtractBody converts a user-supplied body value into an ExtractedBody.
// Accepted variants: a *stream.Core (an already-constructed
// ReadableStream, rejected when keepalive is set or the stream is
// already locked), a string (UTF-8 text), a []byte (an ArrayBuffer or
// view, copied), or a *urlshim.SearchParams (URLSearchParams, form
// encoded).
func ExtractBody(input any, keepalive bool) (*ExtractedBody, error) {
	if input == nil {
		return nil, nil
	}
	switch v := input.(type) {
	case *stream.Core:
		if keepalive {
			return nil, typeErr(fmt.Errorf("httpcore: a ReadableStream body cannot be used with keepalive"))
		}
		if v.Locked() {
			return nil, typeErr(fmt.Errorf("httpcore: body stream is already locked"))
		}
		return &ExtractedBody{Stream: v}, nil
	case string:
		b := []byte(v)
		return &ExtractedBody{Stream: bytesStream(b), Source: b, Length: len(b), Type: "text/plain;charset=UTF-8"}, nil
	case []byte:
		b := append([]byte(nil), v...)
		return &ExtractedBody{Stream: bytesStream(b), Source: b, Length: len(b), Type: "application/octet-stream"}, nil
	case *urlshim.SearchParams:
		b := []byte(v.String())
		return &ExtractedBody{Stream: bytesStream(b), Source: b, Length: len(b), Type: "application/x-www-form-urlencoded;charset=UTF-8"}, nil
	default:
		return nil, typeErr(fmt.Errorf("httpcore: unsupported body type %T", input))
	}
}

// bytesStream wraps a materialized byte sequence as a one-shot default
// stream, the way the lazy `body` getter converts a non-stream _body
// into a ReadableStream on first access.
func bytesStream(b []byte) *stream.Core {
	core, _ := stream.NewDefaultStream(stream.DefaultSource{
		Start: func(c *stream.DefaultController) error {
			if len(b) > 0 {
				if err := c.Enqueue(append([]byte(nil), b...)); err != nil {
					return err
				}
			}
			return c.Close()
		},
	})
	return core
}

// BodyMixin implements the shared Body interface: body/bodyUsed and the
// single consume path backing arrayBuffer/bytes/json/text. A second
// consume attempt fails with TypeError, matching the Fetch Standard's
// one-shot body contract.
type BodyMixin struct {
	mu   sync.Mutex
	body *ExtractedBody
	used bool
}

// NewBodyMixin wraps an (possibly nil) extracted body.
func NewBodyMixin(b *ExtractedBody) *BodyMixin {
	return &BodyMixin{body: b}
}

// BodyStream returns the underlying ReadableStream, or nil for a bodyless
// Request/Response.
func (m *BodyMixin) BodyStream() *stream.Core {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.body == nil {
		return nil
	}
	return m.body.Stream
}

// BodyUsed reports whether the body has been consumed or locked by a
// reader.
func (m *BodyMixin) BodyUsed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.body == nil {
		return false
	}
	return m.used || m.body.Stream.Locked()
}

// consume drains the body stream to completion and concatenates its
// chunks. Called at most once per BodyMixin; later calls fail with
// TypeError.
func (m *BodyMixin) consume(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	if m.body == nil {
		m.mu.Unlock()
		return nil, nil
	}
	if m.used {
		m.mu.Unlock()
		return nil, typeErr(ErrBodyUsed)
	}
	m.used = true
	core := m.body.Stream
	m.mu.Unlock()

	reader, err := core.GetReader()
	if err != nil {
		return nil, typeErr(ErrBodyUsed)
	}
	defer reader.ReleaseLock()

	var buf []byte
	for {
		res, err := reader.Read(ctx)
		if err != nil {
			return nil, err
		}
		if res.Done {
			return buf, nil
		}
		switch v := res.Value.(type) {
		case []byte:
			buf = append(buf, v...)
		case string:
			buf = append(buf, v...)
		default:
			return nil, typeErr(fmt.Errorf("httpcore: unsupported body chunk type %T", res.Value))
		}
	}
}

// Text implements Body.text().
func (m *BodyMixin) Text(ctx context.Context) (string, error) {
	b, err := m.consume(ctx)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ArrayBuffer implements Body.arrayBuffer().
func (m *BodyMixin) ArrayBuffer(ctx context.Context) ([]byte, error) {
	return m.consume(ctx)
}

// Bytes implements Body.bytes().
func (m *BodyMixin) Bytes(ctx context.Context) ([]byte, error) {
	return m.consume(ctx)
}

// JSON implements Body.json(): parses the consumed text as JSON into out,
// failing with SyntaxError on malformed input.
func (m *BodyMixin) JSON(ctx context.Context, out any) error {
	b, err := m.consume(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return syntaxErr(fmt.Errorf("httpcore: invalid JSON: %w", err))
	}
	return nil
}
