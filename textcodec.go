package webruntime

import "github.com/cryguy/webruntime/internal/encoding"

// TextDecoder is the public TextDecoder.
type TextDecoder struct {
	inner *encoding.Decoder
}

// NewTextDecoder builds a TextDecoder for label ("utf-8", "utf-16le",
// "utf-16be", "utf-16"); an unsupported label is a RangeError.
func NewTextDecoder(label string, fatal, ignoreBOM bool) (*TextDecoder, error) {
	d, err := encoding.NewDecoder(label, fatal, ignoreBOM)
	if err != nil {
		return nil, &RangeError{Cause: err}
	}
	return &TextDecoder{inner: d}, nil
}

// Encoding is the decoder's resolved encoding label.
func (d *TextDecoder) Encoding() string { return d.inner.Encoding }

// Fatal reports whether malformed sequences raise an error.
func (d *TextDecoder) Fatal() bool { return d.inner.Fatal }

// IgnoreBOM reports whether a leading BOM is passed through rather than
// stripped.
func (d *TextDecoder) IgnoreBOM() bool { return d.inner.IgnoreBOM }

// Decode converts p to a UTF-8 string, failing if Fatal is set and p
// contains a malformed sequence.
func (d *TextDecoder) Decode(p []byte) (string, error) {
	s, err := d.inner.Decode(p)
	if err != nil {
		return "", &TypeError{Cause: err}
	}
	return s, nil
}

// TextEncoder is the public TextEncoder: always UTF-8.
type TextEncoder struct {
	inner *encoding.Encoder
}

// NewTextEncoder returns the (stateless) UTF-8 encoder.
func NewTextEncoder() *TextEncoder { return &TextEncoder{inner: encoding.NewEncoder()} }

// Encode returns s as UTF-8 bytes.
func (e *TextEncoder) Encode(s string) []byte { return e.inner.Encode(s) }

// EncodeInto writes as much of s's UTF-8 encoding into dst as fits,
// returning (bytes read from s, bytes written).
func (e *TextEncoder) EncodeInto(s string, dst []byte) (read, written int) {
	return e.inner.EncodeInto(s, dst)
}
