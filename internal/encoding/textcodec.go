// Package encoding implements TextDecoder/TextEncoder (WHATWG Encoding
// Standard subset), backed by golang.org/x/text/encoding/unicode for the
// UTF-16 variants instead of hand-rolled surrogate-pair math.
package encoding

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder is TextDecoder: decodes bytes to a UTF-8 Go string per a fixed
// encoding label, chosen once at construction.
type Decoder struct {
	Encoding   string
	Fatal      bool
	IgnoreBOM  bool
	underlying encoding.Encoding
}

// NewDecoder builds a Decoder for label ("utf-8", "utf-16le", "utf-16be",
// "utf-16"); unsupported labels report an error the way the constructor
// throwing a RangeError would.
func NewDecoder(label string, fatal, ignoreBOM bool) (*Decoder, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	var enc encoding.Encoding
	switch label {
	case "", "utf-8", "utf8", "unicode-1-1-utf-8":
		enc = unicode.UTF8
	case "utf-16le", "utf-16":
		enc = unicode.UTF16(unicode.LittleEndian, bomPolicy(ignoreBOM))
	case "utf-16be":
		enc = unicode.UTF16(unicode.BigEndian, bomPolicy(ignoreBOM))
	default:
		return nil, fmt.Errorf("encoding: unsupported label %q", label)
	}
	return &Decoder{Encoding: label, Fatal: fatal, IgnoreBOM: ignoreBOM, underlying: enc}, nil
}

func bomPolicy(ignoreBOM bool) unicode.BOMPolicy {
	if ignoreBOM {
		return unicode.IgnoreBOM
	}
	return unicode.UseBOM
}

// Decode converts p to a UTF-8 string. With Fatal set, output containing
// the U+FFFD replacement character (the transformer's signal that some
// input sequence was malformed) is rejected instead of returned.
func (d *Decoder) Decode(p []byte) (string, error) {
	out, _, err := transform.Bytes(d.underlying.NewDecoder(), p)
	if err != nil {
		return "", fmt.Errorf("encoding: decode: %w", err)
	}
	if d.Fatal && strings.ContainsRune(string(out), utf8.RuneError) {
		return "", fmt.Errorf("encoding: decode: invalid %s sequence", d.Encoding)
	}
	return string(out), nil
}

// Encoder is TextEncoder: always UTF-8, per the WHATWG Encoding Standard.
type Encoder struct{}

// NewEncoder returns the (stateless) UTF-8 encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Encode returns s as UTF-8 bytes.
func (*Encoder) Encode(s string) []byte {
	return []byte(s)
}

// EncodeInto writes as much of s's UTF-8 encoding into dst as fits,
// returning (bytes read from s, bytes written), matching
// TextEncoder.encodeInto's partial-write contract.
func (*Encoder) EncodeInto(s string, dst []byte) (read, written int) {
	b := []byte(s)
	n := copy(dst, b)
	// Never split a multi-byte rune across the boundary.
	for n > 0 && n < len(b) && !utf8.RuneStart(b[n]) {
		n--
	}
	return n, n
}
