package webruntime

import "github.com/cryguy/webruntime/internal/headers"

// Headers is the public Headers class.
type Headers struct {
	inner *headers.Headers
}

// NewHeaders builds an empty, mutable Headers instance.
func NewHeaders() *Headers {
	return &Headers{inner: headers.New(headers.GuardNone)}
}

// NewHeadersFromPairs builds Headers from an ordered list of [name,
// value] pairs, as from a sequence<sequence<ByteString>> init value.
func NewHeadersFromPairs(pairs [][2]string) (*Headers, error) {
	h, err := headers.NewFromPairs(headers.GuardNone, pairs)
	if err != nil {
		return nil, translateErr(err)
	}
	return &Headers{inner: h}, nil
}

// NewHeadersFromMap builds Headers from a record<ByteString,ByteString>
// init value.
func NewHeadersFromMap(m map[string]string) (*Headers, error) {
	h, err := headers.NewFromMap(headers.GuardNone, m)
	if err != nil {
		return nil, translateErr(err)
	}
	return &Headers{inner: h}, nil
}

func wrapHeaders(h *headers.Headers) *Headers {
	if h == nil {
		return nil
	}
	return &Headers{inner: h}
}

// Clone copies these headers under a fresh mutable guard.
func (h *Headers) Clone() *Headers {
	return &Headers{inner: h.inner.Clone(headers.GuardNone)}
}

// Append adds a value for name, combining with any existing value.
func (h *Headers) Append(name, value string) error {
	return translateErr(h.inner.Append(name, value))
}

// Set replaces all values for name.
func (h *Headers) Set(name, value string) error {
	return translateErr(h.inner.Set(name, value))
}

// Get returns the combined value for name, if present.
func (h *Headers) Get(name string) (string, bool) { return h.inner.Get(name) }

// GetSetCookie returns every Set-Cookie value uncombined, in insertion
// order.
func (h *Headers) GetSetCookie() []string { return h.inner.GetSetCookie() }

// Has reports whether name is present.
func (h *Headers) Has(name string) bool { return h.inner.Has(name) }

// Delete removes every value for name.
func (h *Headers) Delete(name string) error { return translateErr(h.inner.Delete(name)) }

// ForEach iterates header entries in the order their names were first
// set, with each Set-Cookie value reported separately.
func (h *Headers) ForEach(fn func(value, name string)) { h.inner.ForEach(fn) }

// Entries returns the [name, value] pairs sorted by name.
func (h *Headers) Entries() [][2]string { return h.inner.Entries() }
