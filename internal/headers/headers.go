// Package headers implements the Headers class (WHATWG Fetch §3.2) as a
// native ordered, case-insensitive multimap, validated with
// golang.org/x/net/http/httpguts the way a production HTTP stack
// validates field names and values.
package headers

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Guard restricts which mutations are permitted on a Headers instance,
// mirroring the Fetch spec's header guard (immutable/request/
// request-no-cors/response/none).
type Guard int

const (
	GuardNone Guard = iota
	GuardImmutable
	GuardRequest
	GuardRequestNoCORS
	GuardResponse
)

// forbiddenRequestNames cannot be set on a "request" or "request-no-cors"
// guarded instance (a conservative subset of the Fetch forbidden-header
// list — the rest is enforced by the HTTP transport itself).
var forbiddenRequestNames = map[string]bool{
	"host":              true,
	"connection":        true,
	"content-length":    true,
	"cookie":            true,
	"cookie2":           true,
	"date":              true,
	"dnt":               true,
	"expect":            true,
	"keep-alive":        true,
	"origin":            true,
	"referer":           true,
	"te":                true,
	"trailer":           true,
	"transfer-encoding": true,
	"upgrade":           true,
	"via":               true,
}

var noCORSSafeRequestNames = map[string]bool{
	"accept":           true,
	"accept-language":  true,
	"content-language": true,
	"content-type":     true,
}

// entry holds the values of one header name. Headers.ForEach iterates
// names in the order they were first set; Headers.Entries returns the
// pairs sorted by name.
type entry struct {
	name   string // lowercased name
	values []string
}

// Headers is an ordered, case-insensitive header multimap.
type Headers struct {
	guard   Guard
	order   []string // lowercase keys, insertion order
	entries map[string]*entry
}

// New creates empty Headers with the given guard.
func New(guard Guard) *Headers {
	return &Headers{guard: guard, entries: make(map[string]*entry)}
}

// NewFromPairs builds Headers from an ordered list of [name, value] pairs,
// the shape a JS array-of-arrays initializer takes.
func NewFromPairs(guard Guard, pairs [][2]string) (*Headers, error) {
	h := New(guard)
	for _, p := range pairs {
		if err := h.Append(p[0], p[1]); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// NewFromMap builds Headers from a name->value map, setting the names in
// sorted order so the result does not depend on map iteration order.
func NewFromMap(guard Guard, m map[string]string) (*Headers, error) {
	h := New(guard)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := h.Set(k, m[k]); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Clone copies h with a new guard (used when a Response/Request is
// constructed from another's headers).
func (h *Headers) Clone(guard Guard) *Headers {
	out := New(guard)
	for _, k := range h.order {
		e := h.entries[k]
		out.order = append(out.order, k)
		out.entries[k] = &entry{name: e.name, values: append([]string(nil), e.values...)}
	}
	return out
}

func validate(name, value string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return fmt.Errorf("headers: invalid header name %q", name)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("headers: invalid header value for %q", name)
	}
	return nil
}

func (h *Headers) checkMutable(name string) error {
	if h.guard == GuardImmutable {
		return fmt.Errorf("headers: TypeError: headers are immutable")
	}
	lower := strings.ToLower(name)
	if (h.guard == GuardRequest || h.guard == GuardRequestNoCORS) && forbiddenRequestNames[lower] {
		return fmt.Errorf("headers: TypeError: %q is a forbidden request header name", name)
	}
	if h.guard == GuardRequestNoCORS && !noCORSSafeRequestNames[lower] {
		return fmt.Errorf("headers: TypeError: %q is not a CORS-safelisted request header name", name)
	}
	return nil
}

// Append implements headers.append(name, value): concatenates onto any
// existing value with ", " the way the Fetch Standard's combine step does.
func (h *Headers) Append(name, value string) error {
	if err := validate(name, value); err != nil {
		return err
	}
	if err := h.checkMutable(name); err != nil {
		return err
	}
	lower := strings.ToLower(name)
	if e, ok := h.entries[lower]; ok {
		e.values = append(e.values, value)
		return nil
	}
	h.entries[lower] = &entry{name: lower, values: []string{value}}
	h.order = append(h.order, lower)
	return nil
}

// Set implements headers.set(name, value): replaces any existing values.
func (h *Headers) Set(name, value string) error {
	if err := validate(name, value); err != nil {
		return err
	}
	if err := h.checkMutable(name); err != nil {
		return err
	}
	lower := strings.ToLower(name)
	if e, ok := h.entries[lower]; ok {
		e.values = []string{value}
		return nil
	}
	h.entries[lower] = &entry{name: lower, values: []string{value}}
	h.order = append(h.order, lower)
	return nil
}

// Get returns the combined value for name, or ("", false) if absent.
// Set-Cookie is returned as only its first value, per the Fetch spec's
// special-casing of that header in get().
func (h *Headers) Get(name string) (string, bool) {
	lower := strings.ToLower(name)
	e, ok := h.entries[lower]
	if !ok {
		return "", false
	}
	if lower == "set-cookie" {
		return e.values[0], true
	}
	return strings.Join(e.values, ", "), true
}

// GetSetCookie returns every Set-Cookie value individually, uncombined —
// the one header Fetch explicitly forbids joining with commas since
// cookie values may themselves contain commas.
func (h *Headers) GetSetCookie() []string {
	e, ok := h.entries["set-cookie"]
	if !ok {
		return nil
	}
	return append([]string(nil), e.values...)
}

// Has reports whether name is present.
func (h *Headers) Has(name string) bool {
	_, ok := h.entries[strings.ToLower(name)]
	return ok
}

// Delete removes name entirely.
func (h *Headers) Delete(name string) error {
	if err := h.checkMutable(name); err != nil {
		return err
	}
	lower := strings.ToLower(name)
	if _, ok := h.entries[lower]; !ok {
		return nil
	}
	delete(h.entries, lower)
	for i, k := range h.order {
		if k == lower {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	return nil
}

// ForEach calls fn(value, name) for every header, in insertion order, with
// Set-Cookie entries expanded one call per value (matching forEach's
// documented Set-Cookie behavior, unlike Get which combines).
func (h *Headers) ForEach(fn func(value, name string)) {
	for _, k := range h.order {
		e := h.entries[k]
		if k == "set-cookie" {
			for _, v := range e.values {
				fn(v, k)
			}
			continue
		}
		fn(strings.Join(e.values, ", "), k)
	}
}

// Entries returns [name, value] pairs the way Headers.entries() does,
// sorted by name as the Fetch Standard's header list sort-and-combine
// requires.
func (h *Headers) Entries() [][2]string {
	keys := append([]string(nil), h.order...)
	sort.Strings(keys)
	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		e := h.entries[k]
		if k == "set-cookie" {
			for _, v := range e.values {
				out = append(out, [2]string{k, v})
			}
			continue
		}
		out = append(out, [2]string{k, strings.Join(e.values, ", ")})
	}
	return out
}
