package urlshim

import (
	"net/url"
	"sort"
	"strings"
)

// SearchParams is URLSearchParams: an ordered multimap of string pairs
// (order matters and duplicate keys are preserved) rather than
// net/url.Values' unordered map[string][]string, so entries are kept as
// an ordered slice, with net/url doing the percent-decoding/encoding and
// query-string splitting.
type SearchParams struct {
	entries [][2]string
}

// NewSearchParams parses a query string (with or without a leading '?').
func NewSearchParams(query string) *SearchParams {
	query = strings.TrimPrefix(query, "?")
	sp := &SearchParams{}
	if query == "" {
		return sp
	}
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		var k, v string
		if i := strings.IndexByte(pair, '='); i >= 0 {
			k, v = pair[:i], pair[i+1:]
		} else {
			k = pair
		}
		dk, err1 := url.QueryUnescape(strings.ReplaceAll(k, "+", " "))
		dv, err2 := url.QueryUnescape(strings.ReplaceAll(v, "+", " "))
		if err1 != nil {
			dk = k
		}
		if err2 != nil {
			dv = v
		}
		sp.entries = append(sp.entries, [2]string{dk, dv})
	}
	return sp
}

// Get returns the first value for name, or ("", false).
func (sp *SearchParams) Get(name string) (string, bool) {
	for _, e := range sp.entries {
		if e[0] == name {
			return e[1], true
		}
	}
	return "", false
}

// GetAll returns every value for name, in order.
func (sp *SearchParams) GetAll(name string) []string {
	var out []string
	for _, e := range sp.entries {
		if e[0] == name {
			out = append(out, e[1])
		}
	}
	return out
}

// Has reports whether name is present.
func (sp *SearchParams) Has(name string) bool {
	_, ok := sp.Get(name)
	return ok
}

// Set replaces all values for name with a single value, preserving the
// position of the first existing occurrence (URLSearchParams.set).
func (sp *SearchParams) Set(name, value string) {
	found := false
	out := sp.entries[:0:0]
	for _, e := range sp.entries {
		if e[0] != name {
			out = append(out, e)
			continue
		}
		if !found {
			out = append(out, [2]string{name, value})
			found = true
		}
	}
	if !found {
		out = append(out, [2]string{name, value})
	}
	sp.entries = out
}

// Append adds name=value at the end, keeping any existing entries for
// name (URLSearchParams.append).
func (sp *SearchParams) Append(name, value string) {
	sp.entries = append(sp.entries, [2]string{name, value})
}

// Delete removes every entry for name.
func (sp *SearchParams) Delete(name string) {
	out := sp.entries[:0:0]
	for _, e := range sp.entries {
		if e[0] != name {
			out = append(out, e)
		}
	}
	sp.entries = out
}

// Sort orders entries by name, stable on original relative order for
// ties, per URLSearchParams.sort().
func (sp *SearchParams) Sort() {
	sort.SliceStable(sp.entries, func(i, j int) bool {
		return sp.entries[i][0] < sp.entries[j][0]
	})
}

// Entries returns a snapshot of all [name, value] pairs, in order.
func (sp *SearchParams) Entries() [][2]string {
	return append([][2]string(nil), sp.entries...)
}

// ForEach calls fn(value, name) for each pair, in order.
func (sp *SearchParams) ForEach(fn func(value, name string)) {
	for _, e := range sp.entries {
		fn(e[1], e[0])
	}
}

// String serializes the params back into a query string, application/
// x-www-form-urlencoded per URLSearchParams.toString().
func (sp *SearchParams) String() string {
	var b strings.Builder
	for i, e := range sp.entries {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(e[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(e[1]))
	}
	return b.String()
}
