package webruntime

import "github.com/cryguy/webruntime/internal/urlshim"

// URL is the public URL class.
type URL struct {
	inner *urlshim.URL
}

// ParseURL parses rawURL, resolving against base when base is non-empty.
// Invalid input yields a *TypeError, as the URL constructor throws.
func ParseURL(rawURL, base string) (*URL, error) {
	u, err := urlshim.Parse(rawURL, base)
	if err != nil {
		return nil, &TypeError{Cause: err}
	}
	return &URL{inner: u}, nil
}

// CanParseURL reports whether rawURL parses successfully against base.
func CanParseURL(rawURL, base string) bool { return urlshim.CanParse(rawURL, base) }

func (u *URL) Href() string     { return u.inner.Href }
func (u *URL) Protocol() string { return u.inner.Protocol }
func (u *URL) Username() string { return u.inner.Username }
func (u *URL) Password() string { return u.inner.Password }
func (u *URL) Host() string     { return u.inner.Host }
func (u *URL) Hostname() string { return u.inner.Hostname }
func (u *URL) Port() string     { return u.inner.Port }
func (u *URL) Pathname() string { return u.inner.Pathname }
func (u *URL) Search() string   { return u.inner.Search }
func (u *URL) Hash() string     { return u.inner.Hash }
func (u *URL) Origin() string   { return u.inner.Origin }

// SearchParams returns the URLSearchParams view tied to this URL's query
// string (a snapshot taken at parse time; mutating it does not write
// back to the URL, matching this runtime's one-shot parse model).
func (u *URL) SearchParams() *URLSearchParams {
	return &URLSearchParams{inner: u.inner.SearchParams}
}

func (u *URL) String() string { return u.inner.String() }

// URLSearchParams is the public URLSearchParams class: an ordered,
// duplicate-key-preserving list of query pairs.
type URLSearchParams struct {
	inner *urlshim.SearchParams
}

// NewURLSearchParams parses an "a=1&b=2"-shaped (optionally
// leading-"?") query string, or an empty one when query is "".
func NewURLSearchParams(query string) *URLSearchParams {
	return &URLSearchParams{inner: urlshim.NewSearchParams(query)}
}

func (sp *URLSearchParams) Get(name string) (string, bool)  { return sp.inner.Get(name) }
func (sp *URLSearchParams) GetAll(name string) []string     { return sp.inner.GetAll(name) }
func (sp *URLSearchParams) Has(name string) bool            { return sp.inner.Has(name) }
func (sp *URLSearchParams) Set(name, value string)          { sp.inner.Set(name, value) }
func (sp *URLSearchParams) Append(name, value string)       { sp.inner.Append(name, value) }
func (sp *URLSearchParams) Delete(name string)              { sp.inner.Delete(name) }
func (sp *URLSearchParams) Sort()                           { sp.inner.Sort() }
func (sp *URLSearchParams) Entries() [][2]string            { return sp.inner.Entries() }
func (sp *URLSearchParams) ForEach(fn func(value, name string)) { sp.inner.ForEach(fn) }
func (sp *URLSearchParams) String() string                  { return sp.inner.String() }
