// Package urlshim implements the URL class (WHATWG URL Standard), parsing
// with github.com/nlnwa/whatwg-url for spec-accurate component splitting,
// and representing URLSearchParams as an ordered slice of key/value
// pairs, with net/url used only for percent-encoding and decoding.
package urlshim

import (
	"fmt"

	whatwg "github.com/nlnwa/whatwg-url/url"
)

var parser = whatwg.NewParser()

// URL mirrors the JS URL interface's componentized getters, all computed
// once at parse time rather than recomputed lazily per accessor.
type URL struct {
	Href     string
	Protocol string
	Username string
	Password string
	Host     string
	Hostname string
	Port     string
	Pathname string
	Search   string
	Hash     string
	Origin   string

	SearchParams *SearchParams
}

// Parse parses rawURL, resolving against base if base is non-empty.
func Parse(rawURL, base string) (*URL, error) {
	var (
		u   *whatwg.Url
		err error
	)
	if base != "" {
		baseURL, berr := parser.Parse(base)
		if berr != nil {
			return nil, fmt.Errorf("urlshim: invalid base URL %q: %w", base, berr)
		}
		u, err = parser.ParseRef(baseURL, rawURL)
	} else {
		u, err = parser.Parse(rawURL)
	}
	if err != nil {
		return nil, fmt.Errorf("urlshim: invalid URL %q: %w", rawURL, err)
	}
	return fromWhatwg(u), nil
}

// CanParse reports whether rawURL parses successfully against base,
// mirroring URL.canParse without constructing the searchParams side
// table.
func CanParse(rawURL, base string) bool {
	_, err := Parse(rawURL, base)
	return err == nil
}

func fromWhatwg(u *whatwg.Url) *URL {
	out := &URL{
		Href:     u.Href(false),
		Protocol: u.Protocol(),
		Username: u.Username(),
		Password: u.Password(),
		Host:     u.Host(),
		Hostname: u.Hostname(),
		Port:     u.Port(),
		Pathname: u.Pathname(),
		Search:   u.Search(),
		Hash:     u.Hash(),
		Origin:   u.Origin(),
	}
	out.SearchParams = NewSearchParams(out.Search)
	return out
}

// String returns the URL's serialization (its href).
func (u *URL) String() string {
	return u.Href
}
