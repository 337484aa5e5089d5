package httpcore

import (
	"strings"

	"github.com/cryguy/webruntime/internal/headers"
)

// Mode is the request mode enum (navigate is not settable via
// RequestInit: NewRequest rejects it).
type Mode string

const (
	ModeSameOrigin Mode = "same-origin"
	ModeCORS       Mode = "cors"
	ModeNoCORS     Mode = "no-cors"
	ModeNavigate   Mode = "navigate"
)

// RedirectMode is the request redirect enum.
type RedirectMode string

const (
	RedirectFollow RedirectMode = "follow"
	RedirectError  RedirectMode = "error"
	RedirectManual RedirectMode = "manual"
)

// CacheMode is the request cache enum; only "default" and
// "only-if-cached" affect behavior here (the rest are accepted and
// threaded through for a caller wiring their own cache, but the core
// performs no caching itself).
type CacheMode string

const (
	CacheDefault      CacheMode = "default"
	CacheNoStore      CacheMode = "no-store"
	CacheReload       CacheMode = "reload"
	CacheNoCache      CacheMode = "no-cache"
	CacheForceCache   CacheMode = "force-cache"
	CacheOnlyIfCached CacheMode = "only-if-cached"
)

// InnerRequest is the Request record: method, URL history (redirects
// append rather than overwrite, so the original URL stays available),
// header list, extracted body, and the mode/cache/redirect/credentials
// tags the fetch algorithm branches on.
type InnerRequest struct {
	Method      string
	URLList     []string
	Headers     *headers.Headers
	Body        *ExtractedBody
	Mode        Mode
	Cache       CacheMode
	Redirect    RedirectMode
	Credentials string
	Keepalive   bool
}

// RequestInit mirrors the RequestInit dictionary passed to the Request
// constructor.
type RequestInit struct {
	Method      string
	Headers     *headers.Headers
	Body        any
	Mode        Mode
	Cache       CacheMode
	Redirect    RedirectMode
	Credentials string
	Keepalive   bool
}

var bodylessMethods = map[string]bool{"GET": true, "HEAD": true}

// NewRequest builds an InnerRequest from a URL and init, enforcing the
// constructor's constraints: GET/HEAD cannot carry a body; navigate mode
// is rejected; only-if-cached requires same-origin; and a raw-stream
// body (one with no materialized Source) requires same-origin or cors
// mode, since such a body can't be safely replayed across a CORS
// preflight retry.
func NewRequest(url string, init RequestInit) (*InnerRequest, error) {
	method := strings.ToUpper(init.Method)
	if method == "" {
		method = "GET"
	}

	var body *ExtractedBody
	if init.Body != nil {
		if bodylessMethods[method] {
			return nil, typeErr(ErrBodyNotAllowed)
		}
		b, err := ExtractBody(init.Body, init.Keepalive)
		if err != nil {
			return nil, err
		}
		body = b
	}

	mode := init.Mode
	if mode == "" {
		mode = ModeNoCORS
	}
	if mode == ModeNavigate {
		return nil, typeErr(ErrNavigateMode)
	}

	cache := init.Cache
	if cache == "" {
		cache = CacheDefault
	}
	if cache == CacheOnlyIfCached && mode != ModeSameOrigin {
		return nil, typeErr(ErrOnlyIfCachedMode)
	}

	if body != nil && body.Source == nil && mode != ModeSameOrigin && mode != ModeCORS {
		return nil, typeErr(ErrStreamBodyMode)
	}

	h := init.Headers
	if h == nil {
		h = headers.New(headers.GuardRequest)
	}
	if body != nil && body.Type != "" && !h.Has("content-type") {
		_ = h.Set("content-type", body.Type)
	}

	redirect := init.Redirect
	if redirect == "" {
		redirect = RedirectFollow
	}

	return &InnerRequest{
		Method:      method,
		URLList:     []string{url},
		Headers:     h,
		Body:        body,
		Mode:        mode,
		Cache:       cache,
		Redirect:    redirect,
		Credentials: init.Credentials,
		Keepalive:   init.Keepalive,
	}, nil
}

// URL returns the most recent URL in the redirect history.
func (r *InnerRequest) URL() string {
	return r.URLList[len(r.URLList)-1]
}
