// Package ops implements the native HostOps boundary: the real Go code
// behind fetch, decoding, serving, and byte-stream resources, built on
// net/http's client and server plus a compression chain for decoding.
package ops

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SSRFEnabled controls whether the SSRF-safe dialer is used. Tests that
// talk to an httptest server on 127.0.0.1 set this to false.
var SSRFEnabled = true

// ForbiddenRequestHeaders lists header names a caller may not set directly;
// these are controlled by the transport itself.
var ForbiddenRequestHeaders = map[string]bool{
	"host":                true,
	"transfer-encoding":   true,
	"connection":          true,
	"keep-alive":          true,
	"upgrade":             true,
	"proxy-authorization": true,
	"proxy-connection":    true,
	"te":                  true,
	"trailer":             true,
}

// RedirectMode mirrors the Fetch redirect enum.
type RedirectMode int

const (
	RedirectFollow RedirectMode = iota
	RedirectError
	RedirectManual
)

// HttpRequest is the host op input contract for fetch.
type HttpRequest struct {
	Method     string
	URL        string
	Headers    http.Header
	Redirect   RedirectMode
	Source     []byte    // present when the body was a materialized sequence
	BodyReader io.Reader // present when the body is a stream being piped out
}

// HttpResponse is the host op output contract for fetch. Body is nil
// for bodyless responses (HEAD, 204, etc.); Aborted/Type/URL surface the
// abort-signal and network-error cases. FetchEngine maps an abort to the
// signal's reason and a network error to a TypeError.
type HttpResponse struct {
	Status        int
	StatusMessage string
	Headers       http.Header
	Body          *DecodedBodyStream
	Aborted       bool
	URL           string
	Type          string // "basic" normally, "error" for a network failure
}

// Client is fetch_client_new()'s result: a reusable, SSRF-guarded HTTP
// client.
type Client struct {
	http    *http.Client
	timeout time.Duration
}

// NewClient constructs a fetch client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{}
	if SSRFEnabled {
		transport.DialContext = ssrfSafeDialContext
	}
	return &Client{
		http:    &http.Client{Timeout: timeout, Transport: transport},
		timeout: timeout,
	}
}

// Fetch performs req and returns the host response, or a network-error
// HttpResponse (never a Go error) for connection-level failures — the
// caller (FetchEngine) is responsible for turning Type=="error" into a
// TypeError, matching the Fetch algorithm's network-error mapping.
func (c *Client) Fetch(ctx context.Context, req HttpRequest) (*HttpResponse, error) {
	var body io.Reader
	switch {
	case req.Source != nil:
		body = strings.NewReader(string(req.Source))
	case req.BodyReader != nil:
		body = req.BodyReader
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return &HttpResponse{Type: "error", Status: 0}, nil
	}
	for k, vals := range req.Headers {
		if ForbiddenRequestHeaders[strings.ToLower(k)] {
			continue
		}
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}

	client := *c.http
	switch req.Redirect {
	case RedirectManual:
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	case RedirectError:
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return fmt.Errorf("fetch failed: redirect mode is 'error'")
		}
	default:
		client.CheckRedirect = func(r *http.Request, via []*http.Request) error {
			if len(via) >= 20 {
				return fmt.Errorf("too many redirects")
			}
			if SSRFEnabled && IsPrivateHostname(r.URL.String()) {
				return fmt.Errorf("redirect to private IP address is not allowed")
			}
			return nil
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return &HttpResponse{Type: "error", Status: 0, Aborted: true}, nil
		}
		return &HttpResponse{Type: "error", Status: 0}, nil
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	body := newDecodedBodyStream(resp.Body)
	if enc := resp.Header.Get("Content-Encoding"); enc != "" {
		if err := body.SetEncoding(enc); err != nil {
			_ = resp.Body.Close()
			return &HttpResponse{Type: "error", Status: 0}, nil
		}
	}

	return &HttpResponse{
		Status:        resp.StatusCode,
		StatusMessage: resp.Status,
		Headers:       resp.Header,
		Body:          body,
		URL:           finalURL,
		Type:          "basic",
	}, nil
}

// IsPrivateHostname performs a fast, non-resolving pre-check for obviously
// private hostnames and literal IP addresses.
func IsPrivateHostname(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	hostname := u.Hostname()
	if hostname == "" {
		return true
	}
	lower := strings.ToLower(hostname)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return true
	}
	if ip := net.ParseIP(hostname); ip != nil {
		return IsPrivateIP(ip)
	}
	return false
}

// ssrfSafeDialContext resolves DNS and validates the resolved IP against
// private ranges at connect time, closing the DNS-rebinding TOCTOU window
// a hostname-only check would leave open.
func ssrfSafeDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("DNS lookup failed for %s: %w", host, err)
	}
	var safeIP net.IPAddr
	found := false
	for _, ip := range ips {
		if !IsPrivateIP(ip.IP) {
			safeIP = ip
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("fetch to private IP addresses is not allowed")
	}
	dialer := &net.Dialer{}
	return dialer.DialContext(ctx, network, net.JoinHostPort(safeIP.IP.String(), port))
}

var privateRanges []*net.IPNet

func init() {
	for _, cidr := range []string{
		"0.0.0.0/8", "10.0.0.0/8", "100.64.0.0/10", "127.0.0.0/8",
		"169.254.0.0/16", "172.16.0.0/12", "192.0.0.0/24", "192.0.2.0/24",
		"192.168.0.0/16", "198.18.0.0/15", "198.51.100.0/24", "203.0.113.0/24",
		"240.0.0.0/4",
		"::1/128", "fc00::/7", "fe80::/10",
	} {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid CIDR: " + cidr)
		}
		privateRanges = append(privateRanges, n)
	}
}

// IsPrivateIP returns true if ip is in a private, loopback, or link-local
// range.
func IsPrivateIP(ip net.IP) bool {
	for _, n := range privateRanges {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
