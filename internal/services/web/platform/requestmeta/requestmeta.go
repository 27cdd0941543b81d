// Package requestmeta resolves scheme, origin and client address for
// incoming requests.
package requestmeta

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// Policy controls which proxy headers are trusted.
//
// TrustProxyHeaders must be explicitly enabled for X-Forwarded-Proto and
// X-Forwarded-For to be considered.
type Policy struct {
	TrustProxyHeaders bool
}

// Scheme returns "https" or "http" for r.
func (p Policy) Scheme(r *http.Request) string {
	if r == nil {
		return ""
	}
	if p.TrustProxyHeaders {
		if forwarded := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))); forwarded == "http" || forwarded == "https" {
			return forwarded
		}
	}
	if r.URL != nil {
		if scheme := strings.ToLower(r.URL.Scheme); scheme == "http" || scheme == "https" {
			return scheme
		}
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// IsHTTPS reports whether cookies for r should be marked Secure.
func (p Policy) IsHTTPS(r *http.Request) bool {
	return p.Scheme(r) == "https"
}

// SameOrigin reports whether Origin, or Referer when Origin is absent,
// names the host that served r.
func (p Policy) SameOrigin(r *http.Request) bool {
	if r == nil {
		return false
	}
	want, ok := p.origin(r)
	if !ok {
		return false
	}
	raw := strings.TrimSpace(r.Header.Get("Origin"))
	if raw == "" {
		raw = strings.TrimSpace(r.Header.Get("Referer"))
	}
	if raw == "" {
		return false
	}
	got, ok := parseOrigin(raw)
	return ok && got == want
}

// ClientIP returns the address rate limits and logs attribute r to.
func (p Policy) ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if p.TrustProxyHeaders {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

type origin struct {
	scheme string
	host   string
	port   string
}

func (p Policy) origin(r *http.Request) (origin, bool) {
	scheme := p.Scheme(r)
	raw := r.Host
	if raw == "" && r.URL != nil {
		raw = r.URL.Host
	}
	parsed, err := url.Parse("//" + strings.TrimSpace(raw))
	if err != nil {
		return origin{}, false
	}
	o := origin{scheme: scheme, host: strings.ToLower(parsed.Hostname()), port: parsed.Port()}
	if o.host == "" {
		return origin{}, false
	}
	if o.port == "" {
		o.port = defaultPort(scheme)
	}
	return o, true
}

func parseOrigin(raw string) (origin, bool) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return origin{}, false
	}
	o := origin{
		scheme: strings.ToLower(parsed.Scheme),
		host:   strings.ToLower(parsed.Hostname()),
		port:   parsed.Port(),
	}
	if o.scheme == "" || o.host == "" {
		return origin{}, false
	}
	if o.port == "" {
		o.port = defaultPort(o.scheme)
	}
	return o, o.port != ""
}

func defaultPort(scheme string) string {
	switch scheme {
	case "https":
		return "443"
	case "http":
		return "80"
	default:
		return ""
	}
}
