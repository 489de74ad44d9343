// Package urlnorm canonicalizes URLs so that links seen on a page can be
// compared against allow-lists, threat feeds and cached verdicts.
package urlnorm

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// ErrMalformed is returned when a string cannot be parsed as an absolute URL,
// even after resolving it against the base.
var ErrMalformed = errors.New("malformed url")

var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"msclkid":      {},
	"ref":          {},
	"source":       {},
	"campaign":     {},
	"medium":       {},
	"term":         {},
	"content":      {},
	"clickid":      {},
	"affiliate":    {},
	"partner":      {},
	"referrer":     {},
}

// IsTrackingParam reports whether a query parameter name is stripped by Normalize.
func IsTrackingParam(name string) bool {
	_, ok := trackingParams[name]
	return ok
}

// Normalize returns the canonical form of raw: absolute (resolved against
// base when relative), https instead of http, lower-case host without a
// leading "www.", no fragment and no tracking parameters. On failure the
// input is returned unchanged together with ErrMalformed.
func Normalize(raw, base string) (string, error) {
	u, err := parse(raw, base)
	if err != nil {
		return raw, err
	}

	host, err := canonicalHost(u.Hostname())
	if err != nil {
		return raw, ErrMalformed
	}
	port := u.Port()
	scheme := strings.ToLower(u.Scheme)
	if scheme == "http" {
		if port == "80" {
			port = ""
		}
		scheme = "https"
	}
	if scheme == "https" && port == "443" {
		port = ""
	}

	u.Scheme = scheme
	u.Host = joinHost(host, port)
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = stripTracking(u.RawQuery)
	u.ForceQuery = false
	if u.Path == "" && (scheme == "https" || scheme == "http") {
		u.Path = "/"
		u.RawPath = ""
	}
	return u.String(), nil
}

// MustNormalize is Normalize without the error; malformed input is returned as-is.
func MustNormalize(raw string) string {
	out, _ := Normalize(raw, "")
	return out
}

func parse(raw, base string) (*url.URL, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, ErrMalformed
	}
	ref, err := url.Parse(s)
	if err != nil {
		return nil, ErrMalformed
	}
	if !ref.IsAbs() {
		if base == "" {
			return nil, ErrMalformed
		}
		b, err := url.Parse(strings.TrimSpace(base))
		if err != nil || !b.IsAbs() {
			return nil, ErrMalformed
		}
		ref = b.ResolveReference(ref)
	}
	if ref.Host == "" || ref.Hostname() == "" {
		return nil, ErrMalformed
	}
	return ref, nil
}

func canonicalHost(host string) (string, error) {
	host = strings.TrimRight(strings.ToLower(host), ".")
	if !isASCII(host) {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return "", err
		}
		host = ascii
	}
	for strings.HasPrefix(host, "www.") {
		host = host[len("www."):]
	}
	return host, nil
}

func joinHost(host, port string) string {
	if port != "" {
		return net.JoinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}

// stripTracking removes tracking parameters while keeping the order and the
// original encoding of everything else.
func stripTracking(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	parts := strings.Split(rawQuery, "&")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		key, _, _ := strings.Cut(p, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if IsTrackingParam(key) {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "&")
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Hostname returns the lower-case, www-stripped host of u, or "" if u does
// not parse.
func Hostname(u string) string {
	parsed, err := parse(u, "")
	if err != nil {
		return ""
	}
	host, err := canonicalHost(parsed.Hostname())
	if err != nil {
		return ""
	}
	return host
}

// RegistrableDomain returns the last two dot-separated labels of host. This is
// the granularity threat feeds are matched at; it is deliberately not public
// suffix aware.
func RegistrableDomain(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// ETLDPlusOne returns the public-suffix aware registrable domain of host,
// falling back to RegistrableDomain for hosts the list cannot handle.
func ETLDPlusOne(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return RegistrableDomain(host)
	}
	return d
}
