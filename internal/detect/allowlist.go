package detect

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Allowlist holds trusted domains. A hostname is allowed when it equals a
// listed domain or is a subdomain of one, or when it matches one of the
// configured glob patterns ("*.corp.example"). It is immutable after
// construction and safe for concurrent use.
type Allowlist struct {
	domains  map[string]struct{}
	patterns []glob.Glob
}

// NewAllowlist builds an allowlist from the built-in safe domains plus extra
// domains and host patterns.
func NewAllowlist(extra, patterns []string) (*Allowlist, error) {
	a := &Allowlist{domains: make(map[string]struct{}, len(SafeDomains)+len(extra))}
	for _, d := range SafeDomains {
		a.domains[d] = struct{}{}
	}
	for _, d := range extra {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d != "" {
			a.domains[d] = struct{}{}
		}
	}
	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(p), '.')
		if err != nil {
			return nil, fmt.Errorf("allowlist pattern %q: %w", p, err)
		}
		a.patterns = append(a.patterns, g)
	}
	return a, nil
}

// Allowed reports whether host is trusted. host is expected lower-case with
// any leading "www." already removed.
func (a *Allowlist) Allowed(host string) bool {
	if a == nil || host == "" {
		return false
	}
	for h := host; h != ""; {
		if _, ok := a.domains[h]; ok {
			return true
		}
		i := strings.IndexByte(h, '.')
		if i < 0 {
			break
		}
		h = h[i+1:]
	}
	for _, g := range a.patterns {
		if g.Match(host) {
			return true
		}
	}
	return false
}

// Len returns the number of listed domains, patterns excluded.
func (a *Allowlist) Len() int {
	if a == nil {
		return 0
	}
	return len(a.domains)
}
