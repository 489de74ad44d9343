package threatfeed

import (
	"sort"
	"strings"

	"github.com/Smeet2005/PHISHSCAN/internal/urlnorm"
)

// Level is how precisely a URL matched a feed entry.
type Level int

const (
	LevelNone Level = iota
	LevelExact
	LevelHostname
	LevelDomain
	LevelBroad
	LevelReverse
)

func (l Level) String() string {
	switch l {
	case LevelExact:
		return "exact"
	case LevelHostname:
		return "hostname"
	case LevelDomain:
		return "domain"
	case LevelBroad:
		return "broad"
	case LevelReverse:
		return "reverse"
	default:
		return "none"
	}
}

type MatchResult struct {
	Malicious bool   `json:"malicious"`
	Reason    string `json:"reason"`
	Level     Level  `json:"level"`
	Entry     string `json:"entry,omitempty"`
}

var noMatch = MatchResult{Reason: "No match in phishing database"}

// snapshot is an immutable, sorted view of an entry set.
type snapshot struct {
	set  map[string]struct{}
	list []string
}

func newSnapshot(entries []string) *snapshot {
	s := &snapshot{set: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		if e == "" {
			continue
		}
		if _, dup := s.set[e]; dup {
			continue
		}
		s.set[e] = struct{}{}
		s.list = append(s.list, e)
	}
	sort.Strings(s.list)
	return s
}

// Match checks rec against entries with the standard precedence: exact URL,
// hostname, registrable domain, then per entry a broad match (the entry
// contains the hostname or domain) or a reverse match (the hostname or domain
// contains the entry).
func Match(rec urlnorm.Record, entries []string, labelBoundary bool) MatchResult {
	return newSnapshot(entries).match(rec, labelBoundary)
}

func (s *snapshot) match(rec urlnorm.Record, labelBoundary bool) MatchResult {
	if rec.Malformed {
		return noMatch
	}
	target := rec.Normalized
	host := rec.Hostname
	domain := rec.RegistrableDomain

	if _, ok := s.set[target]; ok {
		return MatchResult{Malicious: true, Reason: "Exact match in phishing database", Level: LevelExact, Entry: target}
	}
	if host != "" {
		if _, ok := s.set[host]; ok {
			return MatchResult{Malicious: true, Reason: "Hostname match in phishing database", Level: LevelHostname, Entry: host}
		}
	}
	if domain != "" {
		if _, ok := s.set[domain]; ok {
			return MatchResult{Malicious: true, Reason: "Domain match in phishing database", Level: LevelDomain, Entry: domain}
		}
	}

	contains := strings.Contains
	if labelBoundary {
		contains = containsOnBoundary
	}
	for _, entry := range s.list {
		if (host != "" && contains(entry, host)) || (domain != "" && contains(entry, domain)) {
			return MatchResult{Malicious: true, Reason: "Broad match in phishing database", Level: LevelBroad, Entry: entry}
		}
		if (host != "" && contains(host, entry)) || (domain != "" && contains(domain, entry)) {
			return MatchResult{Malicious: true, Reason: "Reverse match in phishing database", Level: LevelReverse, Entry: entry}
		}
	}
	return noMatch
}

// containsOnBoundary reports whether needle occurs in haystack starting and
// ending on a label boundary.
func containsOnBoundary(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	for off := 0; off <= len(haystack)-len(needle); {
		i := strings.Index(haystack[off:], needle)
		if i < 0 {
			return false
		}
		start := off + i
		end := start + len(needle)
		if (start == 0 || isBoundary(haystack[start-1])) && (end == len(haystack) || isBoundary(haystack[end])) {
			return true
		}
		off = start + 1
	}
	return false
}

func isBoundary(c byte) bool {
	switch c {
	case '.', '/', ':', '?', '#', '@':
		return true
	}
	return false
}
