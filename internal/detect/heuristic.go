package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Smeet2005/PHISHSCAN/internal/urlnorm"
)

var ipLiteral = regexp.MustCompile(`^(http|https)://(\d{1,3}\.){3}\d{1,3}`)

const (
	scoreIPLiteral  = 50
	scoreKeyword    = 10
	scoreTLD        = 20
	scoreLength     = 10
	scoreSubdomains = 15

	maxURLLength = 75
	maxHostDots  = 3
)

// Score is the heuristic risk estimate of a URL.
type Score struct {
	Value   int      `json:"value"`
	Reasons []string `json:"reasons"`
}

// ScoreURL computes the lexical risk score of u. Signals are additive and
// independent. Host-based signals are skipped when u does not parse; the
// remaining ones are computed on the raw string.
func ScoreURL(u string) Score {
	s := Score{Reasons: []string{}}

	text := u
	host := ""
	if norm, err := urlnorm.Normalize(u, ""); err == nil {
		text = norm
		host = urlnorm.Hostname(norm)
	}
	text = strings.ToLower(text)

	if ipLiteral.MatchString(u) {
		s.Value += scoreIPLiteral
		s.Reasons = append(s.Reasons, "IP-based URL detected (high risk)")
	}

	keywords := 0
	for _, kw := range SuspiciousKeywords {
		if strings.Contains(text, kw) {
			keywords++
		}
	}
	if keywords > 0 {
		s.Value += scoreKeyword * keywords
		s.Reasons = append(s.Reasons, fmt.Sprintf("Contains suspicious keywords (%d)", keywords))
	}

	if host != "" {
		for _, tld := range SuspiciousTLDs {
			if strings.HasSuffix(host, tld) {
				s.Value += scoreTLD
				s.Reasons = append(s.Reasons, "Suspicious Top-Level Domain (TLD)")
				break
			}
		}
	}

	if len(u) > maxURLLength {
		s.Value += scoreLength
		s.Reasons = append(s.Reasons, "Unusually long URL")
	}

	if strings.Count(host, ".") > maxHostDots {
		s.Value += scoreSubdomains
		s.Reasons = append(s.Reasons, "Excessive subdomains")
	}
	return s
}
