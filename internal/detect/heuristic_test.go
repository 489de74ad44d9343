package detect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    int
		reasons []string
	}{
		{
			name:    "plain",
			url:     "https://docs.example/readme",
			want:    0,
			reasons: []string{},
		},
		{
			name: "ip literal with keyword",
			url:  "http://198.51.100.7/login",
			want: 60,
			reasons: []string{
				"IP-based URL detected (high risk)",
				"Contains suspicious keywords (1)",
			},
		},
		{
			name: "keywords and tld",
			url:  "https://paypal-login.secure.xyz/",
			want: 60,
			reasons: []string{
				"Contains suspicious keywords (4)",
				"Suspicious Top-Level Domain (TLD)",
			},
		},
		{
			name:    "excessive subdomains",
			url:     "https://a.b.c.d.example.com/",
			want:    15,
			reasons: []string{"Excessive subdomains"},
		},
		{
			name:    "long url",
			url:     "https://docs.example/" + strings.Repeat("x", 60),
			want:    10,
			reasons: []string{"Unusually long URL"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreURL(tt.url)
			assert.Equal(t, tt.want, got.Value)
			assert.Equal(t, tt.reasons, got.Reasons)
		})
	}
}

func TestScoreURL_MalformedScoresLexically(t *testing.T) {
	got := ScoreURL("http://[::1/login")
	assert.Equal(t, 10, got.Value)
	assert.Equal(t, []string{"Contains suspicious keywords (1)"}, got.Reasons)

	assert.Equal(t, 0, ScoreURL("::::").Value)
}

func TestScoreURL_IPLiteralNeverLowersScore(t *testing.T) {
	paths := []string{"/", "/login", "/account/verify", "/a/b/c?d=e"}
	for _, p := range paths {
		named := ScoreURL("https://host.example" + p)
		ip := ScoreURL("https://203.0.113.9" + p)
		assert.GreaterOrEqual(t, ip.Value, named.Value, p)
	}
}
