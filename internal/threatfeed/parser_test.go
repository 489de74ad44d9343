package threatfeed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsers(t *testing.T) {
	tests := []struct {
		name   string
		format string
		input  string
		want   []string
	}{
		{
			name:   "hostfile skips reserved names and trailing comments",
			format: "hostfile",
			input:  "# header\n127.0.0.1 localhost\n0.0.0.0 malware.example.com\n127.0.0.1 phishing.bad.org  # seen 2024\n0.0.0.0\n",
			want:   []string{"malware.example.com", "phishing.bad.org"},
		},
		{
			name:   "hostfile folds case before dedup",
			format: "hostfile",
			input:  "0.0.0.0 evil.com\n127.0.0.1 evil.com\n0.0.0.0 EVIL.COM\n",
			want:   []string{"evil.com"},
		},
		{
			name:   "domain list",
			format: "domain-list",
			input:  "# Phishing domains\nevil.com\nbad.org\n\nUPPER.NET\nevil.com\n",
			want:   []string{"evil.com", "bad.org", "upper.net"},
		},
		{
			name:   "openphish url list keeps path case",
			format: "url-list",
			input:  "https://Evil.EXAMPLE/Login.php\nhttp://bad.example/path?x=1\n# note\n\nhttps://evil.example/Login.php\nBare-Domain.example\n",
			want:   []string{"https://evil.example/Login.php", "http://bad.example/path?x=1", "bare-domain.example"},
		},
		{
			name:   "empty input",
			format: "url-list",
			input:  "",
			want:   nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParserForFormat(tc.format).Parse(strings.NewReader(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestURLListParser_LongLines(t *testing.T) {
	long := "https://evil.example/" + strings.Repeat("a", 100*1024)
	entries, err := URLListParser{}.Parse(strings.NewReader(long + "\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{long}, entries)
}

func TestURLListParser_OversizedLineIsSkipped(t *testing.T) {
	huge := "https://spam.example/" + strings.Repeat("b", maxLineBytes+10)
	feed := "https://first.example/\n" + huge + "\nhttps://last.example/login\n"
	entries, err := URLListParser{}.Parse(strings.NewReader(feed))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://first.example/", "https://last.example/login"}, entries)

	entries, err = DomainListParser{}.Parse(strings.NewReader("a.example\r\n" + huge))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.example"}, entries)
}

func TestParserForFormat(t *testing.T) {
	assert.IsType(t, HostfileParser{}, ParserForFormat("HOSTFILE"))
	assert.IsType(t, DomainListParser{}, ParserForFormat("domain-list"))
	assert.IsType(t, URLListParser{}, ParserForFormat("url-list"))
	assert.IsType(t, URLListParser{}, ParserForFormat(""))
}
