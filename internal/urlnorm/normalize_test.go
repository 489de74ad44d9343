package urlnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		base string
		want string
	}{
		{"strips tracking keeps others", "https://x.com/a?utm_source=y&id=5", "", "https://x.com/a?id=5"},
		{"forces https", "http://example.com/path", "", "https://example.com/path"},
		{"lowercases host and strips www", "https://WWW.Example.COM/Path", "", "https://example.com/Path"},
		{"drops fragment", "https://example.com/a#section", "", "https://example.com/a"},
		{"adds root path", "https://example.com", "", "https://example.com/"},
		{"drops default http port on upgrade", "http://example.com:80/a", "", "https://example.com/a"},
		{"keeps custom port", "http://example.com:8080/a", "", "https://example.com:8080/a"},
		{"resolves relative", "/login?ref=mail", "https://www.bank.example/home", "https://bank.example/login"},
		{"keeps param order", "https://a.example/?z=1&fbclid=abc&a=2", "", "https://a.example/?z=1&a=2"},
		{"all params removed", "https://a.example/p?gclid=1&utm_term=x", "", "https://a.example/p"},
		{"idna host", "https://bücher.example/", "", "https://xn--bcher-kva.example/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw, tt.base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"http://WWW.Example.com/a/b?utm_campaign=x&q=go+lang#frag",
		"https://198.51.100.7/login",
		"https://sub.domain.example.co.uk:8443/x?ref=1&b=%20c",
		"http://[2001:db8::1]:80/p",
		"http://x.com:443/a",
		"https://www.www.x.com/a",
		"https://x.com../a",
		"http://x.com:80/a?&&q=1",
	}
	for _, in := range inputs {
		once, err := Normalize(in, "")
		require.NoError(t, err)
		twice, err := Normalize(once, "")
		require.NoError(t, err)
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestNormalize_SchemeBeforePort(t *testing.T) {
	tests := map[string]string{
		"http://x.com:443/a":      "https://x.com/a",
		"http://x.com:80/a":       "https://x.com/a",
		"https://x.com:80/a":      "https://x.com:80/a",
		"https://www.www.x.com/a": "https://x.com/a",
	}
	for in, want := range tests {
		got, err := Normalize(in, "")
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", in)
	}
}

func TestNormalize_MalformedReturnsInput(t *testing.T) {
	for _, in := range []string{"", "not a url", "/relative/without/base", "http://bad%zz.com/"} {
		got, err := Normalize(in, "")
		assert.ErrorIs(t, err, ErrMalformed, "input %q", in)
		assert.Equal(t, in, got)
	}
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord("http://www.login.secure.paypal.evil.example/x", "")
	assert.False(t, rec.Malformed)
	assert.Equal(t, "https://login.secure.paypal.evil.example/x", rec.Normalized)
	assert.Equal(t, "login.secure.paypal.evil.example", rec.Hostname)
	assert.Equal(t, "evil.example", rec.RegistrableDomain)
	assert.Equal(t, "evil.example", rec.Domain)
	assert.Equal(t, rec.Normalized, rec.Target())

	rec.ResolvedURL = "https://landing.example/"
	assert.Equal(t, "https://landing.example/", rec.Target())

	uk := NewRecord("https://login.bank.co.uk/", "")
	assert.Equal(t, "co.uk", uk.RegistrableDomain)
	assert.Equal(t, "bank.co.uk", uk.Domain)

	bad := NewRecord("::::", "")
	assert.True(t, bad.Malformed)
	assert.Equal(t, "::::", bad.Normalized)
	assert.Empty(t, bad.Hostname)
}

func TestRegistrableDomain(t *testing.T) {
	assert.Equal(t, "example.com", RegistrableDomain("a.b.example.com"))
	assert.Equal(t, "example.com", RegistrableDomain("example.com"))
	assert.Equal(t, "localhost", RegistrableDomain("localhost"))
	assert.Equal(t, "co.uk", RegistrableDomain("bank.co.uk"))
}

func TestETLDPlusOne(t *testing.T) {
	assert.Equal(t, "bank.co.uk", ETLDPlusOne("login.bank.co.uk"))
	assert.Equal(t, "198.51.100.7", ETLDPlusOne("198.51.100.7"))
}

func TestHostname(t *testing.T) {
	assert.Equal(t, "example.com", Hostname("https://WWW.example.com/a"))
	assert.Empty(t, Hostname("nope"))
}
