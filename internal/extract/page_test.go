package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!doctype html>
<html><head><title>t</title></head>
<body>
  <a href="https://evil.example/login">login</a>
  <a href="/relative/path?x=1">rel</a>
  <a href="https://evil.example/login">dup</a>
  <a href="javascript:void(0)">js</a>
  <a href="MAILTO:someone@example.com">mail</a>
  <a href="tel:+15555550100">tel</a>
  <a href="data:text/html,hi">data</a>
  <a href="#section">anchor</a>
  <a href="  ">blank</a>
  <a>no href</a>
  <form action="https://collect.example/post"><input name="p"></form>
  <form action="submit.php"></form>
  <form>no action</form>
</body></html>`

func TestFromHTML_CollectsAndResolves(t *testing.T) {
	page, err := FromHTML(strings.NewReader(samplePage), "https://site.example/dir/page.html", Limits{MaxLinks: 30, MaxForms: 5})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://evil.example/login",
		"https://site.example/relative/path?x=1",
	}, page.Links)
	assert.Equal(t, []string{
		"https://collect.example/post",
		"https://site.example/dir/submit.php",
	}, page.Forms)
	assert.Equal(t, 2, page.TotalLinks)
	assert.Equal(t, 2, page.TotalForms)
}

func TestFromHTML_HonoursBaseHref(t *testing.T) {
	html := `<html><head><base href="https://cdn.example/assets/"></head>
<body><a href="next.html">n</a><form action="/go"></form></body></html>`
	page, err := FromHTML(strings.NewReader(html), "https://site.example/", Limits{})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example/assets/next.html"}, page.Links)
	assert.Equal(t, []string{"https://cdn.example/go"}, page.Forms)
}

func TestFromHTML_CapsButCountsTotals(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString(`<a href="https://x.example/` + string(rune('a'+i%26)) + strings.Repeat("z", i/26) + `">l</a>`)
	}
	for i := 0; i < 7; i++ {
		b.WriteString(`<form action="/f` + strings.Repeat("x", i) + `"></form>`)
	}
	page, err := FromHTML(strings.NewReader(b.String()), "https://x.example/", Limits{MaxLinks: 30, MaxForms: 5})
	require.NoError(t, err)
	assert.Len(t, page.Links, 30)
	assert.Len(t, page.Forms, 5)
	assert.Equal(t, 40, page.TotalLinks)
	assert.Equal(t, 7, page.TotalForms)
}

func TestFromHTML_BadPageURL(t *testing.T) {
	_, err := FromHTML(strings.NewReader("<a href='x'>x</a>"), "http://[::1", Limits{})
	assert.Error(t, err)
}

func TestFromTargets_FiltersAndResolves(t *testing.T) {
	page, err := FromTargets("https://site.example/dir/",
		[]string{"a.html", "mailto:x@y", "", "#top", "a.html", "https://other.example/"},
		[]string{"javascript:void(0)", "/submit"},
		Limits{MaxLinks: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://site.example/dir/a.html"}, page.Links)
	assert.Equal(t, 2, page.TotalLinks)
	assert.Equal(t, []string{"https://site.example/submit"}, page.Forms)
}
