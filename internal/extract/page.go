// Package extract collects the link and form targets of an HTML page.
package extract

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type Limits struct {
	MaxLinks int
	MaxForms int
}

// Page holds the scan candidates found on one document. Links and Forms are
// capped by Limits; the totals count every distinct target found.
type Page struct {
	URL        string   `json:"url"`
	Links      []string `json:"links"`
	Forms      []string `json:"forms"`
	TotalLinks int      `json:"total_links"`
	TotalForms int      `json:"total_forms"`
}

var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// FromHTML parses r and resolves every a[href] and form[action] against the
// page URL, or the document's <base href> when present.
func FromHTML(r io.Reader, pageURL string, limits Limits) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("parse page url: %w", err)
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	page := Page{URL: pageURL}
	page.Links, page.TotalLinks = collect(attrs(doc.Find("a[href]"), "href"), base, limits.MaxLinks)
	page.Forms, page.TotalForms = collect(attrs(doc.Find("form[action]"), "action"), base, limits.MaxForms)
	return page, nil
}

// FromTargets applies the same filtering, resolution and caps as FromHTML to
// targets that were collected elsewhere, such as by a browser.
func FromTargets(pageURL string, links, forms []string, limits Limits) (Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("parse page url: %w", err)
	}
	page := Page{URL: pageURL}
	page.Links, page.TotalLinks = collect(links, base, limits.MaxLinks)
	page.Forms, page.TotalForms = collect(forms, base, limits.MaxForms)
	return page, nil
}

func attrs(sel *goquery.Selection, attr string) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr(attr)
		out = append(out, v)
	})
	return out
}

func collect(raws []string, base *url.URL, max int) ([]string, int) {
	seen := make(map[string]struct{})
	out := []string{}
	total := 0
	for _, raw := range raws {
		target, ok := resolve(raw, base)
		if !ok {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		total++
		if max <= 0 || len(out) < max {
			out = append(out, target)
		}
	}
	return out, total
}

func resolve(raw string, base *url.URL) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return "", false
	}
	lower := strings.ToLower(raw)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}
	u, err := base.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}
