// Package extract pulls outbound links out of fetched HTML. Both fetch
// paths (plain HTTP and headless) share it so link discovery behaves
// identically regardless of how the page was rendered.
package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Links returns the absolute http(s) URLs referenced by anchor tags in the
// document, resolved against baseURL and deduplicated in document order.
// Fragment-only anchors and non-navigational schemes are dropped. A parse
// failure yields no links rather than an error: a page without extractable
// links is still a valid page.
func Links(baseURL string, html []byte) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if !navigable(href) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if resolved.Host == "" {
			return
		}
		abs := resolved.String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}

func navigable(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}
	return true
}
