package crawler

import (
	"net/url"
	"regexp"
	"strings"
)

var duplicateSlashes = regexp.MustCompile(`/{2,}`)

// Normalize standardizes a URL into the canonical key used for visited-set
// and page-store identity. It lowercases the scheme and host, removes
// default ports, strips the fragment and query string, collapses repeated
// path separators, defaults an empty path to "/", and trims the trailing
// slash everywhere but the root.
//
// Normalize is total: input that cannot be parsed degrades to a best-effort
// passthrough with the fragment removed. It is idempotent, so
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		if i := strings.IndexByte(trimmed, '#'); i >= 0 {
			trimmed = trimmed[:i]
		}
		return trimmed
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	path := duplicateSlashes.ReplaceAllString(u.EscapedPath(), "/")
	if path == "" {
		path = "/"
	}
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}

	return u.Scheme + "://" + u.Host + path
}
