package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Scope restricts which discovered links are eligible for crawling: links
// must share the seed's registrable domain (or an explicit override) and,
// when configured, start with a normalized URL prefix.
type Scope struct {
	host        string
	registrable string
	prefix      string
}

// NewScope derives a Scope from the seed URL. domainOverride replaces the
// seed host as the scope anchor when non-empty; prefix, when non-empty,
// additionally requires normalized links to start with it.
func NewScope(startURL, domainOverride, prefix string) (*Scope, error) {
	u, err := url.Parse(Normalize(startURL))
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("scope: invalid start url %q", startURL)
	}
	host := strings.ToLower(u.Hostname())
	if domainOverride != "" {
		host = strings.ToLower(domainOverride)
	}
	// The prefix is compared against normalized URLs, so it must be
	// normalized the same way or a differently cased host or trailing
	// slash would match nothing.
	if prefix != "" {
		prefix = Normalize(prefix)
	}
	s := &Scope{host: host, prefix: prefix}
	// Hosts without an eTLD+1 (localhost, bare IPs) fall back to exact
	// host matching.
	if etld, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		s.registrable = etld
	}
	return s, nil
}

// Allows reports whether the normalized URL is in scope.
func (s *Scope) Allows(normalizedURL string) bool {
	u, err := url.Parse(normalizedURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || !s.sameSite(host) {
		return false
	}
	if s.prefix != "" && !strings.HasPrefix(normalizedURL, s.prefix) {
		return false
	}
	return true
}

func (s *Scope) sameSite(host string) bool {
	if host == s.host {
		return true
	}
	if s.registrable == "" {
		return false
	}
	etld, err := publicsuffix.EffectiveTLDPlusOne(host)
	return err == nil && etld == s.registrable
}
