// Package ratelimit implements a token bucket rate limiter for per-domain
// request pacing.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
}

// Limiter hands out tokens per domain, creating a bucket lazily the first
// time a domain is seen. All buckets share the configured rate and burst.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// New creates a Limiter. A non-positive RPS disables limiting.
func New(cfg Config) *Limiter {
	limit := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		limit = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
}

// Wait blocks until a token is available for the URL's domain, respecting
// the context. Unparseable URLs share a single catch-all bucket.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	if err := l.bucketFor(domainOf(rawURL)).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func (l *Limiter) bucketFor(domain string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	bucket, ok := l.buckets[domain]
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets[domain] = bucket
	}
	return bucket
}

func domainOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return "unknown"
}
