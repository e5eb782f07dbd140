// Package crawler defines core types shared across subsystems.
package crawler

import (
	"fmt"
	"net/http"
	"time"
)

// Outcome classifies the terminal state of a dispatched URL.
type Outcome string

// Outcome values recorded per dispatched frontier entry.
const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// Page is the immutable record produced for each accepted URL.
type Page struct {
	URL           string    `json:"url"`
	NormalizedURL string    `json:"normalized_url"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Fingerprint   string    `json:"fingerprint"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Depth   int
	Timeout time.Duration
}

// FetchResult is returned by a Fetcher implementation on success.
type FetchResult struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	HTML       []byte
	Links      []string
	Duration   time.Duration
}

// Document is the output of an HTML-to-Markdown conversion.
type Document struct {
	Title    string
	Markdown string
}

// Stats aggregates per-URL outcomes over a crawl run.
type Stats struct {
	Attempted  int `json:"attempted"`
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
	Retries    int `json:"retries"`
}

// Merge folds another Stats value into the receiver.
func (s *Stats) Merge(other Stats) {
	s.Attempted += other.Attempted
	s.Accepted += other.Accepted
	s.Duplicates += other.Duplicates
	s.Failed += other.Failed
	s.Retries += other.Retries
}

// CrawlResult is the final deliverable of a crawl run.
type CrawlResult struct {
	RunID    string          `json:"run_id"`
	StartURL string          `json:"start_url"`
	Pages    map[string]Page `json:"pages"`
	Stats    Stats           `json:"stats"`
	Failed   []string        `json:"failed_urls"`
}

// FetchError describes a failed fetch, carrying the HTTP status when one
// was received.
type FetchError struct {
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch failed with status %d", e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch failed: %v", e.Err)
	}
	return "fetch failed"
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}
