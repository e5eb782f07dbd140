package crawler

import (
	"context"
	"time"
)

// Fetcher retrieves a URL and returns the page body, metadata, and the
// outbound links discovered in it.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResult, error)
}

// Converter turns raw HTML into a Markdown document. Implementations must
// be pure: same input, same output, no retained state.
type Converter interface {
	Convert(url string, html []byte) (Document, error)
}

// PageStore persists accepted pages. Put is first-writer-wins per
// normalized URL; GetAll must include every page a prior Put accepted.
type PageStore interface {
	Put(ctx context.Context, page Page) error
	GetAll(ctx context.Context) (map[string]Page, error)
}

// Hasher computes content fingerprints for deduplication.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// ResourceMonitor reports whether the host is under enough pressure that
// the dispatcher should stop admitting new work until it clears.
type ResourceMonitor interface {
	Overloaded() bool
}

// RetryPolicy decides whether a failed fetch is retried and how long to
// wait before the next attempt.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
