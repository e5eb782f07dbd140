package headless

import (
	"context"
	"errors"

	"github.com/sitedown/sitedown/internal/crawler"
)

// ErrNotConfigured is returned by the Noop fetcher on every call.
var ErrNotConfigured = errors.New("headless fetcher not configured")

// Noop implements crawler.Fetcher but always fails, for builds or configs
// where headless browsing is disabled.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch always returns ErrNotConfigured.
func (Noop) Fetch(_ context.Context, _ crawler.FetchRequest) (crawler.FetchResult, error) {
	return crawler.FetchResult{}, ErrNotConfigured
}
