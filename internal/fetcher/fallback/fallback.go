// Package fallback composes the fast HTTP fetcher with the headless one:
// pages that come back looking script-rendered are re-fetched in a browser.
package fallback

import (
	"context"

	"go.uber.org/zap"

	"github.com/sitedown/sitedown/internal/crawler"
)

// Detector judges whether a fetched page needs headless rendering.
type Detector interface {
	ShouldPromote(result crawler.FetchResult) bool
}

// Fetcher implements crawler.Fetcher. Every request goes through the fast
// fetcher first; promotion is best-effort, so a failed headless re-fetch
// falls back to the fast result instead of failing the page.
type Fetcher struct {
	fast     crawler.Fetcher
	headless crawler.Fetcher
	detect   Detector
	logger   *zap.Logger
}

// New builds the composed fetcher. headless may be nil, in which case
// promotion is disabled and the fast result always wins.
func New(fast, headless crawler.Fetcher, detect Detector, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		fast:     fast,
		headless: headless,
		detect:   detect,
		logger:   logger,
	}
}

// Fetch retrieves the page, promoting to headless when the detector asks
// for it.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResult, error) {
	result, err := f.fast.Fetch(ctx, request)
	if err != nil {
		return result, err
	}
	if f.headless == nil || f.detect == nil || !f.detect.ShouldPromote(result) {
		return result, nil
	}

	promoted, perr := f.headless.Fetch(ctx, request)
	if perr != nil {
		f.logger.Warn("headless promotion failed; keeping http result",
			zap.String("url", request.URL),
			zap.Error(perr))
		return result, nil
	}
	f.logger.Debug("page promoted to headless", zap.String("url", request.URL))
	return promoted, nil
}
