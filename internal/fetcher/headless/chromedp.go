// Package headless contains fetchers that render JavaScript via a browser
// before handing the DOM to conversion.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/sitedown/sitedown/internal/crawler"
	"github.com/sitedown/sitedown/internal/extract"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
}

// Fetcher implements crawler.Fetcher using chromedp and headless Chrome.
// Use it for sites whose content only exists after script execution; the
// rendered DOM goes through the same conversion path as plain HTTP fetches.
type Fetcher struct {
	cfg         Config
	slots       chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless fetcher backed by chromedp. MaxParallel 0
// means unbounded tab concurrency.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	var slots chan struct{}
	if cfg.MaxParallel > 0 {
		slots = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocator, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		slots:       slots,
		allocator:   allocator,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context, shutting down the browser pool.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch navigates with a headless browser and returns the fully rendered
// DOM. Error statuses surface as *crawler.FetchError just like the HTTP
// fetcher's, so retry classification is uniform across fetch modes.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResult, error) {
	if err := f.acquire(ctx); err != nil {
		return crawler.FetchResult{}, err
	}
	defer f.release()

	tabCtx, closeTab := chromedp.NewContext(f.allocator)
	defer closeTab()

	timeout := request.Timeout
	if timeout <= 0 {
		timeout = f.cfg.NavigationTimeout
	}
	tabCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()

	doc := &docResponse{}
	chromedp.ListenTarget(tabCtx, doc.observe)

	start := time.Now()
	html, finalURL, err := f.render(tabCtx, request.URL)
	if err != nil {
		return crawler.FetchResult{}, &crawler.FetchError{Err: err}
	}

	status, headers, responseURL := doc.resolve(request.URL, finalURL)
	if status >= http.StatusBadRequest {
		return crawler.FetchResult{}, &crawler.FetchError{StatusCode: status}
	}

	body := []byte(html)
	return crawler.FetchResult{
		URL:        request.URL,
		FinalURL:   responseURL,
		StatusCode: status,
		Headers:    headers,
		HTML:       body,
		Links:      extract.Links(responseURL, body),
		Duration:   time.Since(start),
	}, nil
}

// render drives one navigation to completion. The short sleep after body
// readiness gives late DOM mutations a chance to land before the snapshot.
func (f *Fetcher) render(ctx context.Context, url string) (html, finalURL string, err error) {
	err = chromedp.Run(ctx,
		f.sessionSetup(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (f *Fetcher) sessionSetup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.slots == nil {
		return nil
	}
	select {
	case f.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.slots == nil {
		return
	}
	select {
	case <-f.slots:
	default:
	}
}

// docResponse records the main-document network response so status and
// headers survive the render. Subresource responses are ignored.
type docResponse struct {
	mu      sync.Mutex
	status  int
	headers http.Header
	url     string
}

// observe is the ListenTarget callback.
func (d *docResponse) observe(ev any) {
	event, ok := ev.(*network.EventResponseReceived)
	if !ok || event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	d.mu.Lock()
	d.status = int(event.Response.Status)
	d.headers = headerFromCDP(event.Response.Headers)
	d.url = event.Response.URL
	d.mu.Unlock()
}

// resolve returns the captured response details with fallbacks applied:
// a missing URL falls back to the browser location then the request URL,
// and a missing status is treated as 200 since navigation succeeded.
func (d *docResponse) resolve(requestURL, finalURL string) (int, http.Header, string) {
	d.mu.Lock()
	status, headers, url := d.status, d.headers.Clone(), d.url
	d.mu.Unlock()

	if url == "" {
		url = finalURL
	}
	if url == "" {
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	if headers == nil {
		headers = http.Header{}
	}
	return status, headers, url
}

// headerFromCDP converts the loosely typed CDP header map into http.Header.
func headerFromCDP(src network.Headers) http.Header {
	headers := http.Header{}
	for key, value := range src {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []string:
			for _, entry := range v {
				headers.Add(key, entry)
			}
		case []interface{}:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	return headers
}
