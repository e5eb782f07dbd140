package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// stubPage describes one fake page served by the stub fetcher.
type stubPage struct {
	html  string
	links []string
}

// stubFetcher serves a fixed site graph and instruments concurrency so
// tests can assert the dispatcher's bound.
type stubFetcher struct {
	mu          sync.Mutex
	pages       map[string]stubPage
	errs        map[string]error
	latency     time.Duration
	inFlight    int
	maxInFlight int
	calls       map[string]int
}

func newStubFetcher(pages map[string]stubPage) *stubFetcher {
	return &stubFetcher{
		pages: pages,
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *stubFetcher) Fetch(ctx context.Context, request FetchRequest) (FetchResult, error) {
	f.mu.Lock()
	f.calls[request.URL]++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.latency > 0 {
		select {
		case <-time.After(f.latency):
		case <-ctx.Done():
			return FetchResult{}, ctx.Err()
		}
	}

	f.mu.Lock()
	err, failing := f.errs[request.URL]
	page, ok := f.pages[Normalize(request.URL)]
	f.mu.Unlock()

	if failing {
		return FetchResult{}, err
	}
	if !ok {
		return FetchResult{}, &FetchError{StatusCode: 404}
	}
	return FetchResult{
		URL:        request.URL,
		FinalURL:   request.URL,
		StatusCode: 200,
		HTML:       []byte(page.html),
		Links:      page.links,
		Duration:   time.Millisecond,
	}, nil
}

func (f *stubFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// stubConverter passes HTML through as Markdown, titling pages by URL.
type stubConverter struct {
	err error
}

func (c *stubConverter) Convert(url string, html []byte) (Document, error) {
	if c.err != nil {
		return Document{}, c.err
	}
	return Document{Title: url, Markdown: string(html)}, nil
}

// stubHasher fingerprints content by its exact bytes.
type stubHasher struct{}

func (stubHasher) Hash(data []byte) (string, error) {
	return fmt.Sprintf("fp-%s", data), nil
}

// memStore is an in-test PageStore with first-writer-wins semantics.
type memStore struct {
	mu     sync.Mutex
	pages  map[string]Page
	putErr error
}

func newMemStore() *memStore {
	return &memStore{pages: make(map[string]Page)}
}

func (s *memStore) Put(_ context.Context, page Page) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pages[page.NormalizedURL]; exists {
		return nil
	}
	s.pages[page.NormalizedURL] = page
	return nil
}

func (s *memStore) GetAll(_ context.Context) (map[string]Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Page, len(s.pages))
	for k, v := range s.pages {
		out[k] = v
	}
	return out, nil
}

// stubClock returns a fixed instant.
type stubClock struct {
	now time.Time
}

func (c stubClock) Now() time.Time {
	return c.now
}

// stubMonitor toggles overload from tests.
type stubMonitor struct {
	mu         sync.Mutex
	overloaded bool
	polls      int
}

func (m *stubMonitor) Overloaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
	return m.overloaded
}

func (m *stubMonitor) set(overloaded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overloaded = overloaded
}

// noRetry refuses every retry.
type noRetry struct{}

func (noRetry) ShouldRetry(error, int) bool { return false }
func (noRetry) Backoff(int) time.Duration   { return 0 }

func newTestDispatcher(fetcher Fetcher, store PageStore, scope *Scope, cfg DispatcherConfig) *Dispatcher {
	return NewDispatcher(
		fetcher,
		&stubConverter{},
		store,
		stubHasher{},
		stubClock{now: time.Unix(1700000000, 0).UTC()},
		noRetry{},
		nil,
		scope,
		cfg,
		nil,
	)
}

func mustScope(startURL string) *Scope {
	scope, err := NewScope(startURL, "", "")
	if err != nil {
		panic(err)
	}
	return scope
}
