// Package memory keeps crawled pages in-memory, for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/sitedown/sitedown/internal/crawler"
)

// Store implements crawler.PageStore with a mutex-guarded map. Put is
// first-writer-wins per normalized URL.
type Store struct {
	mu    sync.RWMutex
	pages map[string]crawler.Page
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		pages: make(map[string]crawler.Page),
	}
}

// Put records the page unless one already exists for its normalized URL.
func (s *Store) Put(ctx context.Context, page crawler.Page) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	if page.NormalizedURL == "" {
		return fmt.Errorf("page has no normalized url")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[page.NormalizedURL]; !ok {
		s.pages[page.NormalizedURL] = page
	}
	return nil
}

// GetAll returns a copy of the stored pages keyed by normalized URL.
func (s *Store) GetAll(ctx context.Context) (map[string]crawler.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context canceled: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]crawler.Page, len(s.pages))
	for k, v := range s.pages {
		out[k] = v
	}
	return out, nil
}
