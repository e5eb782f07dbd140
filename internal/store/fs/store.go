// Package fs persists crawled pages as Markdown plus metadata on disk.
package fs

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sitedown/sitedown/internal/crawler"
)

var invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Store writes one .md document and one .json metadata file per accepted
// page under a root directory. Put is first-writer-wins per normalized URL;
// an in-memory index backs GetAll so assembly never re-reads the tree.
type Store struct {
	root   string
	logger *zap.Logger

	mu    sync.RWMutex
	pages map[string]crawler.Page
}

// NewStore returns a store rooted at dir. An unwritable root fails here, at
// construction, rather than midway through a crawl.
func NewStore(root string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", root, err)
	}
	return &Store{
		root:   root,
		logger: logger,
		pages:  make(map[string]crawler.Page),
	}, nil
}

// Put persists the page. A second Put for the same normalized URL is a
// no-op: the first writer wins.
func (s *Store) Put(ctx context.Context, page crawler.Page) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	if page.NormalizedURL == "" {
		return fmt.Errorf("page has no normalized url")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[page.NormalizedURL]; ok {
		return nil
	}

	base := safeBasename(page.NormalizedURL)
	mdPath := filepath.Join(s.root, base+".md")
	if err := os.WriteFile(mdPath, []byte(page.Content), 0o600); err != nil {
		return fmt.Errorf("write markdown %s: %w", mdPath, err)
	}

	payload, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal page meta: %w", err)
	}
	metaPath := filepath.Join(s.root, base+".json")
	if err := os.WriteFile(metaPath, payload, 0o600); err != nil {
		return fmt.Errorf("write metadata %s: %w", metaPath, err)
	}

	s.pages[page.NormalizedURL] = page
	s.logger.Debug("page stored",
		zap.String("url", page.NormalizedURL),
		zap.String("path", mdPath))
	return nil
}

// GetAll returns every page accepted so far, keyed by normalized URL.
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

// Root returns the directory pages are written under.
func (s *Store) Root() string {
	return s.root
}

// safeBasename derives a filesystem-safe, collision-resistant name from a
// URL: sanitized host and path plus a short hash of the full URL.
func safeBasename(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return hashURL(raw)
	}
	host := invalidFilenameChars.ReplaceAllString(u.Hostname(), "_")
	p := strings.Trim(u.EscapedPath(), "/")
	if p == "" {
		p = "root"
	}
	p = invalidFilenameChars.ReplaceAllString(p, "_")
	if len(p) > 80 {
		p = p[:80]
	}
	return fmt.Sprintf("%s_%s_%s", host, p, hashURL(raw)[:16])
}

func hashURL(raw string) string {
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
