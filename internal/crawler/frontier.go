package crawler

import "sync"

// FrontierEntry is a discovered URL waiting to be dispatched at its BFS
// depth. Entries are created on discovery and consumed exactly once.
type FrontierEntry struct {
	RawURL        string
	NormalizedURL string
	Depth         int
}

// Frontier drives breadth-first traversal: it holds per-depth queues of
// pending entries and the visited set that guarantees no normalized URL is
// ever queued twice. The membership check and insert happen under one lock
// because concurrent fetch completions discover the same links.
type Frontier struct {
	mu       sync.Mutex
	maxDepth int
	visited  map[string]struct{}
	levels   map[int][]FrontierEntry
}

// NewFrontier builds a Frontier bounded at maxDepth (inclusive).
func NewFrontier(maxDepth int) *Frontier {
	return &Frontier{
		maxDepth: maxDepth,
		visited:  make(map[string]struct{}),
		levels:   make(map[int][]FrontierEntry),
	}
}

// Enqueue records a URL at the given depth. It returns true only when a
// new entry was queued: entries beyond maxDepth and URLs whose normalized
// form was already seen are rejected, the depth check happening before
// insertion so out-of-bound links never consume a visited slot.
func (f *Frontier) Enqueue(rawURL string, depth int) bool {
	if depth < 0 || depth > f.maxDepth {
		return false
	}
	normalized := Normalize(rawURL)
	if normalized == "" {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, seen := f.visited[normalized]; seen {
		return false
	}
	f.visited[normalized] = struct{}{}
	f.levels[depth] = append(f.levels[depth], FrontierEntry{
		RawURL:        rawURL,
		NormalizedURL: normalized,
		Depth:         depth,
	})
	return true
}

// DrainLevel returns and clears every entry queued at the given depth. It
// never blocks; an unknown depth yields nil.
func (f *Frontier) DrainLevel(depth int) []FrontierEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := f.levels[depth]
	delete(f.levels, depth)
	return entries
}

// Visited reports whether the URL's normalized form has been enqueued at
// any point.
func (f *Frontier) Visited(rawURL string) bool {
	normalized := Normalize(rawURL)
	f.mu.Lock()
	defer f.mu.Unlock()
	_, seen := f.visited[normalized]
	return seen
}

// VisitedCount returns the size of the visited set.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}
