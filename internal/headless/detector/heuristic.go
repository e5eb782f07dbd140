// Package detector decides when a fetched page needs headless rendering
// before conversion.
package detector

import (
	"bytes"
	"strings"

	"github.com/sitedown/sitedown/internal/crawler"
)

// shellMarkers are attribute fragments that identify client-rendered app
// shells (Next.js, React, Vue mounts). Their presence means the static
// response is a bootstrap page, not the content.
var shellMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
}

// Heuristic flags pages whose static HTML is unlikely to contain the real
// content: empty bodies, short script-dominated documents, and known SPA
// shells. Only successful responses are considered; error pages are left
// to the retry policy.
type Heuristic struct {
	// BodyLengthThreshold is the byte size under which a script-heavy body
	// is treated as an app shell.
	BodyLengthThreshold int
}

// NewHeuristic creates a detector. A zero threshold selects the default of
// 2048 bytes.
func NewHeuristic(threshold int) *Heuristic {
	if threshold == 0 {
		threshold = 2048
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

// ShouldPromote reports whether the page should be re-fetched through the
// headless browser.
func (h *Heuristic) ShouldPromote(result crawler.FetchResult) bool {
	if result.StatusCode != 200 {
		return false
	}
	if len(result.HTML) == 0 {
		return true
	}
	if len(result.HTML) < h.BodyLengthThreshold && scriptShare(result.HTML) >= 25 {
		return true
	}
	for _, marker := range shellMarkers {
		if bytes.Contains(result.HTML, marker) {
			return true
		}
	}
	return false
}

// scriptShare returns the percentage of the document occupied by <script>
// elements, inclusive of tags. Unterminated scripts count to end of input.
func scriptShare(body []byte) int {
	doc := strings.ToLower(string(body))
	covered := 0
	for pos := 0; pos < len(doc); {
		offset := strings.Index(doc[pos:], "<script")
		if offset < 0 {
			break
		}
		start := pos + offset

		span, next := scriptSpan(doc, start)
		covered += span
		pos = next
	}
	if covered == 0 {
		return 0
	}
	return covered * 100 / len(doc)
}

// scriptSpan measures one script element starting at start, returning its
// length and the position to resume scanning from.
func scriptSpan(doc string, start int) (span, next int) {
	tagEnd := strings.IndexByte(doc[start:], '>')
	if tagEnd < 0 {
		return len(doc) - start, len(doc)
	}
	bodyStart := start + tagEnd + 1

	closing := strings.Index(doc[bodyStart:], "</script>")
	if closing < 0 {
		return len(doc) - start, len(doc)
	}
	next = bodyStart + closing + len("</script>")
	return next - start, next
}
