package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinksResolvesRelativeHrefs(t *testing.T) {
	t.Parallel()

	html := []byte(`<html><body>
		<a href="/docs/intro">Intro</a>
		<a href="guide">Guide</a>
		<a href="https://other.com/x">Other</a>
	</body></html>`)

	links := Links("https://example.com/docs/", html)
	require.Equal(t, []string{
		"https://example.com/docs/intro",
		"https://example.com/docs/guide",
		"https://other.com/x",
	}, links)
}

func TestLinksSkipsNonNavigationalHrefs(t *testing.T) {
	t.Parallel()

	html := []byte(`<html><body>
		<a href="#section">Anchor</a>
		<a href="javascript:void(0)">JS</a>
		<a href="mailto:team@example.com">Mail</a>
		<a href="tel:+15551234">Call</a>
		<a href="">Empty</a>
		<a href="/real">Real</a>
	</body></html>`)

	links := Links("https://example.com/", html)
	require.Equal(t, []string{"https://example.com/real"}, links)
}

func TestLinksDeduplicatesInDocumentOrder(t *testing.T) {
	t.Parallel()

	html := []byte(`<html><body>
		<a href="/a">first</a>
		<a href="/b">second</a>
		<a href="/a">again</a>
	</body></html>`)

	links := Links("https://example.com/", html)
	require.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, links)
}

func TestLinksKeepsFragmentVariantsForFrontierToCollapse(t *testing.T) {
	t.Parallel()

	// The extractor passes fragment variants through; normalization in the
	// frontier collapses them to one entry.
	html := []byte(`<a href="/a">x</a><a href="/a#section">y</a>`)

	links := Links("https://example.com/", html)
	require.Len(t, links, 2)
}

func TestLinksInvalidBaseURL(t *testing.T) {
	t.Parallel()

	require.Nil(t, Links("http://%zz", []byte(`<a href="/a">x</a>`)))
}

func TestLinksEmptyDocument(t *testing.T) {
	t.Parallel()

	require.Empty(t, Links("https://example.com/", nil))
}
