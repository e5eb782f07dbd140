package convert

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>  Getting Started  </title>
  <style>body { color: red; }</style>
  <script>console.log("noise");</script>
</head>
<body>
  <h1>Getting Started</h1>
  <p>Install the tool and read the <a href="/docs">documentation</a>.</p>
  <h2>Steps</h2>
  <ol>
    <li>Download the <strong>latest</strong> release</li>
    <li>Run <code>sitedown crawl</code></li>
  </ol>
  <ul>
    <li>Tips
      <ul><li>Use a config file</li></ul>
    </li>
  </ul>
  <pre>
$ sitedown crawl https://example.com
</pre>
  <blockquote>Crawling is polite by default.</blockquote>
  <img src="/logo.png" alt="logo">
</body>
</html>`

func TestConvertSamplePage(t *testing.T) {
	c := NewMarkdown()

	doc, err := c.Convert("https://example.com/start", []byte(samplePage))
	require.NoError(t, err)

	require.Equal(t, "Getting Started", doc.Title)
	require.True(t, strings.HasPrefix(doc.Markdown, "# Getting Started\n\n**Source URL:** https://example.com/start\n\n---\n"))

	require.Contains(t, doc.Markdown, "## Steps")
	require.Contains(t, doc.Markdown, "[documentation](/docs)")
	require.Contains(t, doc.Markdown, "1. Download the **latest** release")
	require.Contains(t, doc.Markdown, "2. Run `sitedown crawl`")
	require.Contains(t, doc.Markdown, "  - Use a config file")
	require.Contains(t, doc.Markdown, "```\n$ sitedown crawl https://example.com\n```")
	require.Contains(t, doc.Markdown, "> Crawling is polite by default.")
	require.Contains(t, doc.Markdown, "![logo](/logo.png)")

	require.NotContains(t, doc.Markdown, "console.log")
	require.NotContains(t, doc.Markdown, "color: red")
}

func TestConvertTitleFallsBackToURL(t *testing.T) {
	c := NewMarkdown()
	html := `<html><body><p>A page without a title element, long enough to convert.</p></body></html>`

	doc, err := c.Convert("https://example.com/untitled", []byte(html))
	require.NoError(t, err)
	require.Equal(t, "https://example.com/untitled", doc.Title)
}

func TestConvertContentTooShort(t *testing.T) {
	c := NewMarkdown()

	_, err := c.Convert("https://example.com/", []byte("<html></html>"))
	require.ErrorIs(t, err, ErrContentTooShort)
}

func TestConvertEmptyDocument(t *testing.T) {
	c := NewMarkdown()
	// Large enough to pass the input threshold, but nothing renders.
	html := `<html><head><script>var x = 1; var y = 2; var z = 3;</script></head><body></body></html>`

	doc, err := c.Convert("https://example.com/empty", []byte(html))
	require.NoError(t, err)
	require.Contains(t, doc.Markdown, "could not be converted")
}

func TestConvertNearEmptyOutput(t *testing.T) {
	c := NewMarkdown()
	// Passes the input threshold but renders to fewer than ten characters.
	html := `<html><head><title>Stub</title></head><body><p>Hi</p></body></html>`

	_, err := c.Convert("https://example.com/stub", []byte(html))
	require.ErrorIs(t, err, ErrEmptyDocument)
}

func TestConvertTable(t *testing.T) {
	c := NewMarkdown()
	html := `<html><body><table>
	<tr><th>Flag</th><th>Meaning</th></tr>
	<tr><td>--depth</td><td>Maximum crawl depth</td></tr>
	</table></body></html>`

	doc, err := c.Convert("https://example.com/flags", []byte(html))
	require.NoError(t, err)
	require.Contains(t, doc.Markdown, "| Flag | Meaning |")
	require.Contains(t, doc.Markdown, "| --- | --- |")
	require.Contains(t, doc.Markdown, "| --depth | Maximum crawl depth |")
}

func TestConvertIdempotentOnWhitespace(t *testing.T) {
	c := NewMarkdown()
	html := `<html><body><p>Same     content   with
	irregular whitespace inside the paragraph.</p></body></html>`

	a, err := c.Convert("https://example.com/a", []byte(html))
	require.NoError(t, err)
	require.Contains(t, a.Markdown, "Same content with irregular whitespace inside the paragraph.")
}
