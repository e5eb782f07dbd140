// Package assemble builds the merged site document from the pages a crawl
// accepted.
package assemble

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"github.com/sitedown/sitedown/internal/crawler"
)

// Merger renders a crawl result into a single Markdown document: a header
// table, a table of contents, and one section per page. The home page leads;
// the rest follow in title order so the document is stable across runs.
type Merger struct{}

// NewMerger returns a Merger.
func NewMerger() *Merger {
	return &Merger{}
}

// WriteMerged writes the merged document for result to w.
func (m *Merger) WriteMerged(w io.Writer, result crawler.CrawlResult, generatedAt time.Time) error {
	pages := orderPages(result)

	md := markdown.NewMarkdown(w)
	md.H1("Website Export")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", result.StartURL},
			{"Run ID", "`" + result.RunID + "`"},
			{"Generated", generatedAt.UTC().Format("2006-01-02 15:04:05 MST")},
			{"Pages", strconv.Itoa(len(pages))},
			{"Failed", strconv.Itoa(len(result.Failed))},
		},
	})
	md.PlainText("")

	m.writeTOC(md, pages)
	for _, page := range pages {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainText(strings.TrimRight(page.Content, "\n"))
		md.PlainText("")
	}
	m.writeFailed(md, result.Failed)

	return md.Build()
}

func (m *Merger) writeTOC(md *markdown.Markdown, pages []crawler.Page) {
	if len(pages) == 0 {
		return
	}
	md.H2("Contents")
	md.PlainText("")
	entries := make([]string, len(pages))
	for i, page := range pages {
		entries[i] = fmt.Sprintf("[%s](#%s)", page.Title, anchorFor(page.Title))
	}
	md.BulletList(entries...)
	md.PlainText("")
}

func (m *Merger) writeFailed(md *markdown.Markdown, failed []string) {
	if len(failed) == 0 {
		return
	}
	md.HorizontalRule()
	md.PlainText("")
	md.H2("Failed Pages")
	md.PlainText("")
	md.BulletList(failed...)
	md.PlainText("")
}

// WriteFailedReport writes one failed URL per line, for the plain-text
// companion file next to the merged document.
func WriteFailedReport(w io.Writer, failed []string) error {
	for _, url := range failed {
		if _, err := fmt.Fprintln(w, url); err != nil {
			return fmt.Errorf("write failed report: %w", err)
		}
	}
	return nil
}

// orderPages returns the home page first, then the remaining pages sorted
// by title (ties broken by URL).
func orderPages(result crawler.CrawlResult) []crawler.Page {
	home := crawler.Normalize(result.StartURL)
	pages := make([]crawler.Page, 0, len(result.Pages))
	var homePage *crawler.Page
	for key := range result.Pages {
		page := result.Pages[key]
		if key == home && homePage == nil {
			p := page
			homePage = &p
			continue
		}
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool {
		ti, tj := strings.ToLower(pages[i].Title), strings.ToLower(pages[j].Title)
		if ti != tj {
			return ti < tj
		}
		return pages[i].NormalizedURL < pages[j].NormalizedURL
	})
	if homePage != nil {
		pages = append([]crawler.Page{*homePage}, pages...)
	}
	return pages
}

// anchorFor lowers a title into its GitHub heading anchor.
func anchorFor(title string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-':
			sb.WriteByte('-')
		}
	}
	return sb.String()
}
