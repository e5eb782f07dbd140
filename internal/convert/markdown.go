// Package convert turns fetched HTML into the Markdown documents the page
// store persists and the assembler merges.
package convert

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/sitedown/sitedown/internal/crawler"
)

const (
	// minHTMLBytes is the smallest HTML body worth converting; anything
	// shorter is almost certainly a blocked or broken fetch.
	minHTMLBytes = 50
	// minMarkdownChars guards against conversions that technically succeed
	// but yield nothing usable.
	minMarkdownChars = 10
)

// Conversion failure modes. Both mark the page Failed without retry.
var (
	ErrContentTooShort = errors.New("html content too short to convert")
	ErrEmptyDocument   = errors.New("conversion produced an empty document")
)

// Markdown is the default Converter strategy: a goquery-driven walk of the
// DOM emitting GitHub-flavored Markdown. The strategy is pluggable via the
// crawler.Converter interface.
type Markdown struct{}

// NewMarkdown returns the goquery-based converter.
func NewMarkdown() *Markdown {
	return &Markdown{}
}

// Convert renders htmlBody into a Markdown document titled from the page's
// <title> (falling back to the URL). Engine-level parse failures degrade to
// a placeholder document; near-empty input or output is an error.
func (c *Markdown) Convert(pageURL string, htmlBody []byte) (crawler.Document, error) {
	trimmed := bytes.TrimSpace(htmlBody)
	if len(trimmed) < minHTMLBytes {
		return crawler.Document{}, fmt.Errorf("%w: %d bytes", ErrContentTooShort, len(trimmed))
	}

	title := pageURL
	var body string

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(trimmed))
	if err != nil {
		body = placeholderBody(pageURL)
	} else {
		if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
			title = t
		}
		doc.Find("script, style, noscript, iframe, svg, template").Remove()
		root := doc.Find("body")
		if root.Length() == 0 {
			root = doc.Selection
		}
		var sb strings.Builder
		for _, node := range root.Nodes {
			renderBlocks(node, &sb)
		}
		body = tidy(sb.String())
	}

	if body == "" {
		body = placeholderBody(pageURL)
	}
	if len(strings.TrimSpace(body)) < minMarkdownChars {
		return crawler.Document{}, ErrEmptyDocument
	}

	markdown := fmt.Sprintf("# %s\n\n**Source URL:** %s\n\n---\n\n%s\n", title, pageURL, body)
	return crawler.Document{Title: title, Markdown: markdown}, nil
}

func placeholderBody(pageURL string) string {
	return fmt.Sprintf("*Content of %s could not be converted.*", pageURL)
}

func renderBlocks(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		if text := collapseSpace(n.Data); text != "" {
			writeBlock(sb, text)
		}
		return
	}
	if n.Type != html.ElementNode && n.Type != html.DocumentNode {
		return
	}

	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(n.Data[1] - '0')
		if text := inlineText(n); text != "" {
			writeBlock(sb, strings.Repeat("#", level)+" "+text)
		}
	case "p":
		if text := inlineText(n); text != "" {
			writeBlock(sb, text)
		}
	case "ul", "ol":
		if list := renderList(n, 0); list != "" {
			writeBlock(sb, list)
		}
	case "pre":
		if text := rawText(n); strings.TrimSpace(text) != "" {
			writeBlock(sb, "```\n"+strings.Trim(text, "\n")+"\n```")
		}
	case "blockquote":
		if text := inlineText(n); text != "" {
			writeBlock(sb, "> "+strings.ReplaceAll(text, "\n", "\n> "))
		}
	case "hr":
		writeBlock(sb, "---")
	case "table":
		if table := renderTable(n); table != "" {
			writeBlock(sb, table)
		}
	default:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			renderBlocks(child, sb)
		}
	}
}

func renderList(n *html.Node, depth int) string {
	ordered := n.Data == "ol"
	indent := strings.Repeat("  ", depth)
	var sb strings.Builder
	index := 0
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode || child.Data != "li" {
			continue
		}
		index++
		marker := "- "
		if ordered {
			marker = fmt.Sprintf("%d. ", index)
		}
		if text := inlineText(child); text != "" {
			sb.WriteString(indent + marker + text + "\n")
		}
		for nested := child.FirstChild; nested != nil; nested = nested.NextSibling {
			if nested.Type == html.ElementNode && (nested.Data == "ul" || nested.Data == "ol") {
				sb.WriteString(renderList(nested, depth+1))
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderTable(n *html.Node) string {
	var rows []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "tr" {
			var cells []string
			for cell := node.FirstChild; cell != nil; cell = cell.NextSibling {
				if cell.Type == html.ElementNode && (cell.Data == "td" || cell.Data == "th") {
					cells = append(cells, inlineText(cell))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, "| "+strings.Join(cells, " | ")+" |")
				if len(rows) == 1 {
					sep := make([]string, len(cells))
					for i := range sep {
						sep[i] = "---"
					}
					rows = append(rows, "| "+strings.Join(sep, " | ")+" |")
				}
			}
			return
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(rows, "\n")
}

// inlineText renders the inline content of a node: links, images, emphasis,
// and inline code keep their Markdown form, everything else collapses to
// whitespace-normalized text.
func inlineText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			sb.WriteString(collapseSpace(node.Data))
			return
		case html.ElementNode:
			switch node.Data {
			case "a":
				text := childText(node)
				if href := attr(node, "href"); href != "" && text != "" {
					sb.WriteString("[" + text + "](" + href + ")")
					return
				}
			case "img":
				if src := attr(node, "src"); src != "" {
					sb.WriteString("![" + attr(node, "alt") + "](" + src + ")")
				}
				return
			case "strong", "b":
				if text := childText(node); text != "" {
					sb.WriteString("**" + text + "**")
				}
				return
			case "em", "i":
				if text := childText(node); text != "" {
					sb.WriteString("*" + text + "*")
				}
				return
			case "code":
				if text := childText(node); text != "" {
					sb.WriteString("`" + text + "`")
				}
				return
			case "br":
				sb.WriteString("\n")
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walk(child)
	}
	return strings.TrimSpace(sb.String())
}

func childText(n *html.Node) string {
	return strings.TrimSpace(collapseSpace(rawText(n)))
}

func rawText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}

// collapseSpace folds runs of whitespace into single spaces, preserving a
// leading/trailing space so adjacent inline fragments stay separated.
func collapseSpace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	out := strings.Join(fields, " ")
	if s[0] == ' ' || s[0] == '\n' || s[0] == '\t' {
		out = " " + out
	}
	last := s[len(s)-1]
	if last == ' ' || last == '\n' || last == '\t' {
		out += " "
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func writeBlock(sb *strings.Builder, block string) {
	sb.WriteString(block)
	sb.WriteString("\n\n")
}

// tidy trims the output and collapses runs of blank lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := true
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
