package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/manualrag/internal/document"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML manuals.
type HTMLParser struct{}

func (p *HTMLParser) Parse(ctx context.Context, r io.Reader, filename string, opts Options) ([]document.Element, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var elems []document.Element
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if headingLevel(n.Data) > 0 {
				if t := textContent(n); t != "" {
					elems = append(elems, document.Element{Category: document.CategoryTitle, Text: t})
				}
				return // Don't recurse into heading children (already extracted text).
			}

			switch n.Data {
			case "script", "style", "nav", "footer", "header":
				return
			case "table":
				var buf bytes.Buffer
				if err := html.Render(&buf, n); err == nil {
					elems = append(elems, document.Element{
						Category:  document.CategoryTable,
						Text:      collapseSpace(textContent(n)),
						TableHTML: buf.String(),
					})
				}
				return
			case "img":
				if src := attr(n, "src"); src != "" && !strings.HasPrefix(src, "data:") {
					elems = append(elems, document.Element{
						Category:  document.CategoryImage,
						Text:      attr(n, "alt"),
						ImagePath: opts.resolve(src),
					})
				}
				return
			case "p", "blockquote":
				if t := textContent(n); t != "" {
					elems = append(elems, document.Element{Category: document.CategoryNarrativeText, Text: t})
				}
				// Images nested in paragraphs still count.
				for _, img := range findAll(n, "img") {
					walk(img)
				}
				return
			case "li":
				if t := textContent(n); t != "" {
					elems = append(elems, document.Element{Category: document.CategoryUncategorizedText, Text: t})
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	// Find <body> or use whole document.
	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	return elems, nil
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th") {
			buf.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
			continue
		}
		out = append(out, findAll(c, tag)...)
	}
	return out
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
