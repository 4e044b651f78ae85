package parser

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/dgallion1/manualrag/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. GFM tables are
// rendered back to HTML for the table summarizer.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(ctx context.Context, r io.Reader, filename string, opts Options) ([]document.Element, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	var elems []document.Element
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if t := inlineText(node, src); t != "" {
				elems = append(elems, document.Element{Category: document.CategoryTitle, Text: t})
			}

		case *east.Table:
			var buf bytes.Buffer
			if err := md.Renderer().Render(&buf, src, node); err != nil {
				continue
			}
			elems = append(elems, document.Element{
				Category:  document.CategoryTable,
				Text:      inlineText(node, src),
				TableHTML: strings.TrimSpace(buf.String()),
			})

		case *ast.List:
			for li := node.FirstChild(); li != nil; li = li.NextSibling() {
				if t := inlineText(li, src); t != "" {
					elems = append(elems, document.Element{Category: document.CategoryUncategorizedText, Text: t})
				}
				elems = append(elems, images(li, src, opts)...)
			}

		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if t := strings.TrimSpace(string(blockLines(node, src))); t != "" {
				elems = append(elems, document.Element{Category: document.CategoryNarrativeText, Text: t})
			}

		case *ast.ThematicBreak, *ast.HTMLBlock:
			// Layout only.

		default:
			if t := inlineText(node, src); t != "" {
				elems = append(elems, document.Element{Category: document.CategoryNarrativeText, Text: t})
			}
			elems = append(elems, images(node, src, opts)...)
		}
	}
	return elems, nil
}

// inlineText collects the text of every inline under n. Block boundaries
// inside n become newlines.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if c != n && c.Type() == ast.TypeBlock {
				buf.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		case *east.TableCell:
			buf.WriteByte(' ')
		case *ast.Image:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	lines := strings.Split(buf.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = collapseSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func blockLines(n ast.Node, src []byte) []byte {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return buf.Bytes()
}

// images returns an Image element for every image under n.
func images(n ast.Node, src []byte, opts Options) []document.Element {
	var out []document.Element
	ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if img, ok := c.(*ast.Image); ok {
			dest := string(img.Destination)
			if dest != "" && !strings.HasPrefix(dest, "http://") && !strings.HasPrefix(dest, "https://") && !strings.HasPrefix(dest, "data:") {
				alt := collapseSpace(string(img.Title))
				var altBuf bytes.Buffer
				for ch := img.FirstChild(); ch != nil; ch = ch.NextSibling() {
					if t, ok := ch.(*ast.Text); ok {
						altBuf.Write(t.Value(src))
					}
				}
				if a := collapseSpace(altBuf.String()); a != "" {
					alt = a
				}
				out = append(out, document.Element{
					Category:  document.CategoryImage,
					Text:      alt,
					ImagePath: opts.resolve(dest),
				})
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return out
}
