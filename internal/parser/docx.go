package parser

import (
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/manualrag/internal/document"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Heading-styled paragraphs are Titles and
// tables are rendered to HTML.
type DOCXParser struct{}

func (p *DOCXParser) Parse(ctx context.Context, r io.Reader, filename string, opts Options) ([]document.Element, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmpPath, size, err := writeTemp(r, "manualrag-docx-*.docx")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpPath)

	f, err := os.Open(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}
	doc, err := docx.Parse(f, size)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var elems []document.Element
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			text := docxParagraphText(it)
			if text == "" {
				continue
			}
			cat := document.CategoryNarrativeText
			if docxHeadingLevel(it) > 0 {
				cat = document.CategoryTitle
			} else if docxIsListItem(it) {
				cat = document.CategoryUncategorizedText
			}
			elems = append(elems, document.Element{Category: cat, Text: text})

		case *docx.Table:
			tableHTML, plain := docxTable(it)
			if plain == "" {
				continue
			}
			elems = append(elems, document.Element{
				Category:  document.CategoryTable,
				Text:      plain,
				TableHTML: tableHTML,
			})
		}
	}
	return elems, nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if style == "title" {
		return 1
	}
	if rest, ok := strings.CutPrefix(style, "heading"); ok && len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
		return int(rest[0] - '0')
	}
	return 0
}

func docxIsListItem(para *docx.Paragraph) bool {
	if para.Properties == nil || para.Properties.Style == nil {
		return false
	}
	return strings.HasPrefix(strings.ToLower(para.Properties.Style.Val), "list")
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

// docxTable renders a table as HTML and as space-joined plain text.
func docxTable(tbl *docx.Table) (string, string) {
	var h, plain strings.Builder
	h.WriteString("<table>")
	for _, row := range tbl.TableRows {
		h.WriteString("<tr>")
		for _, cell := range row.TableCells {
			var parts []string
			for _, para := range cell.Paragraphs {
				if t := docxParagraphText(para); t != "" {
					parts = append(parts, t)
				}
			}
			text := strings.Join(parts, " ")
			h.WriteString("<td>" + html.EscapeString(text) + "</td>")
			if text != "" {
				if plain.Len() > 0 {
					plain.WriteString(" ")
				}
				plain.WriteString(text)
			}
		}
		h.WriteString("</tr>")
	}
	h.WriteString("</table>")
	return h.String(), plain.String()
}
