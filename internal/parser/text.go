package parser

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/dgallion1/manualrag/internal/document"
)

// TextParser handles plain text files. Each blank-line separated paragraph
// becomes a NarrativeText element.
type TextParser struct{}

func (p *TextParser) Parse(ctx context.Context, r io.Reader, filename string, opts Options) ([]document.Element, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var elems []document.Element
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			elems = append(elems, document.Element{
				Category: document.CategoryNarrativeText,
				Text:     current.String(),
			})
			current.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return elems, nil
}
