package parser

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/manualrag/internal/document"
)

func TestMarkdownParser_ElementStream(t *testing.T) {
	input := "# 1. Overview\n\nIntro text.\n\n- first item\n- second item\n\n" +
		"| Flow | Rate |\n|------|------|\n| A    | 5    |\n\n" +
		"![pump diagram](img/pump.png)\n\n" +
		"## 1.1 Specs\n\n```\nGET /status\n```\n"

	p := &MarkdownParser{}
	elems, err := p.Parse(context.Background(), strings.NewReader(input), "manual.md", Options{BaseDir: "/manuals"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []struct {
		cat  document.Category
		text string
	}{
		{document.CategoryTitle, "1. Overview"},
		{document.CategoryNarrativeText, "Intro text."},
		{document.CategoryUncategorizedText, "first item"},
		{document.CategoryUncategorizedText, "second item"},
		{document.CategoryTable, ""},
		{document.CategoryImage, "pump diagram"},
		{document.CategoryTitle, "1.1 Specs"},
		{document.CategoryNarrativeText, "GET /status"},
	}
	if len(elems) != len(want) {
		t.Fatalf("expected %d elements, got %d: %+v", len(want), len(elems), elems)
	}
	for i, w := range want {
		if elems[i].Category != w.cat {
			t.Errorf("element %d: expected %v, got %v", i, w.cat, elems[i].Category)
		}
		if w.text != "" && elems[i].Text != w.text {
			t.Errorf("element %d: expected text %q, got %q", i, w.text, elems[i].Text)
		}
	}

	tbl := elems[4]
	if !strings.Contains(tbl.TableHTML, "<table>") || !strings.Contains(tbl.TableHTML, "Flow") {
		t.Errorf("expected rendered table HTML, got %q", tbl.TableHTML)
	}
	if img := elems[5]; img.ImagePath != filepath.Join("/manuals", "img/pump.png") {
		t.Errorf("expected image path resolved against base dir, got %q", img.ImagePath)
	}
}

func TestMarkdownParser_RemoteImagesIgnored(t *testing.T) {
	p := &MarkdownParser{}
	elems, err := p.Parse(context.Background(), strings.NewReader("![logo](https://example.com/logo.png)"), "a.md", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, el := range elems {
		if el.Category == document.CategoryImage {
			t.Errorf("remote image should be ignored: %+v", el)
		}
	}
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	input := "Just some plain text.\n\nAnother paragraph here."

	p := &MarkdownParser{}
	elems, err := p.Parse(context.Background(), strings.NewReader(input), "plain.md", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(elems) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(elems))
	}
	for _, el := range elems {
		if el.Category != document.CategoryNarrativeText {
			t.Errorf("expected NarrativeText, got %v", el.Category)
		}
		if el.HasPage() {
			t.Errorf("markdown has no pages, got %d", el.Page)
		}
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	elems, err := p.Parse(context.Background(), strings.NewReader(""), "empty.md", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(elems) != 0 {
		t.Errorf("expected 0 elements for empty input, got %d", len(elems))
	}
}
