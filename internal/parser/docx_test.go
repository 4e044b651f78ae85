package parser

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dgallion1/manualrag/internal/document"
	"github.com/fumiama/go-docx"
)

func buildDOCX(t *testing.T) []byte {
	t.Helper()
	doc := docx.New().WithDefaultTheme()
	doc.AddParagraph().Style("Heading1").AddText("1 Overview")
	doc.AddParagraph().AddText("The pump delivers fluid at a set rate.")
	doc.AddParagraph().Style("ListBullet").AddText("Check the line")
	doc.AddParagraph().Style("Heading 2").AddText("1.1 Modes")

	tbl := doc.AddTable(2, 2, 0, nil)
	cells := [][]string{{"Mode", "Rate"}, {"Bolus", "5 <ml>"}}
	for i, row := range tbl.TableRows {
		for j, cell := range row.TableCells {
			cell.AddParagraph().AddText(cells[i][j])
		}
	}
	doc.AddParagraph()

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		t.Fatalf("write docx: %v", err)
	}
	return buf.Bytes()
}

func TestDOCXParser_StyleMapping(t *testing.T) {
	data := buildDOCX(t)

	elems, err := (&DOCXParser{}).Parse(context.Background(), bytes.NewReader(data), "pump.docx", Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []struct {
		cat  document.Category
		text string
	}{
		{document.CategoryTitle, "1 Overview"},
		{document.CategoryNarrativeText, "The pump delivers fluid at a set rate."},
		{document.CategoryUncategorizedText, "Check the line"},
		{document.CategoryTitle, "1.1 Modes"},
		{document.CategoryTable, "Mode Rate Bolus 5 <ml>"},
	}
	if len(elems) != len(want) {
		t.Fatalf("expected %d elements, got %d: %+v", len(want), len(elems), elems)
	}
	for i, w := range want {
		if elems[i].Category != w.cat || elems[i].Text != w.text {
			t.Errorf("element %d: expected %v %q, got %v %q", i, w.cat, w.text, elems[i].Category, elems[i].Text)
		}
	}
	table := elems[4].TableHTML
	if !strings.HasPrefix(table, "<table><tr><td>Mode</td>") || !strings.Contains(table, "5 &lt;ml&gt;") {
		t.Errorf("unexpected table HTML %q", table)
	}
}

func TestDOCXParser_Malformed(t *testing.T) {
	_, err := (&DOCXParser{}).Parse(context.Background(), strings.NewReader("not a zip"), "bad.docx", Options{})
	if err == nil {
		t.Fatal("expected error for malformed docx")
	}
}

func TestDOCXHeadingLevel(t *testing.T) {
	tests := []struct {
		style string
		want  int
	}{
		{"Heading1", 1},
		{"heading 3", 3},
		{"Title", 1},
		{"Heading7", 0},
		{"BodyText", 0},
		{"", 0},
	}
	for _, tt := range tests {
		p := &docx.Paragraph{}
		if tt.style != "" {
			p.Style(tt.style)
		}
		if got := docxHeadingLevel(p); got != tt.want {
			t.Errorf("docxHeadingLevel(%q) = %d, want %d", tt.style, got, tt.want)
		}
	}
}
