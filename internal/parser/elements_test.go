package parser

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/manualrag/internal/document"
)

const sampleElements = `[
  {"type": "Header", "text": "ACME Pump 3000", "metadata": {"page_number": 1}},
  {"type": "Title", "text": "1. Overview", "metadata": {"page_number": 1}},
  {"type": "NarrativeText", "text": "Pump specs.", "metadata": {"page_number": 1}},
  {"type": "Table", "text": "Rate 5", "metadata": {"page_number": 2, "text_as_html": "<table><tr><td>Rate</td></tr></table>"}},
  {"type": "Image", "text": "", "metadata": {"page_number": 2, "image_path": "figures/fig-2-1.jpg"}},
  {"type": "ListItem", "text": "Check seals", "metadata": {"page_number": null}},
  {"type": "Title", "text": "2. Operation", "metadata": {"page_number": 5}}
]`

func TestElementsParser_MapsPartitionerOutput(t *testing.T) {
	p := &ElementsParser{}
	elems, err := p.Parse(context.Background(), strings.NewReader(sampleElements), "manual.json", Options{BaseDir: "/out"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(elems) != 7 {
		t.Fatalf("expected 7 elements, got %d", len(elems))
	}
	if elems[0].Category != document.CategoryOther {
		t.Errorf("unknown type should map to Other, got %v", elems[0].Category)
	}
	if elems[3].TableHTML != "<table><tr><td>Rate</td></tr></table>" || elems[3].Page != 2 {
		t.Errorf("unexpected table element %+v", elems[3])
	}
	if elems[4].ImagePath != filepath.Join("/out", "figures/fig-2-1.jpg") {
		t.Errorf("unexpected image path %q", elems[4].ImagePath)
	}
	if elems[5].Category != document.CategoryUncategorizedText || elems[5].HasPage() {
		t.Errorf("unexpected list item %+v", elems[5])
	}
}

func TestElementsParser_ImageDirWins(t *testing.T) {
	p := &ElementsParser{}
	elems, err := p.Parse(context.Background(), strings.NewReader(sampleElements), "manual.json", Options{BaseDir: "/out", ImageDir: "/images"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elems[4].ImagePath != filepath.Join("/images", "figures/fig-2-1.jpg") {
		t.Errorf("unexpected image path %q", elems[4].ImagePath)
	}
}

func TestElementsParser_PageRange(t *testing.T) {
	p := &ElementsParser{}
	elems, err := p.Parse(context.Background(), strings.NewReader(sampleElements), "manual.json", Options{FirstPage: 2, LastPage: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Pages 2 table and image, plus the element with unknown page.
	if len(elems) != 3 {
		t.Fatalf("expected 3 elements in range, got %d: %+v", len(elems), elems)
	}
}

func TestElementsParser_RejectsInvalidDocument(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not an array", `{"type": "Title"}`},
		{"missing type", `[{"text": "x"}]`},
		{"bad page", `[{"type": "Title", "text": "x", "metadata": {"page_number": 0}}]`},
		{"bad json", `[{`},
	}
	p := &ElementsParser{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Parse(context.Background(), strings.NewReader(tt.input), "x.json", Options{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}
