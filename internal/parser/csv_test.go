package parser

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dgallion1/manualrag/internal/document"
)

func TestCSVParser_BatchesRowsIntoTables(t *testing.T) {
	var b strings.Builder
	b.WriteString("code,meaning\n")
	for i := 1; i <= 45; i++ {
		fmt.Fprintf(&b, "E%02d,error %d\n", i, i)
	}

	p := &CSVParser{}
	elems, err := p.Parse(context.Background(), strings.NewReader(b.String()), "codes.csv", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(elems) != 3 {
		t.Fatalf("expected 3 table batches, got %d", len(elems))
	}
	for _, el := range elems {
		if el.Category != document.CategoryTable {
			t.Errorf("expected Table, got %v", el.Category)
		}
		if !strings.Contains(el.TableHTML, "<th>code</th>") {
			t.Errorf("each batch must repeat headers: %q", el.TableHTML)
		}
	}
	if !strings.Contains(elems[2].TableHTML, "<td>E45</td>") {
		t.Errorf("last batch missing final row")
	}
	if !strings.HasPrefix(elems[1].Text, "Rows 22-41") {
		t.Errorf("unexpected batch label %q", elems[1].Text)
	}
}

func TestCSVParser_EscapesCells(t *testing.T) {
	p := &CSVParser{}
	elems, err := p.Parse(context.Background(), strings.NewReader("a\n<b>\n"), "x.csv", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(elems[0].TableHTML, "<td>&lt;b&gt;</td>") {
		t.Errorf("expected escaped cell, got %q", elems[0].TableHTML)
	}
}
