package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/dgallion1/manualrag/internal/document"
)

// csvBatchSize is the number of data rows per Table element.
const csvBatchSize = 20

// CSVParser handles CSV files as tables. The header row is repeated in every
// batch so each table stands alone.
type CSVParser struct{}

func (p *CSVParser) Parse(ctx context.Context, r io.Reader, filename string, opts Options) ([]document.Element, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	headers := records[0]
	dataRows := records[1:]

	var elems []document.Element
	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))
		batch := dataRows[i:end]

		var text strings.Builder
		text.WriteString(fmt.Sprintf("Rows %d-%d: ", i+2, end+1)) // 1-indexed, skip header
		text.WriteString(strings.Join(headers, ", "))

		elems = append(elems, document.Element{
			Category:  document.CategoryTable,
			Text:      text.String(),
			TableHTML: rowsToHTML(headers, batch),
		})
	}
	return elems, nil
}

// rowsToHTML renders a header row and data rows as an HTML table.
func rowsToHTML(headers []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("<table>")
	if len(headers) > 0 {
		b.WriteString("<tr>")
		for _, h := range headers {
			b.WriteString("<th>" + html.EscapeString(h) + "</th>")
		}
		b.WriteString("</tr>")
	}
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			b.WriteString("<td>" + html.EscapeString(cell) + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	return b.String()
}
