package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/manualrag/internal/document"
	pdflib "github.com/ledongthuc/pdf"
)

const (
	// headingScale is how much larger than the page's body text a row must
	// be to be reported as a Title.
	headingScale = 1.15
	// pitchSlack is how far past the usual line pitch a gap may grow before
	// it breaks the paragraph.
	pitchSlack = 1.25
	// shortLine is the fraction of the page's widest body row below which a
	// row ends its paragraph.
	shortLine = 0.6
)

// PDFParser groups text rows into paragraphs. Rows set noticeably larger
// than the page's body text are Titles. Images are not extracted.
//
// With Options.PDFTextFallback set, pages the PDF library cannot read are
// taken from pdftotext instead of being skipped.
type PDFParser struct{}

func (p *PDFParser) Parse(ctx context.Context, r io.Reader, filename string, opts Options) ([]document.Element, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmpPath, _, err := writeTemp(r, "manualrag-pdf-*.pdf")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpPath)

	log := opts.logger().With("filename", filename)

	f, reader, err := pdflib.Open(tmpPath)
	if err != nil {
		if !opts.PDFTextFallback {
			return nil, fmt.Errorf("open pdf: %w", err)
		}
		log.Warn("pdf unreadable, using pdftotext", "error", err)
		text, ferr := extractPdftotext(ctx, tmpPath, 0)
		if ferr != nil {
			return nil, fmt.Errorf("open pdf: %w", errors.Join(err, ferr))
		}
		var elems []document.Element
		for i, pageText := range strings.Split(text, "\f") {
			if opts.keepPage(i + 1) {
				elems = append(elems, textElements(pageText, i+1)...)
			}
		}
		return elems, nil
	}
	defer f.Close()

	var elems []document.Element
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !opts.keepPage(i) {
			continue
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := pageRows(page)
		if err != nil {
			if opts.PDFTextFallback {
				text, ferr := extractPdftotext(ctx, tmpPath, i)
				if ferr == nil {
					log.Info("pdf page read with pdftotext", "page", i, "error", err)
					elems = append(elems, textElements(text, i)...)
					continue
				}
				err = errors.Join(err, ferr)
			}
			log.Warn("pdf page skipped", "page", i, "error", err)
			continue
		}
		elems = append(elems, pageElements(rows, i)...)
	}
	return elems, nil
}

// pageRows groups the page's glyphs into rows by baseline, top of the page
// first. Unlike GetTextByRow it keeps each glyph's font size.
func pageRows(page pdflib.Page) (rows pdflib.Rows, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("read page text: %v", r)
		}
	}()

	byPos := make(map[int64]*pdflib.Row)
	for _, t := range page.Content().Text {
		pos := int64(t.Y)
		row, ok := byPos[pos]
		if !ok {
			row = &pdflib.Row{Position: pos}
			byPos[pos] = row
			rows = append(rows, row)
		}
		row.Content = append(row.Content, t)
	}
	for _, row := range rows {
		sort.Stable(row.Content)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Position > rows[j].Position })
	return rows, nil
}

type pdfRow struct {
	text string
	size float64
	y    int64
}

// rowText joins a row's glyphs, inserting a space where the gap between
// neighbours is wider than a fifth of the font size.
func rowText(content pdflib.TextHorizontal) (string, float64) {
	var buf strings.Builder
	var size float64
	for i, t := range content {
		if i > 0 {
			prev := content[i-1]
			if prev.W > 0 && t.X-(prev.X+prev.W) > 0.2*math.Max(t.FontSize, 1) {
				buf.WriteByte(' ')
			}
		}
		buf.WriteString(t.S)
		if t.FontSize > size {
			size = t.FontSize
		}
	}
	return strings.Join(strings.Fields(buf.String()), " "), size
}

// pageElements turns a page's rows into elements. Heading-size rows stand
// alone as Titles. Consecutive body rows of one size merge into a single
// NarrativeText until the size changes, the vertical gap exceeds the page's
// line pitch, or a row falls well short of the full line width.
func pageElements(rows pdflib.Rows, pageNum int) []document.Element {
	var lines []pdfRow
	for _, row := range rows {
		text, size := rowText(row.Content)
		if text == "" {
			continue
		}
		lines = append(lines, pdfRow{text: text, size: size, y: row.Position})
	}

	body := bodyFontSize(lines)
	heading := func(l pdfRow) bool { return body > 0 && l.size >= body*headingScale }
	pitch := linePitch(lines, body)
	var width int
	for _, l := range lines {
		if !heading(l) {
			width = max(width, utf8.RuneCountInString(l.text))
		}
	}

	var elems []document.Element
	var para []string
	flush := func() {
		if len(para) > 0 {
			elems = append(elems, document.Element{
				Category: document.CategoryNarrativeText,
				Text:     strings.Join(para, " "),
				Page:     pageNum,
			})
			para = nil
		}
	}

	for i, l := range lines {
		if heading(l) {
			flush()
			elems = append(elems, document.Element{Category: document.CategoryTitle, Text: l.text, Page: pageNum})
			continue
		}
		if len(para) > 0 {
			prev := lines[i-1]
			gap := float64(prev.y - l.y)
			if math.Abs(prev.size-l.size) >= 0.5 || gap < 0 || gap > pitch*pitchSlack {
				flush()
			}
		}
		para = append(para, l.text)
		if float64(utf8.RuneCountInString(l.text)) < float64(width)*shortLine {
			flush()
		}
	}
	flush()
	return elems
}

// linePitch is the median baseline gap between consecutive body-size rows.
// Pages with a single body row fall back to 1.2x the font size.
func linePitch(lines []pdfRow, body float64) float64 {
	var gaps []float64
	for i := 1; i < len(lines); i++ {
		prev, cur := lines[i-1], lines[i]
		if math.Abs(prev.size-body) >= 0.5 || math.Abs(cur.size-body) >= 0.5 {
			continue
		}
		if g := float64(prev.y - cur.y); g > 0 {
			gaps = append(gaps, g)
		}
	}
	if len(gaps) == 0 {
		return math.Max(body, 1) * 1.2
	}
	sort.Float64s(gaps)
	return gaps[len(gaps)/2]
}

// bodyFontSize is the size carrying the most characters on the page.
func bodyFontSize(lines []pdfRow) float64 {
	weight := make(map[float64]int)
	for _, l := range lines {
		weight[l.size] += len(l.text)
	}
	sizes := make([]float64, 0, len(weight))
	for s := range weight {
		sizes = append(sizes, s)
	}
	sort.Float64s(sizes)

	var best float64
	bestWeight := -1
	for _, s := range sizes {
		if weight[s] > bestWeight {
			best, bestWeight = s, weight[s]
		}
	}
	return best
}

// extractPdftotext runs pdftotext in layout mode. page 0 extracts the whole
// document with pages separated by form feeds.
func extractPdftotext(ctx context.Context, path string, page int) (string, error) {
	args := []string{"-layout"}
	if page > 0 {
		n := strconv.Itoa(page)
		args = append(args, "-f", n, "-l", n)
	}
	args = append(args, path, "-")
	out, err := exec.CommandContext(ctx, "pdftotext", args...).Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

// textElements splits extracted page text into paragraphs on blank lines.
func textElements(text string, pageNum int) []document.Element {
	var elems []document.Element
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para := strings.Join(strings.Fields(block), " ")
		if para == "" {
			continue
		}
		elems = append(elems, document.Element{Category: document.CategoryNarrativeText, Text: para, Page: pageNum})
	}
	return elems
}
