package chunker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgallion1/manualrag/internal/document"
	"github.com/dgallion1/manualrag/internal/llm"
)

// Block markers written into section bodies.
const (
	TableStart = "--- TABLE START ---"
	TableEnd   = "--- TABLE END ---"
	ImageStart = "--- IMAGE DESCRIPTION START ---"
	ImageEnd   = "--- END ---"
)

// Config controls chunking behavior.
type Config struct {
	TitleMaxLen  int    // Headings must be shorter than this many characters.
	TitlePattern string // Heading regex; empty selects DefaultTitlePattern.
	Concurrency  int    // Parallel summaries within one section; <= 1 is sequential.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TitleMaxLen: DefaultTitleMaxLen,
		Concurrency: 1,
	}
}

// Stats describes one chunking pass.
type Stats struct {
	Elements         int `json:"elements"`
	Sections         int `json:"sections"`
	Discarded        int `json:"discarded"`
	TablesSummarized int `json:"tables_summarized"`
	ImagesSummarized int `json:"images_summarized"`
	DuplicateImages  int `json:"duplicate_images"`
	SummaryFailures  int `json:"summary_failures"`
	EstimatedTokens  int `json:"estimated_tokens"`
}

// Chunker groups an element stream into sections.
type Chunker struct {
	cfg         Config
	titles      *TitleDetector
	summarizer  llm.Summarizer
	fingerprint Fingerprinter
	log         *slog.Logger
}

// New creates a Chunker. The summarizer is used for tables and images.
func New(cfg Config, summarizer llm.Summarizer, log *slog.Logger) (*Chunker, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	titles, err := NewTitleDetector(cfg.TitlePattern, cfg.TitleMaxLen)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Chunker{
		cfg:         cfg,
		titles:      titles,
		summarizer:  summarizer,
		fingerprint: FileFingerprint,
		log:         log,
	}, nil
}

// SetFingerprinter replaces the image hasher.
func (c *Chunker) SetFingerprinter(f Fingerprinter) {
	c.fingerprint = f
}

// IsTitle exposes the chunker's heading rule.
func (c *Chunker) IsTitle(text string) bool {
	return c.titles.IsTitle(text)
}

// summaryJob is one table or image awaiting its summary.
type summaryJob struct {
	kind    llm.Kind
	content string
	result  string
	err     error
}

// part is one pending body contribution, kept in stream order.
type part struct {
	text string
	job  *summaryJob
	page int
}

// pass holds the state of one chunking run over one document.
type pass struct {
	c       *Chunker
	current *document.Section
	parts   []part
	output  []*document.Section
	seen    fingerprintSet
	stats   Stats
}

// Chunk walks elements in document order and returns the sealed sections.
// Elements before the first heading are discarded. Summary failures are
// recorded as placeholder blocks and never abort the pass; cancellation is
// checked between elements.
func (c *Chunker) Chunk(ctx context.Context, elems []document.Element) ([]*document.Section, Stats, error) {
	p := &pass{c: c, seen: make(fingerprintSet)}

	for _, el := range elems {
		if err := ctx.Err(); err != nil {
			return nil, p.stats, err
		}
		p.stats.Elements++

		if isBlank(el) {
			continue
		}

		if el.Category != document.CategoryTable && el.Category != document.CategoryImage && c.titles.IsTitle(el.Text) {
			if err := p.seal(ctx); err != nil {
				return nil, p.stats, err
			}
			p.current = document.NewSection(el.Text, el.Page)
			if el.Category == document.CategoryNarrativeText {
				p.parts = append(p.parts, part{text: el.Text, page: el.Page})
			}
			continue
		}

		if p.current == nil {
			p.stats.Discarded++
			continue
		}
		p.add(el)
	}

	if err := p.seal(ctx); err != nil {
		return nil, p.stats, err
	}
	p.stats.Sections = len(p.output)
	return p.output, p.stats, nil
}

func isBlank(el document.Element) bool {
	switch el.Category {
	case document.CategoryImage:
		return false
	case document.CategoryTable:
		return el.IsBlank() && strings.TrimSpace(el.TableHTML) == ""
	}
	return el.IsBlank()
}

// add queues the element's contribution to the open section.
func (p *pass) add(el document.Element) {
	switch {
	case el.Category.IsTextLike():
		p.parts = append(p.parts, part{text: el.Text, page: el.Page})

	case el.Category == document.CategoryTable:
		content := el.TableHTML
		if strings.TrimSpace(content) == "" {
			content = el.Text
		}
		p.parts = append(p.parts, part{job: &summaryJob{kind: llm.KindTable, content: content}, page: el.Page})

	case el.Category == document.CategoryImage:
		if el.ImagePath == "" {
			p.c.log.Debug("image without path skipped", "page", el.Page)
			return
		}
		fp, err := p.c.fingerprint(el.ImagePath)
		if err != nil {
			p.c.log.Debug("image unreadable, fingerprinting path", "path", el.ImagePath, "error", err)
			fp = pathFingerprint(el.ImagePath)
		}
		if !p.seen.add(fp) {
			p.stats.DuplicateImages++
			p.c.log.Debug("duplicate image skipped", "path", el.ImagePath, "page", el.Page)
			return
		}
		p.parts = append(p.parts, part{job: &summaryJob{kind: llm.KindImage, content: el.ImagePath}, page: el.Page})

	default:
		// Headers, footers and other layout noise carry no section content.
	}
}

// seal runs pending summaries, flushes queued parts into the open section in
// stream order and moves it to the output.
func (p *pass) seal(ctx context.Context) error {
	if p.current == nil {
		return nil
	}
	p.summarize(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, pt := range p.parts {
		block := pt.text
		if pt.job != nil {
			block = p.render(pt.job)
		}
		if err := p.current.Append(block); err != nil {
			return err
		}
		p.current.AddPage(pt.page)
	}

	p.current.Seal()
	p.stats.EstimatedTokens += EstimateTokens(p.current.Body())
	p.output = append(p.output, p.current)
	p.current = nil
	p.parts = p.parts[:0]
	return nil
}

// summarize resolves every queued job, at most Concurrency at a time.
func (p *pass) summarize(ctx context.Context) {
	var jobs []*summaryJob
	for _, pt := range p.parts {
		if pt.job != nil {
			jobs = append(jobs, pt.job)
		}
	}
	if len(jobs) == 0 {
		return
	}

	if p.c.cfg.Concurrency <= 1 {
		for _, j := range jobs {
			if ctx.Err() != nil {
				return
			}
			j.result, j.err = p.c.summarizer.Summarize(ctx, j.kind, j.content)
		}
		return
	}

	sem := make(chan struct{}, p.c.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j *summaryJob) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				j.err = ctx.Err()
				return
			}
			j.result, j.err = p.c.summarizer.Summarize(ctx, j.kind, j.content)
		}(j)
	}
	wg.Wait()
}

// render wraps a summary, or its failure placeholder, in the block markers.
func (p *pass) render(j *summaryJob) string {
	text := strings.TrimSpace(j.result)
	if j.err != nil {
		p.stats.SummaryFailures++
		p.c.log.Warn("summary failed", "kind", j.kind, "error", j.err)
		text = fmt.Sprintf("[summary unavailable: %v]", j.err)
	} else if j.kind == llm.KindTable {
		p.stats.TablesSummarized++
	} else {
		p.stats.ImagesSummarized++
	}

	if j.kind == llm.KindTable {
		return TableStart + "\n" + text + "\n" + TableEnd
	}
	return ImageStart + "\n" + text + "\n" + ImageEnd
}
