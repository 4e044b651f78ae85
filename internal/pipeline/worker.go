package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/manualrag/internal/chunker"
	"github.com/dgallion1/manualrag/internal/document"
	"github.com/dgallion1/manualrag/internal/embed"
	"github.com/dgallion1/manualrag/internal/llm"
	"github.com/dgallion1/manualrag/internal/parser"
	"github.com/dgallion1/manualrag/internal/vectorindex"
)

// ErrNoSections is returned when a manual yields no headed sections.
var ErrNoSections = errors.New("no sections detected")

// Store persists the sections of one manual.
type Store interface {
	ReplaceDocument(ctx context.Context, m vectorindex.Manual, records []vectorindex.Record) error
}

// Worker processes a single manual job.
type Worker struct {
	chunker   *chunker.Chunker
	embedder  embed.Embedder
	store     Store
	opts      parser.Options
	batchSize int
	policy    llm.Policy
	log       *slog.Logger
}

func NewWorker(c *chunker.Chunker, e embed.Embedder, store Store, opts parser.Options, batchSize int, policy llm.Policy, log *slog.Logger) *Worker {
	return &Worker{
		chunker:   c,
		embedder:  e,
		store:     store,
		opts:      opts,
		batchSize: batchSize,
		policy:    policy,
		log:       log,
	}
}

// Process runs the full ingest pipeline on the job's uploaded bytes. The
// job's status reflects the outcome; the returned error is the cause of a
// failure.
func (w *Worker) Process(ctx context.Context, job *Job) error {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)
	job.SetStatus(StatusParsing, "parsing")
	elems, err := parser.Parse(ctx, bytes.NewReader(job.FileData()), job.Filename, w.opts)
	if err != nil {
		return w.fail(log, job, "parsing", err)
	}
	return w.ingest(ctx, log, job, elems)
}

// ProcessFile is Process for a manual on disk. Relative image paths in the
// manual resolve against its directory.
func (w *Worker) ProcessFile(ctx context.Context, job *Job, path string) error {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)
	job.SetStatus(StatusParsing, "parsing")
	elems, err := parser.ParseFile(ctx, path, w.opts)
	if err != nil {
		return w.fail(log, job, "parsing", err)
	}
	return w.ingest(ctx, log, job, elems)
}

func (w *Worker) ingest(ctx context.Context, log *slog.Logger, job *Job, elems []document.Element) error {
	start := time.Now()
	job.SetElements(len(elems))
	log.Info("parsed manual", "elements", len(elems))

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	sections, st, err := w.chunker.Chunk(ctx, elems)
	if err != nil {
		return w.fail(log, job, "chunking", err)
	}
	job.SetChunkStats(st)
	log.Info("chunked manual",
		"sections", st.Sections,
		"discarded", st.Discarded,
		"tables", st.TablesSummarized,
		"images", st.ImagesSummarized,
		"duplicate_images", st.DuplicateImages,
		"summary_failures", st.SummaryFailures,
		"estimated_tokens", st.EstimatedTokens,
	)
	if len(sections) == 0 {
		return w.fail(log, job, "chunking", ErrNoSections)
	}

	// Phase 3: Embed
	job.SetStatus(StatusEmbedding, "embedding")
	texts := make([]string, len(sections))
	for i, s := range sections {
		texts[i] = s.Body()
	}
	vecs, err := embed.Batched(ctx, w.embedder, texts, w.batchSize, w.policy, log)
	if err != nil {
		return w.fail(log, job, "embedding", err)
	}
	job.AddEmbedded(len(vecs))

	// Phase 4: Store
	job.SetStatus(StatusStoring, "storing")
	records := Records(job.DocID, sections, vecs)
	manual := vectorindex.Manual{
		DocID:      job.DocID,
		Filename:   job.Filename,
		Sections:   len(records),
		IngestedAt: time.Now().UTC(),
	}
	if err := w.store.ReplaceDocument(ctx, manual, records); err != nil {
		return w.fail(log, job, "storing", err)
	}
	job.SetStored(len(records))

	if st.SummaryFailures > 0 {
		job.AddError(fmt.Sprintf("%d summaries unavailable", st.SummaryFailures))
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("ingest complete", "stored", len(records), "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func (w *Worker) fail(log *slog.Logger, job *Job, phase string, err error) error {
	log.Error("ingest failed", "phase", phase, "error", err)
	job.AddError(fmt.Sprintf("%s: %s", phase, err))
	job.SetStatus(StatusFailed, phase)
	return err
}

// Records pairs sealed sections with their vectors in document order.
func Records(docID string, sections []*document.Section, vecs [][]float32) []vectorindex.Record {
	out := make([]vectorindex.Record, len(sections))
	for i, s := range sections {
		out[i] = vectorindex.Record{
			ID:        SectionID(docID, i),
			DocID:     docID,
			Title:     s.Title,
			Pages:     s.PagesString(),
			Text:      s.Body(),
			Position:  i,
			Embedding: vecs[i],
		}
	}
	return out
}
