// Package app wires the manualrag components from a Config. Every entrypoint
// builds one App and passes it down explicitly.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/manualrag/internal/chunker"
	"github.com/dgallion1/manualrag/internal/config"
	"github.com/dgallion1/manualrag/internal/embed"
	"github.com/dgallion1/manualrag/internal/llm"
	"github.com/dgallion1/manualrag/internal/parser"
	"github.com/dgallion1/manualrag/internal/pipeline"
	"github.com/dgallion1/manualrag/internal/rag"
	"github.com/dgallion1/manualrag/internal/vectorindex"
)

// Mode selects how the section index is opened.
type Mode int

const (
	// ModeQuery requires an existing index.
	ModeQuery Mode = iota
	// ModeIngest creates the index when missing.
	ModeIngest
)

// App holds the process-wide components.
type App struct {
	Config    config.Config
	Log       *slog.Logger
	Policy    llm.Policy
	Claude    *llm.ClaudeClient
	Embedder  embed.Embedder
	Index     *vectorindex.Index
	Chunker   *chunker.Chunker
	Worker    *pipeline.Worker
	Assistant *rag.Assistant
}

// NewLogger builds the process logger. JSON goes to services, text to
// interactive use.
func NewLogger(w io.Writer, level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// PolicyFrom builds the retry policy shared by the LLM and the embedder.
func PolicyFrom(cfg config.Config) llm.Policy {
	p := llm.DefaultPolicy()
	if cfg.LLMMaxRetries >= 0 {
		p.MaxRetries = uint64(cfg.LLMMaxRetries)
	}
	return p
}

// NewEmbedder selects the embedder named by EMBEDDING_PROVIDER.
func NewEmbedder(cfg config.Config) (embed.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "", "hash":
		return embed.NewHashEmbedder(cfg.EmbeddingDimensions), nil
	case "openai":
		return embed.NewOpenAIEmbedder(cfg.EmbeddingURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

// New builds every component. The caller validates cfg for its role first.
func New(cfg config.Config, log *slog.Logger, mode Mode) (*App, error) {
	policy := PolicyFrom(cfg)

	e, err := NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	var idx *vectorindex.Index
	if mode == ModeIngest {
		idx, err = vectorindex.OpenOrCreate(cfg.IndexDir, e.Model())
	} else {
		idx, err = vectorindex.Open(cfg.IndexDir, e.Model())
	}
	if err != nil {
		return nil, err
	}

	claude := llm.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicBaseURL)
	limiter := llm.NewLimiter(cfg.SummaryInterval, cfg.SummaryBurst)
	summarizer := llm.NewThrottledSummarizer(claude, limiter, policy, log.With("component", "summarizer"))
	generator := llm.NewRetryingGenerator(claude, policy, log.With("component", "generator"))

	ch, err := chunker.New(chunker.Config{
		TitleMaxLen:  cfg.TitleMaxLen,
		TitlePattern: cfg.TitlePattern,
		Concurrency:  cfg.SummaryConcurrency,
	}, summarizer, log.With("component", "chunker"))
	if err != nil {
		idx.Close()
		return nil, err
	}

	opts := parser.Options{
		FirstPage: cfg.PageFirst,
		LastPage:  cfg.PageLast,
		ImageDir:  cfg.ImageDir,

		PDFTextFallback: cfg.PDFTextFallback,
		Log:             log.With("component", "parser"),
	}
	worker := pipeline.NewWorker(ch, e, idx, opts, cfg.EmbedBatchSize, policy, log.With("component", "pipeline"))

	retriever := rag.NewRetriever(idx, e, policy, log.With("component", "retriever"))
	assistant := rag.NewAssistant(retriever, rag.NewAnswerGenerator(generator), cfg.RetrievalK, log.With("component", "assistant"))

	return &App{
		Config:    cfg,
		Log:       log,
		Policy:    policy,
		Claude:    claude,
		Embedder:  e,
		Index:     idx,
		Chunker:   ch,
		Worker:    worker,
		Assistant: assistant,
	}, nil
}

// Close releases the index and HTTP clients.
func (a *App) Close() error {
	a.Claude.Close()
	if c, ok := a.Embedder.(interface{ Close() }); ok {
		c.Close()
	}
	return a.Index.Close()
}

// IngestFile runs the pipeline synchronously on one manual. docID may be
// empty to derive it from the content.
func (a *App) IngestFile(ctx context.Context, path, docID string) (*pipeline.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", parser.ErrSourceUnavailable, err)
	}
	job := pipeline.NewJob(filepath.Base(path), data, docID)
	if err := a.Worker.ProcessFile(ctx, job, path); err != nil {
		return job, err
	}
	return job, nil
}

// IsFatal reports whether err is a startup failure that should stop the
// process: an unavailable source or index, or missing configuration.
func IsFatal(err error) bool {
	var missing *config.MissingError
	return errors.Is(err, parser.ErrSourceUnavailable) ||
		errors.Is(err, vectorindex.ErrIndexUnavailable) ||
		errors.Is(err, vectorindex.ErrModelMismatch) ||
		errors.As(err, &missing)
}
