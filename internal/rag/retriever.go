package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/manualrag/internal/embed"
	"github.com/dgallion1/manualrag/internal/llm"
	"github.com/dgallion1/manualrag/internal/vectorindex"
)

// DefaultK is the number of sections retrieved per question.
const DefaultK = 5

// Searcher is the similarity query side of the section index.
type Searcher interface {
	Query(ctx context.Context, vec []float32, k int) ([]vectorindex.Match, error)
}

// Context is the retrieved grounding for one question.
type Context struct {
	Text    string
	Sources []string // rank order, may repeat
	Matches []vectorindex.Match
}

// Empty reports whether nothing was retrieved.
func (c Context) Empty() bool {
	return c.Text == ""
}

// Retriever embeds a question and fetches the nearest sections.
type Retriever struct {
	index    Searcher
	embedder embed.Embedder
	policy   llm.Policy
	log      *slog.Logger
}

func NewRetriever(index Searcher, embedder embed.Embedder, policy llm.Policy, log *slog.Logger) *Retriever {
	return &Retriever{index: index, embedder: embedder, policy: policy, log: log}
}

// Retrieve returns the formatted context and citations for the k sections
// nearest to query. An index with no matches yields an empty Context.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (Context, error) {
	if k < 1 {
		k = DefaultK
	}

	var vec []float32
	err := r.policy.Do(ctx, r.log, "embed_query", func(ctx context.Context) error {
		v, err := embed.One(ctx, r.embedder, query)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return Context{}, fmt.Errorf("embed question: %w", err)
	}

	matches, err := r.index.Query(ctx, vec, k)
	if err != nil {
		return Context{}, fmt.Errorf("query index: %w", err)
	}
	return FormatContext(matches), nil
}

// FormatContext renders matches as labelled excerpts plus citations.
func FormatContext(matches []vectorindex.Match) Context {
	if len(matches) == 0 {
		return Context{}
	}
	var sb strings.Builder
	sources := make([]string, 0, len(matches))
	for _, m := range matches {
		fmt.Fprintf(&sb, "--- Excerpt from Section '%s' (Pages: %s) ---\n", m.Title, m.Pages)
		sb.WriteString(m.Text)
		sb.WriteString("\n\n")
		sources = append(sources, SourceLabel(m.Title, m.Pages))
	}
	return Context{Text: sb.String(), Sources: sources, Matches: matches}
}

// SourceLabel is the human-readable citation for a section.
func SourceLabel(title, pages string) string {
	return fmt.Sprintf("Section: %s (Pages: %s)", title, pages)
}
