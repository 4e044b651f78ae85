package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dgallion1/manualrag/internal/llm"
)

// NoAnswerMessage is returned when retrieval finds nothing to ground an answer.
const NoAnswerMessage = "Sorry, I could not find information about that in the manual."

// GenerationError wraps a failed LLM call.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("answer generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// AnswerGenerator turns a question plus retrieved context into an answer.
type AnswerGenerator struct {
	llm llm.Generator
}

func NewAnswerGenerator(g llm.Generator) *AnswerGenerator {
	return &AnswerGenerator{llm: g}
}

// Answer makes exactly one generation call.
func (a *AnswerGenerator) Answer(ctx context.Context, question, contextText string) (string, error) {
	out, err := a.llm.Generate(ctx, llm.BuildAnswerPrompt(contextText, question))
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	return strings.TrimSpace(out), nil
}

// Response is the outcome of one question.
type Response struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`  // user-visible text, sources appended
	Sources  []string `json:"sources"` // deduplicated, sorted
	Grounded bool     `json:"grounded"`
	Err      error    `json:"-"`
}

// Assistant composes retrieval and generation.
type Assistant struct {
	retriever *Retriever
	generator *AnswerGenerator
	k         int
	log       *slog.Logger
}

func NewAssistant(r *Retriever, g *AnswerGenerator, k int, log *slog.Logger) *Assistant {
	if k < 1 {
		k = DefaultK
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Assistant{retriever: r, generator: g, k: k, log: log}
}

// Retriever exposes the assistant's retriever for retrieval-only callers.
func (a *Assistant) Retriever() *Retriever {
	return a.retriever
}

// Respond answers question and never fails: retrieval and generation errors
// become user-visible messages so an interactive session can continue.
func (a *Assistant) Respond(ctx context.Context, question string) string {
	return a.Ask(ctx, question, 0).Answer
}

// Ask is Respond with the structured result. k <= 0 uses the assistant's default.
func (a *Assistant) Ask(ctx context.Context, question string, k int) Response {
	if k < 1 {
		k = a.k
	}
	resp := Response{Question: question}

	rc, err := a.retriever.Retrieve(ctx, question, k)
	if err != nil {
		a.log.Error("retrieval failed", "error", err)
		resp.Err = err
		resp.Answer = fmt.Sprintf("Error retrieving context from the manual: %v", err)
		return resp
	}
	if rc.Empty() {
		resp.Answer = NoAnswerMessage
		return resp
	}

	answer, err := a.generator.Answer(ctx, question, rc.Text)
	if err != nil {
		a.log.Error("generation failed", "error", err)
		resp.Err = err
		resp.Answer = fmt.Sprintf("Error generating the answer: %v", err)
		return resp
	}

	resp.Grounded = true
	resp.Sources = DedupSources(rc.Sources)
	resp.Answer = FormatAnswer(answer, resp.Sources)
	return resp
}

// DedupSources removes repeated citations and sorts the rest.
func DedupSources(sources []string) []string {
	seen := make(map[string]struct{}, len(sources))
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// FormatAnswer appends the Sources Consulted section.
func FormatAnswer(answer string, sources []string) string {
	if len(sources) == 0 {
		return answer
	}
	return answer + "\n\n---\n**Sources Consulted:**\n- " + strings.Join(sources, "\n- ")
}
