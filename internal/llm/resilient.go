package llm

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Summarizer turns a table (HTML) or an image (file path) into text.
type Summarizer interface {
	Summarize(ctx context.Context, kind Kind, content string) (string, error)
}

// Generator produces a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewLimiter builds the token bucket shared by every summarization worker.
// Calls are spaced at least interval apart once the burst is spent. A zero
// interval disables limiting.
func NewLimiter(interval time.Duration, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Every(interval), burst)
}

// ThrottledSummarizer applies the shared limiter and the retry policy to an
// underlying summarizer.
type ThrottledSummarizer struct {
	next    Summarizer
	limiter *rate.Limiter
	policy  Policy
	log     *slog.Logger
}

func NewThrottledSummarizer(next Summarizer, limiter *rate.Limiter, policy Policy, log *slog.Logger) *ThrottledSummarizer {
	return &ThrottledSummarizer{next: next, limiter: limiter, policy: policy, log: log}
}

func (s *ThrottledSummarizer) Summarize(ctx context.Context, kind Kind, content string) (string, error) {
	var out string
	err := s.policy.Do(ctx, s.log, "summarize_"+string(kind), func(ctx context.Context) error {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		text, err := s.next.Summarize(ctx, kind, content)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

// RetryingGenerator applies the retry policy to an underlying generator.
type RetryingGenerator struct {
	next   Generator
	policy Policy
	log    *slog.Logger
}

func NewRetryingGenerator(next Generator, policy Policy, log *slog.Logger) *RetryingGenerator {
	return &RetryingGenerator{next: next, policy: policy, log: log}
}

func (g *RetryingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var out string
	err := g.policy.Do(ctx, g.log, "generate", func(ctx context.Context) error {
		text, err := g.next.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}
