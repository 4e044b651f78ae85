package embed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/manualrag/internal/llm"
)

// Embedder maps text to vectors. Identical input text must yield identical
// vectors; Model identifies the vector space so a persisted index can refuse
// vectors from a different model.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// One embeds a single text.
func One(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 input", len(vecs))
	}
	return vecs[0], nil
}

// Batched embeds texts in batches of batchSize, retrying transient failures
// per batch with the given policy.
func Batched(ctx context.Context, e Embedder, texts []string, batchSize int, policy llm.Policy, log *slog.Logger) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = 32
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		var vecs [][]float32
		err := policy.Do(ctx, log, "embed", func(ctx context.Context) error {
			v, err := e.Embed(ctx, texts[start:end])
			if err != nil {
				return err
			}
			vecs = v
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embed batch %d-%d: got %d vectors", start, end, len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}
