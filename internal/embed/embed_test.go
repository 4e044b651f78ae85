package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/manualrag/internal/llm"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	a, err := One(context.Background(), e, "Press START to begin the infusion.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := One(context.Background(), e, "Press START to begin the infusion.")
	if len(a) != 64 {
		t.Fatalf("expected 64 dims, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestHashEmbedder_Normalized(t *testing.T) {
	e := NewHashEmbedder(128)
	v, _ := One(context.Background(), e, "occlusion alarm pressure limit")
	var norm float32
	for _, x := range v {
		norm += x * x
	}
	if norm < 0.999 || norm > 1.001 {
		t.Errorf("expected unit vector, got squared norm %f", norm)
	}
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	e := NewHashEmbedder(16)
	v, _ := One(context.Background(), e, "   ")
	for _, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector, got %v", v)
		}
	}
}

func TestHashEmbedder_ModelIncludesDimensions(t *testing.T) {
	if got := NewHashEmbedder(32).Model(); got != "hash:32" {
		t.Errorf("unexpected model %q", got)
	}
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		var req embeddingsRequest
		json.NewDecoder(r.Body).Decode(&req)
		// Reply out of order to check index mapping.
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0, 1}},
				{"index": 0, "embedding": []float32{1, 0}},
			},
		})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL, "key", "text-embedding-3-small", 0)
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vectors not mapped by index: %v", vecs)
	}
	if e.Model() != "openai:text-embedding-3-small" {
		t.Errorf("unexpected model %q", e.Model())
	}
}

func TestOpenAIEmbedder_RateLimitedIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL, "", "m", 0)
	_, err := e.Embed(context.Background(), []string{"a"})
	if !llm.IsRetryable(err) {
		t.Errorf("expected retryable error, got %v", err)
	}
}

func TestBatched_SplitsAndRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req embeddingsRequest
		json.NewDecoder(r.Body).Decode(&req)
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"index": i, "embedding": []float32{float32(len(req.Input[i]))}}
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL, "", "m", 0)
	policy := llm.Policy{MaxRetries: 2, Base: time.Millisecond, Cap: 2 * time.Millisecond}
	vecs, err := Batched(context.Background(), e, []string{"a", "bb", "ccc"}, 2, policy, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	for i, want := range []float32{1, 2, 3} {
		if vecs[i][0] != want {
			t.Errorf("vector %d: expected %v, got %v", i, want, vecs[i][0])
		}
	}
	// One failed attempt plus two batches.
	if calls.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", calls.Load())
	}
}
