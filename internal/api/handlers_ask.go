package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dgallion1/manualrag/internal/rag"
)

type askRequest struct {
	Question string `json:"question"`
	K        int    `json:"k"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	question, err := rag.ValidateQuestion(req.Question)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.K < 0 {
		jsonError(w, "k must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if s.cfg.AskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.AskTimeout)
		defer cancel()
	}
	resp := s.assistant.Ask(ctx, question, req.K)
	body := map[string]any{
		"question": resp.Question,
		"answer":   resp.Answer,
		"sources":  resp.Sources,
		"grounded": resp.Grounded,
	}
	if resp.Err != nil {
		// The answer already carries the user-facing message.
		body["error"] = resp.Err.Error()
		var genErr *rag.GenerationError
		if errors.As(resp.Err, &genErr) {
			body["error_kind"] = "generation"
		} else {
			body["error_kind"] = "retrieval"
		}
	}
	writeJSON(w, http.StatusOK, body)
}

type searchHit struct {
	Rank     int     `json:"rank"`
	DocID    string  `json:"doc_id"`
	Title    string  `json:"title"`
	Pages    string  `json:"pages"`
	Distance float64 `json:"distance,omitempty"`
	Source   string  `json:"source"`
	Text     string  `json:"text"`
}

// handleSearch returns the sections nearest to q without calling the LLM.
// mode=keyword runs a full-text query instead of a vector query.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	query, err := rag.ValidateQuestion(q)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	k := rag.DefaultK
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, "k must be a positive integer", http.StatusBadRequest)
			return
		}
		k = n
	}

	mode := r.URL.Query().Get("mode")
	var hits []searchHit
	switch mode {
	case "", "vector":
		mode = "vector"
		rc, err := s.assistant.Retriever().Retrieve(r.Context(), query, k)
		if err != nil {
			jsonError(w, "retrieval failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		for _, m := range rc.Matches {
			hits = append(hits, toHit(m.Rank, m.DocID, m.Title, m.Pages, m.Distance, m.Text))
		}
	case "keyword":
		matches, err := s.catalog.Keyword(r.Context(), query, k)
		if err != nil {
			jsonError(w, "keyword search failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		for _, m := range matches {
			hits = append(hits, toHit(m.Rank, m.DocID, m.Title, m.Pages, 0, m.Text))
		}
	default:
		jsonError(w, "mode must be vector or keyword", http.StatusBadRequest)
		return
	}

	if hits == nil {
		hits = []searchHit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "mode": mode, "results": hits})
}

func toHit(rank int, docID, title, pages string, distance float64, text string) searchHit {
	return searchHit{
		Rank:     rank,
		DocID:    docID,
		Title:    title,
		Pages:    pages,
		Distance: distance,
		Source:   rag.SourceLabel(title, pages),
		Text:     text,
	}
}
