package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListDocuments lists the ingested manuals, newest first.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	manuals, err := s.catalog.Manuals(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": manuals})
}

type sectionView struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
	Title    string `json:"title"`
	Pages    string `json:"pages"`
	Chars    int    `json:"chars"`
}

// handleListSections lists a manual's sections in document order.
func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	recs, err := s.catalog.Sections(r.Context(), docID)
	if err != nil {
		jsonError(w, "failed to list sections: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if len(recs) == 0 {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	out := make([]sectionView, len(recs))
	for i, rec := range recs {
		out[i] = sectionView{ID: rec.ID, Position: rec.Position, Title: rec.Title, Pages: rec.Pages, Chars: len([]rune(rec.Text))}
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "sections": out})
}

// handleDeleteDocument removes a manual and all its sections.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	removed, err := s.catalog.DeleteDocument(r.Context(), docID)
	if err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if removed == 0 {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	s.log.Info("document deleted", "doc_id", docID, "sections", removed)
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "sections_deleted": removed})
}
