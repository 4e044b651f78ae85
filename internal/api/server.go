package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dgallion1/manualrag/internal/config"
	"github.com/dgallion1/manualrag/internal/llm"
	"github.com/dgallion1/manualrag/internal/pipeline"
	"github.com/dgallion1/manualrag/internal/rag"
	"github.com/dgallion1/manualrag/internal/vectorindex"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Catalog is the manual-level view of the section index.
type Catalog interface {
	Manuals(ctx context.Context) ([]vectorindex.Manual, error)
	Sections(ctx context.Context, docID string) ([]vectorindex.Record, error)
	DeleteDocument(ctx context.Context, docID string) (int, error)
	Keyword(ctx context.Context, text string, k int) ([]vectorindex.Match, error)
	Count() (int, error)
}

// Server is the HTTP API server for manualrag.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	assistant    *rag.Assistant
	catalog      Catalog
	claude       *llm.ClaudeClient
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. claude may be nil when
// no LLM statistics are available.
func NewServer(orch *pipeline.Orchestrator, assistant *rag.Assistant, catalog Catalog, claude *llm.ClaudeClient, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		assistant:    assistant,
		catalog:      catalog,
		claude:       claude,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/ask", s.handleAsk)
		r.Get("/api/search", s.handleSearch)

		r.Post("/api/ingest", s.handleIngest)
		r.Post("/api/ingest/batch", s.handleBatchIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Get("/api/stats/llm", s.handleLLMStats)

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}/sections", s.handleListSections)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sections, err := s.catalog.Count()
	if err != nil {
		jsonError(w, "index unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"sections":    sections,
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
