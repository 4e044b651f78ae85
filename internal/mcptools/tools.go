// Package mcptools exposes the manual assistant as Model Context Protocol tools.
package mcptools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/manualrag/internal/rag"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverName = "manualrag"

// AskManualInput defines input for the ask_manual tool.
type AskManualInput struct {
	Question string `json:"question" jsonschema:"Question about the manual, in natural language"`
}

// AskManualOutput defines output for the ask_manual tool.
type AskManualOutput struct {
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
	Grounded bool     `json:"grounded"`
}

// SearchManualInput defines input for the search_manual tool.
type SearchManualInput struct {
	Query string `json:"query" jsonschema:"Text to look up in the manual"`
	K     int    `json:"k,omitempty" jsonschema:"Maximum number of sections (optional, defaults to 5)"`
}

// SearchResult is one retrieved section.
type SearchResult struct {
	Rank     int     `json:"rank"`
	Source   string  `json:"source"`
	Distance float64 `json:"distance"`
	Text     string  `json:"text"`
}

// SearchManualOutput defines output for the search_manual tool.
type SearchManualOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// Tools holds the handlers' dependencies.
type Tools struct {
	assistant *rag.Assistant
	log       *slog.Logger
}

func New(assistant *rag.Assistant, log *slog.Logger) *Tools {
	return &Tools{assistant: assistant, log: log}
}

// NewServer builds an MCP server with every tool registered.
func NewServer(version string, assistant *rag.Assistant, log *slog.Logger) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version,
		},
		nil,
	)
	New(assistant, log).Register(server)
	return server
}

// Register adds the tools to server.
func (t *Tools) Register(server *mcp.Server) {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "ask_manual",
			Description: "Answer a question using only the ingested manual. The answer ends with the sections consulted.",
		},
		t.AskManual,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "search_manual",
			Description: "Return the manual sections nearest to a query, with section titles and pages, without generating an answer.",
		},
		t.SearchManual,
	)
}

// AskManual answers a question. Retrieval and generation failures are part
// of the answer text, not tool errors.
func (t *Tools) AskManual(ctx context.Context, req *mcp.CallToolRequest, input AskManualInput) (*mcp.CallToolResult, AskManualOutput, error) {
	question, err := rag.ValidateQuestion(input.Question)
	if err != nil {
		return nil, AskManualOutput{}, err
	}
	resp := t.assistant.Ask(ctx, question, 0)
	t.log.Info("ask_manual", "grounded", resp.Grounded, "sources", len(resp.Sources))
	sources := resp.Sources
	if sources == nil {
		sources = []string{}
	}
	return nil, AskManualOutput{Answer: resp.Answer, Sources: sources, Grounded: resp.Grounded}, nil
}

// SearchManual runs retrieval only.
func (t *Tools) SearchManual(ctx context.Context, req *mcp.CallToolRequest, input SearchManualInput) (*mcp.CallToolResult, SearchManualOutput, error) {
	query, err := rag.ValidateQuestion(input.Query)
	if err != nil {
		return nil, SearchManualOutput{}, err
	}
	if input.K < 0 {
		return nil, SearchManualOutput{}, fmt.Errorf("k must be positive")
	}
	rc, err := t.assistant.Retriever().Retrieve(ctx, query, input.K)
	if err != nil {
		return nil, SearchManualOutput{}, fmt.Errorf("retrieval failed: %w", err)
	}

	out := SearchManualOutput{Query: query, Results: make([]SearchResult, 0, len(rc.Matches))}
	for _, m := range rc.Matches {
		out.Results = append(out.Results, SearchResult{
			Rank:     m.Rank,
			Source:   rag.SourceLabel(m.Title, m.Pages),
			Distance: m.Distance,
			Text:     m.Text,
		})
	}
	return nil, out, nil
}
