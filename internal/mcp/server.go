package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codequery-dev/codequery/internal/search"
	"github.com/codequery-dev/codequery/pkg/version"
)

// ServerName is the implementation name reported to MCP clients.
const ServerName = "codequery"

// Server bridges AI agents with the hybrid search engine. It registers
// a search tool returning the canonical SearchResponse, so agents get
// the same scoring provenance as the HTTP and WebSocket clients.
type Server struct {
	mcp    *mcp.Server
	engine *search.Engine
	logger *slog.Logger
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates an MCP server over the given engine.
func NewServer(engine *search.Engine, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine: engine,
		logger: logger,
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "search",
			Description: "Hybrid code search over an indexed store. Combines keyword (BM25) and semantic retrieval, fuses the rankings, and reranks the top candidates. Returns ranked code spans with per-retriever scores explaining why each result matched.",
		},
		{
			Name:        "list_stores",
			Description: "List the searchable stores registered with this server.",
		},
	}
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	for _, tool := range s.ListTools() {
		switch tool.Name {
		case "search":
			mcp.AddTool(s.mcp, &mcp.Tool{
				Name:        tool.Name,
				Description: tool.Description,
			}, s.searchHandler)
		case "list_stores":
			mcp.AddTool(s.mcp, &mcp.Tool{
				Name:        tool.Name,
				Description: tool.Description,
			}, s.listStoresHandler)
		}
		s.logger.Debug("mcp_tool_registered", slog.String("name", tool.Name))
	}
}

// searchHandler is the typed MCP handler for the search tool.
func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	storeName, err := s.resolveStore(input.Store)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	req := &search.SearchRequest{
		Query: input.Query,
		TopK:  input.TopK,
	}
	if input.PathPrefix != "" || len(input.Languages) > 0 {
		req.Filters = &search.SearchFilters{
			PathPrefix: input.PathPrefix,
			Languages:  input.Languages,
		}
	}
	req.GroupByFile = input.GroupByFile

	start := time.Now()
	resp, err := s.engine.Search(ctx, storeName, req)
	if err != nil {
		s.logger.Warn("mcp_search_failed",
			slog.String("store", storeName),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	s.logger.Debug("mcp_search_completed",
		slog.String("request_id", resp.RequestID),
		slog.String("store", storeName),
		slog.Int("results", resp.Total),
		slog.Duration("duration", time.Since(start)))

	return nil, SearchOutput{Response: resp}, nil
}

// listStoresHandler is the typed MCP handler for the list_stores tool.
func (s *Server) listStoresHandler(_ context.Context, _ *mcp.CallToolRequest, _ ListStoresInput) (
	*mcp.CallToolResult,
	ListStoresOutput,
	error,
) {
	return nil, ListStoresOutput{Stores: s.engine.Stores()}, nil
}

// resolveStore defaults an empty store name when exactly one store is
// registered.
func (s *Server) resolveStore(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	stores := s.engine.Stores()
	if len(stores) == 1 {
		return stores[0], nil
	}
	if len(stores) == 0 {
		return "", &MCPError{Code: ErrCodeStoreNotFound, Message: "no stores are registered"}
	}
	return "", NewInvalidParamsError(
		fmt.Sprintf("store parameter is required when multiple stores are registered (%d available)", len(stores)))
}

// Serve runs the MCP server over stdio until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}
