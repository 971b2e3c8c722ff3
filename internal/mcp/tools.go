package mcp

import "github.com/codequery-dev/codequery/internal/search"

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query       string   `json:"query" jsonschema:"the search query to execute"`
	Store       string   `json:"store,omitempty" jsonschema:"store name to search, defaults to the only registered store"`
	TopK        int      `json:"top_k,omitempty" jsonschema:"maximum number of results, default 20, max 100"`
	PathPrefix  string   `json:"path_prefix,omitempty" jsonschema:"restrict results to paths under this prefix"`
	Languages   []string `json:"languages,omitempty" jsonschema:"restrict results to these languages, e.g. go, python"`
	GroupByFile bool     `json:"group_by_file,omitempty" jsonschema:"group results by file with a representative chunk per file"`
}

// SearchOutput defines the output schema for the search tool. It is
// the canonical SearchResponse so agents see the same structure as the
// HTTP and WebSocket transports.
type SearchOutput struct {
	Response *search.SearchResponse `json:"response" jsonschema:"full search response with ranked results and scoring provenance"`
}

// ListStoresInput defines the input schema for the list_stores tool.
type ListStoresInput struct{}

// ListStoresOutput defines the output schema for the list_stores tool.
type ListStoresOutput struct {
	Stores []string `json:"stores" jsonschema:"names of the searchable stores"`
}
