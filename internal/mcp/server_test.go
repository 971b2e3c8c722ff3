package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codequery-dev/codequery/internal/embed"
	"github.com/codequery-dev/codequery/internal/search"
	"github.com/codequery-dev/codequery/internal/store"
)

func newTestMCPServer(t *testing.T, stores ...string) *Server {
	t.Helper()
	ctx := context.Background()

	registry := store.NewRegistry()
	for _, name := range stores {
		corpus := []*store.Chunk{
			{
				DocID:     name + "-fetch-1",
				Path:      "internal/client/fetch.go",
				Language:  "go",
				StartLine: 8,
				EndLine:   41,
				Content:   "fetchUser loads the user row by id and hydrates the profile struct",
				Symbols:   []string{"fetchUser"},
				Store:     name,
			},
			{
				DocID:     name + "-cache-1",
				Path:      "internal/client/cache.py",
				Language:  "python",
				StartLine: 1,
				EndLine:   22,
				Content:   "cache_user memoizes user lookups in the process-local dict",
				Symbols:   []string{"cache_user"},
				Store:     name,
			},
		}

		sparse, err := store.NewBleveSparseIndex("", store.DefaultSparseConfig())
		require.NoError(t, err)
		t.Cleanup(func() { _ = sparse.Close() })
		require.NoError(t, sparse.Index(ctx, corpus))

		chunks := store.NewMemChunkSource()
		chunks.Put(corpus...)

		require.NoError(t, registry.Register(&store.Store{
			Name:   name,
			Sparse: sparse,
			Chunks: chunks,
		}))
	}

	engine := search.NewEngine(registry, search.WithEmbedder(embed.NewStaticEmbedder(64)))
	srv, err := NewServer(engine, nil)
	require.NoError(t, err)
	return srv
}

func TestNewServer_RequiresEngine(t *testing.T) {
	_, err := NewServer(nil, nil)
	require.Error(t, err)
}

func TestServer_ListTools(t *testing.T) {
	srv := newTestMCPServer(t, "main")

	tools := srv.ListTools()
	require.Len(t, tools, 2)
	assert.Equal(t, "search", tools[0].Name)
	assert.Equal(t, "list_stores", tools[1].Name)
}

func TestSearchTool(t *testing.T) {
	srv := newTestMCPServer(t, "main")

	_, out, err := srv.searchHandler(context.Background(), nil, SearchInput{Query: "fetchUser"})
	require.NoError(t, err)

	require.NotNil(t, out.Response)
	require.NotEmpty(t, out.Response.Results)
	assert.Equal(t, "main-fetch-1", out.Response.Results[0].DocID)
	assert.Equal(t, "main", out.Response.Store)
	assert.Equal(t, search.IntentNavigational, out.Response.Intelligence.Intent)
}

func TestSearchTool_LanguageFilter(t *testing.T) {
	srv := newTestMCPServer(t, "main")

	_, out, err := srv.searchHandler(context.Background(), nil, SearchInput{
		Query:     "user cache lookups",
		Languages: []string{"python"},
	})
	require.NoError(t, err)

	require.NotEmpty(t, out.Response.Results)
	for _, r := range out.Response.Results {
		assert.Equal(t, "python", r.Language)
	}
}

func TestSearchTool_EmptyQuery(t *testing.T) {
	srv := newTestMCPServer(t, "main")

	_, _, err := srv.searchHandler(context.Background(), nil, SearchInput{})
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestSearchTool_UnknownStore(t *testing.T) {
	srv := newTestMCPServer(t, "main")

	_, _, err := srv.searchHandler(context.Background(), nil, SearchInput{
		Query: "fetchUser",
		Store: "missing",
	})
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeStoreNotFound, mcpErr.Code)
}

func TestSearchTool_DefaultsSingleStore(t *testing.T) {
	srv := newTestMCPServer(t, "only")

	_, out, err := srv.searchHandler(context.Background(), nil, SearchInput{Query: "fetchUser"})
	require.NoError(t, err)
	assert.Equal(t, "only", out.Response.Store)
}

func TestSearchTool_RequiresStoreWhenAmbiguous(t *testing.T) {
	srv := newTestMCPServer(t, "alpha", "beta")

	_, _, err := srv.searchHandler(context.Background(), nil, SearchInput{Query: "fetchUser"})
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)

	_, out, err := srv.searchHandler(context.Background(), nil, SearchInput{Query: "fetchUser", Store: "beta"})
	require.NoError(t, err)
	assert.Equal(t, "beta", out.Response.Store)
}

func TestListStoresTool(t *testing.T) {
	srv := newTestMCPServer(t, "alpha", "beta")

	_, out, err := srv.listStoresHandler(context.Background(), nil, ListStoresInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, out.Stores)
}
