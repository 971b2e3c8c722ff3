package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSparseIndex(t *testing.T) *BleveSparseIndex {
	t.Helper()
	idx, err := NewBleveSparseIndex("", DefaultSparseConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func testChunks() []*Chunk {
	return []*Chunk{
		{
			DocID:    "auth-1",
			Path:     "src/auth/login.go",
			Language: "go",
			Content:  "func AuthenticateUser(username, password string) error { return checkCredentials(username, password) }",
			Symbols:  []string{"AuthenticateUser", "checkCredentials"},
		},
		{
			DocID:    "auth-2",
			Path:     "src/auth/token.py",
			Language: "python",
			Content:  "def refresh_token(session): return session.renew()",
			Symbols:  []string{"refresh_token"},
		},
		{
			DocID:    "billing-1",
			Path:     "src/billing/invoice.go",
			Language: "go",
			Content:  "func GenerateInvoice(order Order) (*Invoice, error) { ... }",
			Symbols:  []string{"GenerateInvoice"},
		},
	}
}

func TestBleveSparseIndexSearch(t *testing.T) {
	idx := newTestSparseIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, testChunks()))
	assert.Equal(t, 3, idx.DocCount())

	// When searching for an identifier in camelCase
	results, err := idx.Search(ctx, "authenticate user", 10, Filters{})
	require.NoError(t, err)

	// Then the auth chunk ranks first with matched terms reported
	require.NotEmpty(t, results)
	assert.Equal(t, "auth-1", results[0].DocID)
	assert.Greater(t, results[0].Score, 0.0)
	assert.Contains(t, results[0].MatchedTerms, "authenticate")
}

func TestBleveSparseIndexSymbolsSearchable(t *testing.T) {
	idx := newTestSparseIndex(t)
	ctx := context.Background()

	// Given a chunk whose symbol does not appear in the content body
	require.NoError(t, idx.Index(ctx, []*Chunk{{
		DocID:    "sym-1",
		Path:     "src/util/hash.go",
		Language: "go",
		Content:  "// implementation elided",
		Symbols:  []string{"ComputeFingerprint"},
	}}))

	results, err := idx.Search(ctx, "compute fingerprint", 10, Filters{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "sym-1", results[0].DocID)
}

func TestBleveSparseIndexFilters(t *testing.T) {
	idx := newTestSparseIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, testChunks()))

	t.Run("path prefix", func(t *testing.T) {
		results, err := idx.Search(ctx, "func", 10, Filters{PathPrefix: "src/billing"})
		require.NoError(t, err)
		for _, r := range results {
			assert.Equal(t, "billing-1", r.DocID)
		}
	})

	t.Run("language", func(t *testing.T) {
		results, err := idx.Search(ctx, "token session", 10, Filters{Languages: []string{"python"}})
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "auth-2", results[0].DocID)
	})

	t.Run("filter excludes all", func(t *testing.T) {
		results, err := idx.Search(ctx, "authenticate", 10, Filters{Languages: []string{"rust"}})
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestBleveSparseIndexEmptyQuery(t *testing.T) {
	idx := newTestSparseIndex(t)

	results, err := idx.Search(context.Background(), "   ", 10, Filters{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveSparseIndexDelete(t *testing.T) {
	idx := newTestSparseIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, testChunks()))

	require.NoError(t, idx.Delete(ctx, []string{"auth-1"}))
	assert.Equal(t, 2, idx.DocCount())

	results, err := idx.Search(ctx, "authenticate", 10, Filters{})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "auth-1", r.DocID)
	}
}

func TestBleveSparseIndexClosed(t *testing.T) {
	idx := newTestSparseIndex(t)
	require.NoError(t, idx.Close())

	_, err := idx.Search(context.Background(), "query", 10, Filters{})
	assert.Error(t, err)
	assert.Error(t, idx.Index(context.Background(), testChunks()))
	assert.Equal(t, 0, idx.DocCount())
}
