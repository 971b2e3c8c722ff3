package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbedService(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/embed":
			var req embedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			resp := embedResponse{Embeddings: make([][]float32, len(req.Texts))}
			for i := range req.Texts {
				vec := make([]float32, dims)
				vec[i%dims] = 1
				resp.Embeddings[i] = vec
			}
			w.Header().Set("Content-Type", "application/json")
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPEmbedderEmbedBatch(t *testing.T) {
	srv := newEmbedService(t, 8)
	e, err := NewHTTPEmbedder(HTTPConfig{Host: srv.URL, Model: "test-model"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	ctx := context.Background()
	assert.True(t, e.Available(ctx))

	vecs, err := e.EmbedBatch(ctx, []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 8)

	// Dimensions auto-detected from the first response
	assert.Equal(t, 8, e.Dimensions())
	assert.Equal(t, "test-model", e.ModelName())
}

func TestHTTPEmbedderServiceDown(t *testing.T) {
	srv := newEmbedService(t, 8)
	url := srv.URL
	srv.Close()

	e, err := NewHTTPEmbedder(HTTPConfig{Host: url, Model: "test-model"})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "query")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestHTTPEmbedderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	e, err := NewHTTPEmbedder(HTTPConfig{Host: srv.URL, Model: "test-model"})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "query")
	assert.Error(t, err)
}

func TestHTTPEmbedderEmptyBatch(t *testing.T) {
	e, err := NewHTTPEmbedder(HTTPConfig{Host: "http://localhost:1", Model: "m"})
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestHTTPEmbedderRequiresHost(t *testing.T) {
	_, err := NewHTTPEmbedder(HTTPConfig{})
	assert.Error(t, err)
}
