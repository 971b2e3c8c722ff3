package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codequery-dev/codequery/internal/search"
)

// writeFixtureStore writes a chunks JSONL file and a config pointing
// at it, returning the config path.
func writeFixtureStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	chunks := []map[string]any{
		{
			"doc_id":     "pool-1",
			"path":       "internal/db/pool.go",
			"language":   "go",
			"start_line": 14,
			"end_line":   52,
			"content":    "newConnPool sizes the database connection pool from config and warms the initial connections",
			"symbols":    []string{"newConnPool"},
		},
		{
			"doc_id":     "migrate-1",
			"path":       "internal/db/migrate.go",
			"language":   "go",
			"start_line": 7,
			"end_line":   39,
			"content":    "runMigrations applies pending schema migrations inside one transaction",
			"symbols":    []string{"runMigrations"},
		},
	}
	chunksPath := filepath.Join(dir, "chunks.jsonl")
	f, err := os.Create(chunksPath)
	require.NoError(t, err)
	enc := json.NewEncoder(f)
	for _, c := range chunks {
		require.NoError(t, enc.Encode(c))
	}
	require.NoError(t, f.Close())

	configFile := filepath.Join(dir, "codequery.yaml")
	cfg := fmt.Sprintf(`
server:
  log_level: error
embeddings:
  provider: static
  dimensions: 64
rerank:
  enabled: false
stores:
  - name: main
    chunks_path: %s
`, chunksPath)
	require.NoError(t, os.WriteFile(configFile, []byte(cfg), 0644))
	return configFile
}

func TestSearchCmd(t *testing.T) {
	configFile := writeFixtureStore(t)

	out, err := execute(t, "search", "--config", configFile, "newConnPool")
	require.NoError(t, err)

	assert.Contains(t, out, "internal/db/pool.go")
	assert.Contains(t, out, "intent=navigational")
}

func TestSearchCmd_JSON(t *testing.T) {
	configFile := writeFixtureStore(t)

	out, err := execute(t, "search", "--config", configFile, "--json", "runMigrations")
	require.NoError(t, err)

	var resp search.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "migrate-1", resp.Results[0].DocID)
	assert.Equal(t, "main", resp.Store)
}

func TestSearchCmd_ExplicitStore(t *testing.T) {
	configFile := writeFixtureStore(t)

	_, err := execute(t, "search", "--config", configFile, "--store", "missing", "anything")
	require.Error(t, err)
}

func TestSearchCmd_LanguageFilter(t *testing.T) {
	configFile := writeFixtureStore(t)

	out, err := execute(t, "search", "--config", configFile, "--json",
		"--language", "python", "schema migrations transaction")
	require.NoError(t, err)

	var resp search.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Empty(t, resp.Results)
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	_, err := execute(t, "search")
	require.Error(t, err)
}

func TestLoadChunkRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"doc_id":"a","path":"x.go","language":"go","start_line":1,"end_line":2,"content":"func a() {}","symbols":["a"]}`+"\n"+
			"\n"+
			`{"doc_id":"b","path":"y.go","language":"go","start_line":3,"end_line":9,"content":"func b() {}","symbols":["b"]}`+"\n",
	), 0644))

	chunks, err := loadChunkRecords(path, "main")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "a", chunks[0].DocID)
	assert.Equal(t, "main", chunks[0].Store)
	assert.Equal(t, []string{"a"}, chunks[0].Symbols)
}

func TestLoadChunkRecords_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := loadChunkRecords(filepath.Join(dir, "absent.jsonl"), "main")
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(bad, []byte("{broken\n"), 0644))
	_, err = loadChunkRecords(bad, "main")
	require.Error(t, err)

	noID := filepath.Join(dir, "noid.jsonl")
	require.NoError(t, os.WriteFile(noID, []byte(`{"path":"x.go"}`+"\n"), 0644))
	_, err = loadChunkRecords(noID, "main")
	require.Error(t, err)
}
