package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/codequery-dev/codequery/internal/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.True(t, cfg.Rerank.Enabled)
	assert.Equal(t, 10000, cfg.Telemetry.BufferSize)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: ":9090"
  log_level: debug
search:
  rrf_constant: 30
embeddings:
  provider: http
  host: http://localhost:11434
stores:
  - name: main
    sparse_path: /tmp/sparse
  - name: docs
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 30, cfg.Search.RRFConstant)
	assert.Equal(t, "http", cfg.Embeddings.Provider)
	require.Len(t, cfg.Stores, 2)
	assert.Equal(t, "main", cfg.Stores[0].Name)
	// Unset fields keep their defaults.
	assert.Equal(t, 2*time.Second, cfg.Server.RequestTimeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeConfigNotFound, qerrors.GetCode(err))
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeConfigInvalid, qerrors.GetCode(err))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CODEQUERY_ADDR", ":7070")
	t.Setenv("CODEQUERY_LOG_LEVEL", "warn")
	t.Setenv("CODEQUERY_RRF_CONSTANT", "90")
	t.Setenv("CODEQUERY_RERANK_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
	assert.Equal(t, 90, cfg.Search.RRFConstant)
	assert.False(t, cfg.Rerank.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Server.LogLevel = "verbose" }},
		{"bad provider", func(c *Config) { c.Embeddings.Provider = "cloud" }},
		{"zero rrf constant", func(c *Config) { c.Search.RRFConstant = 0 }},
		{"zero request timeout", func(c *Config) { c.Server.RequestTimeout = 0 }},
		{"unnamed store", func(c *Config) { c.Stores = []StoreConfig{{}} }},
		{"duplicate store", func(c *Config) {
			c.Stores = []StoreConfig{{Name: "main"}, {Name: "main"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, qerrors.ErrCodeConfigInvalid, qerrors.GetCode(err))
		})
	}
}
