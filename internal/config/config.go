// Package config loads codequery configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	qerrors "github.com/codequery-dev/codequery/internal/errors"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "CODEQUERY_"

// Config is the complete codequery configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Rerank     RerankConfig     `yaml:"rerank"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Stores     []StoreConfig    `yaml:"stores"`
}

// ServerConfig configures the HTTP/WebSocket transport.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// RequestTimeout bounds one search request end to end.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SearchConfig tunes the retrieval pipeline.
type SearchConfig struct {
	// RRFConstant is the fusion smoothing parameter (k). Default 60.
	RRFConstant int `yaml:"rrf_constant"`
}

// EmbeddingsConfig configures the query embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "http" or "static".
	Provider string `yaml:"provider"`
	// Host is the embedding service endpoint for the http provider.
	Host string `yaml:"host"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions is the embedding dimension; 0 means auto-detect.
	Dimensions int `yaml:"dimensions"`
	// Timeout is the per-call timeout.
	Timeout time.Duration `yaml:"timeout"`
	// CacheSize is the LRU query-embedding cache size.
	CacheSize int `yaml:"cache_size"`
}

// RerankConfig configures the cross-encoder reranker.
type RerankConfig struct {
	// Enabled toggles reranking globally.
	Enabled bool `yaml:"enabled"`
	// Endpoint is the scoring service endpoint.
	Endpoint string `yaml:"endpoint"`
	// Model is the reranker model name.
	Model string `yaml:"model"`
	// Timeout is the per-call timeout.
	Timeout time.Duration `yaml:"timeout"`
	// CacheSize is the LRU rerank result cache size.
	CacheSize int `yaml:"cache_size"`
	// Pass1Timeout and Pass2Timeout bound the two rerank passes.
	Pass1Timeout time.Duration `yaml:"pass1_timeout"`
	Pass2Timeout time.Duration `yaml:"pass2_timeout"`
}

// TelemetryConfig configures local query telemetry.
type TelemetryConfig struct {
	// BufferSize is the in-memory ring capacity.
	BufferSize int `yaml:"buffer_size"`
	// MetricsPath is the SQLite aggregate database path; empty disables
	// persistence.
	MetricsPath string `yaml:"metrics_path"`
	// FlushInterval is how often buffered records are persisted.
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// StoreConfig declares one searchable store.
type StoreConfig struct {
	// Name is the store identifier used in request routing.
	Name string `yaml:"name"`
	// SparsePath is the on-disk sparse index; empty means in-memory.
	SparsePath string `yaml:"sparse_path"`
	// DensePath is the dense index snapshot file; empty means in-memory.
	DensePath string `yaml:"dense_path"`
	// ChunksPath is a JSONL file of chunk records produced by an
	// external extractor. Chunks are loaded at startup for provenance
	// lookup and indexed into any empty index.
	ChunksPath string `yaml:"chunks_path"`
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			LogLevel:       "info",
			RequestTimeout: 2 * time.Second,
		},
		Search: SearchConfig{
			RRFConstant: 60,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "static",
			Host:      "http://localhost:11434",
			Model:     "embed-small",
			Timeout:   10 * time.Second,
			CacheSize: 1000,
		},
		Rerank: RerankConfig{
			Enabled:      true,
			Endpoint:     "http://localhost:9659",
			Model:        "reranker-small",
			Timeout:      30 * time.Second,
			CacheSize:    500,
			Pass1Timeout: 80 * time.Millisecond,
			Pass2Timeout: 150 * time.Millisecond,
		},
		Telemetry: TelemetryConfig{
			BufferSize:    10000,
			FlushInterval: time.Minute,
		},
	}
}

// Load reads the config file, falling back to defaults when path is
// empty or the file does not exist, then applies environment
// overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, qerrors.New(qerrors.ErrCodeConfigNotFound,
					fmt.Sprintf("config file not found: %s", path), err)
			}
			return nil, qerrors.New(qerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("cannot read config file: %s", path), err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, qerrors.New(qerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("cannot parse config file: %s", path), err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies CODEQUERY_* environment overrides. Env always wins
// over the file.
func (c *Config) applyEnv() {
	envString(&c.Server.Addr, "ADDR")
	envString(&c.Server.LogLevel, "LOG_LEVEL")
	envDuration(&c.Server.RequestTimeout, "REQUEST_TIMEOUT")

	envInt(&c.Search.RRFConstant, "RRF_CONSTANT")

	envString(&c.Embeddings.Provider, "EMBEDDINGS_PROVIDER")
	envString(&c.Embeddings.Host, "EMBEDDINGS_HOST")
	envString(&c.Embeddings.Model, "EMBEDDINGS_MODEL")
	envInt(&c.Embeddings.Dimensions, "EMBEDDINGS_DIMENSIONS")

	envBool(&c.Rerank.Enabled, "RERANK_ENABLED")
	envString(&c.Rerank.Endpoint, "RERANK_ENDPOINT")
	envString(&c.Rerank.Model, "RERANK_MODEL")

	envString(&c.Telemetry.MetricsPath, "METRICS_PATH")
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return qerrors.New(qerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid log level: %s", c.Server.LogLevel), nil)
	}

	switch c.Embeddings.Provider {
	case "http", "static":
	default:
		return qerrors.New(qerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid embeddings provider: %s", c.Embeddings.Provider), nil)
	}

	if c.Search.RRFConstant <= 0 {
		return qerrors.New(qerrors.ErrCodeConfigInvalid, "rrf_constant must be positive", nil)
	}
	if c.Server.RequestTimeout <= 0 {
		return qerrors.New(qerrors.ErrCodeConfigInvalid, "request_timeout must be positive", nil)
	}

	seen := make(map[string]struct{}, len(c.Stores))
	for _, s := range c.Stores {
		if s.Name == "" {
			return qerrors.New(qerrors.ErrCodeConfigInvalid, "store name must not be empty", nil)
		}
		if _, dup := seen[s.Name]; dup {
			return qerrors.New(qerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("duplicate store name: %s", s.Name), nil)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

func envString(dst *string, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(dst *time.Duration, key string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
