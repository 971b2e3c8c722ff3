package cmd

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/codequery-dev/codequery/internal/config"
	"github.com/codequery-dev/codequery/internal/embed"
	"github.com/codequery-dev/codequery/internal/logging"
	"github.com/codequery-dev/codequery/internal/rerank"
	"github.com/codequery-dev/codequery/internal/search"
	"github.com/codequery-dev/codequery/internal/store"
	"github.com/codequery-dev/codequery/internal/telemetry"
)

// embedBatchSize bounds one embedding request during store loading.
const embedBatchSize = 32

// runtime bundles everything a command needs to serve searches.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *store.Registry
	recorder *telemetry.Recorder
	engine   *search.Engine

	embedder embed.Embedder
	reranker rerank.Reranker

	metricsDB *sql.DB
	metrics   *telemetry.SQLiteMetricsStore
}

// buildRuntime loads configuration and constructs the engine with all
// configured stores registered. A failed reranker or embedder degrades
// to a reduced pipeline rather than refusing to start.
func buildRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	logger := logging.SetupDefault(cfg.Server.LogLevel)

	r := &runtime{
		cfg:      cfg,
		logger:   logger,
		registry: store.NewRegistry(),
		recorder: telemetry.NewRecorder(cfg.Telemetry.BufferSize),
	}

	r.embedder = buildEmbedder(cfg, logger)
	r.reranker = buildReranker(ctx, cfg, logger)

	for i := range cfg.Stores {
		if err := r.registerStore(ctx, &cfg.Stores[i]); err != nil {
			r.Close()
			return nil, err
		}
	}

	if cfg.Telemetry.MetricsPath != "" {
		db, err := telemetry.OpenMetricsDB(cfg.Telemetry.MetricsPath)
		if err != nil {
			logger.Warn("metrics_db_unavailable", slog.String("error", err.Error()))
		} else {
			r.metricsDB = db
			r.metrics, _ = telemetry.NewSQLiteMetricsStore(db)
		}
	}

	opts := []search.EngineOption{
		search.WithRecorder(r.recorder),
		search.WithLogger(logger),
		search.WithFuser(search.NewFuserWithK(cfg.Search.RRFConstant)),
		search.WithRequestTimeout(cfg.Server.RequestTimeout),
	}
	if r.embedder != nil {
		opts = append(opts, search.WithEmbedder(r.embedder))
	}
	if r.reranker != nil {
		opts = append(opts, search.WithReranker(search.NewMultiPassReranker(
			r.reranker,
			search.MultiPassRerankerConfig{
				Pass1Timeout: cfg.Rerank.Pass1Timeout,
				Pass2Timeout: cfg.Rerank.Pass2Timeout,
			},
		)))
	}

	r.engine = search.NewEngine(r.registry, opts...)
	return r, nil
}

// Close releases every resource the runtime holds.
func (r *runtime) Close() {
	if r.registry != nil {
		if err := r.registry.Close(); err != nil {
			r.logger.Warn("registry_close_failed", slog.String("error", err.Error()))
		}
	}
	if r.reranker != nil {
		_ = r.reranker.Close()
	}
	if r.embedder != nil {
		_ = r.embedder.Close()
	}
	if r.metricsDB != nil {
		_ = r.metricsDB.Close()
	}
}

// runMetricsFlusher persists telemetry aggregates until the context is
// cancelled. No-op when SQLite persistence is disabled.
func (r *runtime) runMetricsFlusher(ctx context.Context) {
	if r.metrics == nil {
		return
	}

	records := r.recorder.Subscribe(256)
	ticker := time.NewTicker(r.cfg.Telemetry.FlushInterval)
	defer ticker.Stop()

	var pending []telemetry.Record
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := r.metrics.Flush(pending); err != nil {
			r.logger.Warn("metrics_flush_failed",
				slog.Int("records", len(pending)),
				slog.String("error", err.Error()))
		}
		pending = pending[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case rec := <-records:
			pending = append(pending, rec)
		case <-ticker.C:
			flush()
		}
	}
}

func buildEmbedder(cfg *config.Config, logger *slog.Logger) embed.Embedder {
	var inner embed.Embedder
	switch cfg.Embeddings.Provider {
	case "http":
		he, err := embed.NewHTTPEmbedder(embed.HTTPConfig{
			Host:       cfg.Embeddings.Host,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			Timeout:    cfg.Embeddings.Timeout,
		})
		if err != nil {
			logger.Warn("embedder_unavailable",
				slog.String("host", cfg.Embeddings.Host),
				slog.String("error", err.Error()))
			return nil
		}
		inner = he
	default:
		dims := cfg.Embeddings.Dimensions
		if dims <= 0 {
			dims = embed.DefaultDimensions
		}
		inner = embed.NewStaticEmbedder(dims)
	}
	return embed.NewCachedEmbedder(inner, cfg.Embeddings.CacheSize)
}

func buildReranker(ctx context.Context, cfg *config.Config, logger *slog.Logger) rerank.Reranker {
	if !cfg.Rerank.Enabled {
		return nil
	}
	hr, err := rerank.NewHTTPReranker(ctx, rerank.HTTPConfig{
		Endpoint: cfg.Rerank.Endpoint,
		Model:    cfg.Rerank.Model,
		Timeout:  cfg.Rerank.Timeout,
	})
	if err != nil {
		logger.Warn("reranker_unavailable",
			slog.String("endpoint", cfg.Rerank.Endpoint),
			slog.String("error", err.Error()))
		return nil
	}
	return rerank.NewCachedReranker(hr, cfg.Rerank.CacheSize)
}

// registerStore opens one configured store and registers it. Chunks
// from ChunksPath are loaded for provenance and indexed into any empty
// index.
func (r *runtime) registerStore(ctx context.Context, sc *config.StoreConfig) error {
	sparse, err := store.NewBleveSparseIndex(sc.SparsePath, store.DefaultSparseConfig())
	if err != nil {
		return fmt.Errorf("store %s: open sparse index: %w", sc.Name, err)
	}

	st := &store.Store{
		Name:   sc.Name,
		Sparse: sparse,
	}

	var chunks []*store.Chunk
	if sc.ChunksPath != "" {
		chunks, err = loadChunkRecords(sc.ChunksPath, sc.Name)
		if err != nil {
			_ = sparse.Close()
			return fmt.Errorf("store %s: %w", sc.Name, err)
		}
		source := store.NewMemChunkSource()
		source.Put(chunks...)
		st.Chunks = source

		if sparse.DocCount() == 0 && len(chunks) > 0 {
			if err := sparse.Index(ctx, chunks); err != nil {
				_ = sparse.Close()
				return fmt.Errorf("store %s: index chunks: %w", sc.Name, err)
			}
		}
	}

	if r.embedder != nil {
		dense, err := store.NewHNSWDenseIndex(store.DefaultDenseConfig(r.embedder.Dimensions()))
		if err != nil {
			_ = sparse.Close()
			return fmt.Errorf("store %s: open dense index: %w", sc.Name, err)
		}
		if sc.DensePath != "" {
			if err := dense.Load(sc.DensePath); err != nil {
				r.logger.Warn("dense_snapshot_load_failed",
					slog.String("store", sc.Name),
					slog.String("path", sc.DensePath),
					slog.String("error", err.Error()))
			}
		}
		if dense.Count() == 0 && len(chunks) > 0 {
			if err := r.embedChunks(ctx, dense, chunks); err != nil {
				r.logger.Warn("dense_index_build_failed",
					slog.String("store", sc.Name),
					slog.String("error", err.Error()))
			}
		}
		st.Dense = dense
	}

	r.logger.Info("store_registered",
		slog.String("store", sc.Name),
		slog.Int("sparse_docs", st.Sparse.DocCount()),
		slog.Int("chunks", len(chunks)))
	return r.registry.Register(st)
}

func (r *runtime) embedChunks(ctx context.Context, dense store.DenseIndex, chunks []*store.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vectors, err := r.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if err := dense.Add(ctx, batch, vectors); err != nil {
			return err
		}
	}
	return nil
}

// chunkRecord is the JSONL line format produced by the external chunk
// extractor.
type chunkRecord struct {
	DocID     string   `json:"doc_id"`
	Path      string   `json:"path"`
	Language  string   `json:"language"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Content   string   `json:"content"`
	Symbols   []string `json:"symbols"`
}

// loadChunkRecords reads extractor output (one JSON object per line).
func loadChunkRecords(path, storeName string) ([]*store.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chunks file: %w", err)
	}
	defer f.Close()

	var chunks []*store.Chunk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)

	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		var rec chunkRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("parse chunks file line %d: %w", line, err)
		}
		if rec.DocID == "" {
			return nil, fmt.Errorf("chunks file line %d: doc_id is required", line)
		}
		chunks = append(chunks, &store.Chunk{
			DocID:     rec.DocID,
			Path:      rec.Path,
			Language:  rec.Language,
			StartLine: rec.StartLine,
			EndLine:   rec.EndLine,
			Content:   rec.Content,
			Symbols:   rec.Symbols,
			Store:     storeName,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read chunks file: %w", err)
	}
	return chunks, nil
}
