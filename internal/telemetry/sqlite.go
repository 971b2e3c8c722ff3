package telemetry

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// maxZeroResultRows bounds the persisted zero-result query log.
const maxZeroResultRows = 100

// SQLiteMetricsStore persists aggregated telemetry to SQLite so intent
// distributions and latency histograms survive restarts. The in-memory
// ring buffer remains the source of truth for recent records; this
// store only holds daily aggregates.
type SQLiteMetricsStore struct {
	db *sql.DB
}

// OpenMetricsDB opens (or creates) the metrics database at path and
// initializes the schema. Use ":memory:" for tests.
func OpenMetricsDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open metrics db: %w", err)
	}
	if err := InitTelemetrySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewSQLiteMetricsStore creates a SQLite-backed metrics store.
func NewSQLiteMetricsStore(db *sql.DB) (*SQLiteMetricsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &SQLiteMetricsStore{db: db}, nil
}

// InitTelemetrySchema creates the telemetry tables if they don't exist.
func InitTelemetrySchema(db *sql.DB) error {
	schema := `
	-- Intent frequency (aggregated daily)
	CREATE TABLE IF NOT EXISTS intent_stats (
		date TEXT NOT NULL,
		intent TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, intent)
	);

	-- Strategy frequency (aggregated daily)
	CREATE TABLE IF NOT EXISTS strategy_stats (
		date TEXT NOT NULL,
		strategy TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, strategy)
	);

	-- Zero-result queries (bounded log)
	CREATE TABLE IF NOT EXISTS zero_result_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		store TEXT NOT NULL,
		query TEXT NOT NULL,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Latency histogram (buckets: <10ms, 10-50ms, 50-100ms, 100-500ms, >=500ms)
	CREATE TABLE IF NOT EXISTS query_latency_stats (
		date TEXT NOT NULL,
		bucket TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, bucket)
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// Flush persists a batch of records as daily aggregates.
func (s *SQLiteMetricsStore) Flush(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	intentStmt, err := tx.Prepare(`
		INSERT INTO intent_stats (date, intent, count)
		VALUES (?, ?, 1)
		ON CONFLICT(date, intent) DO UPDATE SET count = count + 1
	`)
	if err != nil {
		return fmt.Errorf("prepare intent statement: %w", err)
	}
	defer intentStmt.Close()

	strategyStmt, err := tx.Prepare(`
		INSERT INTO strategy_stats (date, strategy, count)
		VALUES (?, ?, 1)
		ON CONFLICT(date, strategy) DO UPDATE SET count = count + 1
	`)
	if err != nil {
		return fmt.Errorf("prepare strategy statement: %w", err)
	}
	defer strategyStmt.Close()

	latencyStmt, err := tx.Prepare(`
		INSERT INTO query_latency_stats (date, bucket, count)
		VALUES (?, ?, 1)
		ON CONFLICT(date, bucket) DO UPDATE SET count = count + 1
	`)
	if err != nil {
		return fmt.Errorf("prepare latency statement: %w", err)
	}
	defer latencyStmt.Close()

	zeroStmt, err := tx.Prepare(`
		INSERT INTO zero_result_queries (store, query, timestamp)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare zero-result statement: %w", err)
	}
	defer zeroStmt.Close()

	for _, rec := range records {
		date := rec.Timestamp.UTC().Format("2006-01-02")
		bucket := LatencyToBucket(time.Duration(rec.TotalLatencyMs) * time.Millisecond)

		if _, err := intentStmt.Exec(date, rec.Intent); err != nil {
			return fmt.Errorf("upsert intent count: %w", err)
		}
		if _, err := strategyStmt.Exec(date, rec.Strategy); err != nil {
			return fmt.Errorf("upsert strategy count: %w", err)
		}
		if _, err := latencyStmt.Exec(date, string(bucket)); err != nil {
			return fmt.Errorf("upsert latency bucket: %w", err)
		}
		if rec.IsZeroResult() {
			if _, err := zeroStmt.Exec(rec.Store, rec.Query, rec.Timestamp.UTC()); err != nil {
				return fmt.Errorf("insert zero-result query: %w", err)
			}
		}
	}

	// Trim the zero-result log to its bound.
	if _, err := tx.Exec(`
		DELETE FROM zero_result_queries
		WHERE id NOT IN (
			SELECT id FROM zero_result_queries ORDER BY id DESC LIMIT ?
		)
	`, maxZeroResultRows); err != nil {
		return fmt.Errorf("trim zero-result queries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetIntentCounts retrieves summed intent counts for a date range
// (inclusive, YYYY-MM-DD).
func (s *SQLiteMetricsStore) GetIntentCounts(from, to string) (map[string]int64, error) {
	rows, err := s.db.Query(`
		SELECT intent, SUM(count) AS total
		FROM intent_stats
		WHERE date >= ? AND date <= ?
		GROUP BY intent
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query intent counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var intent string
		var count int64
		if err := rows.Scan(&intent, &count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[intent] = count
	}
	return counts, rows.Err()
}

// ZeroResultQuery is one persisted query that returned nothing.
type ZeroResultQuery struct {
	Store     string
	Query     string
	Timestamp time.Time
}

// GetZeroResultQueries returns the most recent zero-result queries.
func (s *SQLiteMetricsStore) GetZeroResultQueries(limit int) ([]ZeroResultQuery, error) {
	if limit <= 0 || limit > maxZeroResultRows {
		limit = maxZeroResultRows
	}
	rows, err := s.db.Query(`
		SELECT store, query, timestamp
		FROM zero_result_queries
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	defer rows.Close()

	var out []ZeroResultQuery
	for rows.Next() {
		var q ZeroResultQuery
		if err := rows.Scan(&q.Store, &q.Query, &q.Timestamp); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
