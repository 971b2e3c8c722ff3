// Package telemetry records per-query pipeline metrics. All data is
// stored locally - no external reporting.
package telemetry

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultCapacity is the default ring buffer size.
const DefaultCapacity = 10000

// LegStats describes one retriever leg's contribution to a query.
type LegStats struct {
	Count      int     `json:"count"`
	LatencyMs  int64   `json:"latency_ms"`
	TopScore   float64 `json:"top_score"`
	StdDev     float64 `json:"std_dev"`
	Skipped    bool    `json:"skipped,omitempty"`
	SkipReason string  `json:"skip_reason,omitempty"`
}

// FusionStats describes the fused score distribution.
type FusionStats struct {
	Count       int     `json:"count"`
	LatencyMs   int64   `json:"latency_ms"`
	TopScore    float64 `json:"top_score"`
	SecondScore float64 `json:"second_score"`
	ScoreGap    float64 `json:"score_gap"`
	ScoreRatio  float64 `json:"score_ratio"`
}

// RerankStats describes reranker involvement.
type RerankStats struct {
	Enabled    bool   `json:"enabled"`
	Candidates int    `json:"candidates"`
	LatencyMs  int64  `json:"latency_ms"`
	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// CacheStats flags cache hits for the query's external calls.
type CacheStats struct {
	EmbeddingHit bool `json:"embedding_hit"`
	RerankHit    bool `json:"rerank_hit"`
}

// Record is the full telemetry entry for one search request.
type Record struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Store     string    `json:"store"`
	Query     string    `json:"query"`
	Intent    string    `json:"intent"`
	Strategy  string    `json:"strategy"`

	Sparse LegStats    `json:"sparse"`
	Dense  LegStats    `json:"dense"`
	Fusion FusionStats `json:"fusion"`
	Rerank RerankStats `json:"rerank"`
	Cache  CacheStats  `json:"cache"`

	TotalLatencyMs int64 `json:"total_latency_ms"`
	ResultCount    int   `json:"result_count"`
}

// IsZeroResult reports whether the query returned nothing.
func (r Record) IsZeroResult() bool {
	return r.ResultCount == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int // Next write position
	size     int
	capacity int
}

// NewCircularBuffer creates a circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an item. If full, the oldest item is evicted.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity

	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items in FIFO order (oldest first).
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Recorder appends records to a bounded ring buffer and fans them out
// to subscribers. Emission is best-effort: a slow subscriber misses
// events rather than back-pressuring the search path.
type Recorder struct {
	buffer *CircularBuffer[Record]
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers []chan Record
}

// NewRecorder creates a recorder with the given ring capacity.
func NewRecorder(capacity int) *Recorder {
	return &Recorder{
		buffer: NewCircularBuffer[Record](capacity),
		logger: slog.Default(),
	}
}

// Record appends an entry and notifies subscribers without blocking.
func (r *Recorder) Record(rec Record) {
	r.buffer.Add(rec)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.subscribers {
		select {
		case ch <- rec:
		default:
			// Subscriber is behind; skip this event for it.
		}
	}
}

// Subscribe registers a buffered channel receiving future records.
func (r *Recorder) Subscribe(bufferSize int) <-chan Record {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	ch := make(chan Record, bufferSize)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, ch)
	return ch
}

// Records returns the buffered records, oldest first.
func (r *Recorder) Records() []Record {
	return r.buffer.Items()
}

// Size returns the number of buffered records.
func (r *Recorder) Size() int {
	return r.buffer.Size()
}

// Snapshot is an aggregate view over the buffered records.
type Snapshot struct {
	TotalQueries   int                      `json:"total_queries"`
	ZeroResults    int                      `json:"zero_results"`
	AvgLatencyMs   float64                  `json:"avg_latency_ms"`
	IntentCounts   map[string]int           `json:"intent_counts"`
	StrategyCounts map[string]int           `json:"strategy_counts"`
	LatencyBuckets map[LatencyBucket]int    `json:"latency_buckets"`
}

// Snapshot aggregates the current buffer contents.
func (r *Recorder) Snapshot() Snapshot {
	records := r.buffer.Items()

	snap := Snapshot{
		IntentCounts:   make(map[string]int),
		StrategyCounts: make(map[string]int),
		LatencyBuckets: make(map[LatencyBucket]int),
	}
	if len(records) == 0 {
		return snap
	}

	var totalLatency int64
	for _, rec := range records {
		snap.TotalQueries++
		if rec.IsZeroResult() {
			snap.ZeroResults++
		}
		totalLatency += rec.TotalLatencyMs
		snap.IntentCounts[rec.Intent]++
		snap.StrategyCounts[rec.Strategy]++
		snap.LatencyBuckets[LatencyToBucket(time.Duration(rec.TotalLatencyMs)*time.Millisecond)]++
	}
	snap.AvgLatencyMs = float64(totalLatency) / float64(snap.TotalQueries)
	return snap
}
