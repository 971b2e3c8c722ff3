package store

import (
	"context"
	"sync"
)

// MemChunkSource is an in-memory ChunkSource backed by a map.
// It is the default chunk source for stores whose metadata fits in memory,
// and the fixture used throughout the test suite.
type MemChunkSource struct {
	mu     sync.RWMutex
	chunks map[string]*Chunk
}

// NewMemChunkSource creates an empty in-memory chunk source.
func NewMemChunkSource() *MemChunkSource {
	return &MemChunkSource{chunks: make(map[string]*Chunk)}
}

// Put stores chunks, replacing any with the same doc ID.
func (m *MemChunkSource) Put(chunks ...*Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks[c.DocID] = c
	}
}

// GetChunks fetches chunks by ID. Missing IDs are omitted.
func (m *MemChunkSource) GetChunks(_ context.Context, ids []string) ([]*Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := m.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Len returns the number of stored chunks.
func (m *MemChunkSource) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Close is a no-op for the in-memory source.
func (m *MemChunkSource) Close() error { return nil }

var _ ChunkSource = (*MemChunkSource)(nil)
