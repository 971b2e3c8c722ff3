package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// StaticDimensions is the embedding dimension of the static embedder.
const StaticDimensions = 256

// StaticEmbedder produces deterministic hash-derived embeddings with no
// external service. It has no semantic signal; it exists so the dense
// leg keeps working offline and so tests can run without an embedding
// service.
type StaticEmbedder struct {
	dims int
}

// NewStaticEmbedder creates a static embedder.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed derives a unit vector from SHA-256 of the text.
func (s *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dims)

	// Expand the digest by hashing with a counter suffix until the
	// vector is filled.
	var counter [4]byte
	filled := 0
	for filled < s.dims {
		binary.LittleEndian.PutUint32(counter[:], uint32(filled))
		digest := sha256.Sum256(append([]byte(text), counter[:]...))
		for i := 0; i+4 <= len(digest) && filled < s.dims; i += 4 {
			bits := binary.LittleEndian.Uint32(digest[i : i+4])
			// Map to [-1, 1)
			vec[filled] = float32(int32(bits)) / float32(1<<31)
			filled++
		}
	}

	return normalizeVector(vec), nil
}

// EmbedBatch embeds each text independently.
func (s *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (s *StaticEmbedder) Dimensions() int { return s.dims }

// ModelName returns the model identifier.
func (s *StaticEmbedder) ModelName() string { return "static-hash" }

// Available always reports true.
func (s *StaticEmbedder) Available(context.Context) bool { return true }

// Close is a no-op.
func (s *StaticEmbedder) Close() error { return nil }

var _ Embedder = (*StaticEmbedder)(nil)
