package memory

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Pinger is implemented by embedders whose backend can be health checked.
// Stores ping during initialization and mark themselves unavailable on failure.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashEmbedder generates deterministic embeddings from an FNV hash of the
// text. Identical texts map to identical vectors; it needs no backend and is
// meant for tests and offline runs.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a hash embedder; dims <= 0 selects 384.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &HashEmbedder{dimensions: dims}
}

// Embed creates a deterministic unit vector from text.
func (m *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (m *HashEmbedder) Dimensions() int { return m.dimensions }

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
