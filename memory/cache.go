package memory

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// CachedEmbedder memoizes embeddings in a ristretto cache. One instance is
// usually shared by every store of a process so repeated situations and
// health probes hit the backend once.
type CachedEmbedder struct {
	next  Embedder
	cache *ristretto.Cache
}

// NewCachedEmbedder wraps next with a cache bounded to maxBytes of vectors.
func NewCachedEmbedder(next Embedder, maxBytes int64) (*CachedEmbedder, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxBytes / 64,
		MaxCost:            maxBytes,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return &CachedEmbedder{next: next, cache: cache}, nil
}

// Embed returns the cached vector for text, computing it on a miss.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return append([]float32(nil), v.([]float32)...), nil
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(text, append([]float32(nil), vec...), int64(4*len(vec)))
	c.cache.Wait()

	return vec, nil
}

// Dimensions returns the wrapped embedder's size.
func (c *CachedEmbedder) Dimensions() int { return c.next.Dimensions() }

// Ping delegates to the wrapped embedder's health check through the cache,
// so a process pings its backend once.
func (c *CachedEmbedder) Ping(ctx context.Context) error {
	if _, ok := c.next.(Pinger); !ok {
		return nil
	}
	_, err := c.Embed(ctx, "ping")
	return err
}

// Close releases the cache.
func (c *CachedEmbedder) Close() { c.cache.Close() }
