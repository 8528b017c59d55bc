package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	*HashEmbedder
	calls int
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.HashEmbedder.Embed(ctx, text)
}

type pingingEmbedder struct{ *countingEmbedder }

func (pingingEmbedder) Ping(context.Context) error { return nil }

func TestCachedEmbedderMemoizes(t *testing.T) {
	ctx := context.Background()
	next := &countingEmbedder{HashEmbedder: NewHashEmbedder(16)}
	c, err := NewCachedEmbedder(next, 0)
	require.NoError(t, err)
	defer c.Close()

	a, err := c.Embed(ctx, "same text")
	require.NoError(t, err)
	b, err := c.Embed(ctx, "same text")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, 16, c.Dimensions())

	b[0] = 42
	again, _ := c.Embed(ctx, "same text")
	assert.NotEqual(t, float32(42), again[0], "cached vectors are copied")
}

func TestCachedEmbedderDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	next := &countingEmbedder{HashEmbedder: NewHashEmbedder(8), err: errors.New("rate limited")}
	c, err := NewCachedEmbedder(next, 1<<20)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Embed(ctx, "x")
	assert.Error(t, err)
	next.err = nil
	_, err = c.Embed(ctx, "x")
	assert.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedEmbedderPingOnce(t *testing.T) {
	ctx := context.Background()
	next := &countingEmbedder{HashEmbedder: NewHashEmbedder(8)}
	c, err := NewCachedEmbedder(pingingEmbedder{next}, 0)
	require.NoError(t, err)
	defer c.Close()

	r := NewRegistry(func(o *RegistryOptions) { o.Embedder = c })
	_, err = r.CreateInstances(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls, "five stores share one health probe")

	plain, err := NewCachedEmbedder(NewHashEmbedder(8), 0)
	require.NoError(t, err)
	defer plain.Close()
	assert.NoError(t, plain.Ping(ctx))
}
