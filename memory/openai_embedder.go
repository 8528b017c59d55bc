package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIEmbedderOptions configures the OpenAI embeddings client.
type OpenAIEmbedderOptions struct {
	APIKey     string // empty reads OPENAI_API_KEY
	BaseURL    string
	Model      string
	Dimensions int
	MaxRetries int
}

// OpenAIEmbedder embeds text with the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client openai.Client
	opts   OpenAIEmbedderOptions
}

// NewOpenAIEmbedder creates an embedder using the official client.
func NewOpenAIEmbedder(optFns ...func(o *OpenAIEmbedderOptions)) *OpenAIEmbedder {
	opts := OpenAIEmbedderOptions{
		Model:      string(openai.EmbeddingModelTextEmbedding3Small),
		Dimensions: 1536,
		MaxRetries: 2,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	reqOpts := []option.RequestOption{option.WithMaxRetries(opts.MaxRetries)}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &OpenAIEmbedder{client: openai.NewClient(reqOpts...), opts: opts}
}

// Embed returns the embedding of text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.opts.Model),
	}
	if e.opts.Dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.opts.Dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai embeddings: empty response")
	}

	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dimensions returns the configured embedding size.
func (e *OpenAIEmbedder) Dimensions() int { return e.opts.Dimensions }

// Ping checks the backend with a minimal embedding request.
func (e *OpenAIEmbedder) Ping(ctx context.Context) error {
	_, err := e.Embed(ctx, "ping")
	return err
}
