// Package embedding turns passage text into vectors via the OpenAI
// embeddings endpoint. The vector dimension is determined by the model and
// treated as opaque by the rest of the engine.
package embedding

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/bmedi/chatgse-go/internal/llm"
)

// Client embeds texts with a fixed embedding model.
type Client struct {
	api   llm.Embedder
	model openai.EmbeddingModel
}

// NewClient creates an embedding client. The model defaults to ada-002.
func NewClient(api llm.Embedder, model openai.EmbeddingModel) *Client {
	if model == "" {
		model = openai.AdaEmbeddingV2
	}
	return &Client{api: api, model: model}
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
