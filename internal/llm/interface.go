package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// Client is the minimal subset of openai.Client used by the conversation
// engine; it is easy to mock in tests.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// Embedder is the subset of openai.Client used by the embedding client.
type Embedder interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Generator is a plain-text hosted-inference backend: one prompt in, one
// generation out, no structured chat protocol.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
