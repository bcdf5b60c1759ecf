package llm

import (
	"github.com/sashabaranov/go-openai"
)

// NewClient creates a new OpenAI client
func NewClient(apiKey, baseURL string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return openai.NewClientWithConfig(config)
}
