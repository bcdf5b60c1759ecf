package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neurosnap/sentences/english"
	"github.com/sashabaranov/go-openai"

	"github.com/bmedi/chatgse-go/internal/chat"
	"github.com/bmedi/chatgse-go/internal/config"
	"github.com/bmedi/chatgse-go/internal/llm"
	"github.com/bmedi/chatgse-go/internal/logger"
	"github.com/bmedi/chatgse-go/internal/usage"
)

const defaultCorrectionModel = "gpt-3.5-turbo"

// communityUser is the only identity whose token usage is recorded.
const communityUser = "community"

var errNoChoices = errors.New("backend returned no response choices")

// GptConversation talks to an OpenAI-style chat-completion backend. A
// second, independently configured model instance provides corrections to
// the primary output.
type GptConversation struct {
	base

	caModelName string
	timeout     time.Duration

	// newClient builds the live client handles during SetAPIKey; tests
	// replace it with a factory returning mocks.
	newClient func(apiKey string) llm.Client

	chat   llm.Client
	caChat llm.Client

	user       string
	usageStore *usage.Store
}

// NewGptConversation binds the model name, the system prompt set and the
// correction granularity. The sentence tokenizer data is loaded here, once,
// so a missing resource fails configuration instead of a mid-query fetch.
func NewGptConversation(cfg config.LLMConfig, prompts config.PromptSet) (*GptConversation, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, err
	}

	caModel := cfg.CorrectionModel
	if caModel == "" {
		caModel = defaultCorrectionModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &GptConversation{
		base: base{
			modelName:       cfg.Model,
			prompts:         prompts,
			splitCorrection: cfg.SplitCorrection,
			tokenizer:       tokenizer,
		},
		caModelName: caModel,
		timeout:     timeout,
		newClient: func(apiKey string) llm.Client {
			return llm.NewClient(apiKey, cfg.BaseURL)
		},
	}
	c.base.backend = c
	return c, nil
}

// SetUsageStore enables token accounting for this session.
func (c *GptConversation) SetUsageStore(s *usage.Store) {
	c.usageStore = s
}

// SetAPIKey probes the backend with a lightweight model listing. On success
// the primary and correction client handles are constructed; a rejected
// credential yields false and leaves the transcript untouched, so
// re-authenticating never duplicates system prompts. Probe failures other
// than an authentication rejection are returned as errors.
func (c *GptConversation) SetAPIKey(ctx context.Context, apiKey, user string) (bool, error) {
	client := c.newClient(apiKey)

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := client.ListModels(cctx); err != nil {
		if llm.Classify(err) == llm.ErrKindAuthentication {
			logger.L.Warn("authentication failed", "error", err)
			return false, nil
		}
		return false, fmt.Errorf("backend probe failed: %w", err)
	}

	c.chat = client
	c.caChat = client
	c.user = user
	return true, nil
}

func (c *GptConversation) primaryQuery(ctx context.Context) (string, *chat.TokenUsage) {
	if c.chat == nil {
		return "The conversation is not authenticated yet. Please set a valid API key first.", nil
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.chat.CreateChatCompletion(cctx, openai.ChatCompletionRequest{
		Model:    c.modelName,
		Messages: toOpenAIMessages(c.messages),
	})
	if err != nil {
		return llm.Describe(err), nil
	}
	if len(resp.Choices) == 0 {
		return "The backend returned no response choices.", nil
	}

	msg := resp.Choices[0].Message.Content
	tokenUsage := &chat.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	c.recordUsage(c.modelName, *tokenUsage)
	c.appendAIMessage(msg)
	return msg, tokenUsage
}

// correctResponse runs one correcting-agent call over a fresh transcript
// seeded from the correction system prompts.
func (c *GptConversation) correctResponse(ctx context.Context, msg string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.caChat.CreateChatCompletion(cctx, openai.ChatCompletionRequest{
		Model:    c.caModelName,
		Messages: toOpenAIMessages(c.correctionSeed(msg)),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}

	c.recordUsage(c.caModelName, chat.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	})
	return resp.Choices[0].Message.Content, nil
}

func (c *GptConversation) recordUsage(model string, u chat.TokenUsage) {
	if c.usageStore == nil || c.user != communityUser {
		return
	}
	c.usageStore.Record(c.user, model, u)
}

func toOpenAIMessages(msgs []chat.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		role := openai.ChatMessageRoleSystem
		switch m.Role {
		case chat.RoleUser:
			role = openai.ChatMessageRoleUser
		case chat.RoleAI:
			role = openai.ChatMessageRoleAssistant
		}
		out[i] = openai.ChatCompletionMessage{Role: role, Content: m.Content}
	}
	return out
}
