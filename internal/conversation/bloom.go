package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bmedi/chatgse-go/internal/chat"
	"github.com/bmedi/chatgse-go/internal/config"
	"github.com/bmedi/chatgse-go/internal/llm"
	"github.com/bmedi/chatgse-go/internal/logger"
)

// authProbePrompt is the tiny generation used to validate a Hub credential.
const authProbePrompt = "Hello, I am a biomedical researcher."

// regular sampling, per the Hub inference parameter docs
const bloomTemperature = 1.0

// BloomConversation talks to a Hugging Face hosted-inference backend. The
// backend has no structured chat protocol, so the transcript is flattened to
// role-prefixed plain text before each call. Token usage is unavailable and
// reported as zeros, and there is no distinct correction model.
type BloomConversation struct {
	base

	timeout time.Duration

	// newHub builds the live client during SetAPIKey; tests replace it.
	newHub func(token string) llm.Generator

	hub llm.Generator
}

// NewBloomConversation binds the model repository and the system prompt set.
func NewBloomConversation(cfg config.LLMConfig, prompts config.PromptSet) *BloomConversation {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &BloomConversation{
		base: base{
			modelName:       cfg.Model,
			prompts:         prompts,
			splitCorrection: cfg.SplitCorrection,
		},
		timeout: timeout,
		newHub: func(token string) llm.Generator {
			return llm.NewHubClient(llm.HubConfig{
				RepoID:      cfg.Model,
				Token:       token,
				Temperature: bloomTemperature,
				Timeout:     timeout,
			})
		},
	}
	c.base.backend = c
	return c
}

// SetAPIKey validates the token with one tiny generation call. A validation
// error from the API (invalid credential or model configuration) yields
// false; a transport failure is returned as an error.
func (c *BloomConversation) SetAPIKey(ctx context.Context, apiKey, user string) (bool, error) {
	hub := c.newHub(apiKey)

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := hub.Generate(cctx, authProbePrompt); err != nil {
		var apiErr *llm.HubAPIError
		if errors.As(err, &apiErr) {
			logger.L.Warn("hub authentication failed", "error", err)
			return false, nil
		}
		return false, fmt.Errorf("hub probe failed: %w", err)
	}

	c.hub = hub
	return true, nil
}

func (c *BloomConversation) primaryQuery(ctx context.Context) (string, *chat.TokenUsage) {
	if c.hub == nil {
		return "The conversation is not authenticated yet. Please set a valid API key first.", nil
	}

	prompt, err := flattenTranscript(c.messages)
	if err != nil {
		return err.Error(), nil
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	msg, err := c.hub.Generate(cctx, prompt)
	if err != nil {
		return "Hosted inference failed: " + err.Error(), nil
	}

	// The Hub reports no token counts; zeros keep the caller's
	// success/failure signal consistent with the chat backend.
	c.appendAIMessage(msg)
	return msg, &chat.TokenUsage{}
}

// correctResponse is a no-op: this backend has no correction model, so every
// candidate passes with the OK sentinel.
func (c *BloomConversation) correctResponse(context.Context, string) (string, error) {
	return "ok", nil
}

// flattenTranscript renders the role-tagged transcript as plain text, one
// role-prefixed line per message, in transcript order.
func flattenTranscript(msgs []chat.Message) (string, error) {
	var sb strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case chat.RoleSystem:
			sb.WriteString("System: ")
		case chat.RoleUser:
			sb.WriteString("Human: ")
		case chat.RoleAI:
			sb.WriteString("AI: ")
		default:
			return "", &chat.UnknownRoleError{Role: m.Role}
		}
		sb.WriteString(m.Content)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
