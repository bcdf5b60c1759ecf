package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bmedi/chatgse-go/internal/chat"
	"github.com/bmedi/chatgse-go/internal/config"
	"github.com/bmedi/chatgse-go/internal/llm"
)

// stubHub scripts the hosted-inference backend.
type stubHub struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubHub) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func newTestBloom(hub *stubHub) *BloomConversation {
	c := NewBloomConversation(config.LLMConfig{Model: "bigscience/bloom", TimeoutSecs: 5}, testPrompts)
	c.newHub = func(string) llm.Generator { return hub }
	return c
}

func TestBloomSetAPIKey_InvalidToken(t *testing.T) {
	hub := &stubHub{err: &llm.HubAPIError{Status: "401 Unauthorized", Message: "invalid token"}}
	c := newTestBloom(hub)
	ok, err := c.SetAPIKey(context.Background(), "bad-token", "test")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBloomSetAPIKey_TransportFailureIsFatal(t *testing.T) {
	hub := &stubHub{err: errors.New("dial tcp: connection refused")}
	c := newTestBloom(hub)
	ok, err := c.SetAPIKey(context.Background(), "token", "test")
	require.Error(t, err)
	require.False(t, ok)
}

func TestBloomQuery_FlattensTranscript(t *testing.T) {
	hub := &stubHub{reply: "BLOOM says hello"}
	c := newTestBloom(hub)
	ok, err := c.SetAPIKey(context.Background(), "token", "test")
	require.NoError(t, err)
	require.True(t, ok)
	c.Setup("cancer genomics")

	res := c.Query(context.Background(), "Hello there")
	require.Equal(t, "BLOOM says hello", res.Text)

	// token usage is unavailable on this backend and reported as zeros,
	// never nil, so the failure signal stays consistent
	require.NotNil(t, res.Usage)
	require.Zero(t, res.Usage.TotalTokens)

	// no distinct correction model: the pass is a no-op
	require.Empty(t, res.Correction)

	// the last prompt is the flattened transcript with role prefixes in
	// transcript order (the first one is the auth probe)
	prompt := hub.prompts[len(hub.prompts)-1]
	require.Contains(t, prompt, "System: You are an assistant to a biomedical researcher.\n")
	require.Contains(t, prompt, "System: The topic of the research is cancer genomics.\n")
	require.Contains(t, prompt, "Human: Hello there\n")

	msgs := c.Transcript()
	require.Equal(t, chat.RoleAI, msgs[len(msgs)-1].Role)
}

func TestBloomQuery_GenerateFails(t *testing.T) {
	hub := &stubHub{reply: "probe ok"}
	c := newTestBloom(hub)
	ok, err := c.SetAPIKey(context.Background(), "token", "test")
	require.NoError(t, err)
	require.True(t, ok)
	c.Setup("cancer genomics")

	hub.err = errors.New("model is overloaded")
	res := c.Query(context.Background(), "Hello")
	require.Nil(t, res.Usage)
	require.Contains(t, res.Text, "model is overloaded")

	// the failed call appended no assistant message
	msgs := c.Transcript()
	require.Equal(t, chat.RoleUser, msgs[len(msgs)-1].Role)
}

func TestBloomSplitCorrectionStillNoOp(t *testing.T) {
	hub := &stubHub{reply: "One. Two. Three."}
	c := NewBloomConversation(config.LLMConfig{Model: "bigscience/bloom", SplitCorrection: true, TimeoutSecs: 5}, testPrompts)
	c.newHub = func(string) llm.Generator { return hub }
	ok, err := c.SetAPIKey(context.Background(), "token", "test")
	require.NoError(t, err)
	require.True(t, ok)
	c.Setup("cancer genomics")

	res := c.Query(context.Background(), "Count")
	require.NotNil(t, res.Usage)
	require.Empty(t, res.Correction)
}
