package chat

import (
	"encoding/json"
	"fmt"
)

// Role tags a transcript message. Only the three values below are valid;
// everything else is rejected at export time.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleAI     Role = "ai"
)

// Message is a single entry of a conversation transcript. Messages are
// immutable once appended; the transcript only ever grows within a session.
type Message struct {
	Role    Role
	Content string
}

// TokenUsage is the token consumption of a single backend call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// UnknownRoleError is returned by TranscriptJSON for a message whose role is
// not one of system/user/ai. It fails that export call only.
type UnknownRoleError struct {
	Role Role
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown message role: %q", string(e.Role))
}

// TranscriptJSON renders the transcript as an ordered list of single-key
// objects {role: content}, for logging and audit.
func TranscriptJSON(msgs []Message) ([]byte, error) {
	out := make([]map[string]string, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAI:
			out = append(out, map[string]string{string(m.Role): m.Content})
		default:
			return nil, &UnknownRoleError{Role: m.Role}
		}
	}
	return json.Marshal(out)
}
