package chat

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTranscriptJSON_OrderAndRoles(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: "You are a helpful assistant."},
		{Role: RoleUser, Content: "Hello"},
		{Role: RoleAI, Content: "Hi there"},
	}

	data, err := TranscriptJSON(msgs)
	require.NoError(t, err)

	var out []map[string]string
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 3)

	require.Equal(t, map[string]string{"system": "You are a helpful assistant."}, out[0])
	require.Equal(t, map[string]string{"user": "Hello"}, out[1])
	require.Equal(t, map[string]string{"ai": "Hi there"}, out[2])
}

func TestTranscriptJSON_UnknownRole(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: "ok"},
		{Role: Role("tool"), Content: "nope"},
	}

	_, err := TranscriptJSON(msgs)
	var unknownErr *UnknownRoleError
	require.True(t, errors.As(err, &unknownErr))
	require.Equal(t, Role("tool"), unknownErr.Role)
}

func TestTranscriptJSON_Empty(t *testing.T) {
	data, err := TranscriptJSON(nil)
	require.NoError(t, err)
	require.JSONEq(t, "[]", string(data))
}
