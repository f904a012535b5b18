package ai

import (
	"context"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	anthropt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSender returns canned responses and captures the params it was called with
type scriptedSender struct {
	responses []anthropic.Message
	calls     []anthropic.MessageNewParams
}

func (ss *scriptedSender) SendMessage(
	_ context.Context,
	params anthropic.MessageNewParams,
	_ ...anthropt.RequestOption,
) (anthropic.Message, error) {
	ss.calls = append(ss.calls, params)
	response := ss.responses[0]
	ss.responses = ss.responses[1:]
	return response, nil
}

func textResponse(text string) anthropic.Message {
	return anthropic.Message{
		Role:       "assistant",
		StopReason: "end_turn",
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: text},
		},
	}
}

func TestConversation_SendMessageRecordsTurn(t *testing.T) {
	sender := &scriptedSender{responses: []anthropic.Message{textResponse("hello back")}}
	conv := NewConversation(sender, anthropic.ModelClaudeSonnet4_0, 4000, nil, "be brief")

	response, err := conv.SendMessage(context.Background(), anthropic.NewTextBlock("hello"))
	require.NoError(t, err)
	require.NotNil(t, response)

	require.Len(t, conv.Messages, 1)
	require.NotNil(t, conv.Messages[0].Response)
	assert.Equal(t, "hello back", conv.Messages[0].Response.Content[0].Text)
}

func TestConversation_SendMessageBuildsParams(t *testing.T) {
	sender := &scriptedSender{responses: []anthropic.Message{textResponse("ok")}}
	tools := []anthropic.ToolParam{{Name: "str_replace_based_edit_tool", Type: "text_editor_20250728"}}
	conv := NewConversation(sender, anthropic.ModelClaudeSonnet4_0, 4000, tools, "be brief")

	_, err := conv.SendMessage(context.Background(), anthropic.NewTextBlock("hello"))
	require.NoError(t, err)

	require.Len(t, sender.calls, 1)
	params := sender.calls[0]
	assert.Equal(t, anthropic.ModelClaudeSonnet4_0, params.Model)
	assert.Equal(t, int64(4000), params.MaxTokens)
	require.Len(t, params.System, 1)
	assert.Equal(t, "be brief", params.System[0].Text)
	require.Len(t, params.Tools, 1)
	assert.Equal(t, "str_replace_based_edit_tool", params.Tools[0].OfTool.Name)
	require.Len(t, params.Messages, 1)
}

func TestConversation_History(t *testing.T) {
	conv := &Conversation{
		systemPrompt: "test prompt",
		Messages:     []ConversationTurn{},
	}

	history := conv.History()

	assert.Equal(t, "test prompt", history.SystemPrompt)
	assert.Equal(t, 0, len(history.Messages))
}

func TestResumeConversation(t *testing.T) {
	sender := &scriptedSender{}

	history := ConversationHistory{
		SystemPrompt: "test system prompt",
		Messages: []ConversationTurn{
			{UserMessage: anthropic.NewUserMessage(anthropic.NewTextBlock("earlier message"))},
		},
	}

	conv := ResumeConversation(sender, history, anthropic.ModelClaudeSonnet4_0, 4000, nil)

	assert.Equal(t, "test system prompt", conv.systemPrompt)
	assert.Equal(t, 1, len(conv.Messages))
}

func TestFileSystemConversationHistoryStore_RoundTrip(t *testing.T) {
	store := NewFileSystemConversationHistoryStore(t.TempDir())

	missing, err := store.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	history := ConversationHistory{SystemPrompt: "prompt", Messages: []ConversationTurn{}}
	require.NoError(t, store.Set("session-1", history))

	loaded, err := store.Get("session-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "prompt", loaded.SystemPrompt)

	require.NoError(t, store.Delete("session-1"))
	deleted, err := store.Get("session-1")
	require.NoError(t, err)
	assert.Nil(t, deleted)

	// Deleting a missing key is not an error
	require.NoError(t, store.Delete("session-1"))
}
