package agent

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	anthropt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgould/workshop-sandbox/internal/sandbox"
	"github.com/rgould/workshop-sandbox/internal/telemetry"
	"github.com/rgould/workshop-sandbox/internal/tools"
)

// scriptedSender replays canned responses. The last response repeats if the script runs out
type scriptedSender struct {
	responses []anthropic.Message
	callCount int
}

func (ss *scriptedSender) SendMessage(
	_ context.Context,
	_ anthropic.MessageNewParams,
	_ ...anthropt.RequestOption,
) (anthropic.Message, error) {
	ss.callCount++
	response := ss.responses[0]
	if len(ss.responses) > 1 {
		ss.responses = ss.responses[1:]
	}
	return response, nil
}

// messageFromJSON builds a message the same way the SDK does, so content block unions carry the raw JSON
// that AsAny and ToParam rely on
func messageFromJSON(t *testing.T, raw string) anthropic.Message {
	t.Helper()
	var msg anthropic.Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	return msg
}

// recordingHandler captures every event for assertions
type recordingHandler struct {
	texts        []string
	toolCalls    []string
	toolResults  []string
	toolErrors   []bool
	filesUpdates [][]sandbox.FileInfo
	historyLens  []int
}

func (rh *recordingHandler) Text(text string) { rh.texts = append(rh.texts, text) }
func (rh *recordingHandler) ToolCall(name string, _ json.RawMessage) {
	rh.toolCalls = append(rh.toolCalls, name)
}
func (rh *recordingHandler) ToolResult(_ string, result string, isError bool) {
	rh.toolResults = append(rh.toolResults, result)
	rh.toolErrors = append(rh.toolErrors, isError)
}
func (rh *recordingHandler) FilesUpdated(files []sandbox.FileInfo) {
	rh.filesUpdates = append(rh.filesUpdates, files)
}
func (rh *recordingHandler) HistoryUpdated(history []sandbox.OperationRecord) {
	rh.historyLens = append(rh.historyLens, len(history))
}

func newTestAgent(t *testing.T, sender *scriptedSender, config Config, handler EventHandler) *Agent {
	t.Helper()
	tel, err := telemetry.NewProvider(context.Background(), telemetry.Config{Enabled: false}, "test")
	require.NoError(t, err)
	return New(sender, tools.NewToolRegistry(), tel, config, handler)
}

const toolUseResponse = `{
	"id": "msg_1",
	"type": "message",
	"role": "assistant",
	"model": "claude-sonnet-4-0",
	"stop_reason": "tool_use",
	"content": [
		{"type": "text", "text": "Creating the file"},
		{
			"type": "tool_use",
			"id": "toolu_1",
			"name": "str_replace_based_edit_tool",
			"input": {"command": "create", "path": "hello.txt", "file_text": "hi\n"}
		}
	],
	"usage": {"input_tokens": 10, "output_tokens": 20}
}`

const endTurnResponse = `{
	"id": "msg_2",
	"type": "message",
	"role": "assistant",
	"model": "claude-sonnet-4-0",
	"stop_reason": "end_turn",
	"content": [{"type": "text", "text": "Done"}],
	"usage": {"input_tokens": 30, "output_tokens": 5}
}`

func TestAgent_RunExecutesToolCallsUntilEndTurn(t *testing.T) {
	sender := &scriptedSender{responses: []anthropic.Message{
		messageFromJSON(t, toolUseResponse),
		messageFromJSON(t, endTurnResponse),
	}}
	handler := &recordingHandler{}
	agent := newTestAgent(t, sender, Config{Model: anthropic.ModelClaudeSonnet4_0}, handler)

	ws, err := sandbox.NewWorkspace(filepath.Join(t.TempDir(), "session"))
	require.NoError(t, err)

	conversation, err := agent.Run(context.Background(), ws, "session", "Create hello.txt")
	require.NoError(t, err)
	require.NotNil(t, conversation)
	assert.Equal(t, 2, sender.callCount)

	// The tool call must have mutated the workspace
	content, err := ws.GetFileContent("hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", content)

	assert.Equal(t, []string{"Creating the file", "Done"}, handler.texts)
	assert.Equal(t, []string{"str_replace_based_edit_tool"}, handler.toolCalls)
	assert.Equal(t, []string{"Successfully created hello.txt"}, handler.toolResults)
	assert.Equal(t, []bool{false}, handler.toolErrors)

	require.Len(t, handler.filesUpdates, 1)
	require.Len(t, handler.filesUpdates[0], 1)
	assert.Equal(t, "hello.txt", handler.filesUpdates[0][0].Path)
	assert.Equal(t, []int{1}, handler.historyLens)

	// The conversation records one turn per API call
	assert.Len(t, conversation.Messages, 2)
}

func TestAgent_ToolErrorsAreFedBackNotFatal(t *testing.T) {
	badToolUse := `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-0",
		"stop_reason": "tool_use",
		"content": [{
			"type": "tool_use",
			"id": "toolu_1",
			"name": "str_replace_based_edit_tool",
			"input": {"command": "view", "path": "missing.txt"}
		}],
		"usage": {"input_tokens": 10, "output_tokens": 20}
	}`
	sender := &scriptedSender{responses: []anthropic.Message{
		messageFromJSON(t, badToolUse),
		messageFromJSON(t, endTurnResponse),
	}}
	handler := &recordingHandler{}
	agent := newTestAgent(t, sender, Config{Model: anthropic.ModelClaudeSonnet4_0}, handler)

	ws, err := sandbox.NewWorkspace(filepath.Join(t.TempDir(), "session"))
	require.NoError(t, err)

	_, err = agent.Run(context.Background(), ws, "session", "View a file")
	require.NoError(t, err)

	require.Equal(t, []bool{true}, handler.toolErrors)
	assert.Contains(t, handler.toolResults[0], "tool input error")
}

func TestAgent_MaxIterations(t *testing.T) {
	// The script never ends the turn, so the agent must give up at the iteration limit
	sender := &scriptedSender{responses: []anthropic.Message{
		messageFromJSON(t, toolUseResponse),
		messageFromJSON(t, `{
			"id": "msg_n",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-0",
			"stop_reason": "tool_use",
			"content": [{
				"type": "tool_use",
				"id": "toolu_n",
				"name": "str_replace_based_edit_tool",
				"input": {"command": "view", "path": "hello.txt"}
			}],
			"usage": {"input_tokens": 10, "output_tokens": 20}
		}`),
	}}
	agent := newTestAgent(t, sender, Config{Model: anthropic.ModelClaudeSonnet4_0, MaxIterations: 3}, nil)

	ws, err := sandbox.NewWorkspace(filepath.Join(t.TempDir(), "session"))
	require.NoError(t, err)

	_, err = agent.Run(context.Background(), ws, "session", "Loop forever")
	require.ErrorIs(t, err, ErrMaxIterationsReached)
	assert.Equal(t, 3, sender.callCount)
}

func TestAgent_ResumeContinuesStoredConversation(t *testing.T) {
	sender := &scriptedSender{responses: []anthropic.Message{
		messageFromJSON(t, endTurnResponse),
	}}
	agent := newTestAgent(t, sender, Config{Model: anthropic.ModelClaudeSonnet4_0}, nil)

	ws, err := sandbox.NewWorkspace(filepath.Join(t.TempDir(), "session"))
	require.NoError(t, err)

	first, err := agent.Run(context.Background(), ws, "session", "First request")
	require.NoError(t, err)
	history := first.History()

	sender.responses = []anthropic.Message{messageFromJSON(t, endTurnResponse)}
	conversation, err := agent.Resume(context.Background(), ws, "session", history, "And now?")
	require.NoError(t, err)

	// One turn from the original run plus one from the resume
	assert.Len(t, conversation.Messages, 2)
	assert.Equal(t, history.SystemPrompt, conversation.History().SystemPrompt)
}
