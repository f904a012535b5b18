package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/require"

	"github.com/rgould/workshop-sandbox/internal/sandbox"
)

func newTestToolContext(t *testing.T) *ToolContext {
	t.Helper()
	ws, err := sandbox.NewWorkspace(filepath.Join(t.TempDir(), "session"))
	require.NoError(t, err)
	return &ToolContext{Workspace: ws}
}

func textEditorBlock(input string) anthropic.ToolUseBlock {
	return anthropic.ToolUseBlock{
		ID:    "toolu_test",
		Name:  TextEditorToolName,
		Input: json.RawMessage(input),
	}
}

func TestTextEditorTool_CreateAndView(t *testing.T) {
	toolCtx := newTestToolContext(t)
	tool := &TextEditorTool{}

	result, err := tool.Run(context.Background(), textEditorBlock(`{"command": "create", "path": "notes.txt", "file_text": "alpha\nbeta\n"}`), toolCtx)
	require.NoError(t, err)
	require.Equal(t, "Successfully created notes.txt", *result)

	result, err = tool.Run(context.Background(), textEditorBlock(`{"command": "view", "path": "notes.txt"}`), toolCtx)
	require.NoError(t, err)
	require.Contains(t, *result, "1: alpha")
	require.Contains(t, *result, "2: beta")
}

func TestTextEditorTool_BadInputIsRecoverable(t *testing.T) {
	toolCtx := newTestToolContext(t)
	tool := &TextEditorTool{}

	// Unknown command and missing file are both the AI's mistake, not ours
	_, err := tool.Run(context.Background(), textEditorBlock(`{"command": "delete", "path": "notes.txt"}`), toolCtx)
	require.ErrorAs(t, err, &ToolInputError{})

	_, err = tool.Run(context.Background(), textEditorBlock(`{"command": "view", "path": "missing.txt"}`), toolCtx)
	require.ErrorAs(t, err, &ToolInputError{})
	require.ErrorIs(t, err, sandbox.ErrNotFound)
}

func TestTextEditorTool_RejectsWrongToolName(t *testing.T) {
	toolCtx := newTestToolContext(t)
	tool := &TextEditorTool{}

	block := textEditorBlock(`{"command": "view", "path": "notes.txt"}`)
	block.Name = "some_other_tool"
	_, err := tool.Run(context.Background(), block, toolCtx)
	require.Error(t, err)
	require.NotErrorAs(t, err, &ToolInputError{})
}

func TestToolRegistry_ProcessToolUse(t *testing.T) {
	toolCtx := newTestToolContext(t)
	registry := NewToolRegistry()

	resultBlock, err := registry.ProcessToolUse(context.Background(), textEditorBlock(`{"command": "create", "path": "f.txt", "file_text": "v1\n"}`), toolCtx)
	require.NoError(t, err)
	require.Equal(t, "toolu_test", resultBlock.ToolUseID)
	require.False(t, resultBlock.IsError.Or(false))
	require.Equal(t, "Successfully created f.txt", resultBlock.Content[0].OfText.Text)
}

func TestToolRegistry_ProcessToolUseReportsInputErrors(t *testing.T) {
	toolCtx := newTestToolContext(t)
	registry := NewToolRegistry()

	resultBlock, err := registry.ProcessToolUse(context.Background(), textEditorBlock(`{"command": "str_replace", "path": "f.txt", "old_str": "a", "new_str": "b"}`), toolCtx)
	require.NoError(t, err)
	require.True(t, resultBlock.IsError.Or(false))
	require.Contains(t, resultBlock.Content[0].OfText.Text, "tool input error")
}

func TestToolRegistry_UnknownTool(t *testing.T) {
	toolCtx := newTestToolContext(t)
	registry := NewToolRegistry()

	block := textEditorBlock(`{}`)
	block.Name = "nonexistent_tool"
	_, err := registry.ProcessToolUse(context.Background(), block, toolCtx)
	require.Error(t, err)
}

func TestToolRegistry_GetToolParams(t *testing.T) {
	registry := NewToolRegistry()

	params := registry.GetToolParams()
	require.Len(t, params, 1)
	require.Equal(t, TextEditorToolName, params[0].Name)
}
