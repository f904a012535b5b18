package tools

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/rgould/workshop-sandbox/internal/sandbox"
)

// TextEditorToolName is the name Anthropic's built-in text editor tool answers to
const TextEditorToolName = "str_replace_based_edit_tool"

// TextEditorTool routes Anthropic's built-in text editor tool calls into a sandbox workspace
type TextEditorTool struct{}

// GetToolParam returns the tool parameter definition
func (t *TextEditorTool) GetToolParam() anthropic.ToolParam {
	return anthropic.ToolParam{
		Type: "text_editor_20250728",
		Name: TextEditorToolName,
	}
}

// Run decodes the tool use block into a workspace command and executes it. All failures are reported as
// ToolInputError so the AI sees them as error tool results and can correct itself, mirroring how the
// workspace reports bad paths and missing matches
func (t *TextEditorTool) Run(ctx context.Context, block anthropic.ToolUseBlock, toolCtx *ToolContext) (*string, error) {
	if block.Name != TextEditorToolName {
		return nil, fmt.Errorf("tool use block is for %s, not %s", block.Name, TextEditorToolName)
	}

	cmd, err := sandbox.DecodeCommand(block.Input)
	if err != nil {
		return nil, NewToolInputError(err)
	}

	result, err := toolCtx.Workspace.Run(cmd)
	if err != nil {
		return nil, NewToolInputError(err)
	}
	return &result, nil
}
