package agent

import (
	"encoding/json"

	"github.com/rgould/workshop-sandbox/internal/sandbox"
)

// EventHandler receives progress events while the agent works. Implementations must not block; the agent
// calls them inline between API turns
type EventHandler interface {
	// Text is called for each assistant text block
	Text(text string)
	// ToolCall is called when the assistant requests a tool invocation
	ToolCall(name string, input json.RawMessage)
	// ToolResult is called after a tool invocation completes
	ToolResult(toolUseID string, result string, isError bool)
	// FilesUpdated is called after a batch of tool calls with the workspace's current file listing
	FilesUpdated(files []sandbox.FileInfo)
	// HistoryUpdated is called after a batch of tool calls with the workspace's operation history
	HistoryUpdated(history []sandbox.OperationRecord)
}

// NopHandler is an EventHandler that ignores all events
type NopHandler struct{}

func (NopHandler) Text(string)                              {}
func (NopHandler) ToolCall(string, json.RawMessage)         {}
func (NopHandler) ToolResult(string, string, bool)          {}
func (NopHandler) FilesUpdated([]sandbox.FileInfo)          {}
func (NopHandler) HistoryUpdated([]sandbox.OperationRecord) {}
