// Package agent drives the tool-use loop between the AI and a sandbox workspace.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/rgould/workshop-sandbox/internal/ai"
	"github.com/rgould/workshop-sandbox/internal/sandbox"
	"github.com/rgould/workshop-sandbox/internal/telemetry"
	"github.com/rgould/workshop-sandbox/internal/tools"
)

const (
	defaultMaxIterations   = 20
	defaultMaxOutputTokens = 4096
)

// ErrMaxIterationsReached indicates the AI was still requesting tool calls when the iteration limit was hit
var ErrMaxIterationsReached = errors.New("maximum agent iterations reached")

// Config holds tunables for the agent loop
type Config struct {
	Model           anthropic.Model
	MaxOutputTokens int64
	MaxIterations   int
}

// Agent runs bounded tool-use conversations against a sandbox workspace
type Agent struct {
	sender    ai.MessageSender
	registry  *tools.ToolRegistry
	telemetry *telemetry.Provider
	handler   EventHandler

	model           anthropic.Model
	maxOutputTokens int64
	maxIterations   int
}

// New creates an agent. A nil handler is replaced with NopHandler
func New(sender ai.MessageSender, registry *tools.ToolRegistry, tel *telemetry.Provider, config Config, handler EventHandler) *Agent {
	if handler == nil {
		handler = NopHandler{}
	}
	maxIterations := config.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens <= 0 {
		maxOutputTokens = defaultMaxOutputTokens
	}

	return &Agent{
		sender:    sender,
		registry:  registry,
		telemetry: tel,
		handler:   handler,

		model:           config.Model,
		maxOutputTokens: maxOutputTokens,
		maxIterations:   maxIterations,
	}
}

// Run starts a fresh conversation for the given request and drives it to completion. The returned
// conversation can be persisted and resumed later
func (a *Agent) Run(ctx context.Context, ws *sandbox.Workspace, sessionID string, request string) (*ai.Conversation, error) {
	conversation := ai.NewConversation(
		a.sender,
		a.model,
		a.maxOutputTokens,
		a.registry.GetToolParams(),
		ai.LoadSystemPrompt(),
	)

	err := a.process(ctx, conversation, ws, sessionID, request)
	return conversation, err
}

// Resume continues a previously stored conversation with a new request
func (a *Agent) Resume(ctx context.Context, ws *sandbox.Workspace, sessionID string, history ai.ConversationHistory, request string) (*ai.Conversation, error) {
	conversation := ai.ResumeConversation(
		a.sender,
		history,
		a.model,
		a.maxOutputTokens,
		a.registry.GetToolParams(),
	)

	err := a.process(ctx, conversation, ws, sessionID, request)
	return conversation, err
}

func (a *Agent) process(ctx context.Context, conversation *ai.Conversation, ws *sandbox.Workspace, sessionID string, request string) error {
	files, err := ws.ListFiles()
	if err != nil {
		return fmt.Errorf("failed to list workspace files: %w", err)
	}
	prompt, err := ai.GeneratePrompt(request, files)
	if err != nil {
		return fmt.Errorf("failed to generate prompt: %w", err)
	}

	conversationID := telemetry.NewConversationID()
	ctx, conversationSpan := a.telemetry.StartConversationSpan(ctx, conversationID, sessionID)
	defer conversationSpan.End()

	toolCtx := &tools.ToolContext{Workspace: ws}
	content := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(prompt)}

	for i := 0; i < a.maxIterations; i++ {
		response, toolResults, err := a.runTurn(ctx, conversation, toolCtx, i, content)
		if err != nil {
			return err
		}

		if response.StopReason != anthropic.StopReasonToolUse {
			return nil
		}
		if len(toolResults) == 0 {
			return fmt.Errorf("response stopped for tool use but contained no tool calls")
		}

		// Mirror the workspace state back to the caller after each batch of edits
		files, err := ws.ListFiles()
		if err != nil {
			return fmt.Errorf("failed to list workspace files: %w", err)
		}
		a.handler.FilesUpdated(files)
		a.handler.HistoryUpdated(ws.History())

		content = toolResults
	}

	return fmt.Errorf("%w (%d)", ErrMaxIterationsReached, a.maxIterations)
}

func (a *Agent) runTurn(
	ctx context.Context,
	conversation *ai.Conversation,
	toolCtx *tools.ToolContext,
	turnIndex int,
	content []anthropic.ContentBlockParamUnion,
) (*anthropic.Message, []anthropic.ContentBlockParamUnion, error) {
	ctx, turnSpan := a.telemetry.StartTurnSpan(ctx, telemetry.NewTurnID(), turnIndex)
	defer turnSpan.End()

	response, err := conversation.SendMessage(ctx, content...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get response: %w", err)
	}

	telemetry.RecordTokenUsage(turnSpan, telemetry.TokenUsage{
		InputTokens:         response.Usage.InputTokens,
		OutputTokens:        response.Usage.OutputTokens,
		CacheReadTokens:     response.Usage.CacheReadInputTokens,
		CacheCreationTokens: response.Usage.CacheCreationInputTokens,
	})

	var toolResults []anthropic.ContentBlockParamUnion
	for _, block := range response.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			a.handler.Text(b.Text)

		case anthropic.ToolUseBlock:
			a.handler.ToolCall(b.Name, b.Input)

			resultBlock, err := a.registry.ProcessToolUse(ctx, b, toolCtx)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to process tool use: %w", err)
			}

			resultText := toolResultText(resultBlock)
			isError := resultBlock.IsError.Or(false)
			a.handler.ToolResult(b.ID, resultText, isError)

			telemetry.RecordToolUse(ctx, telemetry.ToolUseTelemetry{
				ToolName:       qualifiedToolName(b),
				ToolUseSize:    len(b.Input),
				ToolResultSize: len(resultText),
				HasError:       isError,
			})

			toolResults = append(toolResults, anthropic.ContentBlockParamUnion{OfToolResult: resultBlock})
		}
	}

	return response, toolResults, nil
}

func toolResultText(resultBlock *anthropic.ToolResultBlockParam) string {
	var text strings.Builder
	for _, content := range resultBlock.Content {
		if content.OfText != nil {
			text.WriteString(content.OfText.Text)
		}
	}
	return text.String()
}

func qualifiedToolName(block anthropic.ToolUseBlock) string {
	var input map[string]interface{}
	if err := json.Unmarshal(block.Input, &input); err != nil {
		log.Printf("Warning: failed to parse tool input for telemetry: %v", err)
		return block.Name
	}
	return telemetry.TransformToolName(block.Name, input)
}
