package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/rgould/workshop-sandbox/internal/agent"
	"github.com/rgould/workshop-sandbox/internal/ai"
	"github.com/rgould/workshop-sandbox/internal/sandbox"
	"github.com/rgould/workshop-sandbox/internal/tools"
)

var chatSessionID string

var chatCmd = &cobra.Command{
	Use:   "chat <request>",
	Short: "Send a request to the AI and let it edit files in a sandbox session",
	Long: `Sends a request to the AI assistant, which works on it using the text editor
tool inside a sandboxed session workspace. Without --session a new session is
created; with --session the request continues the existing conversation.`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "Session ID to continue, empty to start a new session")

	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := setupContext()

	if err := cfg.Validate(); err != nil {
		return err
	}

	telemetryProvider, err := createTelemetryProvider(ctx)
	if err != nil {
		return fmt.Errorf("failed to create telemetry provider: %w", err)
	}
	defer func() {
		if err := telemetryProvider.Shutdown(ctx); err != nil {
			log.Printf("Warning: failed to shut down telemetry: %v", err)
		}
	}()

	registry := sandbox.NewRegistry(cfg.SandboxRoot)

	var sessionID string
	var ws *sandbox.Workspace
	if chatSessionID == "" {
		sessionID, ws, err = registry.Create()
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		log.Printf("Created session %s", sessionID)
	} else {
		sessionID = chatSessionID
		ws, err = registry.GetOrCreate(sessionID)
		if err != nil {
			return fmt.Errorf("failed to open session %s: %w", sessionID, err)
		}
	}

	anthropicClient := createAnthropicClient(cfg.AnthropicAPIKey)
	sender := ai.NewStreamingMessageSender(anthropicClient)

	a := agent.New(sender, tools.NewToolRegistry(), telemetryProvider, agent.Config{
		Model:           resolveModel(),
		MaxOutputTokens: cfg.MaxOutputTokens,
		MaxIterations:   cfg.MaxIterations,
	}, consoleHandler{})

	store := ai.NewFileSystemConversationHistoryStore(cfg.ConversationsDir)
	history, err := store.Get(sessionID)
	if err != nil {
		return fmt.Errorf("failed to load conversation history: %w", err)
	}

	var conversation *ai.Conversation
	if history != nil {
		conversation, err = a.Resume(ctx, ws, sessionID, *history, args[0])
	} else {
		conversation, err = a.Run(ctx, ws, sessionID, args[0])
	}

	// Persist whatever progress was made, even if the run failed partway
	if conversation != nil {
		if storeErr := store.Set(sessionID, conversation.History()); storeErr != nil {
			log.Printf("Warning: failed to store conversation history: %v", storeErr)
		}
	}

	if errors.Is(err, agent.ErrMaxIterationsReached) {
		log.Printf("Stopped: %v. Run chat again with --session %s to continue.", err, sessionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("agent failed: %w", err)
	}

	fmt.Printf("\nSession: %s\n", sessionID)
	return nil
}

// consoleHandler prints agent progress to the terminal
type consoleHandler struct{}

func (consoleHandler) Text(text string) {
	fmt.Println(text)
}

func (consoleHandler) ToolCall(name string, input json.RawMessage) {
	log.Printf("Tool call: %s %s", name, summarizeToolInput(input))
}

func (consoleHandler) ToolResult(_ string, result string, isError bool) {
	if isError {
		log.Printf("Tool error: %s", result)
	} else {
		log.Printf("Tool result: %s", result)
	}
}

func (consoleHandler) FilesUpdated(files []sandbox.FileInfo) {
	log.Printf("Workspace now holds %d file(s)", len(files))
}

func (consoleHandler) HistoryUpdated(history []sandbox.OperationRecord) {
	log.Printf("Operation history: %d record(s)", len(history))
}

func summarizeToolInput(input json.RawMessage) string {
	var fields struct {
		Command string `json:"command"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(input, &fields); err != nil {
		return ""
	}
	return fmt.Sprintf("%s %s", fields.Command, fields.Path)
}
