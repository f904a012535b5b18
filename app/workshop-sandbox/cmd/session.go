package cmd

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/rgould/workshop-sandbox/internal/ai"
	"github.com/rgould/workshop-sandbox/internal/sandbox"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and manage sandbox sessions",
}

var sessionFilesCmd = &cobra.Command{
	Use:   "files <session-id>",
	Short: "List files in a session workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openSession(args[0])
		if err != nil {
			return err
		}
		files, err := ws.ListFiles()
		if err != nil {
			return fmt.Errorf("failed to list files: %w", err)
		}
		if len(files) == 0 {
			fmt.Println("(no files)")
			return nil
		}
		for _, file := range files {
			fmt.Printf("%8d  %s  %s\n", file.Size, file.Modified.Format("2006-01-02 15:04:05"), file.Path)
		}
		return nil
	},
}

var sessionHistoryCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Show the operation history of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openSession(args[0])
		if err != nil {
			return err
		}
		history := ws.History()
		if len(history) == 0 {
			fmt.Println("(no operations)")
			return nil
		}
		for _, record := range history {
			details := ""
			if len(record.Details) > 0 {
				if b, err := json.Marshal(record.Details); err == nil {
					details = " " + string(b)
				}
			}
			fmt.Printf("%s  %-12s %s%s\n",
				record.Timestamp.Format("2006-01-02 15:04:05"), record.Command, record.Path, details)
		}
		return nil
	},
}

var sessionCatCmd = &cobra.Command{
	Use:   "cat <session-id> <path>",
	Short: "Print the content of a file in a session workspace",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openSession(args[0])
		if err != nil {
			return err
		}
		content, err := ws.GetFileContent(args[1])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[1], err)
		}
		fmt.Print(content)
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>",
	Short: "Delete a session workspace and its conversation history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := sandbox.NewRegistry(cfg.SandboxRoot)
		if _, err := registry.Open(args[0]); err != nil {
			return err
		}
		if err := registry.Delete(args[0]); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}

		store := ai.NewFileSystemConversationHistoryStore(cfg.ConversationsDir)
		if err := store.Delete(args[0]); err != nil {
			log.Printf("Warning: failed to delete conversation history: %v", err)
		}

		fmt.Printf("Deleted session %s\n", args[0])
		return nil
	},
}

// openSession attaches to an existing session for read-only inspection. It
// never creates a workspace directory for an unknown id.
func openSession(sessionID string) (*sandbox.Workspace, error) {
	registry := sandbox.NewRegistry(cfg.SandboxRoot)
	return registry.Open(sessionID)
}

func init() {
	sessionCmd.AddCommand(sessionFilesCmd)
	sessionCmd.AddCommand(sessionHistoryCmd)
	sessionCmd.AddCommand(sessionCatCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	rootCmd.AddCommand(sessionCmd)
}
