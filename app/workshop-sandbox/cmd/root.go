package cmd

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rgould/workshop-sandbox/internal/config"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "workshop-sandbox",
	Short: "AI file editing agent with sandboxed per-session workspaces",
	Long: `Workshop Sandbox drives an AI assistant that edits files through Anthropic's
text editor tool. Each session gets an isolated workspace directory with
backup-based undo and a full operation history.`,
	PersistentPreRun: loadRootConfig,
}

func Execute() error {
	return rootCmd.Execute()
}

func loadRootConfig(_ *cobra.Command, _ []string) {
	// Load .env file
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg = config.Load()
}
