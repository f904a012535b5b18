// Package config provides configuration management for the workshop sandbox.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the configuration for the sandbox agent
type Config struct {
	AnthropicAPIKey  string
	Model            string
	MaxOutputTokens  int64
	MaxIterations    int
	SandboxRoot      string
	ConversationsDir string
	TelemetryEnabled bool
	OTLPEndpoint     string
}

// Load loads configuration from environment variables
func Load() Config {
	config := Config{
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		Model:            os.Getenv("SANDBOX_MODEL"),
		MaxOutputTokens:  4096, // Default
		MaxIterations:    20,   // Default
		SandboxRoot:      os.Getenv("SANDBOX_ROOT"),
		ConversationsDir: os.Getenv("CONVERSATIONS_DIR"),
		TelemetryEnabled: os.Getenv("TELEMETRY_ENABLED") == "true",
		OTLPEndpoint:     os.Getenv("OTLP_ENDPOINT"),
	}

	if config.SandboxRoot == "" {
		config.SandboxRoot = "sandbox_sessions"
	}
	if config.ConversationsDir == "" {
		config.ConversationsDir = "conversations"
	}

	if maxTokens := os.Getenv("MAX_OUTPUT_TOKENS"); maxTokens != "" {
		if n, err := strconv.ParseInt(maxTokens, 10, 64); err == nil {
			config.MaxOutputTokens = n
		}
	}
	if maxIterations := os.Getenv("MAX_ITERATIONS"); maxIterations != "" {
		if n, err := strconv.Atoi(maxIterations); err == nil {
			config.MaxIterations = n
		}
	}

	return config
}

// Validate checks if the required configuration is present
func (c Config) Validate() error {
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("missing required environment variable: ANTHROPIC_API_KEY")
	}
	return nil
}
