package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "key")
	t.Setenv("SANDBOX_ROOT", "")
	t.Setenv("CONVERSATIONS_DIR", "")
	t.Setenv("MAX_OUTPUT_TOKENS", "")
	t.Setenv("MAX_ITERATIONS", "")

	cfg := Load()
	assert.Equal(t, "sandbox_sessions", cfg.SandboxRoot)
	assert.Equal(t, "conversations", cfg.ConversationsDir)
	assert.Equal(t, int64(4096), cfg.MaxOutputTokens)
	assert.Equal(t, 20, cfg.MaxIterations)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "key")
	t.Setenv("SANDBOX_ROOT", "/tmp/boxes")
	t.Setenv("MAX_OUTPUT_TOKENS", "8192")
	t.Setenv("MAX_ITERATIONS", "5")
	t.Setenv("TELEMETRY_ENABLED", "true")
	t.Setenv("OTLP_ENDPOINT", "http://localhost:4318")

	cfg := Load()
	assert.Equal(t, "/tmp/boxes", cfg.SandboxRoot)
	assert.Equal(t, int64(8192), cfg.MaxOutputTokens)
	assert.Equal(t, 5, cfg.MaxIterations)
	assert.True(t, cfg.TelemetryEnabled)
	assert.Equal(t, "http://localhost:4318", cfg.OTLPEndpoint)
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := Config{}
	require.Error(t, cfg.Validate())
}
