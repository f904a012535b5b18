package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformToolName(t *testing.T) {
	name := TransformToolName("str_replace_based_edit_tool", map[string]interface{}{"command": "view"})
	assert.Equal(t, "str_replace_based_edit_tool[view]", name)

	name = TransformToolName("str_replace_based_edit_tool", map[string]interface{}{})
	assert.Equal(t, "str_replace_based_edit_tool", name)

	name = TransformToolName("some_other_tool", map[string]interface{}{"command": "view"})
	assert.Equal(t, "some_other_tool", name)
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false}, "test")
	require.NoError(t, err)

	// Spans from a disabled provider are no-ops but must still be usable
	ctx, span := p.StartConversationSpan(context.Background(), NewConversationID(), "session")
	require.NotNil(t, ctx)
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
}
