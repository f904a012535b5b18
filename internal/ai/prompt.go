package ai

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/rgould/workshop-sandbox/internal/sandbox"
)

//go:embed prompt_template.tmpl
var promptTemplate string

//go:embed system_prompt.md
var systemPrompt string

// LoadSystemPrompt returns the default system prompt for the sandbox assistant
func LoadSystemPrompt() string {
	return systemPrompt
}

// GeneratePrompt renders the user's request together with a snapshot of the workspace contents, so the AI
// knows what already exists before its first tool call
func GeneratePrompt(request string, files []sandbox.FileInfo) (string, error) {
	tmpl, err := template.New("prompt").Parse(promptTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}

	data := promptData{
		Request: request,
		Files:   files,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	return buf.String(), nil
}

type promptData struct {
	Request string
	Files   []sandbox.FileInfo
}
