package pipeline

import (
	"strings"

	_ "embed"
)

//go:embed system_prompt.txt
var defaultSystemPrompt string

// buildPrompt renders the user prompt for answer generation. An empty
// context block is left out entirely.
func buildPrompt(query, contextText string) string {
	var sb strings.Builder

	if contextText != "" {
		sb.WriteString("CONTEXT:\n")
		sb.WriteString(contextText)
		sb.WriteString("\n\n")
	}

	sb.WriteString("QUESTION:\n")
	sb.WriteString(query)

	return sb.String()
}
