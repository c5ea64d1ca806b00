package workflow

import (
	"fmt"
	"strings"

	"github.com/josephgoksu/ytflow/internal/feedback"
)

// MinimalResponsesNote is appended when no clarification answer carries information.
const MinimalResponsesNote = "Note: The user provided minimal responses to the clarification questions. Please generate a workflow script based on the original prompt and make reasonable assumptions where information is missing.\n\n"

// AdditionalRequirements joins requested changes onto a prompt.
const AdditionalRequirements = "\n\nAdditional requirements: "

// EnrichPrompt appends the clarification answers to prompt.
func EnrichPrompt(prompt string, c feedback.Clarification) string {
	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\nClarification:\n")

	substantive := false
	for _, a := range c.Responses {
		if feedback.IsSubstantive(a.Answer) {
			substantive = true
		}
		fmt.Fprintf(&sb, "Q: %s\nA: %s\n\n", a.Question, a.Answer)
	}
	if !substantive {
		sb.WriteString(MinimalResponsesNote)
	}
	return sb.String()
}

// WithChanges returns prompt extended with the user's requested changes.
func WithChanges(prompt, changes string) string {
	return prompt + AdditionalRequirements + changes
}
