// Package mcp formats generation results as Markdown for MCP clients and
// implements the tool handlers behind the ytflow MCP server.
package mcp

import (
	"fmt"
	"strings"

	"github.com/josephgoksu/ytflow/internal/scriptapi"
	"github.com/josephgoksu/ytflow/internal/shots"
	"github.com/josephgoksu/ytflow/internal/utils"
	"github.com/josephgoksu/ytflow/internal/validate"
	"github.com/josephgoksu/ytflow/internal/workflow"
)

// FormatGeneration converts a generation result into token-efficient Markdown.
// Structure: Script -> Test -> Questions -> Plan
func FormatGeneration(res workflow.Result) string {
	var sb strings.Builder

	sb.WriteString("## Workflow Script\n")
	if res.Fallback {
		sb.WriteString("*Generation failed; this is a template to start from.*\n")
	}
	fmt.Fprintf(&sb, "```javascript\n%s\n```\n\n", strings.TrimSpace(res.Code))

	sb.WriteString("## Test\n")
	sb.WriteString(validate.FormatForDisplay(res.Test))
	sb.WriteString("\n")
	if res.Attempts > 1 {
		fmt.Fprintf(&sb, "Attempts: %d\n", res.Attempts)
	}
	sb.WriteString("\n")

	if len(res.Questions) > 0 {
		sb.WriteString("## Clarification\n")
		sb.WriteString(formatQuestions(res))
		sb.WriteString("\n")
	}

	if res.Plan.Plan != "" {
		sb.WriteString("## Plan\n")
		sb.WriteString(strings.TrimSpace(res.Plan.Plan))
		sb.WriteString("\n\n")
	}

	if res.SessionID != "" {
		fmt.Fprintf(&sb, "Session: `%s`\n", res.SessionID)
	}
	return strings.TrimSpace(sb.String())
}

func formatQuestions(res workflow.Result) string {
	var sb strings.Builder
	for i, q := range res.Questions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
	}
	return sb.String()
}

// FormatTest converts a test result into Markdown.
func FormatTest(r validate.TestResult) string {
	var sb strings.Builder
	sb.WriteString(validate.FormatForDisplay(r))
	sb.WriteString("\n")
	if len(r.Validation.Warnings) > 0 {
		sb.WriteString("\n**Warnings**:\n")
		for _, w := range r.Validation.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
	}
	return strings.TrimSpace(sb.String())
}

// FormatSnippets lists scripting API search hits.
func FormatSnippets(query string, snippets []scriptapi.Snippet, limit int) string {
	if len(snippets) == 0 {
		return fmt.Sprintf("No scripting API snippets found for %q.", query)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Scripting API: %d results\n\n", len(snippets))
	for i, s := range snippets {
		if i == limit {
			break
		}
		fmt.Fprintf(&sb, "%d. `%s:%d` (%s)\n```javascript\n%s\n```\n", i+1, s.File, s.Line, s.Type, strings.TrimSpace(s.Code))
	}
	return strings.TrimSpace(sb.String())
}

// FormatEntity lists what the API says about one entity.
func FormatEntity(info scriptapi.EntityInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n", info.Name)
	if info.Documentation != "" {
		sb.WriteString(strings.TrimSpace(info.Documentation))
		sb.WriteString("\n")
	}
	writeMembers := func(title string, members []scriptapi.Member) {
		if len(members) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n**%s**:\n", title)
		for _, m := range members {
			fmt.Fprintf(&sb, "- `%s`: %s\n", m.Name, utils.Truncate(strings.TrimSpace(m.Code), 120))
		}
	}
	writeMembers("Methods", info.Methods)
	writeMembers("Properties", info.Properties)
	if len(info.Examples) > 0 {
		sb.WriteString("\n**Examples**:\n")
		for _, ex := range info.Examples {
			fmt.Fprintf(&sb, "```javascript\n%s\n```\n", strings.TrimSpace(ex))
		}
	}
	if info.Documentation == "" && len(info.Methods) == 0 && len(info.Properties) == 0 && len(info.Examples) == 0 {
		sb.WriteString("No documentation found.\n")
	}
	return strings.TrimSpace(sb.String())
}

// FormatShots lists example scripts.
func FormatShots(query string, found []shots.Shot, limit int) string {
	if len(found) == 0 {
		return fmt.Sprintf("No example scripts match %q.", query)
	}
	var sb strings.Builder
	for i, s := range found {
		if i == limit {
			break
		}
		fmt.Fprintf(&sb, "## %s\n", s.Title)
		if s.Description != "" {
			fmt.Fprintf(&sb, "%s\n", s.Description)
		}
		fmt.Fprintf(&sb, "```javascript\n%s\n```\n\n", strings.TrimSpace(s.Code))
	}
	return strings.TrimSpace(sb.String())
}

// === Error Formatters ===

// FormatError returns a standardized Markdown error message.
func FormatError(message string) string {
	return fmt.Sprintf("## ❌ Error\n\n**Details**: %s", message)
}

// FormatValidationError returns a Markdown error for invalid tool input.
func FormatValidationError(field, message string) string {
	return fmt.Sprintf("## ❌ Validation Error\n\n**Field**: `%s`\n**Details**: %s", field, message)
}
