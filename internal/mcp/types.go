package mcp

import "strings"

// GenerateParams defines the parameters for the generate_workflow tool.
type GenerateParams struct {
	Prompt string `json:"prompt"` // Required: what the workflow should do
	// Answers are used in order for the clarification questions; missing
	// answers are left empty.
	Answers []string `json:"answers,omitempty"`
	// Clarify overrides agent.alwaysClarify when set; false skips clarification entirely.
	Clarify *bool `json:"clarify,omitempty"`
}

// ValidateParams defines the parameters for the validate_workflow tool.
type ValidateParams struct {
	Code string `json:"code"` // Required: JavaScript source
}

// SearchParams defines the parameters for the search_scripting_api tool.
// Entity takes precedence over Query.
type SearchParams struct {
	Query  string `json:"query,omitempty"`
	Entity string `json:"entity,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// ShotsParams defines the parameters for the retrieve_code_shots tool.
type ShotsParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// FieldError is an input validation failure for one parameter.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

// Validate checks required fields.
func (p GenerateParams) Validate() error {
	if strings.TrimSpace(p.Prompt) == "" {
		return &FieldError{Field: "prompt", Message: "prompt is required"}
	}
	return nil
}

// Validate checks required fields.
func (p ValidateParams) Validate() error {
	if strings.TrimSpace(p.Code) == "" {
		return &FieldError{Field: "code", Message: "code is required"}
	}
	return nil
}

// Validate checks that either a query or an entity is given.
func (p SearchParams) Validate() error {
	if strings.TrimSpace(p.Query) == "" && strings.TrimSpace(p.Entity) == "" {
		return &FieldError{Field: "query", Message: "query or entity is required"}
	}
	if p.Limit < 0 {
		return &FieldError{Field: "limit", Message: "limit must not be negative"}
	}
	return nil
}

// Validate checks required fields.
func (p ShotsParams) Validate() error {
	if strings.TrimSpace(p.Query) == "" {
		return &FieldError{Field: "query", Message: "query is required"}
	}
	if p.Limit < 0 {
		return &FieldError{Field: "limit", Message: "limit must not be negative"}
	}
	return nil
}

const (
	defaultSnippetLimit = 5
	defaultShotLimit    = 3
)

func limitOr(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
