package memory

import (
	"encoding/json"
	"time"
)

// Session is one generation run: every stage output the pipeline produced,
// in the order the stages happen. Structured stage outputs are stored as raw
// JSON so the store stays independent of the agent types.
type Session struct {
	ID                     string          `json:"id"`
	Timestamp              time.Time       `json:"timestamp"`
	UserPrompt             string          `json:"user_prompt,omitempty"`
	CoTResult              json.RawMessage `json:"cot_result,omitempty"`
	ClarificationQuestions []string        `json:"clarification_questions,omitempty"`
	UserFeedback           json.RawMessage `json:"user_feedback,omitempty"`
	UpdatedPrompt          string          `json:"updated_prompt,omitempty"`
	Plan                   json.RawMessage `json:"plan,omitempty"`
	SearchResults          json.RawMessage `json:"search_results,omitempty"`
	CodeShots              json.RawMessage `json:"code_shots,omitempty"`
	GeneratedCode          string          `json:"generated_code,omitempty"`
	TestResult             json.RawMessage `json:"test_result,omitempty"`
	RegeneratedCode        string          `json:"regenerated_code,omitempty"`
	FinalTestResult        json.RawMessage `json:"final_test_result,omitempty"`
}

// LatestCode returns the regenerated code when present, else the first generation.
func (s *Session) LatestCode() string {
	if s.RegeneratedCode != "" {
		return s.RegeneratedCode
	}
	return s.GeneratedCode
}

// SessionSummary is a row of the session listing.
type SessionSummary struct {
	ID         string
	Timestamp  time.Time
	UserPrompt string
	HasCode    bool
	Passed     *bool // nil when the script was never tested
}

// SimilarPrompt is a previous request related to the current one.
type SimilarPrompt struct {
	Prompt        string    `json:"prompt"`
	GeneratedCode string    `json:"generated_code,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
