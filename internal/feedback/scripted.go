package feedback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Scripted answers from preset values; used by --answers, the MCP server and tests.
// Missing clarification answers are empty strings. Code feedback is always
// satisfied unless Changes is set.
type Scripted struct {
	mu       sync.Mutex
	Answers  []string `yaml:"answers"`
	Changes  []string `yaml:"changes"`
	Feedback string   `yaml:"feedback"`

	asked int
	round int
}

// NewScripted creates an asker that replays answers in order.
func NewScripted(answers ...string) *Scripted {
	return &Scripted{Answers: answers}
}

// LoadScripted reads an answers file:
//
//	answers: ["Critical", "the team lead"]
//	changes: ["also notify the reporter"]
func LoadScripted(fs afero.Fs, path string) (*Scripted, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read answers file: %w", err)
	}
	var s Scripted
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse answers file: %w", err)
	}
	return &s, nil
}

// Clarify implements Asker.
func (s *Scripted) Clarify(ctx context.Context, questions []string) (Clarification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := Clarification{Responses: make([]Answer, 0, len(questions)), Timestamp: time.Now()}
	for _, q := range questions {
		answer := ""
		if s.asked < len(s.Answers) {
			answer = s.Answers[s.asked]
		}
		s.asked++
		c.Responses = append(c.Responses, Answer{Question: q, Answer: answer})
	}
	return c, nil
}

// CodeFeedback implements Asker. The n-th call requests Changes[n] when present.
func (s *Scripted) CodeFeedback(ctx context.Context, code string) (CodeFeedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb := CodeFeedback{Satisfied: true, Timestamp: time.Now()}
	if s.round < len(s.Changes) && s.Changes[s.round] != "" {
		fb = CodeFeedback{Satisfied: false, RequestedChanges: s.Changes[s.round], Timestamp: fb.Timestamp}
	}
	s.round++
	return fb, nil
}

// General implements Asker.
func (s *Scripted) General(ctx context.Context) (string, error) {
	return s.Feedback, nil
}
