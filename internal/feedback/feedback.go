// Package feedback collects answers from the user: clarification answers,
// verdicts on generated code, and free-form feedback.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Answer pairs a clarification question with the user's reply.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Clarification is the set of answers for one round of questions.
type Clarification struct {
	Responses []Answer  `json:"responses"`
	Timestamp time.Time `json:"timestamp"`
}

// Keyed returns the answers keyed "question_1", "question_2", ...
func (c Clarification) Keyed() map[string]Answer {
	out := make(map[string]Answer, len(c.Responses))
	for i, a := range c.Responses {
		out[fmt.Sprintf("question_%d", i+1)] = a
	}
	return out
}

// CodeFeedback is the user's verdict on a generated script.
type CodeFeedback struct {
	Satisfied        bool      `json:"satisfaction"`
	RequestedChanges string    `json:"requested_changes,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Asker gets input from the user.
type Asker interface {
	// Clarify asks each question in order and returns one answer per question.
	Clarify(ctx context.Context, questions []string) (Clarification, error)
	// CodeFeedback shows the code and asks whether it is satisfactory; if
	// not, it asks which changes are wanted.
	CodeFeedback(ctx context.Context, code string) (CodeFeedback, error)
	// General asks for free-form feedback.
	General(ctx context.Context) (string, error)
}

// IsSatisfied interprets a yes/no reply: anything starting with "y" is yes.
func IsSatisfied(reply string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(reply)), "y")
}

var minimalAnswers = map[string]bool{"yes": true, "no": true, "none": true, "n/a": true}

// IsSubstantive reports whether an answer carries information: longer than
// three characters after trimming and not a bare yes/no/none/n/a.
func IsSubstantive(answer string) bool {
	a := strings.TrimSpace(answer)
	return len(a) > 3 && !minimalAnswers[strings.ToLower(a)]
}
