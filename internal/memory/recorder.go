package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Recorder writes stages of the current session. Every Add call persists
// the whole record before returning.
type Recorder struct {
	store *Store

	mu      sync.Mutex
	session *Session
	tested  bool
}

// ID returns the session ID.
func (r *Recorder) ID() string { return r.session.ID }

// Snapshot returns a copy of the session as recorded so far.
func (r *Recorder) Snapshot() Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.session
}

func (r *Recorder) update(ctx context.Context, apply func(s *Session) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := apply(r.session); err != nil {
		return err
	}
	return r.store.save(ctx, r.session)
}

func encode(field string, v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", field, err)
	}
	return b, nil
}

// AddUserPrompt records the original request.
func (r *Recorder) AddUserPrompt(ctx context.Context, prompt string) error {
	return r.update(ctx, func(s *Session) error {
		s.UserPrompt = prompt
		return nil
	})
}

// AddCoTResult records the requirement analysis.
func (r *Recorder) AddCoTResult(ctx context.Context, result any) error {
	return r.update(ctx, func(s *Session) (err error) {
		s.CoTResult, err = encode("cot_result", result)
		return err
	})
}

// AddClarificationQuestions records the questions asked.
func (r *Recorder) AddClarificationQuestions(ctx context.Context, questions []string) error {
	return r.update(ctx, func(s *Session) error {
		s.ClarificationQuestions = append([]string{}, questions...)
		return nil
	})
}

// AddUserFeedback records clarification answers or code feedback.
func (r *Recorder) AddUserFeedback(ctx context.Context, feedback any) error {
	return r.update(ctx, func(s *Session) (err error) {
		s.UserFeedback, err = encode("user_feedback", feedback)
		return err
	})
}

// AddUpdatedPrompt records the prompt enriched with clarifications.
func (r *Recorder) AddUpdatedPrompt(ctx context.Context, prompt string) error {
	return r.update(ctx, func(s *Session) error {
		s.UpdatedPrompt = prompt
		return nil
	})
}

// AddPlan records the generation plan.
func (r *Recorder) AddPlan(ctx context.Context, plan any) error {
	return r.update(ctx, func(s *Session) (err error) {
		s.Plan, err = encode("plan", plan)
		return err
	})
}

// AddSearchResults records the scripting API snippets used.
func (r *Recorder) AddSearchResults(ctx context.Context, results any) error {
	return r.update(ctx, func(s *Session) (err error) {
		s.SearchResults, err = encode("search_results", results)
		return err
	})
}

// AddCodeShots records the example scripts used.
func (r *Recorder) AddCodeShots(ctx context.Context, shots any) error {
	return r.update(ctx, func(s *Session) (err error) {
		s.CodeShots, err = encode("code_shots", shots)
		return err
	})
}

// AddGeneratedCode records a script. Regenerated scripts go to
// regenerated_code and leave the first generation untouched.
func (r *Recorder) AddGeneratedCode(ctx context.Context, code string, regenerated bool) error {
	return r.update(ctx, func(s *Session) error {
		if regenerated {
			s.RegeneratedCode = code
		} else {
			s.GeneratedCode = code
		}
		return nil
	})
}

// AddTestResult records a test outcome. The first goes to test_result,
// later ones to final_test_result.
func (r *Recorder) AddTestResult(ctx context.Context, result any) error {
	return r.update(ctx, func(s *Session) error {
		raw, err := encode("test_result", result)
		if err != nil {
			return err
		}
		if !r.tested {
			s.TestResult = raw
			r.tested = true
		} else {
			s.FinalTestResult = raw
		}
		return nil
	})
}

// SimilarPrompts returns earlier sessions related to prompt, excluding this one.
func (r *Recorder) SimilarPrompts(ctx context.Context, prompt string, limit int) ([]SimilarPrompt, error) {
	return r.store.SimilarPrompts(ctx, prompt, r.session.ID, limit)
}
