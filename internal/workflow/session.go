package workflow

import (
	"sync"

	"github.com/josephgoksu/ytflow/internal/agents"
	"github.com/josephgoksu/ytflow/internal/feedback"
	"github.com/josephgoksu/ytflow/internal/memory"
	"github.com/josephgoksu/ytflow/internal/scriptapi"
	"github.com/josephgoksu/ytflow/internal/shots"
	"github.com/josephgoksu/ytflow/internal/validate"
)

// State is what one run has produced so far.
type State struct {
	Prompt        string
	WorkingPrompt string // Prompt plus clarifications
	Analysis      agents.Analysis
	Questions     []string
	Clarification *feedback.Clarification
	Plan          agents.Plan
	Snippets      []scriptapi.Snippet
	Shots         []shots.Shot
	Generations   []agents.Generation
	Tests         []validate.TestResult
}

// Attempts is the number of scripts generated.
func (s *State) Attempts() int { return len(s.Generations) }

// LastGeneration returns the latest script, if any.
func (s *State) LastGeneration() (agents.Generation, bool) {
	if len(s.Generations) == 0 {
		return agents.Generation{}, false
	}
	return s.Generations[len(s.Generations)-1], true
}

// LastTest returns the latest test result, if any.
func (s *State) LastTest() (validate.TestResult, bool) {
	if len(s.Tests) == 0 {
		return validate.TestResult{}, false
	}
	return s.Tests[len(s.Tests)-1], true
}

// Session is the run state shared by the graph nodes.
type Session struct {
	mu    sync.RWMutex
	state State
	rec   *memory.Recorder
	err   error
}

func newSession(prompt string, rec *memory.Recorder) *Session {
	return &Session{state: State{Prompt: prompt, WorkingPrompt: prompt}, rec: rec}
}

// Read calls fn with the state under a read lock.
func (s *Session) Read(fn func(st *State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.state)
}

// Write calls fn with the state under the write lock.
func (s *Session) Write(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// Snapshot returns a copy of the state.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ID returns the memory session ID, or "" when runs are not recorded.
func (s *Session) ID() string {
	if s.rec == nil {
		return ""
	}
	return s.rec.ID()
}

// fail keeps the first error that stopped the run and returns err.
func (s *Session) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
	return err
}

func (s *Session) failure() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
