// Package workflow runs the script generation pipeline: analysis,
// clarification, planning, context gathering, generation and testing,
// wired as an Eino graph over a shared Session.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"golang.org/x/sync/errgroup"

	"github.com/josephgoksu/ytflow/internal/agents"
	"github.com/josephgoksu/ytflow/internal/agents/core"
	"github.com/josephgoksu/ytflow/internal/feedback"
	"github.com/josephgoksu/ytflow/internal/logger"
	"github.com/josephgoksu/ytflow/internal/memory"
	"github.com/josephgoksu/ytflow/internal/scriptapi"
	"github.com/josephgoksu/ytflow/internal/shots"
	"github.com/josephgoksu/ytflow/internal/validate"
)

// ErrEmptyPrompt is returned when there is nothing to generate from.
var ErrEmptyPrompt = errors.New("prompt is empty")

// Graph node names. They double as stage names in progress events.
const (
	NodeAnalyze  = "analyze"
	NodeClarify  = "clarify"
	NodePlan     = "plan"
	NodeGather   = "gather"
	NodeGenerate = "generate"
	NodeTest     = "test"
)

// Stages lists the graph nodes in execution order.
var Stages = []string{NodeAnalyze, NodeClarify, NodePlan, NodeGather, NodeGenerate, NodeTest}

// Analyzer breaks a request down.
type Analyzer interface {
	Run(ctx context.Context, prompt string) (agents.Analysis, error)
}

// Clarifier turns an analysis into questions for the user.
type Clarifier interface {
	Questions(ctx context.Context, analysis agents.Analysis) ([]string, error)
}

// Planner drafts the implementation plan.
type Planner interface {
	Run(ctx context.Context, prompt string, analysis *agents.Analysis) (agents.Plan, error)
}

// Coder writes the script.
type Coder interface {
	Generate(ctx context.Context, in agents.GenerationInput) (agents.Generation, error)
}

// Settings control the pipeline's branches.
type Settings struct {
	// AlwaysClarify asks questions even when the analysis found nothing missing.
	AlwaysClarify bool
	// SkipClarify never asks questions, whatever the analysis says.
	SkipClarify bool
	// MaxRegenerations is how many times a failing script is regenerated.
	MaxRegenerations int
}

// Deps are the stages and services a Generator runs with.
type Deps struct {
	Analyzer  Analyzer
	Clarifier Clarifier
	Planner   Planner
	Coder     Coder
	Tester    agents.ScriptTester

	// Optional. Without a searcher or shots the prompt carries no context;
	// without an asker clarification is skipped; without a store runs are
	// not recorded.
	Searcher agents.APISearcher
	Shots    agents.ShotRetriever
	Asker    feedback.Asker
	Store    *memory.Store
	Logger   *slog.Logger
}

// Result is the outcome of one run.
type Result struct {
	SessionID     string                 `json:"session_id,omitempty"`
	Prompt        string                 `json:"prompt"`
	UpdatedPrompt string                 `json:"updated_prompt,omitempty"`
	Analysis      agents.Analysis        `json:"analysis"`
	Questions     []string               `json:"questions,omitempty"`
	Plan          agents.Plan            `json:"plan"`
	Snippets      []scriptapi.Snippet    `json:"snippets,omitempty"`
	Shots         []shots.Shot           `json:"shots,omitempty"`
	Code          string                 `json:"code"`
	Fallback      bool                   `json:"fallback,omitempty"`
	Test          validate.TestResult    `json:"test"`
	Attempts      int                    `json:"attempts"`
	Similar       []memory.SimilarPrompt `json:"similar,omitempty"`
	Duration      time.Duration          `json:"duration"`
}

// Generator runs the pipeline.
type Generator struct {
	deps     Deps
	settings Settings
	log      *slog.Logger
	handler  *core.CallbackHandler
	graph    compose.Runnable[*Session, *Session]
}

// New compiles the pipeline graph.
func New(ctx context.Context, deps Deps, settings Settings) (*Generator, error) {
	switch {
	case deps.Analyzer == nil:
		return nil, errors.New("workflow: analyzer is required")
	case deps.Planner == nil:
		return nil, errors.New("workflow: planner is required")
	case deps.Coder == nil:
		return nil, errors.New("workflow: coder is required")
	case deps.Tester == nil:
		return nil, errors.New("workflow: tester is required")
	}
	if settings.MaxRegenerations < 0 {
		settings.MaxRegenerations = 0
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	g := &Generator{
		deps:     deps,
		settings: settings,
		log:      log,
		handler:  core.NewCallbackHandler(log),
	}
	graph, err := g.compile(ctx)
	if err != nil {
		return nil, err
	}
	g.graph = graph
	return g, nil
}

// OnStage registers a listener for node start/end events.
func (g *Generator) OnStage(fn func(core.StageEvent)) {
	g.handler.OnEvent(fn)
}

func (g *Generator) compile(ctx context.Context) (compose.Runnable[*Session, *Session], error) {
	graph := compose.NewGraph[*Session, *Session]()

	nodes := []struct {
		name string
		fn   func(context.Context, *Session) (*Session, error)
	}{
		{NodeAnalyze, g.analyze},
		{NodeClarify, g.clarify},
		{NodePlan, g.plan},
		{NodeGather, g.gather},
		{NodeGenerate, g.generate},
		{NodeTest, g.test},
	}
	for _, n := range nodes {
		if err := graph.AddLambdaNode(n.name, compose.InvokableLambda(n.fn), compose.WithNodeName(n.name)); err != nil {
			return nil, fmt.Errorf("add node %s: %w", n.name, err)
		}
	}

	edges := [][2]string{
		{compose.START, NodeAnalyze},
		{NodeClarify, NodePlan},
		{NodePlan, NodeGather},
		{NodeGather, NodeGenerate},
		{NodeGenerate, NodeTest},
	}
	for _, e := range edges {
		if err := graph.AddEdge(e[0], e[1]); err != nil {
			return nil, fmt.Errorf("add edge %s -> %s: %w", e[0], e[1], err)
		}
	}

	afterAnalysis := compose.NewGraphBranch(g.routeAfterAnalysis, map[string]bool{NodeClarify: true, NodePlan: true})
	if err := graph.AddBranch(NodeAnalyze, afterAnalysis); err != nil {
		return nil, fmt.Errorf("add clarification branch: %w", err)
	}
	afterTest := compose.NewGraphBranch(g.routeAfterTest, map[string]bool{NodeGenerate: true, compose.END: true})
	if err := graph.AddBranch(NodeTest, afterTest); err != nil {
		return nil, fmt.Errorf("add regeneration branch: %w", err)
	}

	// Six stages on the straight path, two more per regeneration.
	steps := len(nodes) + 2*g.settings.MaxRegenerations + 4
	runnable, err := graph.Compile(ctx,
		compose.WithGraphName("ytflow"),
		compose.WithMaxRunSteps(steps),
	)
	if err != nil {
		return nil, fmt.Errorf("compile pipeline: %w", err)
	}
	return runnable, nil
}

// Generate runs the pipeline for prompt. Model failures degrade inside
// the stages; the returned error is a cancellation or an infrastructure
// failure such as the session store.
func (g *Generator) Generate(ctx context.Context, prompt string) (Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return Result{}, ErrEmptyPrompt
	}
	start := time.Now()

	var rec *memory.Recorder
	if g.deps.Store != nil {
		var err error
		if rec, err = g.deps.Store.NewSession(ctx); err != nil {
			return Result{}, fmt.Errorf("start session: %w", err)
		}
		if err := rec.AddUserPrompt(ctx, prompt); err != nil {
			return Result{}, fmt.Errorf("record session: %w", err)
		}
	}
	sess := newSession(prompt, rec)
	g.log.Info("generation started", "session", sess.ID(), "prompt", prompt)

	if _, err := g.graph.Invoke(ctx, sess, compose.WithCallbacks(g.handler.Build())); err != nil {
		if cause := sess.failure(); cause != nil {
			err = cause
		}
		return Result{SessionID: sess.ID(), Prompt: prompt}, err
	}

	res := buildResult(sess)
	if rec != nil {
		similar, err := rec.SimilarPrompts(ctx, prompt, memory.DefaultSimilarLimit)
		if err != nil {
			g.log.Warn("similar prompt lookup failed", "error", err)
		}
		res.Similar = similar
	}
	res.Duration = time.Since(start)
	g.log.Info("generation finished", "session", res.SessionID, "attempts", res.Attempts,
		"passed", res.Test.Success, "duration", res.Duration)
	return res, nil
}

// Refine asks the user about res. When they request changes, the pipeline
// runs again on the original prompt with the changes appended and the new
// result is returned with refined set.
func (g *Generator) Refine(ctx context.Context, res Result) (next Result, refined bool, err error) {
	if g.deps.Asker == nil {
		return res, false, nil
	}
	fb, err := g.deps.Asker.CodeFeedback(ctx, res.Code)
	if err != nil {
		return res, false, err
	}
	changes := strings.TrimSpace(fb.RequestedChanges)
	if fb.Satisfied || changes == "" {
		return res, false, nil
	}
	g.log.Info("regenerating with requested changes", "session", res.SessionID)
	next, err = g.Generate(ctx, WithChanges(res.Prompt, changes))
	if err != nil {
		return res, false, err
	}
	return next, true, nil
}

func buildResult(sess *Session) Result {
	st := sess.Snapshot()
	res := Result{
		SessionID: sess.ID(),
		Prompt:    st.Prompt,
		Analysis:  st.Analysis,
		Questions: st.Questions,
		Plan:      st.Plan,
		Snippets:  st.Snippets,
		Shots:     st.Shots,
		Attempts:  st.Attempts(),
	}
	if st.WorkingPrompt != st.Prompt {
		res.UpdatedPrompt = st.WorkingPrompt
	}
	if gen, ok := st.LastGeneration(); ok {
		res.Code = gen.Code
		res.Fallback = gen.Fallback
	}
	if t, ok := st.LastTest(); ok {
		res.Test = t
	}
	return res
}

// record persists one stage when the run is recorded.
func (s *Session) record(fn func(r *memory.Recorder) error) error {
	if s.rec == nil {
		return nil
	}
	if err := fn(s.rec); err != nil {
		return s.fail(fmt.Errorf("record session: %w", err))
	}
	return nil
}

func (g *Generator) analyze(ctx context.Context, s *Session) (*Session, error) {
	logger.SetSession(s.ID(), NodeAnalyze)
	prompt := s.Snapshot().Prompt

	analysis, err := g.deps.Analyzer.Run(ctx, prompt)
	if err != nil {
		return nil, s.fail(fmt.Errorf("analyze: %w", err))
	}
	s.Write(func(st *State) { st.Analysis = analysis })
	return s, s.record(func(r *memory.Recorder) error { return r.AddCoTResult(ctx, analysis) })
}

func (g *Generator) routeAfterAnalysis(ctx context.Context, s *Session) (string, error) {
	if g.settings.SkipClarify || g.deps.Asker == nil || g.deps.Clarifier == nil {
		return NodePlan, nil
	}
	var needs bool
	s.Read(func(st *State) { needs = st.Analysis.NeedsClarification })
	if g.settings.AlwaysClarify || needs {
		return NodeClarify, nil
	}
	return NodePlan, nil
}

type recordedFeedback struct {
	Responses map[string]feedback.Answer `json:"responses"`
	Timestamp time.Time                  `json:"timestamp"`
}

func (g *Generator) clarify(ctx context.Context, s *Session) (*Session, error) {
	logger.SetSession(s.ID(), NodeClarify)
	st := s.Snapshot()

	questions, err := g.deps.Clarifier.Questions(ctx, st.Analysis)
	if err != nil {
		return nil, s.fail(fmt.Errorf("clarifying questions: %w", err))
	}
	if err := s.record(func(r *memory.Recorder) error { return r.AddClarificationQuestions(ctx, questions) }); err != nil {
		return nil, err
	}

	answers, err := g.deps.Asker.Clarify(ctx, questions)
	if err != nil {
		return nil, s.fail(fmt.Errorf("clarification: %w", err))
	}
	enriched := EnrichPrompt(st.Prompt, answers)

	s.Write(func(st *State) {
		st.Questions = questions
		st.Clarification = &answers
		st.WorkingPrompt = enriched
	})

	err = s.record(func(r *memory.Recorder) error {
		fb := recordedFeedback{Responses: answers.Keyed(), Timestamp: answers.Timestamp}
		if err := r.AddUserFeedback(ctx, fb); err != nil {
			return err
		}
		return r.AddUpdatedPrompt(ctx, enriched)
	})
	return s, err
}

func (g *Generator) plan(ctx context.Context, s *Session) (*Session, error) {
	logger.SetSession(s.ID(), NodePlan)
	st := s.Snapshot()

	plan, err := g.deps.Planner.Run(ctx, st.WorkingPrompt, &st.Analysis)
	if err != nil {
		return nil, s.fail(fmt.Errorf("plan: %w", err))
	}
	s.Write(func(st *State) { st.Plan = plan })
	return s, s.record(func(r *memory.Recorder) error { return r.AddPlan(ctx, plan) })
}

// gather looks up API snippets and example scripts concurrently. A failed
// lookup leaves its half empty.
func (g *Generator) gather(ctx context.Context, s *Session) (*Session, error) {
	logger.SetSession(s.ID(), NodeGather)
	prompt := s.Snapshot().WorkingPrompt

	var (
		snippets []scriptapi.Snippet
		found    []shots.Shot
	)
	eg, gctx := errgroup.WithContext(ctx)
	if g.deps.Searcher != nil {
		eg.Go(func() error {
			res, err := g.deps.Searcher.Search(gctx, prompt)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				g.log.Warn("scripting API search failed", "error", err)
				return nil
			}
			snippets = res
			return nil
		})
	}
	if g.deps.Shots != nil {
		eg.Go(func() error {
			res, err := g.deps.Shots.Retrieve(gctx, prompt)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				g.log.Warn("code shot retrieval failed", "error", err)
				return nil
			}
			found = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, s.fail(err)
	}
	g.log.Debug("context gathered", "snippets", len(snippets), "shots", len(found))

	s.Write(func(st *State) {
		st.Snippets = snippets
		st.Shots = found
	})
	return s, s.record(func(r *memory.Recorder) error {
		if err := r.AddSearchResults(ctx, nonNilSnippets(snippets)); err != nil {
			return err
		}
		return r.AddCodeShots(ctx, nonNilShots(found))
	})
}

func (g *Generator) generate(ctx context.Context, s *Session) (*Session, error) {
	logger.SetSession(s.ID(), NodeGenerate)
	st := s.Snapshot()

	in := agents.GenerationInput{
		Prompt:   st.WorkingPrompt,
		Plan:     &st.Plan,
		Shots:    st.Shots,
		Snippets: st.Snippets,
	}
	if last, ok := st.LastTest(); ok && !last.Success {
		in.Previous = &last
	}
	regenerated := st.Attempts() > 0

	gen, err := g.deps.Coder.Generate(ctx, in)
	if err != nil {
		return nil, s.fail(fmt.Errorf("generate: %w", err))
	}
	if regenerated {
		g.log.Info("script regenerated", "attempt", st.Attempts()+1)
	}
	s.Write(func(st *State) { st.Generations = append(st.Generations, gen) })
	return s, s.record(func(r *memory.Recorder) error { return r.AddGeneratedCode(ctx, gen.Code, regenerated) })
}

func (g *Generator) test(ctx context.Context, s *Session) (*Session, error) {
	logger.SetSession(s.ID(), NodeTest)
	var code string
	s.Read(func(st *State) {
		if gen, ok := st.LastGeneration(); ok {
			code = gen.Code
		}
	})

	result, err := g.deps.Tester.Test(ctx, code)
	if err != nil {
		return nil, s.fail(fmt.Errorf("test: %w", err))
	}
	if !result.Success {
		g.log.Warn("script failed testing", "syntax", result.SyntaxCheck.Success, "validation", result.Validation.Success)
	}
	s.Write(func(st *State) { st.Tests = append(st.Tests, result) })
	return s, s.record(func(r *memory.Recorder) error { return r.AddTestResult(ctx, result) })
}

func (g *Generator) routeAfterTest(ctx context.Context, s *Session) (string, error) {
	var (
		passed   bool
		attempts int
	)
	s.Read(func(st *State) {
		if t, ok := st.LastTest(); ok {
			passed = t.Success
		}
		attempts = st.Attempts()
	})
	if !passed && attempts <= g.settings.MaxRegenerations {
		return NodeGenerate, nil
	}
	return compose.END, nil
}

func nonNilSnippets(s []scriptapi.Snippet) []scriptapi.Snippet {
	if s == nil {
		return []scriptapi.Snippet{}
	}
	return s
}

func nonNilShots(s []shots.Shot) []shots.Shot {
	if s == nil {
		return []shots.Shot{}
	}
	return s
}
