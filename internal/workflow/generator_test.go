package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/josephgoksu/ytflow/internal/agents"
	"github.com/josephgoksu/ytflow/internal/agents/core"
	"github.com/josephgoksu/ytflow/internal/feedback"
	"github.com/josephgoksu/ytflow/internal/memory"
	"github.com/josephgoksu/ytflow/internal/scriptapi"
	"github.com/josephgoksu/ytflow/internal/shots"
	"github.com/josephgoksu/ytflow/internal/validate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
		goleak.IgnoreTopFunction("github.com/blevesearch/bleve/index.AnalysisWorker"))
}

type fakeAnalyzer struct {
	analysis agents.Analysis
	err      error
	prompts  []string
}

func (f *fakeAnalyzer) Run(ctx context.Context, prompt string) (agents.Analysis, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return agents.Analysis{}, f.err
	}
	a := f.analysis
	a.Prompt = prompt
	return a, nil
}

type fakeClarifier struct {
	questions []string
	calls     int
}

func (f *fakeClarifier) Questions(ctx context.Context, a agents.Analysis) ([]string, error) {
	f.calls++
	return f.questions, nil
}

type fakePlanner struct {
	prompts []string
}

func (f *fakePlanner) Run(ctx context.Context, prompt string, a *agents.Analysis) (agents.Plan, error) {
	f.prompts = append(f.prompts, prompt)
	return agents.Plan{Success: true, Prompt: prompt, Plan: "use onChange"}, nil
}

type fakeCoder struct {
	mu     sync.Mutex
	codes  []string
	inputs []agents.GenerationInput
}

func (f *fakeCoder) Generate(ctx context.Context, in agents.GenerationInput) (agents.Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return agents.Generation{}, err
	}
	f.inputs = append(f.inputs, in)
	code := "// attempt"
	if n := len(f.inputs) - 1; n < len(f.codes) {
		code = f.codes[n]
	}
	return agents.Generation{Code: code}, nil
}

const passMarker = "// ok"

// fakeTester passes scripts that start with passMarker.
type fakeTester struct {
	calls int
}

func (f *fakeTester) Test(ctx context.Context, code string) (validate.TestResult, error) {
	f.calls++
	if strings.HasPrefix(code, passMarker) {
		return validate.TestResult{
			Success:     true,
			SyntaxCheck: validate.Check{Success: true, Message: "Syntax check passed"},
			Validation:  validate.Check{Success: true, Message: "Validation passed"},
		}, nil
	}
	return validate.TestResult{
		SyntaxCheck: validate.Check{Success: true, Message: "Syntax check passed"},
		Validation:  validate.Check{Message: "Validation failed", Issues: []string{"Missing guard function"}},
	}, nil
}

type fakeSearcher struct {
	err error
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]scriptapi.Snippet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []scriptapi.Snippet{{File: "entities.js", Code: "class Issue {}"}}, nil
}

func (f *fakeSearcher) SearchEntity(ctx context.Context, name string) (scriptapi.EntityInfo, error) {
	return scriptapi.EntityInfo{Name: name}, nil
}

type fakeShots struct{}

func (fakeShots) Retrieve(ctx context.Context, query string) ([]shots.Shot, error) {
	return []shots.Shot{{Title: "Notify", Code: "exports.rule = 1;"}}, nil
}

type fixture struct {
	analyzer  *fakeAnalyzer
	clarifier *fakeClarifier
	planner   *fakePlanner
	coder     *fakeCoder
	tester    *fakeTester
	store     *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := memory.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return &fixture{
		analyzer:  &fakeAnalyzer{analysis: agents.Analysis{Success: true, Reasoning: "r"}},
		clarifier: &fakeClarifier{questions: []string{"Which priority?"}},
		planner:   &fakePlanner{},
		coder:     &fakeCoder{},
		tester:    &fakeTester{},
		store:     store,
	}
}

func (f *fixture) deps(asker feedback.Asker) Deps {
	return Deps{
		Analyzer:  f.analyzer,
		Clarifier: f.clarifier,
		Planner:   f.planner,
		Coder:     f.coder,
		Tester:    f.tester,
		Searcher:  &fakeSearcher{},
		Shots:     fakeShots{},
		Asker:     asker,
		Store:     f.store,
	}
}

func TestGenerate_ClarifiesPlansAndRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.coder.codes = []string{"// ok"}

	gen, err := New(ctx, f.deps(feedback.NewScripted("Critical only")), Settings{AlwaysClarify: true, MaxRegenerations: 1})
	require.NoError(t, err)

	res, err := gen.Generate(ctx, "notify assignee")
	require.NoError(t, err)

	assert.Equal(t, "// ok", res.Code)
	assert.True(t, res.Test.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []string{"Which priority?"}, res.Questions)
	assert.Equal(t, "notify assignee\n\nClarification:\nQ: Which priority?\nA: Critical only\n\n", res.UpdatedPrompt)
	assert.Equal(t, []string{res.UpdatedPrompt}, f.planner.prompts)
	assert.Len(t, res.Snippets, 1)
	assert.Len(t, res.Shots, 1)

	require.Len(t, f.coder.inputs, 1)
	assert.Equal(t, res.UpdatedPrompt, f.coder.inputs[0].Prompt)
	assert.Nil(t, f.coder.inputs[0].Previous)

	require.NotEmpty(t, res.SessionID)
	saved, err := f.store.Get(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "notify assignee", saved.UserPrompt)
	assert.Equal(t, res.UpdatedPrompt, saved.UpdatedPrompt)
	assert.Equal(t, "// ok", saved.GeneratedCode)
	assert.Empty(t, saved.RegeneratedCode)

	var fb struct {
		Responses map[string]feedback.Answer `json:"responses"`
	}
	require.NoError(t, json.Unmarshal(saved.UserFeedback, &fb))
	assert.Equal(t, "Critical only", fb.Responses["question_1"].Answer)
}

func TestGenerate_MinimalAnswersAddNote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.coder.codes = []string{"// ok"}

	gen, err := New(ctx, f.deps(feedback.NewScripted("no")), Settings{AlwaysClarify: true})
	require.NoError(t, err)

	res, err := gen.Generate(ctx, "notify assignee")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.UpdatedPrompt, MinimalResponsesNote))
}

func TestGenerate_SkipsClarificationWhenNotNeeded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.coder.codes = []string{"// ok"}

	gen, err := New(ctx, f.deps(feedback.NewScripted("x")), Settings{AlwaysClarify: false})
	require.NoError(t, err)

	res, err := gen.Generate(ctx, "notify assignee")
	require.NoError(t, err)
	assert.Zero(t, f.clarifier.calls)
	assert.Empty(t, res.UpdatedPrompt)
	assert.Equal(t, []string{"notify assignee"}, f.planner.prompts)
}

func TestGenerate_ClarifiesWhenAnalysisAsks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.analyzer.analysis.NeedsClarification = true
	f.coder.codes = []string{"// ok"}

	gen, err := New(ctx, f.deps(feedback.NewScripted("Critical")), Settings{})
	require.NoError(t, err)

	_, err = gen.Generate(ctx, "notify assignee")
	require.NoError(t, err)
	assert.Equal(t, 1, f.clarifier.calls)
}

func TestGenerate_RegeneratesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.coder.codes = []string{"// broken", "// ok now"}

	gen, err := New(ctx, f.deps(nil), Settings{MaxRegenerations: 1})
	require.NoError(t, err)

	res, err := gen.Generate(ctx, "notify assignee")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "// ok now", res.Code)
	assert.True(t, res.Test.Success)
	require.Len(t, f.coder.inputs, 2)
	require.NotNil(t, f.coder.inputs[1].Previous)
	assert.False(t, f.coder.inputs[1].Previous.Success)

	saved, err := f.store.Get(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "// broken", saved.GeneratedCode)
	assert.Equal(t, "// ok now", saved.RegeneratedCode)
	assert.NotNil(t, saved.TestResult)
	assert.NotNil(t, saved.FinalTestResult)
}

func TestGenerate_StopsAfterMaxRegenerations(t *testing.T) {
	tests := []struct {
		name string
		max  int
		want int
	}{
		{"no regeneration", 0, 1},
		{"one", 1, 2},
		{"three", 3, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)

			gen, err := New(ctx, f.deps(nil), Settings{MaxRegenerations: tt.max})
			require.NoError(t, err)

			res, err := gen.Generate(ctx, "notify assignee")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Attempts)
			assert.Equal(t, tt.want, f.tester.calls)
			assert.False(t, res.Test.Success)
		})
	}
}

func TestGenerate_SearchFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.coder.codes = []string{"// ok"}
	deps := f.deps(nil)
	deps.Searcher = &fakeSearcher{err: errors.New("directory missing")}

	gen, err := New(ctx, deps, Settings{})
	require.NoError(t, err)

	res, err := gen.Generate(ctx, "notify assignee")
	require.NoError(t, err)
	assert.Empty(t, res.Snippets)
	assert.Len(t, res.Shots, 1)
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	gen, err := New(ctx, f.deps(nil), Settings{})
	require.NoError(t, err)

	_, err = gen.Generate(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestGenerate_AnalyzerErrorStopsRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.analyzer.err = context.Canceled

	gen, err := New(ctx, f.deps(nil), Settings{})
	require.NoError(t, err)

	_, err = gen.Generate(ctx, "notify assignee")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.coder.inputs)
}

func TestGenerate_WithoutStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.coder.codes = []string{"// ok"}
	deps := f.deps(nil)
	deps.Store = nil

	gen, err := New(ctx, deps, Settings{})
	require.NoError(t, err)

	res, err := gen.Generate(ctx, "notify assignee")
	require.NoError(t, err)
	assert.Empty(t, res.SessionID)
	assert.Equal(t, "// ok", res.Code)
}

func TestGenerate_FindsSimilarPrompts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.coder.codes = []string{"// ok first", "// ok second"}

	gen, err := New(ctx, f.deps(nil), Settings{})
	require.NoError(t, err)

	first, err := gen.Generate(ctx, "notify assignee")
	require.NoError(t, err)
	assert.Empty(t, first.Similar)

	second, err := gen.Generate(ctx, "notify reporter")
	require.NoError(t, err)
	require.Len(t, second.Similar, 1)
	assert.Equal(t, "notify assignee", second.Similar[0].Prompt)
	assert.Equal(t, "// ok first", second.Similar[0].GeneratedCode)
}

func TestGenerate_EmitsStageEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.coder.codes = []string{"// ok"}

	gen, err := New(ctx, f.deps(feedback.NewScripted("Critical")), Settings{AlwaysClarify: true})
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		started []string
	)
	gen.OnStage(func(ev core.StageEvent) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Phase == "start" {
			started = append(started, ev.Name)
		}
	})

	_, err = gen.Generate(ctx, "notify assignee")
	require.NoError(t, err)
	for _, stage := range Stages {
		assert.Contains(t, started, stage)
	}
}

func TestRefine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.coder.codes = []string{"// ok", "// ok again"}

	asker := &feedback.Scripted{Changes: []string{"also notify the reporter"}}
	gen, err := New(ctx, f.deps(asker), Settings{})
	require.NoError(t, err)

	first, err := gen.Generate(ctx, "notify assignee")
	require.NoError(t, err)

	next, refined, err := gen.Refine(ctx, first)
	require.NoError(t, err)
	assert.True(t, refined)
	assert.Equal(t, "// ok again", next.Code)
	assert.Equal(t, "notify assignee\n\nAdditional requirements: also notify the reporter", next.Prompt)
	assert.NotEqual(t, first.SessionID, next.SessionID)

	// Changes are exhausted, so the second round is satisfied.
	same, refined, err := gen.Refine(ctx, next)
	require.NoError(t, err)
	assert.False(t, refined)
	assert.Equal(t, next.Code, same.Code)
}

func TestNew_RequiresStages(t *testing.T) {
	_, err := New(context.Background(), Deps{}, Settings{})
	assert.Error(t, err)
}
