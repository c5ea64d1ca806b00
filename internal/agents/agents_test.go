package agents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/ytflow/internal/llm"
	"github.com/josephgoksu/ytflow/internal/scriptapi"
	"github.com/josephgoksu/ytflow/internal/shots"
	"github.com/josephgoksu/ytflow/internal/validate"
)

// scriptedModel replays replies in order and records every conversation it saw.
type scriptedModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	errs    []error
	calls   [][]*schema.Message
	opts    []*model.Options
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.calls)
	m.calls = append(m.calls, input)
	m.opts = append(m.opts, model.GetCommonOptions(nil, opts...))
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.replies) {
		return m.replies[i], nil
	}
	return nil, errors.New("no scripted reply")
}

// Stream replays the next reply one line per chunk.
func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	var chunks []*schema.Message
	for _, line := range strings.SplitAfter(msg.Content, "\n") {
		chunks = append(chunks, schema.AssistantMessage(line, nil))
	}
	return schema.StreamReaderFromArray(chunks), nil
}

func (m *scriptedModel) lastUserPrompt(call int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.calls[call]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == schema.User {
			return msgs[i].Content
		}
	}
	return ""
}

func factoryFor(m *scriptedModel) llm.ChatModelFactory {
	return func(ctx context.Context, cfg llm.Config) (model.BaseChatModel, error) {
		return m, nil
	}
}

func replies(contents ...string) *scriptedModel {
	m := &scriptedModel{}
	for _, c := range contents {
		m.replies = append(m.replies, schema.AssistantMessage(c, nil))
	}
	return m
}

const cotReply = `**Reasoning:** The user wants a notification.
It fires on priority change.

Steps:
1. Import entities
2. Define guard
   that checks priority
Missing Information:
- Which priority values count
Ambiguities:
None
Needs Clarification: No`

func TestParseAnalysis(t *testing.T) {
	a := ParseAnalysis(cotReply)
	assert.True(t, a.Success)
	assert.Equal(t, "The user wants a notification.\nIt fires on priority change.", a.Reasoning)
	assert.Equal(t, []string{"Import entities", "Define guard that checks priority"}, a.Steps)
	assert.Equal(t, []string{"Which priority values count"}, a.MissingInformation)
	assert.Equal(t, []string{"None"}, a.Ambiguities)
	// missing information overrides the explicit "No"
	assert.True(t, a.NeedsClarification)
}

func TestParseAnalysis_NoClarification(t *testing.T) {
	a := ParseAnalysis("Reasoning: Simple.\nSteps:\n1. Do it\nNeeds Clarification: No")
	assert.False(t, a.NeedsClarification)
	assert.Equal(t, []string{"Do it"}, a.Steps)
	assert.NotNil(t, a.MissingInformation)
	assert.Empty(t, a.MissingInformation)
}

func TestAnalysisAgent_Run(t *testing.T) {
	m := replies(cotReply)
	agent := NewAnalysisAgent(llm.Config{}, Options{})
	agent.SetModelFactory(factoryFor(m))

	a, err := agent.Run(context.Background(), "Notify on critical issues")
	require.NoError(t, err)
	assert.True(t, a.Success)
	assert.Equal(t, "Notify on critical issues", a.Prompt)
	assert.Contains(t, m.lastUserPrompt(0), `"Notify on critical issues"`)
	assert.Contains(t, m.lastUserPrompt(0), "- Needs Clarification: Yes/No")
}

func TestAnalysisAgent_ModelFailure(t *testing.T) {
	m := &scriptedModel{errs: []error{errors.New("rate limited")}}
	agent := NewAnalysisAgent(llm.Config{}, Options{})
	agent.SetModelFactory(factoryFor(m))

	a, err := agent.Run(context.Background(), "anything")
	require.NoError(t, err)
	assert.False(t, a.Success)
	assert.True(t, a.NeedsClarification)
	assert.Contains(t, a.Error, "rate limited")
	assert.Empty(t, a.Steps)
}

func TestAnalysisAgent_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &scriptedModel{errs: []error{context.Canceled}}
	agent := NewAnalysisAgent(llm.Config{}, Options{})
	agent.SetModelFactory(factoryFor(m))

	_, err := agent.Run(ctx, "anything")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseQuestions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "numbered",
			content: "Here are my questions:\n1. Which priority?\n2. Who should be notified?",
			want:    []string{"Which priority?", "Who should be notified?"},
		},
		{
			name:    "question marks only",
			content: "What field holds the due date?\nSome remark.\nShould it run on creation?",
			want:    []string{"What field holds the due date?", "Should it run on creation?"},
		},
		{
			name:    "nothing recognisable",
			content: "  Please describe the trigger.  ",
			want:    []string{"Please describe the trigger."},
		},
		{
			name:    "empty",
			content: "   ",
			want:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseQuestions(tt.content))
		})
	}
}

func TestClarifyingAgent_Questions(t *testing.T) {
	m := replies("1. Which priority values?\n2. Notify by email?")
	agent := NewClarifyingAgent(llm.Config{}, Options{})
	agent.SetModelFactory(factoryFor(m))

	qs, err := agent.Questions(context.Background(), Analysis{
		Reasoning:          "needs a guard",
		MissingInformation: []string{"priority values"},
		Ambiguities:        []string{"notification channel"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Which priority values?", "Notify by email?"}, qs)

	prompt := m.lastUserPrompt(0)
	assert.Contains(t, prompt, "Here's my reasoning about the request:\nneeds a guard")
	assert.Contains(t, prompt, "Missing information:\n- priority values")
	assert.Contains(t, prompt, "Ambiguities:\n- notification channel")
}

func TestClarifyingAgent_Failure(t *testing.T) {
	m := &scriptedModel{errs: []error{errors.New("down")}}
	agent := NewClarifyingAgent(llm.Config{}, Options{})
	agent.SetModelFactory(factoryFor(m))

	qs, err := agent.Questions(context.Background(), Analysis{})
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultQuestion}, qs)
}

func TestParsePlan(t *testing.T) {
	p := ParsePlan(`Plan: Use onChange.
Check priority first.
Components:
1. Guard
* Action
Requirements:
- Priority field`)
	assert.True(t, p.Success)
	assert.Equal(t, "Use onChange.\nCheck priority first.", p.Plan)
	assert.Equal(t, []string{"Guard", "Action"}, p.Components)
	assert.Equal(t, []string{"Priority field"}, p.Requirements)
}

func TestPlanningAgent_Run(t *testing.T) {
	m := replies("Plan: do it\nComponents:\n- guard")
	agent := NewPlanningAgent(llm.Config{}, Options{})
	agent.SetModelFactory(factoryFor(m))

	p, err := agent.Run(context.Background(), "tag new issues", &Analysis{
		Reasoning: "simple rule",
		Steps:     []string{"guard on becomesReported", "add tag"},
	})
	require.NoError(t, err)
	assert.Equal(t, "do it", p.Plan)
	assert.Equal(t, "tag new issues", p.Prompt)

	prompt := m.lastUserPrompt(0)
	assert.Contains(t, prompt, "1. guard on becomesReported\n2. add tag")
	assert.Contains(t, prompt, "simple rule")
}

func TestPlanningAgent_Failure(t *testing.T) {
	m := &scriptedModel{errs: []error{errors.New("down")}}
	agent := NewPlanningAgent(llm.Config{}, Options{})
	agent.SetModelFactory(factoryFor(m))

	p, err := agent.Run(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.False(t, p.Success)
	assert.Contains(t, p.Error, "down")
}

func TestBuildGenerationPrompt(t *testing.T) {
	lib := shots.Defaults().All()
	snippets := make([]scriptapi.Snippet, 6)
	for i := range snippets {
		snippets[i] = scriptapi.Snippet{File: "entities.js", Code: "code"}
	}

	prompt := BuildGenerationPrompt(GenerationInput{
		Prompt:   "notify assignee",
		Plan:     &Plan{Plan: "step by step"},
		Shots:    lib,
		Snippets: snippets,
		Previous: &validate.TestResult{
			SyntaxCheck: validate.Check{Success: true},
			Validation:  validate.Check{Message: "Validation failed", Issues: []string{"Missing guard function"}},
		},
	})

	assert.True(t, strings.HasPrefix(prompt, "Generate a YouTrack workflow script based on the following request:\n\nnotify assignee\n\n"))
	assert.Contains(t, prompt, "Plan:\nstep by step\n\n")
	assert.Contains(t, prompt, "Example 3: ")
	assert.NotContains(t, prompt, "Example 4: ")
	assert.Contains(t, prompt, "Snippet 5 from entities.js:")
	assert.NotContains(t, prompt, "Snippet 6")
	assert.Contains(t, prompt, "Error: Validation failed\n")
	assert.Contains(t, prompt, "Details: Validation issue: Missing guard function\n")
	assert.True(t, strings.HasSuffix(prompt, "7. Return only the code without any additional explanations or markdown formatting\n"))
}

func TestBuildGenerationPrompt_Minimal(t *testing.T) {
	prompt := BuildGenerationPrompt(GenerationInput{Prompt: "x", Previous: &validate.TestResult{Success: true}})
	assert.NotContains(t, prompt, "Plan:")
	assert.NotContains(t, prompt, "Here are some relevant")
	assert.NotContains(t, prompt, "previous code generation")
}

func TestFailureDetails_Syntax(t *testing.T) {
	errText, details := FailureDetails(validate.TestResult{
		SyntaxCheck: validate.Check{Message: "Syntax check failed", Error: "line 3: missing \")\""},
	})
	assert.Equal(t, "Syntax check failed", errText)
	assert.Equal(t, "line 3: missing \")\"", details)
}

func TestCodeAgent_Generate(t *testing.T) {
	m := replies("Here you go:\n```javascript\nexports.rule = 1;\n```")
	agent := NewCodeAgent(llm.Config{}, Options{Language: "JavaScript"})
	agent.SetModelFactory(factoryFor(m))

	gen, err := agent.Generate(context.Background(), GenerationInput{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "exports.rule = 1;", gen.Code)
	assert.False(t, gen.Fallback)
	assert.Contains(t, m.calls[0][0].Content, "expert in JavaScript programming")
}

func TestCodeAgent_ZeroTemperature(t *testing.T) {
	m := replies("```javascript\nexports.rule = 1;\n```")
	zero := float32(0)
	agent := NewCodeAgent(llm.Config{}, Options{CodeTemperature: &zero})
	agent.SetModelFactory(factoryFor(m))

	_, err := agent.Generate(context.Background(), GenerationInput{Prompt: "x"})
	require.NoError(t, err)
	require.NotNil(t, m.opts[0].Temperature)
	assert.Zero(t, *m.opts[0].Temperature)
}

func TestCodeAgent_DefaultTemperature(t *testing.T) {
	m := replies("```javascript\nexports.rule = 1;\n```")
	agent := NewCodeAgent(llm.Config{}, Options{})
	agent.SetModelFactory(factoryFor(m))

	_, err := agent.Generate(context.Background(), GenerationInput{Prompt: "x"})
	require.NoError(t, err)
	require.NotNil(t, m.opts[0].Temperature)
	assert.InDelta(t, llm.DefaultCodeTemperature, *m.opts[0].Temperature, 0.001)
}

func TestToolErrorMessages(t *testing.T) {
	calls := []schema.ToolCall{
		{ID: "call_1", Function: schema.FunctionCall{Name: "search_scripting_api"}},
		{ID: "call_2", Function: schema.FunctionCall{Name: "validate_script"}},
	}
	msgs := toolErrorMessages(calls, errors.New("bad arguments"))

	require.Len(t, msgs, 2)
	for i, msg := range msgs {
		assert.Equal(t, schema.Tool, msg.Role)
		assert.Equal(t, calls[i].ID, msg.ToolCallID)
		assert.Equal(t, calls[i].Function.Name, msg.ToolName)
		assert.Contains(t, msg.Content, "bad arguments")
	}
}

func TestCodeAgent_Stream(t *testing.T) {
	m := replies("```javascript\nexports.rule = 1;\n```")
	var streamed strings.Builder
	agent := NewCodeAgent(llm.Config{}, Options{}).WithStream(func(s string) { streamed.WriteString(s) })
	agent.SetModelFactory(factoryFor(m))

	gen, err := agent.Generate(context.Background(), GenerationInput{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "exports.rule = 1;", gen.Code)
	assert.Equal(t, "```javascript\nexports.rule = 1;\n```", streamed.String())
}

func TestCodeAgent_Fallback(t *testing.T) {
	m := &scriptedModel{errs: []error{errors.New("boom")}}
	agent := NewCodeAgent(llm.Config{}, Options{})
	agent.SetModelFactory(factoryFor(m))

	gen, err := agent.Generate(context.Background(), GenerationInput{Prompt: "x"})
	require.NoError(t, err)
	assert.True(t, gen.Fallback)
	assert.Contains(t, gen.Code, "// Error generating code: ")
	assert.Contains(t, gen.Code, "boom")
	assert.Contains(t, gen.Code, "title: 'Basic Workflow Script'")
}

type fakeTester struct {
	result validate.TestResult
	seen   []string
}

func (f *fakeTester) Test(ctx context.Context, code string) (validate.TestResult, error) {
	f.seen = append(f.seen, code)
	return f.result, nil
}

func TestCodeAgent_ToolLoop(t *testing.T) {
	m := &scriptedModel{replies: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:   "call_1",
			Type: "function",
			Function: schema.FunctionCall{
				Name:      "validate_script",
				Arguments: `{"code": "exports.rule = draft;"}`,
			},
		}}),
		schema.AssistantMessage("```js\nexports.rule = final;\n```", nil),
	}}
	tester := &fakeTester{result: validate.TestResult{Success: true}}

	agent := NewCodeAgent(llm.Config{}, Options{})
	agent.SetModelFactory(factoryFor(m))
	agent.WithTools(CreateTools(nil, nil, tester)...)

	gen, err := agent.Generate(context.Background(), GenerationInput{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "exports.rule = final;", gen.Code)
	assert.Equal(t, 1, gen.ToolUses)
	assert.Equal(t, []string{"exports.rule = draft;"}, tester.seen)

	require.Len(t, m.calls, 2)
	second := m.calls[1]
	toolMsg := second[len(second)-1]
	assert.Equal(t, schema.Tool, toolMsg.Role)
	assert.Contains(t, toolMsg.Content, "Test passed")
}

func TestCodeAgent_ToolCallingUnsupported(t *testing.T) {
	m := &scriptedModel{
		errs:    []error{errors.New("status 400: tools not supported"), nil},
		replies: []*schema.Message{nil, schema.AssistantMessage("exports.rule = plain;", nil)},
	}
	agent := NewCodeAgent(llm.Config{}, Options{})
	agent.SetModelFactory(factoryFor(m))
	agent.WithTools(CreateTools(nil, shots.Defaults(), nil)...)

	gen, err := agent.Generate(context.Background(), GenerationInput{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "exports.rule = plain;", gen.Code)
	assert.False(t, gen.Fallback)
}
