/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/josephgoksu/ytflow/internal/agents/core"
	"github.com/josephgoksu/ytflow/internal/config"
	"github.com/josephgoksu/ytflow/internal/llm"
	"github.com/josephgoksu/ytflow/internal/scriptapi"
	"github.com/josephgoksu/ytflow/internal/shots"
	"github.com/josephgoksu/ytflow/internal/utils"
	"github.com/josephgoksu/ytflow/internal/validate"
)

const (
	promptShotLimit    = 3
	promptSnippetLimit = 5
	defaultToolIters   = 6
)

// GenerationInput is everything the generator knows about the request.
type GenerationInput struct {
	Prompt   string
	Plan     *Plan
	Shots    []shots.Shot
	Snippets []scriptapi.Snippet
	// Previous is the failed test of the last attempt, if any.
	Previous *validate.TestResult
}

// Generation is the generator's output.
type Generation struct {
	Code     string        `json:"code"`
	Fallback bool          `json:"fallback,omitempty"`
	Error    string        `json:"error,omitempty"`
	ToolUses int           `json:"tool_uses,omitempty"`
	Duration time.Duration `json:"duration"`
}

// CodeAgent writes the workflow script.
type CodeAgent struct {
	core.BaseAgent
	opts      Options
	requester *llm.Requester
	tools     []tool.InvokableTool
	maxIters  int
	onChunk   func(string)
}

// NewCodeAgent creates the generator. Without tools it makes one completion.
func NewCodeAgent(cfg llm.Config, opts Options) *CodeAgent {
	return &CodeAgent{
		BaseAgent: core.NewBaseAgent("codegen", "Writes YouTrack workflow scripts", cfg),
		opts:      opts,
		requester: llm.NewRequester(cfg),
		maxIters:  defaultToolIters,
	}
}

// SetModelFactory replaces the chat model factory for both generation paths.
func (a *CodeAgent) SetModelFactory(f llm.ChatModelFactory) {
	if f == nil {
		return
	}
	a.BaseAgent.SetModelFactory(f)
	a.requester.WithFactory(f)
}

// WithTools lets the model call tools before answering.
func (a *CodeAgent) WithTools(tools ...tool.InvokableTool) *CodeAgent {
	a.tools = tools
	return a
}

// WithStream forwards generated text to onChunk as it arrives. It applies
// to generation without tools.
func (a *CodeAgent) WithStream(onChunk func(string)) *CodeAgent {
	a.onChunk = onChunk
	return a
}

// SetMaxIterations sets the maximum number of tool-use iterations
func (a *CodeAgent) SetMaxIterations(n int) {
	if n > 0 && n <= 20 {
		a.maxIters = n
	}
}

// Generate writes a script. When the model fails, a template script carrying
// the error is returned with Fallback set; only cancellation is an error.
func (a *CodeAgent) Generate(ctx context.Context, in GenerationInput) (Generation, error) {
	start := time.Now()
	prompt := BuildGenerationPrompt(in)

	var (
		gen Generation
		err error
	)
	if len(a.tools) > 0 {
		gen, err = a.generateWithTools(ctx, prompt)
	} else {
		gen, err = a.generatePlain(ctx, prompt)
	}
	if err != nil {
		if ferr := fatal(ctx, err); ferr != nil {
			return Generation{}, ferr
		}
		a.opts.logger().Warn("code generation failed, using template", "error", err)
		gen = Generation{Code: FallbackScript(err), Fallback: true, Error: err.Error()}
	}
	gen.Duration = time.Since(start)
	return gen, nil
}

func (a *CodeAgent) codeTemperature() float32 {
	if a.opts.CodeTemperature != nil {
		return *a.opts.CodeTemperature
	}
	return llm.DefaultCodeTemperature
}

func (a *CodeAgent) generatePlain(ctx context.Context, prompt string) (Generation, error) {
	req := llm.Request{
		Prompt:      prompt,
		Temperature: a.opts.CodeTemperature,
		MaxTokens:   a.opts.MaxTokens,
	}
	if a.onChunk != nil {
		resp, err := a.requester.StreamCode(ctx, req, a.opts.language(), a.onChunk)
		if err != nil {
			return Generation{}, err
		}
		return Generation{Code: resp.Code}, nil
	}
	resp, err := core.WithRetry(ctx, a.opts.Retry, a.Name(), func(ctx context.Context) (llm.CodeResponse, error) {
		return a.requester.GenerateCode(ctx, req, a.opts.language())
	})
	if err != nil {
		return Generation{}, err
	}
	return Generation{Code: resp.Code}, nil
}

// generateWithTools runs the ReAct loop: LLM -> (tool call -> tool result -> LLM)* -> final answer.
func (a *CodeAgent) generateWithTools(ctx context.Context, prompt string) (Generation, error) {
	chatModel, err := a.CreateChatModel(ctx)
	if err != nil {
		return Generation{}, err
	}

	baseTools := make([]tool.BaseTool, len(a.tools))
	toolInfos := make([]*schema.ToolInfo, 0, len(a.tools))
	for i, t := range a.tools {
		baseTools[i] = t
		info, err := t.Info(ctx)
		if err != nil {
			continue
		}
		toolInfos = append(toolInfos, info)
	}

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{Tools: baseTools})
	if err != nil {
		return Generation{}, fmt.Errorf("create tools node: %w", err)
	}

	messages := []*schema.Message{
		schema.SystemMessage(config.SystemPromptToolAgent),
		schema.UserMessage(prompt),
	}
	opts := []model.Option{model.WithTools(toolInfos), model.WithTemperature(a.codeTemperature())}
	if a.opts.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(a.opts.MaxTokens))
	}

	log := a.opts.logger()
	uses := 0
	for iter := 0; iter < a.maxIters; iter++ {
		select {
		case <-ctx.Done():
			return Generation{}, ctx.Err()
		default:
		}

		resp, err := chatModel.Generate(ctx, messages, opts...)
		if err != nil {
			// Models without tool calling usually reject the request outright.
			if iter == 0 && strings.Contains(err.Error(), "400") {
				log.Info("tool calling not supported, falling back to plain generation")
				return a.generatePlain(ctx, prompt)
			}
			return Generation{}, fmt.Errorf("generate (iter %d): %w", iter+1, err)
		}
		messages = append(messages, resp)

		if len(resp.ToolCalls) == 0 {
			log.Debug("final answer", "iterations", iter+1, "tool_uses", uses)
			return Generation{Code: utils.ExtractCodeBlocks(resp.Content), ToolUses: uses}, nil
		}

		for _, tc := range resp.ToolCalls {
			log.Debug("tool call", "tool", tc.Function.Name, "args", utils.Truncate(tc.Function.Arguments, 80))
		}
		uses += len(resp.ToolCalls)

		toolResults, err := toolsNode.Invoke(ctx, resp)
		if err != nil {
			// The model sees the failure and can recover on the next turn.
			toolResults = toolErrorMessages(resp.ToolCalls, err)
		}
		messages = append(messages, toolResults...)
	}

	log.Warn("max tool iterations reached without final answer", "max", a.maxIters)
	return a.generatePlain(ctx, prompt)
}

// toolErrorMessages answers every pending call with the failure, since the
// next request must carry one tool message per call ID.
func toolErrorMessages(calls []schema.ToolCall, err error) []*schema.Message {
	msgs := make([]*schema.Message, len(calls))
	for i, tc := range calls {
		msgs[i] = schema.ToolMessage(fmt.Sprintf("Error executing %s: %v", tc.Function.Name, err), tc.ID, schema.WithToolName(tc.Function.Name))
	}
	return msgs
}

// BuildGenerationPrompt assembles the code generation prompt: the request,
// the plan, up to three example scripts, up to five API snippets, the last
// failure and the format guidelines.
func BuildGenerationPrompt(in GenerationInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate a YouTrack workflow script based on the following request:\n\n%s\n\n", in.Prompt)

	if in.Plan != nil && in.Plan.Plan != "" {
		fmt.Fprintf(&sb, "Plan:\n%s\n\n", in.Plan.Plan)
	}

	if len(in.Shots) > 0 {
		sb.WriteString("Here are some relevant examples of YouTrack workflow scripts:\n\n")
		sb.WriteString(formatShots(in.Shots, promptShotLimit))
	}

	if len(in.Snippets) > 0 {
		sb.WriteString("Here are some relevant code snippets from the YouTrack scripting API:\n\n")
		for i, s := range in.Snippets {
			if i == promptSnippetLimit {
				break
			}
			fmt.Fprintf(&sb, "Snippet %d from %s:\n%s\n\n", i+1, s.File, s.Code)
		}
	}

	if in.Previous != nil && !in.Previous.Success {
		errText, details := FailureDetails(*in.Previous)
		sb.WriteString("The previous code generation had errors:\n")
		if errText != "" {
			fmt.Fprintf(&sb, "Error: %s\n", errText)
		}
		if details != "" {
			fmt.Fprintf(&sb, "Details: %s\n", details)
		}
		sb.WriteString("Please fix these issues in the new code.\n\n")
	}

	sb.WriteString(config.GenerationGuidelines)
	return sb.String()
}

// FailureDetails reduces a failed test to the error line and the details
// shown to the model.
func FailureDetails(r validate.TestResult) (errText, details string) {
	if !r.SyntaxCheck.Success {
		return r.SyntaxCheck.Message, r.SyntaxCheck.Error
	}
	return r.Validation.Message, validate.Analyze(r)
}

// FallbackScript is the starting-point script returned when generation fails.
func FallbackScript(err error) string {
	return fmt.Sprintf(`
// Error generating code: %v
// This is a basic template that you can modify to meet your requirements.

const entities = require('@jetbrains/youtrack-scripting-api/entities');

exports.rule = entities.Issue.onChange({
  title: 'Basic Workflow Script',
  guard: (ctx) => {
    const issue = ctx.issue;
    // TODO: Add your guard conditions here
    return true;
  },
  action: (ctx) => {
    const issue = ctx.issue;
    // TODO: Add your action logic here

    // Example: Log a message
    console.log('Workflow script executed for issue: ' + issue.id);
  },
  requirements: {
    // TODO: Add your requirements here
  }
});
`, err)
}
