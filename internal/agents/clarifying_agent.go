package agents

import (
	"context"
	"strings"

	"github.com/josephgoksu/ytflow/internal/agents/core"
	"github.com/josephgoksu/ytflow/internal/config"
	"github.com/josephgoksu/ytflow/internal/llm"
)

// DefaultQuestion is asked when no questions could be generated.
const DefaultQuestion = "Could you please provide more details about your requirements?"

// ClarifyingAgent turns an analysis into questions for the user.
type ClarifyingAgent struct {
	core.BaseAgent
	opts Options
}

// NewClarifyingAgent creates the question-generating agent.
func NewClarifyingAgent(cfg llm.Config, opts Options) *ClarifyingAgent {
	a := &ClarifyingAgent{
		BaseAgent: core.NewBaseAgent("clarifying", "Asks the user about missing information and ambiguities", cfg),
		opts:      opts,
	}
	a.SetModelOptions(opts.modelOptions()...)
	return a
}

type clarificationData struct {
	Reasoning          string
	MissingInformation []string
	Ambiguities        []string
}

// Questions returns the questions to ask. It never returns an empty list:
// on model failure the generic DefaultQuestion is used.
func (a *ClarifyingAgent) Questions(ctx context.Context, analysis Analysis) ([]string, error) {
	chatModel, err := a.CreateChatModel(ctx)
	if err != nil {
		a.opts.logger().Warn("clarifying questions unavailable", "error", err)
		return []string{DefaultQuestion}, nil
	}
	chain, err := core.NewTextChain[clarificationData, []string](ctx, a.Name(), chatModel, config.PromptClarification,
		func(content string) ([]string, error) { return ParseQuestions(content), nil },
		a.ModelOptions()...)
	if err != nil {
		return nil, err
	}

	data := clarificationData{
		Reasoning:          analysis.Reasoning,
		MissingInformation: analysis.MissingInformation,
		Ambiguities:        analysis.Ambiguities,
	}
	questions, err := core.WithRetry(ctx, a.opts.Retry, a.Name(), func(ctx context.Context) ([]string, error) {
		qs, _, err := chain.Invoke(ctx, data)
		return qs, err
	})
	if err != nil {
		if ferr := fatal(ctx, err); ferr != nil {
			return nil, ferr
		}
		a.opts.logger().Warn("clarifying questions unavailable", "error", err)
		return []string{DefaultQuestion}, nil
	}
	if len(questions) == 0 {
		return []string{DefaultQuestion}, nil
	}
	return questions, nil
}

// ParseQuestions extracts questions from a reply: lines starting "1." to "9."
// lose that prefix, other lines ending in "?" are kept as they are. When
// nothing matches, the whole reply is one question.
func ParseQuestions(content string) []string {
	var questions []string
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) >= 2 && line[0] >= '1' && line[0] <= '9' && line[1] == '.' {
			questions = append(questions, strings.TrimSpace(line[2:]))
			continue
		}
		if strings.HasSuffix(line, "?") {
			questions = append(questions, line)
		}
	}
	if len(questions) == 0 {
		if trimmed := strings.TrimSpace(content); trimmed != "" {
			questions = []string{trimmed}
		}
	}
	return questions
}
