package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/josephgoksu/ytflow/internal/agents/core"
	"github.com/josephgoksu/ytflow/internal/config"
	"github.com/josephgoksu/ytflow/internal/llm"
)

var analysisSections = []core.SectionSpec{
	{Header: "Reasoning", Kind: core.SectionText},
	{Header: "Steps", Kind: core.SectionSteps},
	{Header: "Missing Information", Kind: core.SectionList},
	{Header: "Ambiguities", Kind: core.SectionList},
	{Header: "Needs Clarification", Kind: core.SectionFlag},
}

type analysisData struct {
	Prompt string
}

// AnalysisAgent reasons about a request step by step before any code is written.
type AnalysisAgent struct {
	core.BaseAgent
	opts Options
}

// NewAnalysisAgent creates the chain-of-thought agent.
func NewAnalysisAgent(cfg llm.Config, opts Options) *AnalysisAgent {
	a := &AnalysisAgent{
		BaseAgent: core.NewBaseAgent("analysis", "Breaks a workflow request into steps and open questions", cfg),
		opts:      opts,
	}
	a.SetModelOptions(opts.modelOptions()...)
	return a
}

// Run analyzes prompt. Model failures do not return an error: the analysis
// comes back unsuccessful and asks for clarification instead.
func (a *AnalysisAgent) Run(ctx context.Context, prompt string) (Analysis, error) {
	failed := func(err error) Analysis {
		a.opts.logger().Warn("analysis failed", "error", err)
		return Analysis{
			Success:            false,
			Error:              err.Error(),
			Prompt:             prompt,
			Steps:              []string{},
			MissingInformation: []string{},
			Ambiguities:        []string{},
			NeedsClarification: true,
		}
	}

	chatModel, err := a.CreateChatModel(ctx)
	if err != nil {
		return failed(err), nil
	}
	chain, err := core.NewTextChain[analysisData, Analysis](ctx, a.Name(), chatModel, config.PromptAnalysis,
		func(content string) (Analysis, error) { return ParseAnalysis(content), nil },
		a.ModelOptions()...)
	if err != nil {
		return Analysis{}, fmt.Errorf("build analysis chain: %w", err)
	}

	var dur time.Duration
	out, err := core.WithRetry(ctx, a.opts.Retry, a.Name(), func(ctx context.Context) (Analysis, error) {
		res, d, err := chain.Invoke(ctx, analysisData{Prompt: prompt})
		dur += d
		return res, err
	})
	if err != nil {
		if ferr := fatal(ctx, err); ferr != nil {
			return Analysis{}, ferr
		}
		return failed(err), nil
	}
	out.Prompt = prompt
	a.opts.logger().Debug("analysis done", "duration", dur, "steps", len(out.Steps), "needs_clarification", out.NeedsClarification)
	return out, nil
}

// ParseAnalysis reads a "Reasoning: / Steps: / ..." reply. Any missing
// information or ambiguity forces NeedsClarification.
func ParseAnalysis(content string) Analysis {
	s := core.ParseSections(content, analysisSections)
	a := Analysis{
		Success:            true,
		Reasoning:          s.Text["reasoning"],
		Steps:              nonNil(s.Lists["steps"]),
		MissingInformation: nonNil(s.Lists["missing information"]),
		Ambiguities:        nonNil(s.Lists["ambiguities"]),
		NeedsClarification: s.Flags["needs clarification"],
		RawContent:         content,
	}
	if len(a.MissingInformation) > 0 || len(a.Ambiguities) > 0 {
		a.NeedsClarification = true
	}
	return a
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
