package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/josephgoksu/ytflow/internal/agents/core"
	"github.com/josephgoksu/ytflow/internal/config"
	"github.com/josephgoksu/ytflow/internal/llm"
)

var planSections = []core.SectionSpec{
	{Header: "Plan", Kind: core.SectionText},
	{Header: "Components", Kind: core.SectionList},
	{Header: "Requirements", Kind: core.SectionList},
}

// PlanningAgent drafts the implementation plan for a script.
type PlanningAgent struct {
	core.BaseAgent
	opts Options
}

// NewPlanningAgent creates the planning agent.
func NewPlanningAgent(cfg llm.Config, opts Options) *PlanningAgent {
	a := &PlanningAgent{
		BaseAgent: core.NewBaseAgent("planning", "Plans guards, actions and requirements of a workflow script", cfg),
		opts:      opts,
	}
	a.SetModelOptions(opts.modelOptions()...)
	return a
}

type planData struct {
	Prompt    string
	Reasoning string
	Steps     []string
}

// Run plans the script for prompt, using the analysis when given.
// Model failures come back as an unsuccessful Plan.
func (a *PlanningAgent) Run(ctx context.Context, prompt string, analysis *Analysis) (Plan, error) {
	failed := func(err error) Plan {
		a.opts.logger().Warn("planning failed", "error", err)
		return Plan{Error: err.Error(), Prompt: prompt, Components: []string{}, Requirements: []string{}}
	}

	data := planData{Prompt: prompt}
	if analysis != nil {
		data.Reasoning = analysis.Reasoning
		data.Steps = numberedSteps(analysis.Steps)
	}

	chatModel, err := a.CreateChatModel(ctx)
	if err != nil {
		return failed(err), nil
	}
	chain, err := core.NewTextChain[planData, Plan](ctx, a.Name(), chatModel, config.PromptPlan,
		func(content string) (Plan, error) { return ParsePlan(content), nil },
		a.ModelOptions()...)
	if err != nil {
		return Plan{}, fmt.Errorf("build planning chain: %w", err)
	}

	var dur time.Duration
	out, err := core.WithRetry(ctx, a.opts.Retry, a.Name(), func(ctx context.Context) (Plan, error) {
		res, d, err := chain.Invoke(ctx, data)
		dur += d
		return res, err
	})
	if err != nil {
		if ferr := fatal(ctx, err); ferr != nil {
			return Plan{}, ferr
		}
		return failed(err), nil
	}
	out.Prompt = prompt
	a.opts.logger().Debug("plan done", "duration", dur, "components", len(out.Components))
	return out, nil
}

// ParsePlan reads a "Plan: / Components: / Requirements:" reply.
func ParsePlan(content string) Plan {
	s := core.ParseSections(content, planSections)
	return Plan{
		Success:      true,
		Plan:         s.Text["plan"],
		Components:   nonNil(s.Lists["components"]),
		Requirements: nonNil(s.Lists["requirements"]),
		RawContent:   content,
	}
}
