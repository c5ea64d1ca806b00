/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com

Package agents provides the LLM-powered stages of workflow script generation:
requirement analysis, clarifying questions, planning and code generation.
*/
package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"

	"github.com/josephgoksu/ytflow/internal/agents/core"
)

// Analysis is the chain-of-thought breakdown of a request.
type Analysis struct {
	Success            bool     `json:"success"`
	Error              string   `json:"error,omitempty"`
	Prompt             string   `json:"prompt"`
	Reasoning          string   `json:"reasoning"`
	Steps              []string `json:"steps"`
	MissingInformation []string `json:"missing_information"`
	Ambiguities        []string `json:"ambiguities"`
	NeedsClarification bool     `json:"needs_clarification"`
	RawContent         string   `json:"raw_content,omitempty"`
}

// Plan is the implementation plan for a script.
type Plan struct {
	Success      bool     `json:"success"`
	Error        string   `json:"error,omitempty"`
	Prompt       string   `json:"prompt"`
	Plan         string   `json:"plan"`
	Components   []string `json:"components"`
	Requirements []string `json:"requirements"`
	RawContent   string   `json:"raw_content,omitempty"`
}

// Options are shared by every agent. A nil temperature leaves the provider
// default in place; zero is a valid setting.
type Options struct {
	Temperature     *float32
	CodeTemperature *float32
	MaxTokens       int
	Language        string
	Logger          *slog.Logger
	Retry           core.RetryPolicy // applies to every model call; the zero value makes one attempt
}

func (o Options) modelOptions() []model.Option {
	var opts []model.Option
	if o.Temperature != nil {
		opts = append(opts, model.WithTemperature(*o.Temperature))
	}
	if o.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(o.MaxTokens))
	}
	return opts
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) language() string {
	if o.Language == "" {
		return "JavaScript"
	}
	return o.Language
}

// fatal reports whether err means the run should stop rather than degrade.
func fatal(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func numberedSteps(steps []string) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = fmt.Sprintf("%d. %s", i+1, s)
	}
	return out
}
