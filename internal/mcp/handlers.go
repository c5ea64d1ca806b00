package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/josephgoksu/ytflow/internal/agents"
	"github.com/josephgoksu/ytflow/internal/feedback"
	"github.com/josephgoksu/ytflow/internal/workflow"
)

// GeneratorFactory builds a pipeline whose clarification questions are
// answered by asker.
type GeneratorFactory func(ctx context.Context, asker feedback.Asker, settings workflow.Settings) (*workflow.Generator, error)

// Service implements the MCP tools. Each handler returns Markdown; input
// problems come back as *FieldError.
type Service struct {
	NewGenerator GeneratorFactory
	Settings     workflow.Settings
	Searcher     agents.APISearcher
	Shots        agents.ShotRetriever
	Tester       agents.ScriptTester
}

// ErrUnavailable is returned when the service lacks what a tool needs.
var ErrUnavailable = errors.New("tool is not available in this configuration")

// Generate runs the whole pipeline. There is no user to ask, so the
// clarification questions are answered from params.Answers.
func (s *Service) Generate(ctx context.Context, params GenerateParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}
	if s.NewGenerator == nil {
		return "", ErrUnavailable
	}
	settings := s.Settings
	if params.Clarify != nil {
		settings.AlwaysClarify = *params.Clarify
		settings.SkipClarify = !*params.Clarify
	}

	gen, err := s.NewGenerator(ctx, feedback.NewScripted(params.Answers...), settings)
	if err != nil {
		return "", fmt.Errorf("build pipeline: %w", err)
	}
	res, err := gen.Generate(ctx, params.Prompt)
	if err != nil {
		return "", err
	}
	return FormatGeneration(res), nil
}

// Validate tests a script.
func (s *Service) Validate(ctx context.Context, params ValidateParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}
	if s.Tester == nil {
		return "", ErrUnavailable
	}
	res, err := s.Tester.Test(ctx, params.Code)
	if err != nil {
		return "", err
	}
	return FormatTest(res), nil
}

// Search looks up the scripting API by free text or by entity.
func (s *Service) Search(ctx context.Context, params SearchParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}
	if s.Searcher == nil {
		return "", ErrUnavailable
	}
	if params.Entity != "" {
		info, err := s.Searcher.SearchEntity(ctx, params.Entity)
		if err != nil {
			return "", err
		}
		return FormatEntity(info), nil
	}
	snippets, err := s.Searcher.Search(ctx, params.Query)
	if err != nil {
		return "", err
	}
	return FormatSnippets(params.Query, snippets, limitOr(params.Limit, defaultSnippetLimit)), nil
}

// RetrieveShots finds example scripts.
func (s *Service) RetrieveShots(ctx context.Context, params ShotsParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}
	if s.Shots == nil {
		return "", ErrUnavailable
	}
	found, err := s.Shots.Retrieve(ctx, params.Query)
	if err != nil {
		return "", err
	}
	return FormatShots(params.Query, found, limitOr(params.Limit, defaultShotLimit)), nil
}

// ErrorText renders err for a tool result.
func ErrorText(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return FormatValidationError(fe.Field, fe.Message)
	}
	return FormatError(err.Error())
}
