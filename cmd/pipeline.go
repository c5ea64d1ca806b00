package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/ytflow/internal/agents"
	"github.com/josephgoksu/ytflow/internal/agents/core"
	"github.com/josephgoksu/ytflow/internal/config"
	"github.com/josephgoksu/ytflow/internal/feedback"
	"github.com/josephgoksu/ytflow/internal/llm"
	"github.com/josephgoksu/ytflow/internal/memory"
	"github.com/josephgoksu/ytflow/internal/scriptapi"
	"github.com/josephgoksu/ytflow/internal/shots"
	"github.com/josephgoksu/ytflow/internal/ui"
	"github.com/josephgoksu/ytflow/internal/validate"
	"github.com/josephgoksu/ytflow/internal/workflow"
)

// services are the long-lived pieces a command may need. Fields are nil
// when the command did not ask for them.
type services struct {
	fs       afero.Fs
	llmCfg   llm.Config
	settings config.AgentSettings
	searcher *scriptapi.Searcher
	library  *shots.Library
	tester   *validate.Tester
	store    *memory.Store

	// stream receives generated code as it arrives.
	stream io.Writer
}

type serviceNeeds struct {
	llm   bool
	store bool
}

func newServices(ctx context.Context, cmd *cobra.Command, needs serviceNeeds) (*services, error) {
	settings, err := config.LoadAgentSettings()
	if err != nil {
		return nil, err
	}
	s := &services{fs: afero.NewOsFs(), settings: settings}

	if needs.llm {
		if s.llmCfg, err = resolveLLMConfig(cmd); err != nil {
			return nil, err
		}
	}

	s.searcher = scriptapi.NewSearcher(s.fs, config.GetScriptingAPIDir())
	if !s.searcher.Available() {
		slog.Info("scripting API directory not found, API search returns nothing", "dir", s.searcher.Dir())
	}

	s.library = shots.Load(s.fs, config.GetShotsPath())
	if settings.SemanticShots && needs.llm {
		embedder, err := llm.NewEmbedder(ctx, s.llmCfg)
		if err != nil {
			slog.Warn("semantic shot ranking disabled", "error", err)
		} else {
			s.library = s.library.WithReranker(shots.NewReranker(embedder, 0))
		}
	}

	s.tester, err = validate.NewTester(validate.Options{
		PoliciesDir: config.GetPoliciesDir(),
		NodeCheck:   settings.NodeSyntaxCheck,
		Fs:          s.fs,
	})
	if err != nil {
		return nil, fmt.Errorf("load validation policies: %w", err)
	}

	if needs.store {
		if s.store, err = openStore(); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *services) Close() {
	if s.searcher != nil {
		_ = s.searcher.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}

func (s *services) agentOptions() agents.Options {
	temp, codeTemp := s.settings.Temperature, s.settings.CodeTemperature
	return agents.Options{
		Temperature:     &temp,
		CodeTemperature: &codeTemp,
		MaxTokens:       s.settings.MaxTokens,
		Language:        s.settings.Language,
		Logger:          slog.Default(),
		Retry:           core.DefaultRetryPolicy,
	}
}

func (s *services) workflowSettings() workflow.Settings {
	return workflow.Settings{
		AlwaysClarify:    s.settings.AlwaysClarify,
		MaxRegenerations: s.settings.MaxRegenerations,
	}
}

// newGenerator wires the agents into a pipeline; asker answers the
// clarification questions.
func (s *services) newGenerator(ctx context.Context, asker feedback.Asker, settings workflow.Settings) (*workflow.Generator, error) {
	opts := s.agentOptions()
	coder := agents.NewCodeAgent(s.llmCfg, opts)
	if s.settings.UseTools {
		coder.WithTools(agents.CreateTools(s.searcher, s.library, s.tester)...)
	} else if s.stream != nil {
		coder.WithStream(func(chunk string) { _, _ = io.WriteString(s.stream, chunk) })
	}
	var clarifier workflow.Clarifier
	if !settings.SkipClarify {
		clarifier = agents.NewClarifyingAgent(s.llmCfg, opts)
	}
	deps := workflow.Deps{
		Analyzer:  agents.NewAnalysisAgent(s.llmCfg, opts),
		Clarifier: clarifier,
		Planner:   agents.NewPlanningAgent(s.llmCfg, opts),
		Coder:     coder,
		Tester:    s.tester,
		Searcher:  s.searcher,
		Shots:     s.library,
		Asker:     asker,
		Store:     s.store,
		Logger:    slog.Default(),
	}
	return workflow.New(ctx, deps, settings)
}

// resolveLLMConfig loads the LLM config, applies --api-key and asks for a
// missing key when a terminal is attached.
func resolveLLMConfig(cmd *cobra.Command) (llm.Config, error) {
	cfg, err := config.LoadLLMConfig()
	if err != nil {
		return llm.Config{}, err
	}
	if f := cmd.Flags().Lookup("api-key"); f != nil && f.Value.String() != "" {
		cfg.APIKey = f.Value.String()
	}
	if cfg.APIKey != "" || !llm.RequiresAPIKey(string(cfg.Provider)) {
		return cfg, nil
	}

	if !ui.IsInteractive() || isJSON() {
		return llm.Config{}, fmt.Errorf("%w for %s: set %v, pass --api-key or run 'ytflow config llm'",
			llm.ErrNoAPIKey, cfg.Provider, llm.APIKeyEnvVars(string(cfg.Provider)))
	}
	key, err := ui.PromptAPIKey(string(cfg.Provider))
	if err != nil {
		if errors.Is(err, ui.ErrInputCancelled) {
			return llm.Config{}, llm.ErrNoAPIKey
		}
		return llm.Config{}, err
	}
	cfg.APIKey = key
	if err := config.SaveGlobalLLMConfig(afero.NewOsFs(), string(cfg.Provider), cfg.Model, key); err != nil {
		slog.Warn("could not save API key", "error", err)
	}
	return cfg, nil
}
