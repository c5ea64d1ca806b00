package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/ytflow/internal/config"
	"github.com/josephgoksu/ytflow/internal/llm"
	"github.com/josephgoksu/ytflow/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long: `Show the configuration ytflow will use, after config files, YTFLOW_*
environment variables and defaults are merged. API keys are masked.

Examples:
  ytflow config
  ytflow config llm`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		llmCfg, err := config.LoadLLMConfig()
		if err != nil {
			return err
		}
		settings, err := config.LoadAgentSettings()
		if err != nil {
			return err
		}

		view := configView{
			ConfigFile:       viper.ConfigFileUsed(),
			Provider:         string(llmCfg.Provider),
			Model:            llmCfg.Model,
			EmbeddingModel:   llmCfg.EmbeddingModel,
			BaseURL:          llmCfg.BaseURL,
			APIKey:           config.MaskKey(llmCfg.APIKey),
			Temperature:      settings.Temperature,
			CodeTemperature:  settings.CodeTemperature,
			MaxTokens:        settings.MaxTokens,
			MaxRegenerations: settings.MaxRegenerations,
			AlwaysClarify:    settings.AlwaysClarify,
			UseTools:         settings.UseTools,
			SemanticShots:    settings.SemanticShots,
			NodeSyntaxCheck:  settings.NodeSyntaxCheck,
			DataDir:          config.GetDataDir(),
			ScriptingAPIDir:  config.GetScriptingAPIDir(),
			PoliciesDir:      config.GetPoliciesDir(),
			ShotsPath:        config.GetShotsPath(),
		}
		out := cmd.OutOrStdout()
		if isJSON() {
			return printJSON(out, view)
		}

		file := view.ConfigFile
		if file == "" {
			file = "(none, using defaults and environment)"
		}
		ui.RenderPageHeader(out, "Configuration", file)
		t := &ui.Table{Headers: []string{"KEY", "VALUE"}}
		add := func(k string, v any) { t.Rows = append(t.Rows, []string{k, fmt.Sprint(v)}) }
		add("llm.provider", view.Provider)
		add("llm.model", view.Model)
		add("llm.embeddingModel", view.EmbeddingModel)
		add("llm.baseURL", view.BaseURL)
		add("llm.apiKey", view.APIKey)
		add("llm.temperature", view.Temperature)
		add("llm.codeTemperature", view.CodeTemperature)
		add("llm.maxTokens", view.MaxTokens)
		add("agent.maxRegenerations", view.MaxRegenerations)
		add("agent.alwaysClarify", view.AlwaysClarify)
		add("agent.useTools", view.UseTools)
		add("shots.semantic", view.SemanticShots)
		add("validate.node", view.NodeSyntaxCheck)
		add("data dir", view.DataDir)
		add("scripting_api.dir", view.ScriptingAPIDir)
		add("validate.policiesDir", view.PoliciesDir)
		add("shots.path", view.ShotsPath)
		fmt.Fprint(out, t.Render())
		return nil
	},
}

type configView struct {
	ConfigFile       string  `json:"config_file"`
	Provider         string  `json:"provider"`
	Model            string  `json:"model"`
	EmbeddingModel   string  `json:"embedding_model,omitempty"`
	BaseURL          string  `json:"base_url,omitempty"`
	APIKey           string  `json:"api_key"`
	Temperature      float32 `json:"temperature"`
	CodeTemperature  float32 `json:"code_temperature"`
	MaxTokens        int     `json:"max_tokens"`
	MaxRegenerations int     `json:"max_regenerations"`
	AlwaysClarify    bool    `json:"always_clarify"`
	UseTools         bool    `json:"use_tools"`
	SemanticShots    bool    `json:"semantic_shots"`
	NodeSyntaxCheck  bool    `json:"node_syntax_check"`
	DataDir          string  `json:"data_dir"`
	ScriptingAPIDir  string  `json:"scripting_api_dir"`
	PoliciesDir      string  `json:"policies_dir"`
	ShotsPath        string  `json:"shots_path,omitempty"`
}

var configLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Choose the LLM provider, model and API key",
	Long: `Pick a provider and model and store them, with the API key, in
~/.ytflow/config.yaml. Flags skip the matching prompt.

Examples:
  ytflow config llm
  ytflow config llm --provider anthropic --model claude-sonnet-4-20250514 --api-key sk-...`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")
		key, _ := cmd.Flags().GetString("api-key")
		interactive := ui.IsInteractive()

		var err error
		if provider == "" {
			if !interactive {
				return errors.New("--provider is required when no terminal is attached")
			}
			if provider, err = ui.PromptLLMProvider(); err != nil {
				return cancelledOr(cmd, err)
			}
		}
		if _, err := llm.ValidateProvider(provider); err != nil {
			return err
		}

		if model == "" {
			model = llm.DefaultModelForProvider(provider)
			if interactive {
				answer, err := ui.PromptText("Model (empty for "+model+")", model)
				if err != nil {
					return cancelledOr(cmd, err)
				}
				if answer != "" {
					model = answer
				}
			}
		}

		if key == "" && llm.RequiresAPIKey(provider) && interactive {
			if key, err = ui.PromptAPIKey(provider); err != nil {
				return cancelledOr(cmd, err)
			}
		}

		if err := config.SaveGlobalLLMConfig(afero.NewOsFs(), provider, model, key); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Saved %s · %s\n", ui.StyleSuccess.Render("✓"), provider, model)
		return nil
	},
}

func cancelledOr(cmd *cobra.Command, err error) error {
	if errors.Is(err, ui.ErrInputCancelled) || errors.Is(err, ui.ErrSelectionCancelled) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled.")
		return nil
	}
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configLLMCmd)
	configLLMCmd.Flags().String("provider", "", "LLM provider ("+providerIDs()+")")
	configLLMCmd.Flags().String("model", "", "Chat model")
	configLLMCmd.Flags().String("api-key", "", "API key for the provider")
}

func providerIDs() string {
	var ids []string
	for _, p := range llm.Providers() {
		ids = append(ids, p.ID)
	}
	return strings.Join(ids, ", ")
}
