package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func TestLoadAgentSettings_Defaults(t *testing.T) {
	resetViperForTest(t)
	SetDefaults(viper.GetViper())

	s, err := LoadAgentSettings()
	if err != nil {
		t.Fatalf("LoadAgentSettings() error = %v", err)
	}
	if s.MaxRegenerations != 1 {
		t.Errorf("MaxRegenerations = %d, want 1", s.MaxRegenerations)
	}
	if !s.AlwaysClarify {
		t.Error("AlwaysClarify should default to true")
	}
	if s.Language != "JavaScript" {
		t.Errorf("Language = %q", s.Language)
	}
}

func TestValidateSettings(t *testing.T) {
	valid := AgentSettings{Temperature: 0.7, CodeTemperature: 0.2, MaxTokens: 4000, MaxRegenerations: 1, Language: "JavaScript"}
	if err := ValidateSettings(valid); err != nil {
		t.Fatalf("valid settings rejected: %v", err)
	}

	bad := valid
	bad.Temperature = 3
	bad.MaxRegenerations = 9
	err := ValidateSettings(bad)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"Temperature", "MaxRegenerations"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}
}

func TestGetMemoryBasePath_Explicit(t *testing.T) {
	resetViperForTest(t)
	viper.Set("memory.path", "/tmp/ytflow-mem")
	if got := GetMemoryBasePath(); got != "/tmp/ytflow-mem" {
		t.Errorf("GetMemoryBasePath() = %q", got)
	}
}

func TestGetDataDir_XDG(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_DATA_HOME", "/xdg")
	if got := GetDataDir(); got != filepath.Join("/xdg", "ytflow") {
		t.Errorf("GetDataDir() = %q", got)
	}
}

func TestSaveLLMConfig_MergesExisting(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/home/u/.ytflow/config.yaml"
	if err := afero.WriteFile(fs, path, []byte("verbose: true\nllm:\n  apiKeys:\n    openai: keep-me\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := SaveLLMConfig(fs, path, "anthropic", "", "ant-key"); err != nil {
		t.Fatalf("SaveLLMConfig() error = %v", err)
	}

	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Verbose bool `yaml:"verbose"`
		LLM     struct {
			Provider string            `yaml:"provider"`
			Model    string            `yaml:"model"`
			APIKeys  map[string]string `yaml:"apiKeys"`
		} `yaml:"llm"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	if !doc.Verbose {
		t.Error("unrelated key lost")
	}
	if doc.LLM.Provider != "anthropic" || doc.LLM.Model == "" {
		t.Errorf("llm = %+v", doc.LLM)
	}
	if doc.LLM.APIKeys["openai"] != "keep-me" || doc.LLM.APIKeys["anthropic"] != "ant-key" {
		t.Errorf("apiKeys = %v", doc.LLM.APIKeys)
	}
}

func TestSaveLLMConfig_RejectsUnknownProvider(t *testing.T) {
	if err := SaveLLMConfig(afero.NewMemMapFs(), "/c.yaml", "nope", "", "k"); err == nil {
		t.Fatal("expected error")
	}
}
