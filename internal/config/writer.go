package config

import (
	"fmt"
	"path/filepath"

	"github.com/josephgoksu/ytflow/internal/llm"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// GlobalConfigFile is the file name written under the global config directory.
const GlobalConfigFile = "config.yaml"

// SaveGlobalLLMConfig stores provider, model and API key in ~/.ytflow/config.yaml,
// keeping any other keys already present in the file.
func SaveGlobalLLMConfig(fs afero.Fs, provider, model, key string) error {
	dir, err := GetGlobalConfigDir()
	if err != nil {
		return err
	}
	return SaveLLMConfig(fs, filepath.Join(dir, GlobalConfigFile), provider, model, key)
}

// SaveLLMConfig merges the LLM settings into the YAML file at path.
// An empty key leaves any stored key for the provider untouched.
func SaveLLMConfig(fs afero.Fs, path, provider, model, key string) error {
	if _, err := llm.ValidateProvider(provider); err != nil {
		return err
	}
	if model == "" {
		model = llm.DefaultModelForProvider(provider)
	}

	doc := map[string]any{}
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	if exists {
		raw, err := afero.ReadFile(fs, path)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	}

	llmSection := childMap(doc, "llm")
	llmSection["provider"] = provider
	llmSection["model"] = model
	if key != "" {
		keys := childMap(llmSection, "apiKeys")
		keys[provider] = key
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return afero.WriteFile(fs, path, out, 0o600)
}

func childMap(parent map[string]any, key string) map[string]any {
	if m, ok := parent[key].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	parent[key] = m
	return m
}
