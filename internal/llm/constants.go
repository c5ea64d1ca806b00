package llm

import (
	"errors"
	"strings"
)

// Provider constants
const (
	// DefaultProvider is the default LLM provider
	DefaultProvider = ProviderOpenAI

	// ProviderOpenAI represents the OpenAI provider
	ProviderOpenAI = "openai"

	// ProviderOllama represents the Ollama provider
	ProviderOllama = "ollama"

	// ProviderAnthropic represents the Anthropic provider
	ProviderAnthropic = "anthropic"

	// ProviderGemini represents the Google Gemini provider
	ProviderGemini = "gemini"

	// ProviderGrazie represents the JetBrains Grazie OpenAI-compatible gateway
	ProviderGrazie = "grazie"
)

// DefaultOllamaURL is the default URL for Ollama server
const DefaultOllamaURL = "http://localhost:11434"

// DefaultGrazieURL is the OpenAI-compatible base URL of the Grazie gateway.
const DefaultGrazieURL = "https://api.grazie.jetbrains.com/v1"

// Embedding model constants
const (
	DefaultOpenAIEmbeddingModel = "text-embedding-3-small"
	DefaultOllamaEmbeddingModel = "nomic-embed-text"
	DefaultGeminiEmbeddingModel = "gemini-embedding-001"
)

// Request defaults.
const (
	DefaultTemperature     float32 = 0.7
	DefaultCodeTemperature float32 = 0.2
	DefaultMaxTokens               = 4000
)

// ErrNoAPIKey is wrapped by every "API key is required" error.
var ErrNoAPIKey = errors.New("no API key configured")

var defaultModels = map[string]string{
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-3-5-sonnet-latest",
	ProviderGemini:    "gemini-2.0-flash",
	ProviderOllama:    "llama3.1",
	ProviderGrazie:    "grazie-xl",
}

// DefaultModelForProvider returns the default chat model ID for a given provider.
func DefaultModelForProvider(provider string) string {
	return defaultModels[provider]
}

// APIKeyEnvVars lists the environment variables consulted for a provider's key,
// in priority order.
func APIKeyEnvVars(provider string) []string {
	switch provider {
	case ProviderOpenAI:
		return []string{"OPENAI_API_KEY"}
	case ProviderAnthropic:
		return []string{"ANTHROPIC_API_KEY"}
	case ProviderGemini:
		return []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case ProviderGrazie:
		return []string{"GRAZIE_API_KEY"}
	default:
		return nil
	}
}

// RequiresAPIKey reports whether the provider needs a key to create a chat model.
func RequiresAPIKey(provider string) bool {
	return provider != ProviderOllama
}

func supportedList() string {
	return strings.Join([]string{ProviderOpenAI, ProviderOllama, ProviderAnthropic, ProviderGemini, ProviderGrazie}, ", ")
}

// ProviderInfo describes a provider for selection menus.
type ProviderInfo struct {
	ID          string
	DisplayName string
	IsLocal     bool
}

// Providers lists the supported providers in menu order.
func Providers() []ProviderInfo {
	return []ProviderInfo{
		{ID: ProviderOpenAI, DisplayName: "OpenAI"},
		{ID: ProviderAnthropic, DisplayName: "Anthropic"},
		{ID: ProviderGemini, DisplayName: "Gemini"},
		{ID: ProviderGrazie, DisplayName: "Grazie"},
		{ID: ProviderOllama, DisplayName: "Ollama", IsLocal: true},
	}
}
