package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// AgentSettings holds the non-LLM knobs of a generation run.
type AgentSettings struct {
	Temperature      float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	CodeTemperature  float32 `mapstructure:"codeTemperature" validate:"gte=0,lte=2"`
	MaxTokens        int     `mapstructure:"maxTokens" validate:"gte=256,lte=64000"`
	MaxRegenerations int     `mapstructure:"maxRegenerations" validate:"gte=0,lte=5"`
	AlwaysClarify    bool    `mapstructure:"alwaysClarify"`
	UseTools         bool    `mapstructure:"useTools"`
	SemanticShots    bool    `mapstructure:"semanticShots"`
	NodeSyntaxCheck  bool    `mapstructure:"nodeSyntaxCheck"`
	Language         string  `mapstructure:"language" validate:"required"`
}

var validate = validator.New()

// SetDefaults registers default values for every key read by LoadAgentSettings.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.codeTemperature", 0.2)
	v.SetDefault("llm.maxTokens", 4000)
	v.SetDefault("agent.maxRegenerations", 1)
	v.SetDefault("agent.alwaysClarify", true)
	v.SetDefault("agent.useTools", false)
	v.SetDefault("agent.language", "JavaScript")
	v.SetDefault("shots.semantic", false)
	v.SetDefault("validate.node", false)
}

// LoadAgentSettings reads and validates AgentSettings from the global viper instance.
func LoadAgentSettings() (AgentSettings, error) {
	s := AgentSettings{
		Temperature:      float32(viper.GetFloat64("llm.temperature")),
		CodeTemperature:  float32(viper.GetFloat64("llm.codeTemperature")),
		MaxTokens:        viper.GetInt("llm.maxTokens"),
		MaxRegenerations: viper.GetInt("agent.maxRegenerations"),
		AlwaysClarify:    viper.GetBool("agent.alwaysClarify"),
		UseTools:         viper.GetBool("agent.useTools"),
		SemanticShots:    viper.GetBool("shots.semantic"),
		NodeSyntaxCheck:  viper.GetBool("validate.node"),
		Language:         viper.GetString("agent.language"),
	}
	if err := ValidateSettings(s); err != nil {
		return AgentSettings{}, err
	}
	return s, nil
}

// ValidateSettings reports every failing field in one error.
func ValidateSettings(s AgentSettings) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
}
