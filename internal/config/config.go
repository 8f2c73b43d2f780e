// Package config loads runtime configuration: defaults, then an
// optional YAML file, then environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"warvox/internal/trigger"
	"warvox/internal/validation"
)

// LLM configures the model provider used for classification and
// dispatch.
type LLM struct {
	Provider    string        `yaml:"provider" env:"WARVOX_LLM_PROVIDER"`
	APIKey      string        `yaml:"api_key" env:"WARVOX_LLM_API_KEY"`
	BaseURL     string        `yaml:"base_url" env:"WARVOX_LLM_BASE_URL"`
	Model       string        `yaml:"model" env:"WARVOX_LLM_MODEL"`
	Timeout     time.Duration `yaml:"timeout" env:"WARVOX_LLM_TIMEOUT"`
	MaxTokens   int           `yaml:"max_tokens" env:"WARVOX_LLM_MAX_TOKENS"`
	Temperature float64       `yaml:"temperature" env:"WARVOX_LLM_TEMPERATURE"`

	// ClassifierProvider and ClassifierModel route the intent classifier
	// to a cheaper, faster model than the dispatch turn. Empty fields
	// fall back to the main provider and model.
	ClassifierProvider string `yaml:"classifier_provider" env:"WARVOX_LLM_CLASSIFIER_PROVIDER"`
	ClassifierModel    string `yaml:"classifier_model" env:"WARVOX_LLM_CLASSIFIER_MODEL"`
}

// ClassifierLLM resolves the classifier's provider settings, falling
// back to the dispatch settings field by field.
func (l LLM) ClassifierLLM() LLM {
	out := l
	if l.ClassifierProvider != "" {
		out.Provider = l.ClassifierProvider
	}
	if l.ClassifierModel != "" {
		out.Model = l.ClassifierModel
	}
	return out
}

// Config is the full runtime configuration.
type Config struct {
	// SessionID names the session; empty means a generated one.
	SessionID string `yaml:"session_id" env:"WARVOX_SESSION_ID"`

	// DBPath enables the sqlite timeline mirror when non-empty.
	DBPath string `yaml:"db_path" env:"WARVOX_DB_PATH"`

	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"WARVOX_LOG_LEVEL"`

	LLM        LLM                   `yaml:"llm"`
	Trigger    trigger.Config        `yaml:"trigger"`
	Validation validation.Thresholds `yaml:"validation"`

	// Aliases maps spoken nicknames to canonical unit names.
	Aliases map[string]string `yaml:"aliases"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		LogLevel:   "info",
		LLM:        LLM{Provider: "openai", Timeout: 30 * time.Second},
		Trigger:    trigger.DefaultConfig(),
		Validation: validation.DefaultThresholds(),
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty; missing files are an error), then
// environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
