package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects which LLM provider to use.
	// Values: "anthropic", "openai", "gemini", "openrouter", "mock"
	Provider string `env:"PRLTUTOR_LLM_PROVIDER" envDefault:"anthropic"`

	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Retry      RetryConfig

	// Timeout is the maximum duration for a single LLM request,
	// retries included.
	Timeout time.Duration `env:"PRLTUTOR_LLM_TIMEOUT" envDefault:"45s"`
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey  string `env:"PRLTUTOR_ANTHROPIC_API_KEY"`
	Model   string `env:"PRLTUTOR_ANTHROPIC_MODEL" envDefault:"claude-haiku"`
	BaseURL string `env:"PRLTUTOR_ANTHROPIC_BASE_URL"`
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string `env:"PRLTUTOR_OPENAI_API_KEY"`
	Model   string `env:"PRLTUTOR_OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	BaseURL string `env:"PRLTUTOR_OPENAI_BASE_URL"` // Optional. Override for compatible APIs.
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey  string `env:"PRLTUTOR_GEMINI_API_KEY"`
	Model   string `env:"PRLTUTOR_GEMINI_MODEL" envDefault:"gemini-flash"`
	BaseURL string `env:"PRLTUTOR_GEMINI_BASE_URL"`
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string `env:"PRLTUTOR_OPENROUTER_API_KEY"`
	Model   string `env:"PRLTUTOR_OPENROUTER_MODEL" envDefault:"google/gemini-2.0-flash-exp"`
	BaseURL string `env:"PRLTUTOR_OPENROUTER_BASE_URL"`
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int           `env:"PRLTUTOR_LLM_RETRY_ATTEMPTS" envDefault:"3"`
	InitialWait time.Duration `env:"PRLTUTOR_LLM_RETRY_INITIAL_WAIT" envDefault:"1s"`
	MaxWait     time.Duration `env:"PRLTUTOR_LLM_RETRY_MAX_WAIT" envDefault:"10s"`
	Multiplier  float64       `env:"PRLTUTOR_LLM_RETRY_MULTIPLIER" envDefault:"2"`
}

// DefaultConfig returns a Config with the envDefault values applied and no
// API keys.
func DefaultConfig() Config {
	var cfg Config
	// Parsing an empty environment only applies defaults and cannot fail.
	_ = env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}})
	return cfg
}

// ConfigFromEnv builds a Config from PRLTUTOR_* environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse LLM env: %w", err)
	}
	return cfg, nil
}

// DiscoverConfig probes standard API key env vars in priority order
// (Gemini, OpenAI, Anthropic, OpenRouter) and returns a Config for the first
// provider whose key is found. Returns (Config{}, false) if none found.
func DiscoverConfig() (Config, bool) {
	cfg := DefaultConfig()

	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		cfg.Provider = "gemini"
		cfg.Gemini.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		cfg.Provider = "openai"
		cfg.OpenAI.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" {
		cfg.Provider = "anthropic"
		cfg.Anthropic.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENROUTER_API_KEY"); k != "" {
		cfg.Provider = "openrouter"
		cfg.OpenRouter.APIKey = k
		return cfg, true
	}

	return Config{}, false
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Provider {
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("PRLTUTOR_ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("PRLTUTOR_OPENAI_API_KEY is required for the openai provider")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("PRLTUTOR_GEMINI_API_KEY is required for the gemini provider")
		}
	case "openrouter":
		if c.OpenRouter.APIKey == "" {
			return fmt.Errorf("PRLTUTOR_OPENROUTER_API_KEY is required for the openrouter provider")
		}
	case "mock":
		// No API key needed.
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}
