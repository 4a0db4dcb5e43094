package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = ""

// AppConfig is the process configuration, read from the environment.
type AppConfig struct {
	Environment
	Server
	Storage
	LLM
}

// Environment selects logging defaults.
type Environment struct {
	Env      string `envconfig:"ENV" default:"development" validate:"oneof=development production test"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
}

// Server holds the HTTP server settings.
type Server struct {
	Port            int           `envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	APITokens       []string      `envconfig:"API_TOKENS"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"*"`
	MaxBodyBytes    int64         `envconfig:"MAX_REQUEST_BODY_BYTES" default:"10485760" validate:"min=1024"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Storage holds the on-disk layout and indexing settings.
type Storage struct {
	DataDir         string `envconfig:"DATA_DIR" default:"./data" validate:"required"`
	IndexingWorkers int    `envconfig:"INDEXING_WORKERS" default:"8" validate:"min=1,max=256"`
}

// LLM holds the settings of the OpenAI-compatible generative-text provider.
// MISTRAL_* variables are accepted as fallbacks for the LLM_* ones.
type LLM struct {
	APIKey         string        `envconfig:"LLM_API_KEY"`
	BaseURL        string        `envconfig:"LLM_BASE_URL"`
	Model          string        `envconfig:"LLM_MODEL"`
	Timeout        time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`
	MistralAPIKey  string        `envconfig:"MISTRAL_API_KEY"`
	MistralBaseURL string        `envconfig:"MISTRAL_BASE_URL" default:"https://api.mistral.ai/v1"`
	MistralModel   string        `envconfig:"MISTRAL_MODEL" default:"mistral-large-latest"`
}

// Key returns the configured API key.
func (l LLM) Key() string {
	if l.APIKey != "" {
		return l.APIKey
	}
	return l.MistralAPIKey
}

// URL returns the configured base URL.
func (l LLM) URL() string {
	if l.BaseURL != "" {
		return l.BaseURL
	}
	return l.MistralBaseURL
}

// ModelName returns the configured model.
func (l LLM) ModelName() string {
	if l.Model != "" {
		return l.Model
	}
	return l.MistralModel
}

// Enabled reports whether answer generation can be offered.
func (l LLM) Enabled() bool {
	return l.Key() != ""
}

// AuthEnabled reports whether mutating routes require a bearer token.
func (s Server) AuthEnabled() bool {
	return len(s.Tokens()) > 0
}

// Tokens returns the configured API tokens without blanks.
func (s Server) Tokens() []string {
	var tokens []string
	for _, t := range s.APITokens {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// Load reads the configuration from the environment and validates it.
func Load() (*AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags of the configuration.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
