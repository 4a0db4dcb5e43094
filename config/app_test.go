package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.DataDir != "./data" {
		t.Errorf("expected default data dir, got %q", cfg.DataDir)
	}
	if cfg.LLM.Timeout != 60*time.Second {
		t.Errorf("expected 60s LLM timeout, got %v", cfg.LLM.Timeout)
	}
	if cfg.AuthEnabled() {
		t.Errorf("expected auth to be disabled without tokens")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("API_TOKENS", "alpha, beta,,")
	t.Setenv("MISTRAL_API_KEY", "secret")
	t.Setenv("LLM_MODEL", "open-mistral-nemo")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 3000 {
		t.Errorf("expected port 3000, got %d", cfg.Port)
	}
	tokens := cfg.Tokens()
	if len(tokens) != 2 || tokens[0] != "alpha" || tokens[1] != "beta" {
		t.Errorf("unexpected tokens %v", tokens)
	}
	if !cfg.LLM.Enabled() || cfg.LLM.Key() != "secret" {
		t.Errorf("expected MISTRAL_API_KEY to enable the provider")
	}
	if cfg.LLM.ModelName() != "open-mistral-nemo" {
		t.Errorf("expected LLM_MODEL to take precedence, got %q", cfg.LLM.ModelName())
	}
	if cfg.LLM.URL() != "https://api.mistral.ai/v1" {
		t.Errorf("unexpected base url %q", cfg.LLM.URL())
	}
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("ENV", "staging")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for unknown environment")
	}
}
