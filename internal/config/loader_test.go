package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Fatalf("default port = %q", cfg.Server.Port)
	}
	if cfg.Storage.Backend != "memory" {
		t.Fatalf("default storage backend = %q", cfg.Storage.Backend)
	}
	if cfg.Agent.LLM.Provider != "deepseek" {
		t.Fatalf("default provider = %q", cfg.Agent.LLM.Provider)
	}
	if cfg.Agent.SystemPrompt == "" {
		t.Fatal("default system prompt is empty")
	}
}

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
}

func TestLoadFromYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandforge.yaml")
	yaml := `
server:
  port: "9090"
agent:
  llm:
    provider: openai
    model: gpt-4o
storage:
  backend: nats
sandbox:
  ready_timeout: 30s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
	if cfg.Agent.LLM.Provider != "openai" || cfg.Agent.LLM.Model != "gpt-4o" {
		t.Fatalf("llm not overridden: %+v", cfg.Agent.LLM)
	}
	if cfg.Storage.Backend != "nats" {
		t.Fatalf("storage backend = %q", cfg.Storage.Backend)
	}
	if cfg.Sandbox.ReadyTimeout != 30*time.Second {
		t.Fatalf("ready timeout = %v", cfg.Sandbox.ReadyTimeout)
	}
	// Untouched fields keep their defaults.
	if cfg.Agent.LLM.MaxTokens != 4096 {
		t.Fatalf("max tokens = %d", cfg.Agent.LLM.MaxTokens)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandforge.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	t.Setenv("SANDFORGE_PORT", "7070")
	t.Setenv("SANDFORGE_LLM_TEMPERATURE", "0.2")
	t.Setenv("SANDFORGE_CACHE_ENABLED", "true")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
	if cfg.Agent.LLM.Temperature != 0.2 {
		t.Fatalf("temperature = %v", cfg.Agent.LLM.Temperature)
	}
	if !cfg.Cache.Enabled {
		t.Fatal("cache not enabled")
	}
}

func TestValidateRejectsBadBackend(t *testing.T) {
	t.Setenv("SANDFORGE_STORAGE_BACKEND", "etcd")

	if _, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected validation error for unknown backend")
	}
}

func TestValidateCustomProviderNeedsBase(t *testing.T) {
	t.Setenv("SANDFORGE_LLM_PROVIDER", "custom")

	if _, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected validation error for custom provider without api_base")
	}

	t.Setenv("SANDFORGE_LLM_API_BASE", "http://localhost:8000")
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("LoadFrom failed with api_base set: %v", err)
	}
}

func TestBaseURLPerProvider(t *testing.T) {
	llm := LLM{Provider: "deepseek"}
	if llm.BaseURL() != "https://api.deepseek.com" {
		t.Fatalf("deepseek base = %q", llm.BaseURL())
	}

	llm = LLM{Provider: "openai", APIBase: "http://proxy:4000"}
	if llm.BaseURL() != "http://proxy:4000" {
		t.Fatalf("explicit api_base not honored: %q", llm.BaseURL())
	}
}
