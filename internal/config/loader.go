package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "sandforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SANDFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "SANDFORGE_CORS_ORIGIN")
	setBool(&cfg.Server.MCPEnabled, "SANDFORGE_MCP_ENABLED")

	setString(&cfg.Agent.LLM.Provider, "SANDFORGE_LLM_PROVIDER")
	setString(&cfg.Agent.LLM.Model, "SANDFORGE_LLM_MODEL")
	setString(&cfg.Agent.LLM.APIKey, "SANDFORGE_LLM_API_KEY")
	setString(&cfg.Agent.LLM.APIBase, "SANDFORGE_LLM_API_BASE")
	setInt(&cfg.Agent.LLM.MaxTokens, "SANDFORGE_LLM_MAX_TOKENS")
	setFloat64(&cfg.Agent.LLM.Temperature, "SANDFORGE_LLM_TEMPERATURE")
	setString(&cfg.Agent.SystemPrompt, "SANDFORGE_SYSTEM_PROMPT")

	setString(&cfg.Sandbox.Transport, "SANDFORGE_SANDBOX_TRANSPORT")
	setString(&cfg.Sandbox.WorkerCommand, "SANDFORGE_SANDBOX_WORKER")
	setDuration(&cfg.Sandbox.ReadyTimeout, "SANDFORGE_SANDBOX_READY_TIMEOUT")
	setDuration(&cfg.Sandbox.OrphanTimeout, "SANDFORGE_SANDBOX_ORPHAN_TIMEOUT")
	setString(&cfg.Sandbox.SubjectPrefix, "SANDFORGE_SANDBOX_SUBJECT_PREFIX")

	setString(&cfg.Storage.Backend, "SANDFORGE_STORAGE_BACKEND")
	setBool(&cfg.Cache.Enabled, "SANDFORGE_CACHE_ENABLED")
	setInt64(&cfg.Cache.MaxSizeMB, "SANDFORGE_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "SANDFORGE_CACHE_TTL")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.KVBucket, "SANDFORGE_NATS_KV_BUCKET")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "SANDFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "SANDFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "SANDFORGE_PG_MAX_CONN_LIFETIME")

	setString(&cfg.Logging.Level, "SANDFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SANDFORGE_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "SANDFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SANDFORGE_BREAKER_TIMEOUT")
	setBool(&cfg.Tracing.Enabled, "SANDFORGE_TRACING_ENABLED")
	setString(&cfg.Tracing.Endpoint, "SANDFORGE_TRACING_ENDPOINT")
}

// validate rejects configurations the core cannot run with.
func validate(cfg *Config) error {
	switch cfg.Storage.Backend {
	case "memory", "nats", "postgres":
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	switch cfg.Sandbox.Transport {
	case "proc", "nats":
	default:
		return fmt.Errorf("unknown sandbox transport %q", cfg.Sandbox.Transport)
	}

	if cfg.Agent.LLM.Provider != "custom" && cfg.Agent.LLM.BaseURL() == "" {
		return fmt.Errorf("unknown llm provider %q", cfg.Agent.LLM.Provider)
	}
	if cfg.Agent.LLM.Provider == "custom" && cfg.Agent.LLM.APIBase == "" {
		return errors.New("custom llm provider requires api_base")
	}
	if cfg.Agent.LLM.MaxTokens <= 0 {
		return errors.New("llm max_tokens must be positive")
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
