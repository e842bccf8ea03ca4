package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from the YAML file at path, applies
// defaults and validates it. An empty path yields the defaults alone.
// Environment variables are not consulted; see LoadConfigWithEnvOverrides.
func LoadConfig(path string) (*Config, error) {
	cfg := newBaseConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration like LoadConfig and then
// applies environment variable overrides, which always take precedence over
// the file.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// ResolvePath returns path when the file exists. A missing file is only an
// error when the caller asked for it explicitly; otherwise "" is returned so
// that loading falls back to defaults.
func ResolvePath(path string, explicit bool) (string, error) {
	if path == "" {
		return "", nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return "", nil
		}
		return "", fmt.Errorf("configuration file %q: %w", path, err)
	}
	return path, nil
}

// LoadEnvFiles loads the given dotenv files that exist into the process
// environment without overwriting variables that are already set. It
// returns the number of files loaded.
func LoadEnvFiles(files ...string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// legacyEnv holds the unprefixed variable names.
type legacyEnv struct {
	Backend       *string  `env:"BACKEND"`
	BaseURL       *string  `env:"OPENAI_BASE_URL"`
	APIKey        *string  `env:"OPENAI_API_KEY"`
	Model         *string  `env:"MODEL_ID"`
	PublicModel   *string  `env:"NEXT_PUBLIC_DEFAULT_MODEL"`
	SystemPrompt  *string  `env:"NEXT_PUBLIC_DEFAULT_SYSTEM_PROMPT"`
	Temperature   *float64 `env:"TEMPERATURE"`
	TopP          *float64 `env:"TOP_P"`
	MaxTokens     *int     `env:"MAX_TOKENS"`
	Threads       *int     `env:"THREADS"`
	ContextLength *int     `env:"CONTEXT_LENGTH"`
}

// envOverrides holds the LOCALCHAT_ variables. Unset variables stay nil.
type envOverrides struct {
	ListenAddress *string `env:"SERVER_LISTEN_ADDRESS"`

	Backend             *string `env:"BACKEND"`
	VLLMBaseURL         *string `env:"VLLM_BASE_URL"`
	OllamaBaseURL       *string `env:"OLLAMA_BASE_URL"`
	OllamaContextLength *int    `env:"OLLAMA_CONTEXT_LENGTH"`
	OllamaThreads       *int    `env:"OLLAMA_THREADS"`

	APIKey     *string `env:"UPSTREAM_API_KEY"`
	MaxRetries *int    `env:"UPSTREAM_MAX_RETRIES"`

	Model        *string  `env:"MODEL"`
	Temperature  *float64 `env:"TEMPERATURE"`
	TopP         *float64 `env:"TOP_P"`
	MaxTokens    *int     `env:"MAX_TOKENS"`
	SystemPrompt *string  `env:"SYSTEM_PROMPT"`

	PersistPartial *bool `env:"RELAY_PERSIST_PARTIAL"`

	StorageBackend *string `env:"STORAGE_BACKEND"`
	SQLitePath     *string `env:"SQLITE_PATH"`
	SQLiteDriver   *string `env:"SQLITE_DRIVER"`
	BackupSchedule *string `env:"BACKUP_SCHEDULE"`

	LogLevel        *string `env:"LOG_LEVEL"`
	LogFormat       *string `env:"LOG_FORMAT"`
	MetricsEnabled  *bool   `env:"METRICS_ENABLED"`
	TracingEnabled  *bool   `env:"TRACING_ENABLED"`
	TracingEndpoint *string `env:"TRACING_ENDPOINT"`
}

const envPrefix = "LOCALCHAT_"

// applyEnvOverrides applies the unprefixed names first and the LOCALCHAT_
// names second.
func applyEnvOverrides(cfg *Config) error {
	var legacy legacyEnv
	if err := env.Parse(&legacy); err != nil {
		return err
	}
	applyLegacy(cfg, &legacy)

	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: envPrefix}); err != nil {
		return err
	}
	applyOverrides(cfg, &o)
	return nil
}

func applyLegacy(cfg *Config, l *legacyEnv) {
	set(&cfg.Backends.Default, l.Backend)
	set(&cfg.Backends.VLLM.BaseURL, l.BaseURL)
	set(&cfg.Upstream.APIKey, l.APIKey)
	set(&cfg.Generation.Model, l.PublicModel)
	set(&cfg.Generation.Model, l.Model)
	set(&cfg.Generation.SystemPrompt, l.SystemPrompt)
	set(&cfg.Generation.Temperature, l.Temperature)
	set(&cfg.Generation.TopP, l.TopP)
	set(&cfg.Generation.MaxTokens, l.MaxTokens)
	set(&cfg.Backends.Ollama.Threads, l.Threads)
	set(&cfg.Backends.Ollama.ContextLength, l.ContextLength)
}

func applyOverrides(cfg *Config, o *envOverrides) {
	set(&cfg.Server.ListenAddress, o.ListenAddress)

	set(&cfg.Backends.Default, o.Backend)
	set(&cfg.Backends.VLLM.BaseURL, o.VLLMBaseURL)
	set(&cfg.Backends.Ollama.BaseURL, o.OllamaBaseURL)
	set(&cfg.Backends.Ollama.ContextLength, o.OllamaContextLength)
	set(&cfg.Backends.Ollama.Threads, o.OllamaThreads)

	set(&cfg.Upstream.APIKey, o.APIKey)
	set(&cfg.Upstream.MaxRetries, o.MaxRetries)

	set(&cfg.Generation.Model, o.Model)
	set(&cfg.Generation.Temperature, o.Temperature)
	set(&cfg.Generation.TopP, o.TopP)
	set(&cfg.Generation.MaxTokens, o.MaxTokens)
	set(&cfg.Generation.SystemPrompt, o.SystemPrompt)

	set(&cfg.Relay.PersistPartial, o.PersistPartial)

	set(&cfg.Storage.Backend, o.StorageBackend)
	set(&cfg.Storage.SQLite.Path, o.SQLitePath)
	set(&cfg.Storage.SQLite.Driver, o.SQLiteDriver)
	set(&cfg.Storage.Backup.Schedule, o.BackupSchedule)

	set(&cfg.Telemetry.Logging.Level, o.LogLevel)
	set(&cfg.Telemetry.Logging.Format, o.LogFormat)
	set(&cfg.Telemetry.Metrics.Enabled, o.MetricsEnabled)
	set(&cfg.Telemetry.Tracing.Enabled, o.TracingEnabled)
	set(&cfg.Telemetry.Tracing.Endpoint, o.TracingEndpoint)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
