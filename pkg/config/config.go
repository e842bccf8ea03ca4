package config

import "time"

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Backends   BackendsConfig   `yaml:"backends"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Generation GenerationConfig `yaml:"generation"`
	Relay      RelayConfig      `yaml:"relay"`
	Storage    StorageConfig    `yaml:"storage"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	CLI        CLIConfig        `yaml:"cli"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddress string `yaml:"listen_address"`

	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds the whole response, streams included. Zero
	// disables it.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes"`

	// MaxBodyBytes limits JSON request bodies, imports included.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig configures cross-origin access to the API.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// BackendsConfig configures the two inference backends.
type BackendsConfig struct {
	// Default is the backend used when neither the request nor the model
	// name selects one ("vllm" or "ollama").
	Default string `yaml:"default"`

	VLLM   VLLMConfig   `yaml:"vllm"`
	Ollama OllamaConfig `yaml:"ollama"`
}

// VLLMConfig configures the path-style backend.
type VLLMConfig struct {
	BaseURL string `yaml:"base_url"`
}

// OllamaConfig configures the tag-style backend.
type OllamaConfig struct {
	BaseURL       string `yaml:"base_url"`
	ContextLength int    `yaml:"context_length"`

	// Threads is the CPU thread hint. Zero means the number of CPUs.
	Threads int `yaml:"threads"`
}

// UpstreamConfig configures the HTTP client used for completions.
type UpstreamConfig struct {
	APIKey                string        `yaml:"api_key"`
	ConnectTimeout        time.Duration `yaml:"connect_timeout"`
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout"`

	// MaxRetries applies only before the response status is known.
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// GenerationConfig holds defaults for parameters a request omits.
type GenerationConfig struct {
	Model        string  `yaml:"model"`
	Temperature  float64 `yaml:"temperature"`
	TopP         float64 `yaml:"top_p"`
	MaxTokens    int     `yaml:"max_tokens"`
	SystemPrompt string  `yaml:"system_prompt"`
}

// RelayConfig configures chat sessions.
type RelayConfig struct {
	// TitleLength is the number of characters of the first user message
	// used as a new thread's title.
	TitleLength      int    `yaml:"title_length"`
	PlaceholderTitle string `yaml:"placeholder_title"`

	// PersistPartial saves the text received before an upstream failure.
	PersistPartial bool `yaml:"persist_partial"`

	// IncludeUsage asks the backend for token usage in the final chunk.
	IncludeUsage bool `yaml:"include_usage"`
}

// StorageConfig configures the thread store.
type StorageConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string       `yaml:"backend"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
	Backup  BackupConfig `yaml:"backup"`
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	Path string `yaml:"path"`

	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver      string        `yaml:"driver"`
	WALMode     bool          `yaml:"wal_mode"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// BackupConfig configures scheduled snapshot files.
type BackupConfig struct {
	// Schedule is a cron expression. Empty disables backups.
	Schedule string `yaml:"schedule"`
	Dir      string `yaml:"dir"`
	Keep     int    `yaml:"keep"`
}

// TelemetryConfig groups logging, metrics and tracing.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	AddSource     bool   `yaml:"add_source"`
	RedactSecrets bool   `yaml:"redact_secrets"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled         bool      `yaml:"enabled"`
	Path            string    `yaml:"path"`
	Namespace       string    `yaml:"namespace"`
	Subsystem       string    `yaml:"subsystem"`
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Sampler     string        `yaml:"sampler"`
	SampleRatio float64       `yaml:"sample_ratio"`
	Endpoint    string        `yaml:"endpoint"`
	Insecure    bool          `yaml:"insecure"`
	Timeout     time.Duration `yaml:"timeout"`
	ServiceName string        `yaml:"service_name"`
}

// CLIConfig configures the interactive chat command.
type CLIConfig struct {
	HistoryFile string `yaml:"history_file"`
	Prompt      string `yaml:"prompt"`
}
