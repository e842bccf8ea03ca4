package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:3000"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = time.Duration(0)
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20
	DefaultMaxBodyBytes    = int64(32 << 20)
	DefaultCORSMaxAge      = 3600

	// Backend defaults
	DefaultBackend             = "vllm"
	DefaultVLLMBaseURL         = "http://127.0.0.1:8000/v1"
	DefaultOllamaBaseURL       = "http://127.0.0.1:11434/v1"
	DefaultOllamaContextLength = 4096

	// Upstream defaults
	DefaultAPIKey                = "local-not-needed"
	DefaultConnectTimeout        = 10 * time.Second
	DefaultResponseHeaderTimeout = 5 * time.Minute
	DefaultMaxRetries            = 2
	DefaultRetryBackoff          = 250 * time.Millisecond

	// Generation defaults
	DefaultModel       = "local-model"
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
	DefaultMaxTokens   = 512

	// Relay defaults
	DefaultTitleLength      = 80
	DefaultPlaceholderTitle = "New Chat"

	// Storage defaults
	DefaultStorageBackend    = "sqlite"
	DefaultSQLitePath        = "data/localchat.db"
	DefaultSQLiteDriver      = "sqlite"
	DefaultSQLiteWALMode     = true
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultBackupDir         = "data/backups"
	DefaultBackupKeep        = 7

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultLogRedactSecrets   = true
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "localchat"
	DefaultMetricsSubsystem   = "relay"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingTimeout     = 10 * time.Second
	DefaultTracingServiceName = "localchat"

	// CLI defaults
	DefaultCLIPrompt = "you> "
)

// Defaults returns a configuration with every default applied.
func Defaults() *Config {
	cfg := newBaseConfig()
	ApplyDefaults(cfg)
	return cfg
}

// newBaseConfig returns a config with the fields whose zero value is a
// meaningful setting already defaulted. YAML decoding into it keeps an
// explicit false or 0.
func newBaseConfig() *Config {
	cfg := &Config{}
	cfg.Upstream.MaxRetries = DefaultMaxRetries
	cfg.Generation.Temperature = DefaultTemperature
	cfg.Generation.TopP = DefaultTopP
	cfg.Server.CORS.Enabled = true
	cfg.Storage.SQLite.WALMode = DefaultSQLiteWALMode
	cfg.Telemetry.Logging.RedactSecrets = DefaultLogRedactSecrets
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	return cfg
}

// ApplyDefaults fills in zero-valued fields.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyBackendDefaults(&cfg.Backends)
	applyUpstreamDefaults(&cfg.Upstream)
	applyGenerationDefaults(&cfg.Generation)
	applyRelayDefaults(&cfg.Relay)
	applyStorageDefaults(&cfg.Storage)
	applyTelemetryDefaults(&cfg.Telemetry)

	if cfg.CLI.Prompt == "" {
		cfg.CLI.Prompt = DefaultCLIPrompt
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
	if len(cfg.CORS.AllowedMethods) == 0 {
		cfg.CORS.AllowedMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(cfg.CORS.AllowedHeaders) == 0 {
		cfg.CORS.AllowedHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.CORS.MaxAge == 0 {
		cfg.CORS.MaxAge = DefaultCORSMaxAge
	}
}

func applyBackendDefaults(cfg *BackendsConfig) {
	if cfg.Default == "" {
		cfg.Default = DefaultBackend
	}
	if cfg.VLLM.BaseURL == "" {
		cfg.VLLM.BaseURL = DefaultVLLMBaseURL
	}
	if cfg.Ollama.BaseURL == "" {
		cfg.Ollama.BaseURL = DefaultOllamaBaseURL
	}
	if cfg.Ollama.ContextLength == 0 {
		cfg.Ollama.ContextLength = DefaultOllamaContextLength
	}
}

func applyUpstreamDefaults(cfg *UpstreamConfig) {
	if cfg.APIKey == "" {
		cfg.APIKey = DefaultAPIKey
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ResponseHeaderTimeout == 0 {
		cfg.ResponseHeaderTimeout = DefaultResponseHeaderTimeout
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
}

func applyGenerationDefaults(cfg *GenerationConfig) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
}

func applyRelayDefaults(cfg *RelayConfig) {
	if cfg.TitleLength == 0 {
		cfg.TitleLength = DefaultTitleLength
	}
	if cfg.PlaceholderTitle == "" {
		cfg.PlaceholderTitle = DefaultPlaceholderTitle
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultStorageBackend
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultSQLitePath
	}
	if cfg.SQLite.Driver == "" {
		cfg.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = DefaultBackupDir
	}
	if cfg.Backup.Keep == 0 {
		cfg.Backup.Keep = DefaultBackupKeep
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}

	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
		if cfg.Tracing.SampleRatio == 0 {
			cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
		}
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.Timeout == 0 {
		cfg.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}
}
