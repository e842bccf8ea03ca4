package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every field error found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate checks the whole configuration and returns a ValidationError
// listing every problem, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateBackends(&cfg.Backends)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateGeneration(&cfg.Generation)...)
	errs = append(errs, validateRelay(&cfg.Relay)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("must be host:port, got %q", cfg.ListenAddress),
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "must not be negative"})
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "must be positive"})
	}
	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "must be positive"})
	}

	return errs
}

func validateBackends(cfg *BackendsConfig) []FieldError {
	var errs []FieldError

	switch cfg.Default {
	case "vllm", "ollama":
	default:
		errs = append(errs, FieldError{
			Field:   "backends.default",
			Message: fmt.Sprintf("must be vllm or ollama, got %q", cfg.Default),
		})
	}

	if msg := checkBaseURL(cfg.VLLM.BaseURL); msg != "" {
		errs = append(errs, FieldError{Field: "backends.vllm.base_url", Message: msg})
	}
	if msg := checkBaseURL(cfg.Ollama.BaseURL); msg != "" {
		errs = append(errs, FieldError{Field: "backends.ollama.base_url", Message: msg})
	}
	if cfg.Ollama.ContextLength < 0 {
		errs = append(errs, FieldError{Field: "backends.ollama.context_length", Message: "must not be negative"})
	}
	if cfg.Ollama.Threads < 0 {
		errs = append(errs, FieldError{Field: "backends.ollama.threads", Message: "must not be negative"})
	}

	return errs
}

func checkBaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("must use http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Sprintf("missing host in %q", raw)
	}
	return ""
}

func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{Field: "upstream.max_retries", Message: "must not be negative"})
	}
	if cfg.ConnectTimeout < 0 {
		errs = append(errs, FieldError{Field: "upstream.connect_timeout", Message: "must not be negative"})
	}
	if cfg.ResponseHeaderTimeout < 0 {
		errs = append(errs, FieldError{Field: "upstream.response_header_timeout", Message: "must not be negative"})
	}

	return errs
}

func validateGeneration(cfg *GenerationConfig) []FieldError {
	var errs []FieldError

	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		errs = append(errs, FieldError{
			Field:   "generation.temperature",
			Message: fmt.Sprintf("must be between 0 and 2, got %g", cfg.Temperature),
		})
	}
	if cfg.TopP < 0 || cfg.TopP > 1 {
		errs = append(errs, FieldError{
			Field:   "generation.top_p",
			Message: fmt.Sprintf("must be between 0 and 1, got %g", cfg.TopP),
		})
	}
	if cfg.MaxTokens < 1 || cfg.MaxTokens > 8192 {
		errs = append(errs, FieldError{
			Field:   "generation.max_tokens",
			Message: fmt.Sprintf("must be between 1 and 8192, got %d", cfg.MaxTokens),
		})
	}

	return errs
}

func validateRelay(cfg *RelayConfig) []FieldError {
	if cfg.TitleLength < 1 {
		return []FieldError{{Field: "relay.title_length", Message: "must be positive"}}
	}
	return nil
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "storage.sqlite.path", Message: "is required"})
		}
		switch cfg.SQLite.Driver {
		case "sqlite", "sqlite3":
		default:
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.driver",
				Message: fmt.Sprintf("must be sqlite or sqlite3, got %q", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{Field: "storage.sqlite.busy_timeout", Message: "must not be negative"})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("must be sqlite or memory, got %q", cfg.Backend),
		})
	}

	if cfg.Backup.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Backup.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "storage.backup.schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
		if cfg.Backup.Dir == "" {
			errs = append(errs, FieldError{Field: "storage.backup.dir", Message: "is required when a schedule is set"})
		}
	}
	if cfg.Backup.Keep < 0 {
		errs = append(errs, FieldError{Field: "storage.backup.keep", Message: "must not be negative"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be debug, info, warn or error, got %q", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be json, text or console, got %q", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never":
		case "ratio":
			if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
				errs = append(errs, FieldError{
					Field:   "telemetry.tracing.sample_ratio",
					Message: fmt.Sprintf("must be between 0 and 1, got %g", cfg.Tracing.SampleRatio),
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("must be always, never or ratio, got %q", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "is required when tracing is enabled"})
		}
	}

	return errs
}
