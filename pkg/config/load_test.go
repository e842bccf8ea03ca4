package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig(\"\") error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"listen address", cfg.Server.ListenAddress, DefaultListenAddress},
		{"write timeout", cfg.Server.WriteTimeout, time.Duration(0)},
		{"default backend", cfg.Backends.Default, DefaultBackend},
		{"vllm base url", cfg.Backends.VLLM.BaseURL, DefaultVLLMBaseURL},
		{"ollama base url", cfg.Backends.Ollama.BaseURL, DefaultOllamaBaseURL},
		{"context length", cfg.Backends.Ollama.ContextLength, DefaultOllamaContextLength},
		{"temperature", cfg.Generation.Temperature, DefaultTemperature},
		{"top_p", cfg.Generation.TopP, DefaultTopP},
		{"max retries", cfg.Upstream.MaxRetries, DefaultMaxRetries},
		{"max tokens", cfg.Generation.MaxTokens, DefaultMaxTokens},
		{"title length", cfg.Relay.TitleLength, DefaultTitleLength},
		{"placeholder", cfg.Relay.PlaceholderTitle, DefaultPlaceholderTitle},
		{"storage backend", cfg.Storage.Backend, DefaultStorageBackend},
		{"sqlite driver", cfg.Storage.SQLite.Driver, DefaultSQLiteDriver},
		{"wal", cfg.Storage.SQLite.WALMode, true},
		{"cors", cfg.Server.CORS.Enabled, true},
		{"redact", cfg.Telemetry.Logging.RedactSecrets, true},
		{"metrics", cfg.Telemetry.Metrics.Enabled, true},
		{"tracing", cfg.Telemetry.Tracing.Enabled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9000"
  cors:
    enabled: false
backends:
  default: ollama
  ollama:
    base_url: "http://gpu-box:11434/v1"
    threads: 8
generation:
  model: "llama3:8b"
  temperature: 0.2
storage:
  backend: memory
  sqlite:
    wal_mode: false
telemetry:
  metrics:
    enabled: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("listen address = %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.CORS.Enabled {
		t.Error("explicit cors.enabled: false was overridden")
	}
	if cfg.Backends.Default != "ollama" {
		t.Errorf("default backend = %q", cfg.Backends.Default)
	}
	if cfg.Backends.Ollama.Threads != 8 {
		t.Errorf("threads = %d", cfg.Backends.Ollama.Threads)
	}
	if cfg.Backends.VLLM.BaseURL != DefaultVLLMBaseURL {
		t.Errorf("vllm base url = %q, want default", cfg.Backends.VLLM.BaseURL)
	}
	if cfg.Generation.Model != "llama3:8b" || cfg.Generation.Temperature != 0.2 {
		t.Errorf("generation = %+v", cfg.Generation)
	}
	if cfg.Generation.TopP != DefaultTopP {
		t.Errorf("top_p = %v, want default", cfg.Generation.TopP)
	}
	if cfg.Storage.SQLite.WALMode {
		t.Error("explicit wal_mode: false was overridden")
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("explicit metrics.enabled: false was overridden")
	}
}

func TestLoadConfig_ExplicitZeros(t *testing.T) {
	path := writeConfig(t, `
upstream:
  max_retries: 0
generation:
  temperature: 0
  top_p: 0
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"max retries", cfg.Upstream.MaxRetries, 0},
		{"temperature", cfg.Generation.Temperature, 0.0},
		{"top_p", cfg.Generation.TopP, 0.0},
		{"max tokens still defaulted", cfg.Generation.MaxTokens, DefaultMaxTokens},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "server: [", "failed to parse"},
		{"bad backend", "backends:\n  default: openai\n", "backends.default"},
		{"bad url", "backends:\n  vllm:\n    base_url: \"ftp://x\"\n", "backends.vllm.base_url"},
		{"bad temperature", "generation:\n  temperature: 3\n", "generation.temperature"},
		{"bad storage", "storage:\n  backend: postgres\n", "storage.backend"},
		{"bad driver", "storage:\n  sqlite:\n    driver: pgx\n", "storage.sqlite.driver"},
		{"bad cron", "storage:\n  backup:\n    schedule: \"every day\"\n", "storage.backup.schedule"},
		{"bad log level", "telemetry:\n  logging:\n    level: loud\n", "telemetry.logging.level"},
		{"bad sampler", "telemetry:\n  tracing:\n    enabled: true\n    sampler: often\n", "telemetry.tracing.sampler"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("LoadConfig() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want not-exist", err)
	}
}

func TestValidationError_Collects(t *testing.T) {
	cfg := Defaults()
	cfg.Backends.Default = "x"
	cfg.Generation.TopP = 2
	cfg.Relay.TitleLength = 0

	err := Validate(cfg)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if len(verr.Errors) != 3 {
		t.Errorf("got %d field errors, want 3: %v", len(verr.Errors), verr)
	}
	if !strings.Contains(verr.Error(), "3 errors") {
		t.Errorf("message = %q", verr.Error())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BACKEND", "ollama")
	t.Setenv("OPENAI_BASE_URL", "http://legacy:8000/v1")
	t.Setenv("OPENAI_API_KEY", "sk-legacy")
	t.Setenv("MODEL_ID", "legacy-model")
	t.Setenv("TEMPERATURE", "0.3")
	t.Setenv("THREADS", "6")
	t.Setenv("CONTEXT_LENGTH", "8192")

	t.Setenv("LOCALCHAT_MODEL", "prefixed-model")
	t.Setenv("LOCALCHAT_MAX_TOKENS", "1024")
	t.Setenv("LOCALCHAT_STORAGE_BACKEND", "memory")
	t.Setenv("LOCALCHAT_RELAY_PERSIST_PARTIAL", "true")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Backends.Default != "ollama" {
		t.Errorf("backend = %q", cfg.Backends.Default)
	}
	if cfg.Backends.VLLM.BaseURL != "http://legacy:8000/v1" {
		t.Errorf("vllm base url = %q", cfg.Backends.VLLM.BaseURL)
	}
	if cfg.Upstream.APIKey != "sk-legacy" {
		t.Errorf("api key = %q", cfg.Upstream.APIKey)
	}
	if cfg.Generation.Model != "prefixed-model" {
		t.Errorf("model = %q, want prefixed name to win", cfg.Generation.Model)
	}
	if cfg.Generation.Temperature != 0.3 {
		t.Errorf("temperature = %v", cfg.Generation.Temperature)
	}
	if cfg.Generation.MaxTokens != 1024 {
		t.Errorf("max tokens = %d", cfg.Generation.MaxTokens)
	}
	if cfg.Backends.Ollama.Threads != 6 || cfg.Backends.Ollama.ContextLength != 8192 {
		t.Errorf("ollama = %+v", cfg.Backends.Ollama)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("storage backend = %q", cfg.Storage.Backend)
	}
	if !cfg.Relay.PersistPartial {
		t.Error("persist_partial not applied")
	}
}

func TestEnvOverrides_Invalid(t *testing.T) {
	t.Setenv("LOCALCHAT_BACKEND", "openai")
	if _, err := LoadConfigWithEnvOverrides(""); err == nil {
		t.Error("invalid override accepted")
	}

	t.Setenv("LOCALCHAT_BACKEND", "vllm")
	t.Setenv("LOCALCHAT_MAX_TOKENS", "lots")
	if _, err := LoadConfigWithEnvOverrides(""); err == nil {
		t.Error("unparseable override accepted")
	}
}

func TestResolvePath(t *testing.T) {
	existing := writeConfig(t, "")
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	tests := []struct {
		name     string
		path     string
		explicit bool
		want     string
		wantErr  bool
	}{
		{"empty", "", false, "", false},
		{"existing", existing, false, existing, false},
		{"missing default", missing, false, "", false},
		{"missing explicit", missing, true, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePath(tt.path, tt.explicit)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	if err := os.WriteFile(file, []byte("LOCALCHAT_TEST_DOTENV=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("LOCALCHAT_TEST_DOTENV") })

	n, err := LoadEnvFiles(file, filepath.Join(dir, ".env.local"))
	if err != nil {
		t.Fatalf("LoadEnvFiles() error = %v", err)
	}
	if n != 1 {
		t.Errorf("loaded %d files, want 1", n)
	}
	if got := os.Getenv("LOCALCHAT_TEST_DOTENV"); got != "from-file" {
		t.Errorf("LOCALCHAT_TEST_DOTENV = %q", got)
	}
}

func TestSingleton(t *testing.T) {
	prev := GetConfig()
	t.Cleanup(func() { SetConfig(prev) })

	path := writeConfig(t, "generation:\n  model: first\n")
	SetConfig(nil)

	cfg, err := ReloadConfig(path)
	if err != nil {
		t.Fatalf("ReloadConfig() error = %v", err)
	}
	if GetConfig() != cfg || MustGetConfig().Generation.Model != "first" {
		t.Error("ReloadConfig did not replace the global config")
	}

	if err := os.WriteFile(path, []byte("generation:\n  temperature: 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReloadConfig(path); err == nil {
		t.Fatal("invalid reload accepted")
	}
	if GetConfig().Generation.Model != "first" {
		t.Error("failed reload replaced the global config")
	}
}

func TestMustGetConfigPanics(t *testing.T) {
	prev := GetConfig()
	t.Cleanup(func() { SetConfig(prev) })
	SetConfig(nil)

	defer func() {
		if recover() == nil {
			t.Error("MustGetConfig did not panic")
		}
	}()
	MustGetConfig()
}

func TestWatch(t *testing.T) {
	prev := GetConfig()
	t.Cleanup(func() { SetConfig(prev) })

	path := writeConfig(t, "generation:\n  model: before\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func(cfg *Config) { reloaded <- cfg })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("generation:\n  model: after\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Generation.Model != "after" {
			t.Errorf("reloaded model = %q", cfg.Generation.Model)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after file change")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
}
