package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/localchat/pkg/backend"
	"mercator-hq/localchat/pkg/config"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Backends.Default = "ollama"
	cfg.Generation.Model = "llama3:8b"
	cfg.Generation.SystemPrompt = "Be brief."
	cfg.Relay.PersistPartial = true

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, backend.Ollama, opts.Selector.Default())
	assert.Equal(t, "llama3:8b", opts.Defaults.Model)
	assert.Equal(t, 0.7, opts.Defaults.Temperature)
	assert.Equal(t, "Be brief.", opts.Defaults.SystemPrompt)
	assert.Equal(t, 80, opts.TitleLength)
	assert.True(t, opts.PersistPartial)

	vllm, ok := opts.Selector.Backend(backend.VLLM)
	require.True(t, ok)
	assert.Equal(t, config.DefaultVLLMBaseURL, vllm.BaseURL)
}

func TestOptionsFromConfigInvalid(t *testing.T) {
	cfg := config.Defaults()
	cfg.Backends.Default = "openai"
	_, err := OptionsFromConfig(cfg)
	assert.Error(t, err)

	cfg = config.Defaults()
	cfg.Backends.Ollama.BaseURL = ""
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)
}
