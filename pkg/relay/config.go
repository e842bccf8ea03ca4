package relay

import (
	"fmt"

	"mercator-hq/localchat/pkg/backend"
	"mercator-hq/localchat/pkg/config"
)

// OptionsFromConfig builds controller options, including the backend
// selector, from the application configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	kind, err := backend.ParseKind(cfg.Backends.Default)
	if err != nil {
		return Options{}, err
	}

	selector, err := backend.NewSelector(backend.Config{
		Default:             kind,
		VLLMBaseURL:         cfg.Backends.VLLM.BaseURL,
		OllamaBaseURL:       cfg.Backends.Ollama.BaseURL,
		OllamaContextLength: cfg.Backends.Ollama.ContextLength,
		OllamaThreads:       cfg.Backends.Ollama.Threads,
	})
	if err != nil {
		return Options{}, fmt.Errorf("failed to build backend selector: %w", err)
	}

	return Options{
		Selector: selector,
		Defaults: Defaults{
			Model:        cfg.Generation.Model,
			Temperature:  cfg.Generation.Temperature,
			TopP:         cfg.Generation.TopP,
			MaxTokens:    cfg.Generation.MaxTokens,
			SystemPrompt: cfg.Generation.SystemPrompt,
		},
		TitleLength:      cfg.Relay.TitleLength,
		PlaceholderTitle: cfg.Relay.PlaceholderTitle,
		PersistPartial:   cfg.Relay.PersistPartial,
		IncludeUsage:     cfg.Relay.IncludeUsage,
	}, nil
}
