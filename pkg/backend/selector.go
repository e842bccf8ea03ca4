// Package backend maps a requested model and an optional explicit hint to the
// completion server that should serve it, together with the request shaping
// that server needs. Everything here is pure: no I/O and no errors at
// selection time.
package backend

import (
	"fmt"
	"runtime"
	"strings"

	"mercator-hq/localchat/pkg/upstream"
)

// Kind identifies one of the two interchangeable completion servers.
type Kind string

const (
	// VLLM is the primary backend. It serves path-style model identifiers
	// such as "TinyLlama/TinyLlama-1.1B-Chat-v1.0".
	VLLM Kind = "vllm"

	// Ollama is the secondary backend. It serves tag-style model identifiers
	// such as "llama3:8b".
	Ollama Kind = "ollama"
)

// Kinds lists every known backend kind.
var Kinds = []Kind{VLLM, Ollama}

// ParseKind converts a configuration or request value to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown backend %q (want %q or %q)", s, VLLM, Ollama)
	}
	return k, nil
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == VLLM || k == Ollama
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

// ShapeFunc adds backend-specific tuning fields to an outgoing request.
type ShapeFunc func(req *upstream.CompletionRequest)

// Backend is a concrete upstream target.
type Backend struct {
	Kind    Kind
	BaseURL string
	Shape   ShapeFunc
}

// CompletionsURL returns the chat completions endpoint of the backend.
func (b Backend) CompletionsURL() string {
	return strings.TrimRight(b.BaseURL, "/") + "/chat/completions"
}

// ModelsURL returns the model listing endpoint, used as a reachability probe.
func (b Backend) ModelsURL() string {
	return strings.TrimRight(b.BaseURL, "/") + "/models"
}

// Apply runs the backend's shaping function on req.
func (b Backend) Apply(req *upstream.CompletionRequest) {
	if b.Shape != nil {
		b.Shape(req)
	}
}

// Reason records which resolution rule picked a backend.
type Reason string

const (
	ReasonHint    Reason = "hint"
	ReasonTag     Reason = "tag_style_model"
	ReasonPath    Reason = "path_style_model"
	ReasonDefault Reason = "default"
)

// Selection is the result of Select.
type Selection struct {
	Backend

	// Reason is the rule that produced the selection.
	Reason Reason

	// Ambiguous is set when the model identifier is both tag-style and
	// path-style. The tag rule wins; callers should surface this as a
	// configuration smell.
	Ambiguous bool
}

// Config describes the two backends and the fallback choice.
type Config struct {
	// Default is used when neither a hint nor the model identifier decides.
	Default Kind

	// VLLMBaseURL is the OpenAI-compatible base URL of the vLLM server.
	VLLMBaseURL string

	// OllamaBaseURL is the OpenAI-compatible base URL of the Ollama server.
	OllamaBaseURL string

	// OllamaContextLength is sent as options.num_ctx.
	OllamaContextLength int

	// OllamaThreads is sent as options.num_thread. Zero means the number of CPUs.
	OllamaThreads int
}

// Selector resolves requests to backends.
type Selector struct {
	backends map[Kind]Backend
	fallback Kind
}

// NewSelector builds the shaping table from cfg.
func NewSelector(cfg Config) (*Selector, error) {
	if !cfg.Default.Valid() {
		return nil, fmt.Errorf("invalid default backend %q", cfg.Default)
	}
	if cfg.VLLMBaseURL == "" || cfg.OllamaBaseURL == "" {
		return nil, fmt.Errorf("both backend base URLs are required")
	}

	threads := cfg.OllamaThreads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	return &Selector{
		backends: map[Kind]Backend{
			VLLM: {
				Kind:    VLLM,
				BaseURL: cfg.VLLMBaseURL,
			},
			Ollama: {
				Kind:    Ollama,
				BaseURL: cfg.OllamaBaseURL,
				Shape:   OllamaOptions(cfg.OllamaContextLength, threads),
			},
		},
		fallback: cfg.Default,
	}, nil
}

// Select resolves (hint, model) to a backend. An explicit, known hint always
// wins. Otherwise a colon in the model selects the tag-style backend, then a
// slash selects the path-style backend, then the configured default applies.
func (s *Selector) Select(hint Kind, model string) Selection {
	if b, ok := s.backends[hint]; ok {
		return Selection{Backend: b, Reason: ReasonHint}
	}

	tagStyle := strings.Contains(model, ":")
	pathStyle := strings.Contains(model, "/")

	switch {
	case tagStyle:
		return Selection{Backend: s.backends[Ollama], Reason: ReasonTag, Ambiguous: pathStyle}
	case pathStyle:
		return Selection{Backend: s.backends[VLLM], Reason: ReasonPath}
	default:
		return Selection{Backend: s.backends[s.fallback], Reason: ReasonDefault}
	}
}

// Backend returns the backend of the given kind.
func (s *Selector) Backend(k Kind) (Backend, bool) {
	b, ok := s.backends[k]
	return b, ok
}

// Default returns the fallback kind.
func (s *Selector) Default() Kind {
	return s.fallback
}

// OllamaOptions returns the shaping function for Ollama's OpenAI shim:
// context length, generation length and thread count under extra_body.options.
func OllamaOptions(contextLength, threads int) ShapeFunc {
	return func(req *upstream.CompletionRequest) {
		if req.ExtraBody == nil {
			req.ExtraBody = make(map[string]any)
		}
		req.ExtraBody["options"] = map[string]any{
			"num_ctx":     contextLength,
			"num_predict": req.MaxTokens,
			"num_thread":  threads,
		}
	}
}
