package upstream

// Message is a single chat message in the OpenAI-compatible wire format.
type Message struct {
	// Role identifies the sender (system, user, assistant).
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// CompletionRequest is the body of a streaming chat completion call.
type CompletionRequest struct {
	// Model is the backend-specific model identifier.
	Model string `json:"model"`

	// Messages is the conversation, system prompt first when present.
	Messages []Message `json:"messages"`

	// Temperature controls randomness (0.0 to 2.0).
	Temperature float64 `json:"temperature"`

	// TopP controls nucleus sampling (0.0 to 1.0).
	TopP float64 `json:"top_p"`

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int `json:"max_tokens"`

	// Stream is always true for relay traffic.
	Stream bool `json:"stream"`

	// StreamOptions asks the backend to report usage in the final chunk.
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`

	// ExtraBody carries backend-specific tuning fields. Backends that do not
	// understand it ignore it.
	ExtraBody map[string]any `json:"extra_body,omitempty"`
}

// StreamOptions configures streamed responses.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ChunkDelta is the incremental content of one streamed choice.
type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ChunkChoice is one choice inside a streamed chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// Usage reports token consumption. Some backends attach it to the final chunk.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Chunk is a "chat.completion.chunk" event payload.
type Chunk struct {
	ID      string        `json:"id,omitempty"`
	Object  string        `json:"object,omitempty"`
	Created int64         `json:"created,omitempty"`
	Model   string        `json:"model,omitempty"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// Delta returns the content delta of the first choice, or "".
func (c *Chunk) Delta() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}
