package relay

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/localchat/pkg/backend"
)

func TestDecodeChatRequest(t *testing.T) {
	body := `{
		"messages": [{"role": "system", "content": "be brief"}, {"role": "user", "content": "hi"}],
		"temperature": 0.2,
		"top_p": 0.5,
		"max_tokens": 64,
		"model": "llama3:8b",
		"system": "You are helpful.",
		"threadId": "t1",
		"backend": "ollama"
	}`

	req, err := DecodeChatRequest(strings.NewReader(body))
	require.NoError(t, err)
	assert.Len(t, req.Messages, 2)
	assert.Equal(t, 0.2, *req.Temperature)
	assert.Equal(t, 0.5, *req.TopP)
	assert.Equal(t, 64, *req.MaxTokens)
	assert.Equal(t, "llama3:8b", req.Model)
	assert.Equal(t, "t1", req.ThreadID)
	assert.Equal(t, "ollama", req.Backend)
	assert.Equal(t, "hi", req.LastUserMessage())
}

func TestDecodeChatRequestInvalid(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"not json", `{"messages":`, "body"},
		{"missing messages", `{}`, "messages"},
		{"empty messages", `{"messages":[]}`, "messages"},
		{"bad role", `{"messages":[{"role":"tool","content":"x"}]}`, "messages[0].role"},
		{"temperature too high", `{"messages":[{"role":"user","content":"x"}],"temperature":3}`, "temperature"},
		{"negative temperature", `{"messages":[{"role":"user","content":"x"}],"temperature":-0.5}`, "temperature"},
		{"top_p too high", `{"messages":[{"role":"user","content":"x"}],"top_p":1.5}`, "top_p"},
		{"max_tokens too high", `{"messages":[{"role":"user","content":"x"}],"max_tokens":9000}`, "max_tokens"},
		{"unknown backend", `{"messages":[{"role":"user","content":"x"}],"backend":"tgi"}`, "backend"},
		{"last message not user", `{"messages":[{"role":"user","content":"x"},{"role":"assistant","content":"y"}]}`, "messages[1].role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeChatRequest(strings.NewReader(tt.body))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "want *ValidationError, got %v", err)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Contains(t, verr.Error(), "invalid request")
		})
	}
}

func TestTitle(t *testing.T) {
	long := strings.Repeat("é", 100)

	tests := []struct {
		name     string
		messages []ChatMessage
		want     string
	}{
		{"short", []ChatMessage{{Role: "user", Content: "hi"}}, "hi"},
		{"truncated by runes", []ChatMessage{{Role: "user", Content: long}}, strings.Repeat("é", 80)},
		{"first user message wins", []ChatMessage{
			{Role: "system", Content: "sys"},
			{Role: "user", Content: "first"},
			{Role: "user", Content: "second"},
		}, "first"},
		{"empty content", []ChatMessage{{Role: "user", Content: ""}}, "New Chat"},
		{"no user message", []ChatMessage{{Role: "system", Content: "sys"}}, "New Chat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &ChatRequest{Messages: tt.messages}
			assert.Equal(t, tt.want, req.Title(80, "New Chat"))
		})
	}
}

func TestOutgoingMessages(t *testing.T) {
	messages := []ChatMessage{
		{Role: "system", Content: "client system"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "again"},
	}

	t.Run("system prompt replaces client system messages", func(t *testing.T) {
		out := OutgoingMessages(messages, "server system")
		require.Len(t, out, 4)
		assert.Equal(t, "system", out[0].Role)
		assert.Equal(t, "server system", out[0].Content)
		assert.Equal(t, "hi", out[1].Content)
		assert.Equal(t, "again", out[3].Content)
	})

	t.Run("no system prompt keeps messages", func(t *testing.T) {
		out := OutgoingMessages(messages, "")
		require.Len(t, out, 4)
		assert.Equal(t, "client system", out[0].Content)
	})
}

func testSelector(t *testing.T, vllmURL, ollamaURL string) *backend.Selector {
	t.Helper()
	sel, err := backend.NewSelector(backend.Config{
		Default:             backend.VLLM,
		VLLMBaseURL:         vllmURL,
		OllamaBaseURL:       ollamaURL,
		OllamaContextLength: 4096,
		OllamaThreads:       4,
	})
	require.NoError(t, err)
	return sel
}

func TestPayload(t *testing.T) {
	opts := &Options{
		Selector: testSelector(t, "http://vllm/v1", "http://ollama/v1"),
		Defaults: Defaults{
			Model:        "local-model",
			Temperature:  0.7,
			TopP:         0.9,
			MaxTokens:    512,
			SystemPrompt: "default system",
		},
		IncludeUsage: true,
	}

	t.Run("defaults", func(t *testing.T) {
		payload, sel := opts.Payload(&ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "hi"}}})
		assert.Equal(t, backend.VLLM, sel.Kind)
		assert.Equal(t, backend.ReasonDefault, sel.Reason)
		assert.Equal(t, "local-model", payload.Model)
		assert.Equal(t, 0.7, payload.Temperature)
		assert.Equal(t, 0.9, payload.TopP)
		assert.Equal(t, 512, payload.MaxTokens)
		assert.True(t, payload.Stream)
		require.NotNil(t, payload.StreamOptions)
		assert.True(t, payload.StreamOptions.IncludeUsage)
		require.Len(t, payload.Messages, 2)
		assert.Equal(t, "default system", payload.Messages[0].Content)
		assert.Nil(t, payload.ExtraBody)
	})

	t.Run("request overrides", func(t *testing.T) {
		temp, topP, maxTokens := 0.0, 1.0, 32
		payload, sel := opts.Payload(&ChatRequest{
			Messages:    []ChatMessage{{Role: "user", Content: "hi"}},
			Temperature: &temp,
			TopP:        &topP,
			MaxTokens:   &maxTokens,
			Model:       "llama3:8b",
			System:      "custom",
		})
		assert.Equal(t, backend.Ollama, sel.Kind)
		assert.Equal(t, 0.0, payload.Temperature)
		assert.Equal(t, 1.0, payload.TopP)
		assert.Equal(t, 32, payload.MaxTokens)
		assert.Equal(t, "custom", payload.Messages[0].Content)

		options, ok := payload.ExtraBody["options"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 32, options["num_predict"])
		assert.Equal(t, 4096, options["num_ctx"])
	})

	t.Run("client system message suppresses default prompt", func(t *testing.T) {
		payload, _ := opts.Payload(&ChatRequest{Messages: []ChatMessage{
			{Role: "system", Content: "mine"},
			{Role: "user", Content: "hi"},
		}})
		require.Len(t, payload.Messages, 2)
		assert.Equal(t, "mine", payload.Messages[0].Content)
	})

	t.Run("hint wins", func(t *testing.T) {
		_, sel := opts.Payload(&ChatRequest{
			Messages: []ChatMessage{{Role: "user", Content: "hi"}},
			Model:    "llama3:8b",
			Backend:  "vllm",
		})
		assert.Equal(t, backend.VLLM, sel.Kind)
		assert.Equal(t, backend.ReasonHint, sel.Reason)
	})
}
