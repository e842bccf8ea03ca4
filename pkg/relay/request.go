package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"mercator-hq/localchat/pkg/store"
	"mercator-hq/localchat/pkg/upstream"
)

// ChatMessage is one message of an inbound chat request.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// ChatRequest is the inbound body of POST /api/chat.
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	Temperature *float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP        *float64      `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	MaxTokens   *int          `json:"max_tokens,omitempty" validate:"omitempty,gte=1,lte=8192"`
	Model       string        `json:"model,omitempty" validate:"max=256"`
	System      string        `json:"system,omitempty"`
	ThreadID    string        `json:"threadId,omitempty" validate:"max=128"`
	Backend     string        `json:"backend,omitempty" validate:"omitempty,oneof=vllm ollama"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeChatRequest reads and validates a chat request body.
func DecodeChatRequest(r io.Reader) (*ChatRequest, error) {
	var req ChatRequest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&req); err != nil {
		return nil, &ValidationError{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Validate checks field constraints and that the conversation ends with the
// user turn that the session persists.
func (r *ChatRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return &ValidationError{Message: err.Error()}
	}

	last := r.Messages[len(r.Messages)-1]
	if last.Role != string(store.RoleUser) {
		return &ValidationError{
			Field:   fmt.Sprintf("messages[%d].role", len(r.Messages)-1),
			Message: "last message must have role user",
		}
	}
	return nil
}

func fieldError(fe validator.FieldError) *ValidationError {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "min":
		msg = fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "max":
		msg = fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		msg = fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		msg = fmt.Sprintf("must be <= %s", fe.Param())
	case "oneof":
		msg = fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		msg = fmt.Sprintf("failed %q validation", fe.Tag())
	}
	return &ValidationError{Field: field, Message: msg}
}

// LastUserMessage returns the content of the final message.
func (r *ChatRequest) LastUserMessage() string {
	return r.Messages[len(r.Messages)-1].Content
}

// Title derives a thread title from the first user message, truncated to
// limit runes. It returns placeholder when there is no usable text.
func (r *ChatRequest) Title(limit int, placeholder string) string {
	for _, m := range r.Messages {
		if m.Role != string(store.RoleUser) {
			continue
		}
		runes := []rune(m.Content)
		if limit > 0 && len(runes) > limit {
			runes = runes[:limit]
		}
		if len(runes) == 0 {
			break
		}
		return string(runes)
	}
	return placeholder
}

// OutgoingMessages returns the conversation to send upstream. A non-empty
// system prompt replaces every client-supplied system message and goes first.
func OutgoingMessages(messages []ChatMessage, system string) []upstream.Message {
	out := make([]upstream.Message, 0, len(messages)+1)
	if system != "" {
		out = append(out, upstream.Message{Role: string(store.RoleSystem), Content: system})
	}
	for _, m := range messages {
		if system != "" && m.Role == string(store.RoleSystem) {
			continue
		}
		out = append(out, upstream.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func hasSystemMessage(messages []ChatMessage) bool {
	for _, m := range messages {
		if m.Role == string(store.RoleSystem) {
			return true
		}
	}
	return false
}
