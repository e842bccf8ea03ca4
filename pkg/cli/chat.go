package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"mercator-hq/localchat/pkg/backend"
	"mercator-hq/localchat/pkg/relay"
	"mercator-hq/localchat/pkg/store"
)

// Chat commands recognised at the prompt.
const (
	CommandNew  = "new"
	CommandExit = "exit"
)

// ChatOptions configure a terminal chat session.
type ChatOptions struct {
	// Relay supplies the backend selector and generation defaults.
	Relay relay.Options

	// Backend forces a backend. Empty lets the model identifier decide.
	Backend backend.Kind

	// Model overrides the default model.
	Model string

	// System overrides the default system prompt.
	System string

	// Prompt is shown before each line of input.
	Prompt string
}

// Chat is an interactive conversation with in-memory history. Nothing is
// persisted.
type Chat struct {
	client  relay.Opener
	opts    ChatOptions
	in      LineReader
	out     io.Writer
	history []relay.ChatMessage

	// interrupt scopes a context to one turn.
	interrupt func(context.Context) (context.Context, context.CancelFunc)
	logger    *slog.Logger
}

// NewChat creates a chat session reading from in and writing to out.
func NewChat(client relay.Opener, opts ChatOptions, in LineReader, out io.Writer) (*Chat, error) {
	if client == nil {
		return nil, errors.New("upstream client is required")
	}
	if opts.Relay.Selector == nil {
		return nil, errors.New("backend selector is required")
	}
	if opts.Backend != "" && !opts.Backend.Valid() {
		return nil, NewConfigError("backend", fmt.Sprintf("must be one of [vllm ollama], got %q", opts.Backend))
	}
	if opts.Prompt == "" {
		opts.Prompt = "you> "
	}
	return &Chat{
		client:    client,
		opts:      opts,
		in:        in,
		out:       out,
		interrupt: InterruptContext,
		logger:    slog.Default().With("component", "cli.chat"),
	}, nil
}

func (c *Chat) model() string {
	if c.opts.Model != "" {
		return c.opts.Model
	}
	return c.opts.Relay.Defaults.Model
}

func (c *Chat) system() string {
	if c.opts.System != "" {
		return c.opts.System
	}
	return c.opts.Relay.Defaults.SystemPrompt
}

// Banner prints the session header.
func (c *Chat) Banner() {
	sel := c.opts.Relay.Selector.Select(c.opts.Backend, c.model())
	system := "(none)"
	if c.system() != "" {
		system = "(set)"
	}
	fmt.Fprintln(c.out, "Local Chat CLI")
	fmt.Fprintf(c.out, "- backend: %s\n", sel.Kind)
	fmt.Fprintf(c.out, "- base: %s\n", sel.BaseURL)
	fmt.Fprintf(c.out, "- model: %s\n", c.model())
	fmt.Fprintf(c.out, "- system: %s\n", system)
	fmt.Fprintf(c.out, "Type '%s' to reset, '%s' to quit.\n", CommandNew, CommandExit)
}

// Run reads lines until exit or end of input. A failed turn is reported and
// the loop continues.
func (c *Chat) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		fmt.Fprintln(c.out)
		line, err := c.in.Prompt(c.opts.Prompt)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(c.out)
			return nil
		}
		if err != nil {
			return err
		}

		switch text := strings.TrimSpace(line); text {
		case "":
			continue
		case CommandExit:
			return nil
		case CommandNew:
			c.Reset()
			fmt.Fprintln(c.out, "(new thread)")
		default:
			turnCtx, stop := c.interrupt(ctx)
			_, err := c.Send(turnCtx, text)
			stop()
			if err != nil {
				fmt.Fprintln(c.out, TurnMessage(err))
			}
		}
	}
}

// Send streams one reply to out and records the exchange. A failed turn
// leaves the history unchanged.
func (c *Chat) Send(ctx context.Context, text string) (string, error) {
	user := relay.ChatMessage{Role: string(store.RoleUser), Content: text}
	req := &relay.ChatRequest{
		Messages: append(c.History(), user),
		Model:    c.opts.Model,
		System:   c.opts.System,
		Backend:  string(c.opts.Backend),
	}

	payload, sel := c.opts.Relay.Payload(req)
	if sel.Ambiguous {
		c.logger.Warn("model identifier is both tag-style and path-style",
			"model", payload.Model, "backend", sel.Kind)
	}

	stream, err := c.client.Open(ctx, sel.CompletionsURL(), payload)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	fmt.Fprint(c.out, "\nassistant: ")
	consumer := relay.Consumer{
		OnDelta: func(delta string) error {
			_, err := io.WriteString(c.out, delta)
			return err
		},
	}
	consumed, err := consumer.Consume(ctx, stream)
	fmt.Fprintln(c.out)
	if err != nil {
		return consumed.Text, err
	}

	c.history = append(c.history, user, relay.ChatMessage{
		Role:    string(store.RoleAssistant),
		Content: consumed.Text,
	})
	return consumed.Text, nil
}

// Reset clears the conversation. The system prompt is configuration and
// survives.
func (c *Chat) Reset() {
	c.history = nil
}

// History returns a copy of the conversation so far.
func (c *Chat) History() []relay.ChatMessage {
	out := make([]relay.ChatMessage, len(c.history))
	copy(out, c.history)
	return out
}
