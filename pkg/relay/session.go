package relay

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"mercator-hq/localchat/pkg/backend"
	"mercator-hq/localchat/pkg/store"
	"mercator-hq/localchat/pkg/telemetry/logging"
	"mercator-hq/localchat/pkg/upstream"
)

// State is a session lifecycle state.
type State string

const (
	StateInit            State = "init"
	StateThreadResolving State = "thread_resolving"
	StateStreaming       State = "streaming"
	StateFinalizing      State = "finalizing"
	StateClosed          State = "closed"
	StateErrored         State = "errored"
)

// Outcome classifies how a session ended.
type Outcome string

const (
	// OutcomeOK means the stream completed and both turns were saved.
	OutcomeOK Outcome = "ok"

	// OutcomeError means an error frame was sent instead of a completion.
	OutcomeError Outcome = "error"

	// OutcomePersistFailed means the stream completed but the assistant turn
	// could not be saved.
	OutcomePersistFailed Outcome = "persist_failed"

	// OutcomeCanceled means the client went away; nothing more was written.
	OutcomeCanceled Outcome = "canceled"

	// OutcomeInvalid means the request was rejected before any side effect.
	OutcomeInvalid Outcome = "invalid"
)

// Result describes a finished session.
type Result struct {
	ThreadID           string
	ThreadCreated      bool
	Backend            backend.Kind
	Model              string
	State              State
	Outcome            Outcome
	Text               string
	Deltas             int
	Dropped            int
	UserMessageID      string
	AssistantMessageID string
	Usage              *upstream.Usage
	Latency            time.Duration
	Duration           time.Duration
	Err                error

	// PartialErr is set when storing partial text after a stream failure
	// also failed. Err still carries the stream failure.
	PartialErr error
}

// session is the per-request state. It is owned by one goroutine.
type session struct {
	controller *Controller
	opts       *Options
	req        *ChatRequest
	w          FrameWriter
	start      time.Time
	state      State
	result     Result
}

func (s *session) run(ctx context.Context) Result {
	c := s.controller
	logger := c.logger

	// Init
	if err := s.req.Validate(); err != nil {
		s.result.State = StateInit
		s.result.Outcome = OutcomeInvalid
		s.result.Err = err
		return s.result
	}

	payload, sel := s.opts.Payload(s.req)
	s.result.Backend = sel.Kind
	s.result.Model = payload.Model

	ctx, span := c.startSpan(ctx, sel, payload.Model)
	defer func() { endSpan(span, s.result) }()

	if sel.Ambiguous {
		logger.WarnContext(ctx, "model identifier is both tag-style and path-style, using tag-style backend",
			"model", payload.Model,
			"backend", sel.Kind,
		)
	}

	c.metrics.SessionStarted(sel.Kind.String())
	defer func() {
		s.result.Duration = c.now().Sub(s.start)
		c.metrics.SessionFinished(sel.Kind.String(), string(s.result.Outcome), s.result.Duration)
		s.log(ctx)
	}()

	// ThreadResolving
	s.transition(ctx, StateThreadResolving)
	threadID := s.req.ThreadID
	if threadID == "" {
		thread, err := c.store.CreateThread(ctx, s.req.Title(s.opts.TitleLength, s.opts.PlaceholderTitle))
		if err != nil {
			return s.fail(ctx, &PersistenceError{Op: "create_thread", Err: err})
		}
		threadID = thread.ID
		s.result.ThreadCreated = true
	}
	s.result.ThreadID = threadID
	ctx = logging.WithThreadID(ctx, threadID)

	if err := s.w.JSON(ThreadFrame{ThreadID: threadID}); err != nil {
		return s.cancel(ctx, err)
	}

	userMsg, err := c.store.AppendMessage(ctx, store.NewMessage{
		ThreadID: threadID,
		Role:     store.RoleUser,
		Content:  s.req.LastUserMessage(),
	})
	if err != nil {
		return s.fail(ctx, &PersistenceError{Op: "append_user_message", Err: err})
	}
	s.result.UserMessageID = userMsg.ID

	// Streaming
	s.transition(ctx, StateStreaming)
	openedAt := c.now()
	stream, err := c.client.Open(ctx, sel.CompletionsURL(), payload)
	if err != nil {
		if ctx.Err() != nil {
			return s.cancel(ctx, ctx.Err())
		}
		var upErr *upstream.Error
		if errors.As(err, &upErr) {
			c.metrics.UpstreamError(sel.Kind.String(), upErr.Status)
		}
		return s.fail(ctx, err)
	}
	defer stream.Close()

	var clientErr error
	consumed, err := Consumer{
		OnEvent: func(data json.RawMessage) error {
			if werr := s.w.Data(data); werr != nil {
				clientErr = werr
				return werr
			}
			return nil
		},
		OnDelta: func(string) error {
			c.metrics.DeltaRelayed(sel.Kind.String())
			return nil
		},
	}.Consume(ctx, stream)

	s.result.Text = consumed.Text
	s.result.Deltas = consumed.Deltas
	s.result.Dropped = consumed.Dropped
	s.result.Usage = consumed.Usage
	s.result.Latency = c.now().Sub(openedAt)

	if err != nil {
		if clientErr != nil || ctx.Err() != nil {
			return s.cancel(ctx, err)
		}
		c.metrics.UpstreamError(sel.Kind.String(), 0)
		if s.opts.PersistPartial && consumed.Text != "" {
			if perr := s.persistAssistant(ctx, consumed); perr != nil {
				s.result.PartialErr = perr
				logger.WarnContext(ctx, "failed to persist partial assistant message",
					"error", perr,
					"chars", len(consumed.Text),
				)
			}
		}
		return s.fail(ctx, err)
	}

	// Finalizing
	s.transition(ctx, StateFinalizing)
	if err := s.persistAssistant(ctx, consumed); err != nil {
		if ferr := s.w.JSON(NewErrorFrame(err)); ferr != nil {
			return s.cancel(ctx, ferr)
		}
		if ferr := s.w.Done(); ferr != nil {
			return s.cancel(ctx, ferr)
		}
		s.result.Err = err
		s.result.Outcome = OutcomePersistFailed
		s.transition(ctx, StateClosed)
		return s.result
	}

	if err := s.w.Done(); err != nil {
		return s.cancel(ctx, err)
	}
	s.result.Outcome = OutcomeOK
	s.transition(ctx, StateClosed)
	return s.result
}

func (s *session) persistAssistant(ctx context.Context, consumed Consumed) error {
	latency := s.result.Latency.Milliseconds()
	msg := store.NewMessage{
		ThreadID:  s.result.ThreadID,
		Role:      store.RoleAssistant,
		Content:   consumed.Text,
		LatencyMs: &latency,
	}
	if u := consumed.Usage; u != nil {
		in, out := u.PromptTokens, u.CompletionTokens
		msg.TokensIn = &in
		msg.TokensOut = &out
	}

	saved, err := s.controller.store.AppendMessage(ctx, msg)
	if err != nil {
		s.controller.metrics.PersistenceError("append_assistant_message")
		return &PersistenceError{Op: "append_assistant_message", Err: err}
	}
	s.result.AssistantMessageID = saved.ID
	return nil
}

// fail emits the error frame and the terminal marker.
func (s *session) fail(ctx context.Context, err error) Result {
	var persistErr *PersistenceError
	if errors.As(err, &persistErr) {
		s.controller.metrics.PersistenceError(persistErr.Op)
	}

	s.result.Err = err
	s.result.Outcome = OutcomeError
	s.transition(ctx, StateErrored)

	if werr := s.w.JSON(NewErrorFrame(err)); werr != nil {
		return s.cancel(ctx, werr)
	}
	if werr := s.w.Done(); werr != nil {
		return s.cancel(ctx, werr)
	}
	return s.result
}

// cancel ends the session without writing anything further.
func (s *session) cancel(ctx context.Context, err error) Result {
	s.result.Err = err
	s.result.Outcome = OutcomeCanceled
	s.transition(ctx, StateErrored)
	return s.result
}

func (s *session) transition(ctx context.Context, to State) {
	s.controller.logger.DebugContext(ctx, "session state changed", "from", s.state, "to", to)
	s.state = to
	s.result.State = to
}

func (s *session) log(ctx context.Context) {
	attrs := []any{
		"backend", s.result.Backend,
		"model", s.result.Model,
		"outcome", s.result.Outcome,
		"deltas", s.result.Deltas,
		"duration_ms", s.result.Duration.Milliseconds(),
	}
	if s.result.Dropped > 0 {
		attrs = append(attrs, "dropped_lines", s.result.Dropped)
	}

	switch s.result.Outcome {
	case OutcomeOK:
		s.controller.logger.InfoContext(ctx, "chat session completed", attrs...)
	case OutcomeCanceled:
		s.controller.logger.InfoContext(ctx, "chat session canceled by client", append(attrs, "error", s.result.Err)...)
	default:
		s.controller.logger.WarnContext(ctx, "chat session failed", append(attrs, "error", s.result.Err)...)
	}
}
