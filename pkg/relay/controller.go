package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/localchat/pkg/backend"
	"mercator-hq/localchat/pkg/store"
	"mercator-hq/localchat/pkg/upstream"
)

// Opener opens upstream completion streams. *upstream.Client implements it.
type Opener interface {
	Open(ctx context.Context, url string, payload any) (*upstream.Stream, error)
}

// FrameWriter writes SSE frames to the client. *sse.Writer implements it.
type FrameWriter interface {
	Data(payload []byte) error
	JSON(v any) error
	Done() error
}

// Recorder receives session metrics. *metrics.Collector implements it.
type Recorder interface {
	SessionStarted(backend string)
	SessionFinished(backend, outcome string, duration time.Duration)
	DeltaRelayed(backend string)
	UpstreamError(backend string, status int)
	PersistenceError(op string)
}

// Defaults are the generation parameters used when a request omits them.
type Defaults struct {
	Model        string
	Temperature  float64
	TopP         float64
	MaxTokens    int
	SystemPrompt string
}

// Options configure the controller. They can be replaced at runtime.
type Options struct {
	Selector *backend.Selector
	Defaults Defaults

	// TitleLength bounds derived thread titles, in runes.
	TitleLength int

	// PlaceholderTitle names threads without usable user text.
	PlaceholderTitle string

	// PersistPartial stores the partial assistant text when the upstream
	// stream fails mid-way.
	PersistPartial bool

	// IncludeUsage asks the backend for token usage in the final chunk.
	IncludeUsage bool
}

// Controller runs relay sessions. It is safe for concurrent use; sessions
// share nothing but the store.
type Controller struct {
	store   store.Store
	client  Opener
	metrics Recorder
	options atomic.Pointer[Options]
	tracer  trace.Tracer
	logger  *slog.Logger
	now     func() time.Time
}

// NewController creates a controller.
func NewController(st store.Store, client Opener, opts Options, metrics Recorder) (*Controller, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if client == nil {
		return nil, errors.New("upstream client is required")
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}

	c := &Controller{
		store:   st,
		client:  client,
		metrics: metrics,
		tracer:  otel.Tracer("mercator-hq/localchat/relay"),
		logger:  slog.Default().With("component", "relay"),
		now:     time.Now,
	}
	if err := c.SetOptions(opts); err != nil {
		return nil, err
	}
	return c, nil
}

// SetOptions atomically replaces the options. Running sessions keep the
// options they started with.
func (c *Controller) SetOptions(opts Options) error {
	if opts.Selector == nil {
		return errors.New("backend selector is required")
	}
	if opts.TitleLength <= 0 {
		opts.TitleLength = 80
	}
	if opts.PlaceholderTitle == "" {
		opts.PlaceholderTitle = store.DefaultThreadTitle
	}
	c.options.Store(&opts)
	return nil
}

// Options returns the current options.
func (c *Controller) Options() Options {
	return *c.options.Load()
}

// Run executes one session and writes its frames to w. The session ends when
// the stream completes, fails, or ctx is cancelled. Run never returns before
// the terminal frame has been written, except on cancellation.
func (c *Controller) Run(ctx context.Context, req *ChatRequest, w FrameWriter) Result {
	s := &session{
		controller: c,
		opts:       c.options.Load(),
		req:        req,
		w:          w,
		start:      c.now(),
		state:      StateInit,
	}
	return s.run(ctx)
}

// Payload builds the upstream request body for req and reports the selected
// backend.
func (o *Options) Payload(req *ChatRequest) (*upstream.CompletionRequest, backend.Selection) {
	model := req.Model
	if model == "" {
		model = o.Defaults.Model
	}
	sel := o.Selector.Select(backend.Kind(req.Backend), model)

	system := req.System
	if system == "" && !hasSystemMessage(req.Messages) {
		system = o.Defaults.SystemPrompt
	}

	payload := &upstream.CompletionRequest{
		Model:       model,
		Messages:    OutgoingMessages(req.Messages, system),
		Temperature: valueOr(req.Temperature, o.Defaults.Temperature),
		TopP:        valueOr(req.TopP, o.Defaults.TopP),
		MaxTokens:   valueOr(req.MaxTokens, o.Defaults.MaxTokens),
		Stream:      true,
	}
	if o.IncludeUsage {
		payload.StreamOptions = &upstream.StreamOptions{IncludeUsage: true}
	}
	sel.Apply(payload)
	return payload, sel
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func (c *Controller) startSpan(ctx context.Context, sel backend.Selection, model string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "relay.session",
		trace.WithAttributes(
			attribute.String("localchat.backend", sel.Kind.String()),
			attribute.String("localchat.backend_reason", string(sel.Reason)),
			attribute.String("localchat.model", model),
		),
	)
}

func endSpan(span trace.Span, res Result) {
	span.SetAttributes(
		attribute.String("localchat.thread_id", res.ThreadID),
		attribute.String("localchat.outcome", string(res.Outcome)),
		attribute.Int("localchat.deltas", res.Deltas),
	)
	if res.Err != nil && res.Outcome != OutcomeCanceled {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	span.End()
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted(string)                         {}
func (nopRecorder) SessionFinished(string, string, time.Duration) {}
func (nopRecorder) DeltaRelayed(string)                           {}
func (nopRecorder) UpstreamError(string, int)                     {}
func (nopRecorder) PersistenceError(string)                       {}
