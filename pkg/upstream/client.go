// Package upstream issues streaming chat completion requests to an
// OpenAI-compatible backend and exposes the raw response body.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 64 * 1024

// Config contains configuration for the upstream client.
type Config struct {
	// APIKey is sent as a bearer credential on every request.
	APIKey string

	// ConnectTimeout bounds dialing the backend. Zero means no limit.
	ConnectTimeout time.Duration

	// ResponseHeaderTimeout bounds the wait for response headers, which for a
	// local model includes prompt processing. Zero means no limit.
	ResponseHeaderTimeout time.Duration

	// MaxRetries is the number of extra attempts for transport failures and
	// 5xx responses. Retries only happen before any byte is returned.
	MaxRetries int

	// RetryBackoff is the base delay between attempts, doubled each time.
	RetryBackoff time.Duration

	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client opens streaming completion requests.
// It is safe for concurrent use.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// NewClient creates a client with connection pooling. The client imposes no
// overall timeout because streams last as long as generation does; callers
// bound a session through the context.
func NewClient(cfg Config) *Client {
	transport := cfg.Transport
	if transport == nil {
		dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			MaxIdleConns:          32,
			MaxIdleConnsPerHost:   8,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
			ForceAttemptHTTP2:     true,
		}
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}

	return &Client{
		config: cfg,
		client: &http.Client{Transport: transport},
		logger: slog.Default().With("component", "upstream.client"),
		tracer: otel.Tracer("mercator-hq/localchat/upstream"),
	}
}

// Stream is an open completion stream. Read yields raw body bytes and io.EOF
// when the backend closes the stream. Close releases the connection without
// draining it.
type Stream struct {
	body   io.ReadCloser
	status int
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	return s.body.Read(p)
}

// Close implements io.Closer.
func (s *Stream) Close() error {
	return s.body.Close()
}

// Status returns the HTTP status of the response.
func (s *Stream) Status() int {
	return s.status
}

// Open posts payload to url and returns the response stream. It fails with
// *Error when the backend is unreachable, answers with a non-2xx status, or
// returns no body. The context governs the whole stream: cancelling it aborts
// any pending Read.
func (c *Client) Open(ctx context.Context, url string, payload any) (*Stream, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, span := c.tracer.Start(ctx, "upstream.open",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.url", url)),
	)
	defer span.End()

	stream, err := c.open(ctx, url, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", stream.status))
	return stream, nil
}

func (c *Client) open(ctx context.Context, url string, body []byte) (*Stream, error) {
	var lastErr *Error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.config.RetryBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			c.logger.DebugContext(ctx, "retrying upstream request",
				"url", url,
				"attempt", attempt,
				"backoff", backoff,
				"previous_error", lastErr,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		stream, err := c.do(ctx, url, body)
		if err == nil {
			return stream, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !err.Retryable() {
			break
		}
		c.logger.WarnContext(ctx, "upstream request failed",
			"url", url,
			"status", err.Status,
			"attempt", attempt+1,
			"error", err,
		)
	}

	if lastErr == nil {
		return nil, fmt.Errorf("upstream request not attempted: max retries is %d", c.config.MaxRetries)
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, url string, body []byte) (*Stream, *Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &Error{Status: resp.StatusCode, Body: string(errorBody)}
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, &Error{Status: resp.StatusCode, Body: "response has no body"}
	}

	return &Stream{body: resp.Body, status: resp.StatusCode}, nil
}

// Probe sends a GET to url, usually the backend's models endpoint, and
// reports whether it answered with a success status. It never retries.
func (c *Client) Probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{Status: resp.StatusCode, Body: string(body)}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return nil
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.client.CloseIdleConnections()
}
